// Package cfg loads the YAML run configuration and dispatches the
// analyses with the settings it carries.
package cfg

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// Cfg is the run configuration. It can be instanced through New or by
// hand; hand-built configurations should be passed through Check.
type Cfg struct {
	// Structure is the .gro file defining the system. Its first frame
	// fixes the residue maps.
	Structure string `yaml:"structure"`

	// Trajectory is the multi-frame .gro trajectory under analysis.
	Trajectory string `yaml:"trajectory"`

	// Topology is the .top file, used by the energy reruns only.
	Topology string `yaml:"topology"`

	// Molecules are the lipid residue names under analysis.
	Molecules []string `yaml:"molecules"`

	// PBC specifies whether the trajectory is wrapped into the box. A
	// wrapped trajectory is unwrapped before the MSD.
	PBC bool `yaml:"pbc"`

	// Start is the first frame that will be read (counting from 0).
	Start int `yaml:"start"`

	// End is the frame the analyses stop before.
	End int `yaml:"end"`

	// Mem is the number of configurations the MSD engine keeps in
	// memory; earlier frames are re-read through their byte offsets.
	Mem int `yaml:"mem"`

	// Dt is the time between analysed frames in ps. It is also the
	// sampling step the energy tables are filtered down to.
	Dt float64 `yaml:"dt"`

	// Cutoff is the neighbor search radius in nm.
	Cutoff float64 `yaml:"cutoff"`

	// RefAtom selects the neighbor reference: "P" for the central atom
	// or "tails_com" for the tail center of mass.
	RefAtom string `yaml:"refatom"`

	// BinWidth is the histogram bin width in nm for the RDF and in Scd
	// units for the order profiles.
	BinWidth float64 `yaml:"binwidth"`

	// Cell is the lateral distribution grid cell size in nm.
	Cell float64 `yaml:"cell"`

	// Lateral restricts the MSD to the membrane plane.
	Lateral bool `yaml:"lateralMSD"`

	// Leaflet restricts the MSD to one leaflet (0 or 1); -1 uses both.
	Leaflet int `yaml:"leaflet"`

	// RDFRef and RDFSel are the central and distributed species of the
	// radial distribution function.
	RDFRef string `yaml:"rdfRef"`
	RDFSel string `yaml:"rdfSel"`

	// ThicknessRef is the reference atom of the thickness profile.
	ThicknessRef string `yaml:"thicknessRef"`

	// Temperature is the rerun thermostat reference in K.
	Temperature float64 `yaml:"temperature"`

	// EnergyPart selects the interaction decomposition: complete,
	// head-tail, head-tailhalfs or carbons.
	EnergyPart string `yaml:"energyPart"`

	// Gmx is the gromacs executable used by the energy pipeline.
	Gmx string `yaml:"gmx"`

	// Overwrite redoes energy reruns whose output files already exist.
	Overwrite bool `yaml:"overwrite"`

	Log *log.Logger `yaml:"-"`

	sys *sysinfo.SysInfo
}

// New opens and decodes the specified YAML configuration file and checks
// its integrity.
func New(path string) (*Cfg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := defaults()
	r := bufio.NewReader(f)
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := c.Check(); err != nil {
		return nil, fmt.Errorf("Check: %w", err)
	}
	return c, nil
}

func defaults() *Cfg {
	return &Cfg{
		RefAtom:      "P",
		BinWidth:     0.02,
		Cell:         0.5,
		Leaflet:      -1,
		ThicknessRef: "P",
		Temperature:  300.0,
		EnergyPart:   "complete",
		Gmx:          "gmx",
	}
}

// Check returns an error if a field doesn't meet the requirements.
func (c *Cfg) Check() error {
	if c.Structure == "" {
		return fmt.Errorf("a structure file must be specified")
	}
	if len(c.Molecules) == 0 {
		return fmt.Errorf("at least one molecule species must be specified")
	}
	for _, m := range c.Molecules {
		if !lipid.Known(m) {
			return fmt.Errorf("unknown molecule species %q", m)
		}
	}
	if c.Start < 0 {
		return fmt.Errorf("Start must be greater or equal to 0")
	}
	if c.End <= c.Start {
		return fmt.Errorf("End cannot be lower or equal to Start")
	}
	if (c.End - c.Start) == 1 {
		return fmt.Errorf("End-Start must not be equal to 1")
	}
	if c.Mem > (c.End-c.Start) || c.Mem < 0 {
		return fmt.Errorf("Mem cannot be lower than 0 or greater than End-Start")
	}
	if c.Dt <= 0 {
		return fmt.Errorf("Dt cannot be lower or equal to 0")
	}
	if c.Cutoff < 0 {
		return fmt.Errorf("Cutoff cannot be lower than 0")
	}
	if c.Leaflet > 1 {
		return fmt.Errorf("Leaflet must be -1, 0 or 1")
	}
	return nil
}

func (c *Cfg) logger() *log.Logger {
	if c.Log != nil {
		return c.Log
	}
	return log.Default()
}

// SysInfo builds (once) the system bookkeeping from the structure file.
func (c *Cfg) SysInfo() (*sysinfo.SysInfo, error) {
	if c.sys != nil {
		return c.sys, nil
	}
	sys, err := sysinfo.New(c.Structure, c.Molecules, c.logger())
	if err != nil {
		return nil, err
	}
	c.sys = sys
	return sys, nil
}

// noPBCName derives the unwrapped trajectory name, e.g. traj.gro →
// traj_nopbc.gro.
func noPBCName(traj string) string {
	ext := filepath.Ext(traj)
	return strings.TrimSuffix(traj, ext) + "_nopbc" + ext
}
