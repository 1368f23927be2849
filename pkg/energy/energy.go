// Package energy recalculates the lipid-lipid interaction energies by
// rerunning the trajectory through gromacs with per-residue energy
// groups, then collects the resulting .xvg tables into flat data files.
package energy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/FabKe91/BilayAna/pkg/gmx"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/neighbor"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// denominatorBase caps the number of energy groups per grompp run;
// gromacs slows down sharply beyond that.
const denominatorBase = 40

// Known part modes.
const (
	PartComplete      = "complete"
	PartHeadTail      = "head-tail"
	PartHeadTailHalfs = "head-tailhalfs"
	PartCarbons       = "carbons"
)

// Energy drives the interaction energy recalculation.
type Energy struct {
	Sys       *sysinfo.SysInfo
	Gmx       *gmx.Runner
	Neighbors neighbor.Map

	Trajectory string
	Topology   string

	// Dir is the working directory of the pipeline, "energy" by default.
	Dir string

	// ResIndexAll is the index file holding every residue group,
	// written by CreateIndexFile.
	ResIndexAll string

	Temperature float64
	Dt          float64
	Overwrite   bool

	Log *log.Logger

	part        string
	partSuffix  string
	molparts    []string
	denominator int
	allEnergies string
}

// New configures the pipeline for one interaction part mode. The mode
// decides how each lipid is split into energy groups and how many
// neighbors fit into one rerun.
func New(part string, sys *sysinfo.SysInfo, runner *gmx.Runner, neibs neighbor.Map) (*Energy, error) {
	e := &Energy{
		Sys:         sys,
		Gmx:         runner,
		Neighbors:   neibs,
		Dir:         "energy",
		ResIndexAll: "resindex_all.ndx",
		part:        part,
	}
	switch part {
	case PartComplete:
		e.molparts = []string{"resid_"}
		e.partSuffix = ""
		e.denominator = denominatorBase
		e.allEnergies = "all_energies.dat"
	case PartHeadTail:
		e.molparts = []string{"resid_h_", "resid_t_"}
		e.partSuffix = "headtail"
		e.denominator = denominatorBase / 2
		e.allEnergies = "all_energies_headtail.dat"
	case PartHeadTailHalfs:
		e.molparts = []string{"resid_h_", "resid_t12_", "resid_t22_"}
		e.partSuffix = "headtailhalfs"
		e.denominator = denominatorBase / 4
		e.allEnergies = "all_energies_headtailhalfs.dat"
	case PartCarbons:
		for i := 0; i < lipid.NCarbonGroups; i++ {
			e.molparts = append(e.molparts, fmt.Sprintf("resid_C%d_", i))
		}
		e.partSuffix = "carbons"
		e.denominator = denominatorBase / 10
		e.allEnergies = "all_energies_carbons.dat"
	default:
		return nil, fmt.Errorf("unknown part mode %q", part)
	}
	return e, nil
}

func (e *Energy) logger() *log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.Default()
}

// AllEnergiesFile returns the name of the collected energy table.
func (e *Energy) AllEnergiesFile() string { return e.allEnergies }

// molpartsFor returns the group prefixes of one residue: sterols are a
// single group regardless of the part mode.
func (e *Energy) molpartsFor(resname string) []string {
	if lipid.IsSterol(resname) {
		return []string{"resid_"}
	}
	return e.molparts
}

// fragments splits a neighbor set into rerun-sized blocks.
func (e *Energy) fragments(all []int) int {
	if len(all)%e.denominator == 0 {
		return len(all) / e.denominator
	}
	return len(all)/e.denominator + 1
}

func (e *Energy) block(all []int, frag int) []int {
	lo := frag * e.denominator
	hi := lo + e.denominator
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi]
}

func (e *Energy) mdpPath(res, frag int) string {
	return filepath.Join(e.Dir, "mdpfiles",
		fmt.Sprintf("energy_mdp_recalc_resid%d_%d%s.mdp", res, frag, e.partSuffix))
}

func (e *Energy) tprPath(res, frag int) string {
	return filepath.Join(e.Dir, "tprfiles",
		fmt.Sprintf("mdrerun_resid%d_%d%s.tpr", res, frag, e.partSuffix))
}

func (e *Energy) edrPath(res, frag int) string {
	return filepath.Join(e.Dir, "edrfiles",
		fmt.Sprintf("energyfile_resid%d_%d%s.edr", res, frag, e.partSuffix))
}

func (e *Energy) xvgPath(res, frag int) string {
	return filepath.Join(e.Dir, "xvgtables",
		fmt.Sprintf("energies_residue%d_%d%s.xvg", res, frag, e.partSuffix))
}

func (e *Energy) selfXVGPath(res int) string {
	return filepath.Join(e.Dir, "xvgtables",
		fmt.Sprintf("energies_residue%d_selfinteraction%s.xvg", res, e.partSuffix))
}

// RunCalculation reruns the trajectory for every given residue: one
// grompp/mdrun/energy round per neighbor fragment.
func (e *Energy) RunCalculation(ctx context.Context, resids []int) error {
	for _, sub := range []string{"mdpfiles", "tprfiles", "edrfiles", "xvgtables", "logfiles"} {
		if err := os.MkdirAll(filepath.Join(e.Dir, sub), 0o755); err != nil {
			return err
		}
	}

	for _, res := range resids {
		all := e.Neighbors.AllNeighbors(res)
		nFrag := e.fragments(all)
		e.logger().Info("rerunning for residue", "resid", res, "neighbors", len(all), "fragments", nFrag)

		for frag := 0; frag < nFrag; frag++ {
			block := e.block(all, frag)

			mdp := e.mdpPath(res, frag)
			tpr := e.tprPath(res, frag)
			edr := e.edrPath(res, frag)
			xvgOut := e.xvgPath(res, frag)

			if err := e.writeMDP(mdp, e.gatherEnergyGroups(res, block)); err != nil {
				return fmt.Errorf("resid %d fragment %d: %w", res, frag, err)
			}
			err := e.Gmx.Run(ctx, nil, "gmx_grompp.log", "grompp",
				"-f", mdp, "-p", e.Topology, "-c", e.Sys.Structure,
				"-o", tpr, "-n", e.ResIndexAll, "-po", mdp)
			if err != nil {
				return fmt.Errorf("resid %d fragment %d: %w", res, frag, err)
			}

			if fileExists(edr) && !e.Overwrite {
				e.logger().Info("edr file exists, skipping rerun", "resid", res, "fragment", frag)
			} else {
				logOut := filepath.Join(e.Dir, "logfiles",
					fmt.Sprintf("mdrerun_resid%d%sfrag%d.log", res, e.partSuffix, frag))
				err = e.Gmx.Run(ctx, nil, "gmx_mdrun.log", "mdrun",
					"-s", tpr, "-rerun", e.Trajectory,
					"-e", edr, "-o", "EMPTY.trr", "-g", logOut)
				if err != nil {
					return fmt.Errorf("resid %d fragment %d: %w", res, frag, err)
				}
			}

			if fileExists(xvgOut) && !e.Overwrite {
				e.logger().Info("xvg table exists, skipping extraction", "resid", res, "fragment", frag)
				continue
			}
			selections := e.relevantEnergies(res, block)
			err = e.Gmx.Run(ctx, []byte(selections), "gmx_energy.log", "energy",
				"-f", edr, "-s", tpr, "-o", xvgOut)
			if err != nil {
				return fmt.Errorf("resid %d fragment %d: %w", res, frag, err)
			}
		}
	}
	return nil
}

// gatherEnergyGroups lists the energygrps of one rerun: all parts of the
// host and of every neighbor in the block.
func (e *Energy) gatherEnergyGroups(res int, block []int) string {
	var groups []string
	for _, resid := range append([]int{res}, block...) {
		for _, part := range e.molpartsFor(e.Sys.ResidToLipid[resid]) {
			groups = append(groups, part+strconv.Itoa(resid))
		}
	}
	return strings.Join(groups, " ")
}

// relevantEnergies builds the gmx energy selection: every Coul-SR and
// LJ-SR term between a host part and a neighbor part.
func (e *Energy) relevantEnergies(res int, block []int) string {
	var sel []string
	for _, etype := range []string{"Coul-SR:", "LJ-SR:"} {
		for _, parthost := range e.molpartsFor(e.Sys.ResidToLipid[res]) {
			for _, neib := range block {
				for _, partneib := range e.molpartsFor(e.Sys.ResidToLipid[neib]) {
					sel = append(sel, etype+parthost+strconv.Itoa(res)+"-"+partneib+strconv.Itoa(neib))
				}
			}
		}
	}
	return strings.Join(append(sel, "\n"), "\n")
}

// SelfInteractions extracts the self interaction terms of every analysed
// residue from the fragment-0 energy files.
func (e *Energy) SelfInteractions(ctx context.Context) error {
	for _, res := range e.Sys.MolRange {
		var sel []string
		for _, etype := range []string{"Coul-SR:", "LJ-SR:", "Coul-14:", "LJ-14:"} {
			for _, part := range e.molpartsFor(e.Sys.ResidToLipid[res]) {
				g := part + strconv.Itoa(res)
				sel = append(sel, etype+g+"-"+g)
			}
		}
		err := e.Gmx.Run(ctx, []byte(strings.Join(append(sel, "\n"), "\n")), "gmx_energy.log",
			"energy", "-f", e.edrPath(res, 0), "-s", e.tprPath(res, 0),
			"-o", e.selfXVGPath(res))
		if err != nil {
			return fmt.Errorf("resid %d: %w", res, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
