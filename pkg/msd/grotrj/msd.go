// Package grotrj is the .gro trajectory backend of the msd engine. A
// "molecule" here is one analysed lipid, represented by the center of
// mass of its atoms.
package grotrj

import (
	"fmt"
	"io"
	"os"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/msd"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// MSD implements msd.Method over a multi-frame .gro file. The last Mem
// configurations are kept in memory as COM arrays; earlier frames are
// re-read on demand through their recorded byte offsets.
type MSD struct {
	*msd.MSD

	Sys *sysinfo.SysInfo

	// Assign and Leaflet restrict the selection to one leaflet when
	// Assign is non-nil and Leaflet is 0 or 1.
	Assign  map[int]int
	Leaflet int

	f       *os.File
	resids  []int
	offsets []int64
	mem     [][][3]float64
}

// New returns a backend for the given engine and system. leaflet < 0
// selects both leaflets.
func New(m *msd.MSD, sys *sysinfo.SysInfo, assign map[int]int, leaflet int) *MSD {
	return &MSD{MSD: m, Sys: sys, Assign: assign, Leaflet: leaflet}
}

// Read scans the trajectory once, recording the byte offset of every
// configuration in [Start, End) that is not held in memory and the COM
// arrays of those that are. It also fixes the molecule selection.
func (g *MSD) Read() error {
	g.selectResids()
	g.MSD.Mol = len(g.resids)

	var err error
	g.f, err = os.Open(g.Traj)
	if err != nil {
		return err
	}

	r := gro.NewReader(g.f)
	for c := 0; ; c++ {
		off := r.Offset()
		if c >= g.MSD.End {
			break
		}

		// frames before Start and after the memory window boundary are
		// handled by offset or by COM, respectively
		inRange := c >= g.Start
		inMem := inRange && (c-g.Start) >= g.MemPos

		frame, err := r.Read()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("trajectory ends at configuration %d, need %d", c, g.MSD.End)
			}
			return fmt.Errorf("configuration %d: %w", c, err)
		}
		if !inRange {
			continue
		}
		if inMem {
			g.mem = append(g.mem, g.com(frame))
		} else {
			g.offsets = append(g.offsets, off)
		}
	}

	return nil
}

// GetCfg returns the COM positions of configuration c (relative to Start).
func (g *MSD) GetCfg(c int) ([][3]float64, error) {
	if c >= g.MemPos {
		return g.mem[c-g.MemPos], nil
	}

	if _, err := g.f.Seek(g.offsets[c], 0); err != nil {
		return nil, err
	}
	frame, err := gro.NewReader(g.f).Read()
	if err != nil {
		return nil, fmt.Errorf("configuration %d: %w", c+g.Start, err)
	}
	return g.com(frame), nil
}

// End closes the file opened.
func (g *MSD) End() error {
	return g.f.Close()
}

func (g *MSD) selectResids() {
	g.resids = g.resids[:0]
	for _, resid := range g.Sys.MolRange {
		if g.Assign != nil && g.Leaflet >= 0 {
			if leaf, ok := g.Assign[resid]; !ok || leaf != g.Leaflet {
				continue
			}
		}
		g.resids = append(g.resids, resid)
	}
}

// com computes the center of mass of every selected residue, in
// selection order.
func (g *MSD) com(frame *gro.Frame) [][3]float64 {
	byResid := make(map[int][3]float64, len(g.resids))
	for _, r := range frame.Residues() {
		if _, ok := g.Sys.ResidToLipid[r.Resid]; !ok {
			continue
		}
		var com [3]float64
		var mTot float64
		for _, a := range r.Atoms {
			m := lipid.AtomMass(a.Name)
			for k := 0; k < 3; k++ {
				com[k] += a.Pos[k] * m
			}
			mTot += m
		}
		for k := 0; k < 3; k++ {
			com[k] /= mTot
		}
		byResid[r.Resid] = com
	}

	out := make([][3]float64, len(g.resids))
	for i, resid := range g.resids {
		out[i] = byResid[resid]
	}
	return out
}
