// Package rdf computes the lateral radial distribution function g(r) of
// one lipid species around another, per leaflet, in the membrane plane.
package rdf

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// RDF accumulates the lateral pair histogram of Sel reference atoms
// around Ref reference atoms. Only pairs in the same leaflet count; the
// two leaflets are treated as independent systems.
type RDF struct {
	Sys *sysinfo.SysInfo

	Ref string // resname of the central species
	Sel string // resname of the distributed species

	BinWidth float64
	Assign   map[int]int // leaflet assignment

	Log *log.Logger

	bins   int
	rmax   float64
	hist   []float64
	expect []float64
	frames int
}

func (r *RDF) logger() *log.Logger {
	if r.Log != nil {
		return r.Log
	}
	return log.Default()
}

// Perform processes frames [start,end) of the trajectory.
func (r *RDF) Perform(traj string, start, end int) error {
	if r.BinWidth <= 0 {
		return fmt.Errorf("bin width must be positive")
	}
	if !lipid.Known(r.Ref) || !lipid.Known(r.Sel) {
		return fmt.Errorf("unknown species %q or %q", r.Ref, r.Sel)
	}

	t, err := gro.Open(traj)
	if err != nil {
		return err
	}
	defer t.Close()

	for i := 0; ; i++ {
		frame, err := t.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if i < start {
			continue
		}
		if end > 0 && i >= end {
			break
		}
		if err := r.accumulate(frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	if r.frames == 0 {
		return fmt.Errorf("no frames in [%d,%d)", start, end)
	}
	r.logger().Info("rdf accumulated",
		"frames", r.frames, "pairs", floats.Sum(r.hist), "rmax", r.rmax)
	return nil
}

func (r *RDF) accumulate(frame *gro.Frame) error {
	if r.hist == nil {
		// half the smaller lateral box length, fixed by the first frame
		r.rmax = math.Min(frame.Box[0], frame.Box[1]) / 2
		r.bins = int(r.rmax / r.BinWidth)
		if r.bins < 1 {
			return fmt.Errorf("bin width %g exceeds half box %g", r.BinWidth, r.rmax)
		}
		r.hist = make([]float64, r.bins)
		r.expect = make([]float64, r.bins)
	}

	// reference atom positions by leaflet
	refPos := map[int][][3]float64{}
	selPos := map[int][][3]float64{}
	for _, res := range frame.Residues() {
		leaf, ok := r.Assign[res.Resid]
		if !ok {
			continue
		}
		if res.Resname != r.Ref && res.Resname != r.Sel {
			continue
		}
		a, found := res.Atom(lipid.Central(res.Resname))
		if !found {
			continue
		}
		if res.Resname == r.Ref {
			refPos[leaf] = append(refPos[leaf], a.Pos)
		}
		if res.Resname == r.Sel {
			selPos[leaf] = append(selPos[leaf], a.Pos)
		}
	}

	area := frame.Box[0] * frame.Box[1]
	for leaf, refs := range refPos {
		sels := selPos[leaf]
		if len(sels) == 0 {
			continue
		}
		nSel := float64(len(sels))
		if r.Ref == r.Sel {
			nSel-- // a molecule is not its own neighbor
		}
		if nSel <= 0 {
			continue
		}
		density := nSel / area

		for _, rp := range refs {
			for _, sp := range sels {
				if rp == sp {
					continue
				}
				dx := minImage(rp[0]-sp[0], frame.Box[0])
				dy := minImage(rp[1]-sp[1], frame.Box[1])
				d := math.Hypot(dx, dy)
				if d >= r.rmax {
					continue
				}
				r.hist[int(d/r.BinWidth)]++
			}
		}

		// expected counts for an ideal lateral gas of the same density
		for b := 0; b < r.bins; b++ {
			rIn := float64(b) * r.BinWidth
			rOut := rIn + r.BinWidth
			ring := math.Pi * (rOut*rOut - rIn*rIn)
			r.expect[b] += float64(len(refs)) * density * ring
		}
	}

	r.frames++
	return nil
}

// Write writes "r g(r)" lines into out.
func (r *RDF) Write(out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	for b := 0; b < r.bins; b++ {
		g := 0.0
		if r.expect[b] > 0 {
			g = r.hist[b] / r.expect[b]
		}
		fmt.Fprintln(f, (float64(b)+0.5)*r.BinWidth, g)
	}
	return nil
}

func minImage(d, box float64) float64 {
	if box <= 0 {
		return d
	}
	return d - box*math.Round(d/box)
}
