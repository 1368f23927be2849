// Package neighbor determines, per frame, which lipids lie within a
// cutoff of each other and maintains the neighbor_info file consumed by
// the distribution and energy modules.
package neighbor

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// Reference atom modes.
const (
	RefCentral  = "P"         // central (head) atom of each species
	RefTailsCOM = "tails_com" // center of mass of the tail carbons
)

// Map holds, per host resid and time, the resids seen within the cutoff.
type Map map[int]map[float64][]int

// Searcher computes neighborhoods over a trajectory.
type Searcher struct {
	Sys     *sysinfo.SysInfo
	Cutoff  float64 // nm
	RefAtom string  // RefCentral or RefTailsCOM
	Log     *log.Logger
}

func (s *Searcher) logger() *log.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log.Default()
}

// Run searches frames [start,end) of the trajectory and writes the
// neighbor_info file. It returns the neighbor map it wrote.
func (s *Searcher) Run(traj string, start, end int, dt float64, out string) (Map, error) {
	if s.Cutoff <= 0 {
		return nil, fmt.Errorf("cutoff must be positive")
	}
	switch s.RefAtom {
	case RefCentral, RefTailsCOM:
	default:
		return nil, fmt.Errorf("unknown refatom mode %q", s.RefAtom)
	}

	t, err := gro.Open(traj)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	s.logger().Info("determining neighbors",
		"cutoff", s.Cutoff, "refatom", s.RefAtom, "residues", s.Sys.NMol())

	result := make(Map, s.Sys.NMol())
	var times []float64
	for i := 0; ; i++ {
		frame, err := t.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if i < start {
			continue
		}
		if end > 0 && i >= end {
			break
		}

		time := frameTime(frame, i, dt)
		times = append(times, time)
		refs, order := s.refPositions(frame)
		for _, host := range order {
			neibs := s.withinCutoff(host, refs, order, frame.Box)
			if result[host] == nil {
				result[host] = make(map[float64][]int)
			}
			result[host][time] = neibs
		}
	}

	if err := writeFile(out, s.Sys, result, times); err != nil {
		return nil, err
	}
	s.logger().Info("neighbor file written", "file", out, "frames", len(times))
	return result, nil
}

// refPositions returns one reference position per analysed residue of the
// frame, plus the resids in file order.
func (s *Searcher) refPositions(frame *gro.Frame) (map[int][3]float64, []int) {
	refs := make(map[int][3]float64)
	var order []int
	for _, r := range frame.Residues() {
		resname, ok := s.Sys.ResidToLipid[r.Resid]
		if !ok || resname != r.Resname {
			continue
		}
		var pos [3]float64
		switch s.RefAtom {
		case RefCentral:
			a, found := r.Atom(lipid.Central(resname))
			if !found {
				continue
			}
			pos = a.Pos
		case RefTailsCOM:
			com, found := r.CenterOfMass(lipid.TailAtoms(resname), lipid.AtomMass)
			if !found {
				continue
			}
			pos = com
		}
		refs[r.Resid] = pos
		order = append(order, r.Resid)
	}
	return refs, order
}

func (s *Searcher) withinCutoff(host int, refs map[int][3]float64, order []int, box [3]float64) []int {
	hp := refs[host]
	cut2 := s.Cutoff * s.Cutoff
	var neibs []int
	for _, other := range order {
		if other == host {
			continue
		}
		op := refs[other]
		var d2 float64
		for k := 0; k < 3; k++ {
			d := minImage(hp[k]-op[k], box[k])
			d2 += d * d
		}
		if d2 <= cut2 {
			neibs = append(neibs, other)
		}
	}
	return neibs
}

// minImage wraps a distance component into [-box/2, box/2].
func minImage(d, box float64) float64 {
	if box <= 0 {
		return d
	}
	return d - box*math.Round(d/box)
}

func frameTime(f *gro.Frame, idx int, dt float64) float64 {
	if f.HasTime {
		return f.Time
	}
	return float64(idx) * dt
}

// writeFile emits the neighbor_info layout:
//
//	Resid     Time                Number_of_neighbors       List_of_Neighbors
func writeFile(path string, sys *sysinfo.SysInfo, m Map, times []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "%-10s%-20s%-10s%25s\n",
		"Resid", "Time", "Number_of_neighbors", "List_of_Neighbors")
	for _, resid := range sys.MolRange {
		byTime := m[resid]
		if byTime == nil {
			continue
		}
		for _, t := range times {
			neibs, ok := byTime[t]
			if !ok {
				continue
			}
			list := make([]string, len(neibs))
			for i, n := range neibs {
				list[i] = strconv.Itoa(n)
			}
			fmt.Fprintf(w, "%-10d%-20s%-10d%25s\n",
				resid, strconv.FormatFloat(t, 'f', -1, 64), len(neibs), strings.Join(list, ","))
		}
	}
	return w.Flush()
}

// ParseFile reads a neighbor_info file back into a Map. Neighbor lists
// are de-duplicated.
func ParseFile(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := make(Map)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if first {
			first = false // header
			continue
		}
		cols := strings.Fields(sc.Text())
		if len(cols) < 3 {
			continue
		}
		resid, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: resid: %w", path, lineNo, err)
		}
		t, err := strconv.ParseFloat(cols[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: time: %w", path, lineNo, err)
		}
		var neibs []int
		if len(cols) > 3 {
			seen := make(map[int]bool)
			for _, tok := range strings.Split(cols[3], ",") {
				n, err := strconv.Atoi(tok)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: neighbor list: %w", path, lineNo, err)
				}
				if !seen[n] {
					seen[n] = true
					neibs = append(neibs, n)
				}
			}
		}
		if m[resid] == nil {
			m[resid] = make(map[float64][]int)
		}
		m[resid][t] = neibs
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// AllNeighbors returns the union of a host's neighbors over all times,
// sorted ascending. The energy module groups its reruns by this set.
func (m Map) AllNeighbors(host int) []int {
	seen := make(map[int]bool)
	for _, neibs := range m[host] {
		for _, n := range neibs {
			seen[n] = true
		}
	}
	all := make([]int, 0, len(seen))
	for n := range seen {
		all = append(all, n)
	}
	sort.Ints(all)
	return all
}
