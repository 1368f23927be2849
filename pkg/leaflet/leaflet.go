// Package leaflet assigns lipids to the upper or lower leaflet of a
// bilayer and derives leaflet-related quantities: the per-structure
// assignment file, the assignment evolution over a trajectory, flip-flop
// events and the bilayer thickness.
package leaflet

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// Orientation returns the leaflet index of a lipid from its head and tail
// reference positions: 0 when the cosine between the tail-to-head axis and
// z is non-positive, 1 otherwise. Sterols get whatever their instantaneous
// orientation is; flip-flops show up as index changes over time.
func Orientation(head, tail [3]float64) int {
	var v [3]float64
	var norm float64
	for k := 0; k < 3; k++ {
		v[k] = head[k] - tail[k]
		norm += v[k] * v[k]
	}
	cos := v[2] / math.Sqrt(norm)
	if cos <= 0 {
		return 0
	}
	return 1
}

// Assigner produces leaflet assignments for the system's lipids.
type Assigner struct {
	Sys *sysinfo.SysInfo
	Log *log.Logger
}

func (a *Assigner) logger() *log.Logger {
	if a.Log != nil {
		return a.Log
	}
	return log.Default()
}

// AssignFrame assigns every analysed residue of the frame to a leaflet.
// The head reference is the lipid's central atom, the tail reference the
// center of the terminal atoms of its chains.
func (a *Assigner) AssignFrame(frame *gro.Frame) map[int]int {
	return a.assignFrame(frame, chainCenterTail)
}

func (a *Assigner) assignFrame(frame *gro.Frame, tailRef func(*gro.Residue, string) ([3]float64, bool)) map[int]int {
	assign := make(map[int]int)
	for _, r := range frame.Residues() {
		resname, ok := a.Sys.ResidToLipid[r.Resid]
		if !ok || resname != r.Resname {
			continue
		}
		head, ok := r.Atom(lipid.Central(resname))
		if !ok {
			a.logger().Warn("central atom missing", "resid", r.Resid, "resname", resname)
			continue
		}
		tail, ok := tailRef(&r, resname)
		if !ok {
			a.logger().Warn("tail atoms missing", "resid", r.Resid, "resname", resname)
			continue
		}
		assign[r.Resid] = Orientation(head.Pos, tail)
	}
	return assign
}

// chainCenterTail is the center of the last carbon of every chain.
func chainCenterTail(r *gro.Residue, resname string) ([3]float64, bool) {
	var names []string
	for _, chain := range lipid.Tails(resname) {
		names = append(names, chain[len(chain)-1])
	}
	return r.CenterOfMass(names, func(string) float64 { return 1.0 })
}

// firstChainTail is the terminal carbon of the first chain, the tail
// reference of the structure-file assignment.
func firstChainTail(r *gro.Residue, resname string) ([3]float64, bool) {
	a, ok := r.Atom(lipid.LastTailAtom(resname))
	return a.Pos, ok
}

// AssignStructure assigns the structure file's lipids and writes the
// assignment file with header "resid leaflet". The tail reference here is
// the terminal carbon of the first chain, not the all-chain center. It
// returns the assignment map for further use.
func (a *Assigner) AssignStructure(out string) (map[int]int, error) {
	frame, err := gro.ReadFrame(a.Sys.Structure)
	if err != nil {
		return nil, err
	}
	assign := a.assignFrame(frame, firstChainTail)

	f, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fmt.Fprintf(f, "%-7s %-5s\n", "resid", "leaflet")
	var up, low int
	for _, resid := range a.Sys.MolRange {
		leaf, ok := assign[resid]
		if !ok {
			continue
		}
		if leaf == 0 {
			up++
		} else {
			low++
		}
		fmt.Fprintf(f, "%-7d %-5d\n", resid, leaf)
	}
	a.logger().Info("leaflet assignment written", "file", out, "up", up, "low", low)
	return assign, nil
}

// ReadAssignment parses a file written by AssignStructure.
func ReadAssignment(path string) (map[int]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	assign := make(map[int]int)
	var resid, leaf int
	// header
	var h1, h2 string
	if _, err := fmt.Fscan(f, &h1, &h2); err != nil {
		return nil, fmt.Errorf("%s: header: %w", path, err)
	}
	for {
		_, err := fmt.Fscan(f, &resid, &leaf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		assign[resid] = leaf
	}
	return assign, nil
}

// TrajectoryCSV writes the leaflet assignment of every analysed residue in
// every frame of [start,end) to a CSV with columns
// resid,resname,leaflet,time.
func (a *Assigner) TrajectoryCSV(traj string, start, end int, dt float64, out string) error {
	t, err := gro.Open(traj)
	if err != nil {
		return err
	}
	defer t.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"resid", "resname", "leaflet", "time"}); err != nil {
		return err
	}

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
		time := frameTime(frame, i, dt)
		assign := a.AssignFrame(frame)
		for _, resid := range a.Sys.MolRange {
			leaf, ok := assign[resid]
			if !ok {
				continue
			}
			rec := []string{
				strconv.Itoa(resid),
				a.Sys.ResidToLipid[resid],
				strconv.Itoa(leaf),
				strconv.FormatFloat(time, 'f', -1, 64),
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

func frameTime(f *gro.Frame, idx int, dt float64) float64 {
	if f.HasTime {
		return f.Time
	}
	return float64(idx) * dt
}

// Thickness writes the per-frame bilayer thickness, taken as the distance
// between the mean z of the upper and lower half of the reference atoms.
func Thickness(traj, refAtom string, start, end int, dt float64, out string) error {
	t, err := gro.Open(traj)
	if err != nil {
		return err
	}
	defer t.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "%-15s%-15s\n", "time", "thickness")
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
		var zs []float64
		for _, a := range frame.Atoms {
			if a.Name == refAtom {
				zs = append(zs, a.Pos[2])
			}
		}
		if len(zs) < 2 {
			return fmt.Errorf("frame %d: no atoms named %q", i, refAtom)
		}
		upper := stat.Mean(zs[len(zs)/2:], nil)
		lower := stat.Mean(zs[:len(zs)/2], nil)
		fmt.Fprintf(f, "%-15g%-15.3f\n", frameTime(frame, i, dt), math.Abs(upper-lower))
	}
	return nil
}

// InterleafletPairs reports host/neighbor pairs that sit in different
// leaflets according to the given assignment.
func InterleafletPairs(assign map[int]int, neighbors map[int]map[float64][]int) [][2]int {
	var pairs [][2]int
	seen := make(map[[2]int]bool)
	for host, byTime := range neighbors {
		hostLeaf, ok := assign[host]
		if !ok {
			continue
		}
		for _, neibs := range byTime {
			for _, n := range neibs {
				leaf, ok := assign[n]
				if !ok || leaf == hostLeaf {
					continue
				}
				p := [2]int{host, n}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
	}
	return pairs
}
