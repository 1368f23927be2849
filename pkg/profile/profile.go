// Package profile correlates per-lipid quantities: neighbor count and
// interaction energy as functions of the order parameter, and the lateral
// distribution of the lipid species over the membrane plane.
package profile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/neighbor"
	"github.com/FabKe91/BilayAna/pkg/order"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// scdMin is the lower bound of the order parameter range; Scd lies in
// [-0.5, 1].
const scdMin = -0.5

// NofS bins the order records by Scd and averages the neighbor count per
// bin. Records without a neighbor sample at the same (resid, time) are
// skipped. Output columns: "S <N> count".
func NofS(records []order.Record, m neighbor.Map, binWidth float64, out string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	join := func(r order.Record) (float64, bool) {
		byTime, ok := m[r.Resid]
		if !ok {
			return 0, false
		}
		neibs, ok := byTime[r.Time]
		if !ok {
			return 0, false
		}
		return float64(len(neibs)), true
	}
	n, err := binByScd(records, join, binWidth, out)
	if err != nil {
		return err
	}
	logger.Info("N(S) profile written", "file", out, "samples", n)
	return nil
}

// EofS bins the order records by Scd and averages the total interaction
// energy of the host at the same time per bin. Output columns:
// "S <Etot> count".
func EofS(records []order.Record, etot map[EnergyKey]float64, binWidth float64, out string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	join := func(r order.Record) (float64, bool) {
		e, ok := etot[EnergyKey{Time: r.Time, Resid: r.Resid}]
		return e, ok
	}
	n, err := binByScd(records, join, binWidth, out)
	if err != nil {
		return err
	}
	logger.Info("E(S) profile written", "file", out, "samples", n)
	return nil
}

// EnergyKey addresses one host at one time in an energy total map.
type EnergyKey struct {
	Time  float64
	Resid int
}

func binByScd(records []order.Record, value func(order.Record) (float64, bool), binWidth float64, out string) (int, error) {
	if binWidth <= 0 {
		return 0, fmt.Errorf("bin width must be positive")
	}

	bins := make(map[int][]float64)
	samples := 0
	for _, r := range records {
		v, ok := value(r)
		if !ok {
			continue
		}
		b := int((r.Scd - scdMin) / binWidth)
		bins[b] = append(bins[b], v)
		samples++
	}
	if samples == 0 {
		return 0, fmt.Errorf("no records could be joined")
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	var keys []int
	for b := range bins {
		keys = append(keys, b)
	}
	sort.Ints(keys)
	for _, b := range keys {
		s := scdMin + (float64(b)+0.5)*binWidth
		fmt.Fprintf(w, "%-12.5f%-15.5f%-10d\n", s, stat.Mean(bins[b], nil), len(bins[b]))
	}
	return samples, w.Flush()
}

// Lateral accumulates the time-averaged 2D density of each analysed
// species' reference atom on a grid of cell×cell bins and writes one
// "<prefix>_<resname>.dat" file per species with "x y density" rows.
func Lateral(traj string, sys *sysinfo.SysInfo, start, end int, cell float64, prefix string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	if cell <= 0 {
		return fmt.Errorf("cell size must be positive")
	}

	t, err := gro.Open(traj)
	if err != nil {
		return err
	}
	defer t.Close()

	var nx, ny int
	var box [3]float64
	counts := make(map[string]map[[2]int]float64)
	frames := 0

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
		if nx == 0 {
			box = frame.Box
			nx = int(math.Ceil(box[0] / cell))
			ny = int(math.Ceil(box[1] / cell))
			if nx < 1 || ny < 1 {
				return fmt.Errorf("cell size %g exceeds box %v", cell, box)
			}
		}

		for _, res := range frame.Residues() {
			resname, ok := sys.ResidToLipid[res.Resid]
			if !ok || resname != res.Resname {
				continue
			}
			a, found := res.Atom(lipid.Central(resname))
			if !found {
				continue
			}
			ix := wrapCell(a.Pos[0], box[0], cell, nx)
			iy := wrapCell(a.Pos[1], box[1], cell, ny)
			if counts[resname] == nil {
				counts[resname] = make(map[[2]int]float64)
			}
			counts[resname][[2]int{ix, iy}]++
		}
		frames++
	}
	if frames == 0 {
		return fmt.Errorf("no frames in [%d,%d)", start, end)
	}

	area := cell * cell
	for resname, grid := range counts {
		out := fmt.Sprintf("%s_%s.dat", prefix, resname)
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		for ix := 0; ix < nx; ix++ {
			for iy := 0; iy < ny; iy++ {
				density := grid[[2]int{ix, iy}] / (float64(frames) * area)
				fmt.Fprintf(w, "%-12.4f%-12.4f%-15.6f\n",
					(float64(ix)+0.5)*cell, (float64(iy)+0.5)*cell, density)
			}
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("lateral distribution written", "file", out, "frames", frames)
	}
	return nil
}

func wrapCell(x, box, cell float64, n int) int {
	if box > 0 {
		x -= box * math.Floor(x/box)
	}
	i := int(x / cell)
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
