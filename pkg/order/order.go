// Package order computes the carbon-skeleton order parameter
// Scd = 1/2 <3 cos² θ − 1>, with θ the angle between the chain axis at a
// carbon and the membrane normal, averaged over chains and carbons.
package order

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// Record is one per-residue, per-frame order parameter value.
type Record struct {
	Time    float64
	Resid   int
	Resname string
	Scd     float64
}

// Scd runs the order parameter analysis.
type Scd struct {
	Sys *sysinfo.SysInfo
	Log *log.Logger
}

func (s *Scd) logger() *log.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log.Default()
}

// Run writes the Scd time series of frames [start,end) to out with
// columns "Time Resid Resname Scd" and returns the records.
func (s *Scd) Run(traj string, start, end int, dt float64, out string) ([]Record, error) {
	t, err := gro.Open(traj)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	f, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%-15s%-10s%-10s%-15s\n", "Time", "Resid", "Resname", "Scd")

	var records []Record
	perType := make(map[string][]float64)
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

		time := frame.Time
		if !frame.HasTime {
			time = float64(i) * dt
		}
		for _, res := range frame.Residues() {
			resname, ok := s.Sys.ResidToLipid[res.Resid]
			if !ok || resname != res.Resname {
				continue
			}
			scd, ok := ResidueScd(&res, resname)
			if !ok {
				continue
			}
			rec := Record{Time: time, Resid: res.Resid, Resname: resname, Scd: scd}
			records = append(records, rec)
			perType[resname] = append(perType[resname], scd)
			fmt.Fprintf(w, "%-15s%-10d%-10s%-15.5f\n",
				strconv.FormatFloat(time, 'f', -1, 64), res.Resid, resname, scd)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	for resname, vals := range perType {
		s.logger().Info("mean order parameter",
			"resname", resname, "scd", stat.Mean(vals, nil), "n", len(vals))
	}
	return records, nil
}

// ResidueScd averages the order parameter over all chain carbons of the
// residue. The chain axis at carbon k is the vector C(k−1)→C(k+1).
func ResidueScd(res *gro.Residue, resname string) (float64, bool) {
	var sum float64
	var n int
	for _, chain := range lipid.Tails(resname) {
		for k := 1; k < len(chain)-1; k++ {
			prev, ok1 := res.Atom(chain[k-1])
			next, ok2 := res.Atom(chain[k+1])
			if !ok1 || !ok2 {
				continue
			}
			var v [3]float64
			var norm float64
			for d := 0; d < 3; d++ {
				v[d] = next.Pos[d] - prev.Pos[d]
				norm += v[d] * v[d]
			}
			if norm == 0 {
				continue
			}
			cos := v[2] / math.Sqrt(norm)
			sum += 0.5 * (3*cos*cos - 1)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ParseFile reads a file written by Run back into records.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		cols := strings.Fields(sc.Text())
		if len(cols) < 4 {
			continue
		}
		t, err := strconv.ParseFloat(cols[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: time: %w", path, lineNo, err)
		}
		resid, err := strconv.Atoi(cols[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: resid: %w", path, lineNo, err)
		}
		scd, err := strconv.ParseFloat(cols[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: scd: %w", path, lineNo, err)
		}
		records = append(records, Record{Time: t, Resid: resid, Resname: cols[2], Scd: scd})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
