// Package pofn derives the probability distribution p(N) of the lipid
// neighbor count from a neighbor_info file.
package pofn

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/FabKe91/BilayAna/pkg/neighbor"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

// Compute writes p(N) per lipid species to out with columns
// "Resname N p(N)". Every (residue, time) sample counts once.
func Compute(m neighbor.Map, sys *sysinfo.SysInfo, out string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	counts := make(map[string]map[int]int)
	samples := make(map[string][]float64)
	for resid, byTime := range m {
		resname, ok := sys.ResidToLipid[resid]
		if !ok {
			continue
		}
		if counts[resname] == nil {
			counts[resname] = make(map[int]int)
		}
		for _, neibs := range byTime {
			counts[resname][len(neibs)]++
			samples[resname] = append(samples[resname], float64(len(neibs)))
		}
	}
	if len(counts) == 0 {
		return fmt.Errorf("neighbor map holds no analysed residues")
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "%-10s%-5s%-12s\n", "Resname", "N", "p(N)")
	resnames := make([]string, 0, len(counts))
	for resname := range counts {
		resnames = append(resnames, resname)
	}
	sort.Strings(resnames)

	for _, resname := range resnames {
		total := float64(len(samples[resname]))
		var ns []int
		for n := range counts[resname] {
			ns = append(ns, n)
		}
		sort.Ints(ns)
		for _, n := range ns {
			fmt.Fprintf(w, "%-10s%-5d%-12.6f\n",
				resname, n, float64(counts[resname][n])/total)
		}
		logger.Info("neighbor count distribution",
			"resname", resname,
			"mean", stat.Mean(samples[resname], nil),
			"stddev", stat.StdDev(samples[resname], nil),
			"samples", len(samples[resname]))
	}
	return w.Flush()
}
