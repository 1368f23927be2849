package energy

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/FabKe91/BilayAna/pkg/xvg"
)

// Interaction is one row of the all_energies table: the interaction of a
// host part with a neighbor part at one time. Energies are in kJ/mol.
type Interaction struct {
	Time     float64
	Host     int
	Neighbor int
	Molparts string
	VdW      float64
	Coul     float64
	Etot     float64
}

type legendKey struct {
	etype string // "Coul" or "LJ"
	host  string // full group name, e.g. resid_h_3
	neib  string
}

// WriteEnergyFile collects all fragment .xvg tables into the
// all_energies table. It fails if a neighbor of some host never shows up
// in any fragment table, which means a rerun is missing or incomplete.
func (e *Energy) WriteEnergyFile() error {
	f, err := os.Create(e.allEnergies)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "%-10s%-10s%-10s%-20s%-20s%-20s%-20s\n",
		"Time", "Host", "Neighbor", "Molparts", "VdW", "Coul", "Etot")

	for _, res := range e.Sys.MolRange {
		all := e.Neighbors.AllNeighbors(res)
		nFrag := e.fragments(all)
		e.logger().Info("collecting energies", "resid", res, "fragments", nFrag)

		seen := make(map[int]bool)
		for frag := 0; frag < nFrag; frag++ {
			table, err := xvg.ParseFile(e.xvgPath(res, frag))
			if err != nil {
				return err
			}
			cols := make(map[legendKey]int)
			for col, legend := range table.Legends {
				etype, host, neib, err := xvg.SplitEnergyLegend(legend)
				if err != nil {
					return fmt.Errorf("%s: %w", e.xvgPath(res, frag), err)
				}
				cols[legendKey{etypeShort(etype), host, neib}] = col
			}

			for _, row := range table.Rows {
				if len(row) == 0 || !e.keepTime(row[0]) {
					continue
				}
				for _, neib := range all {
					for _, parthost := range e.molpartsFor(e.Sys.ResidToLipid[res]) {
						hostGroup := parthost + strconv.Itoa(res)
						for _, partneib := range e.molpartsFor(e.Sys.ResidToLipid[neib]) {
							neibGroup := partneib + strconv.Itoa(neib)
							ljCol, ok1 := cols[legendKey{"LJ", hostGroup, neibGroup}]
							coulCol, ok2 := cols[legendKey{"Coul", hostGroup, neibGroup}]
							if !ok1 || !ok2 {
								continue // pair lives in another fragment
							}
							if ljCol >= len(row) || coulCol >= len(row) {
								return fmt.Errorf("%s: row has %d columns, legend expects %d",
									e.xvgPath(res, frag), len(row), max(ljCol, coulCol)+1)
							}
							seen[neib] = true
							vdw, coul := row[ljCol], row[coulCol]
							fmt.Fprintf(w, "%-10s%-10d%-10d%-20s%-20.5f%-20.5f%-20.5f\n",
								strconv.FormatFloat(row[0], 'f', -1, 64), res, neib,
								partLabel(parthost)+"_"+partLabel(partneib),
								vdw, coul, vdw+coul)
						}
					}
				}
			}
		}

		var missing []int
		for _, neib := range all {
			if !seen[neib] {
				missing = append(missing, neib)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("resid %d: neighbors %v not found in any xvg table", res, missing)
		}
	}
	return w.Flush()
}

// keepTime filters the xvg rows down to the analysis time step.
func (e *Energy) keepTime(t float64) bool {
	if e.Dt <= 0 {
		return true
	}
	rem := math.Mod(t, e.Dt)
	const eps = 1e-6
	return rem < eps || e.Dt-rem < eps
}

func etypeShort(etype string) string {
	if i := strings.Index(etype, "-"); i > 0 {
		return etype[:i]
	}
	return etype
}

// partLabel maps a group prefix to the Molparts label: "resid_h_" → "h",
// the whole residue → "w".
func partLabel(prefix string) string {
	s := strings.TrimPrefix(prefix, "resid_")
	s = strings.TrimSuffix(s, "_")
	if s == "" {
		return "w"
	}
	return s
}

// WriteSelfInteractions collects the self interaction .xvg tables into
// selfinteractions.dat. Multiple part groups of one lipid are summed.
func (e *Energy) WriteSelfInteractions(out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "%-10s%-10s%-20s%-20s%-20s%-20s%-20s%-20s%-20s\n",
		"Time", "Lipid", "Etot", "VdWSR", "CoulSR", "VdW14", "Coul14", "VdWtot", "Coultot")

	for _, res := range e.Sys.MolRange {
		table, err := xvg.ParseFile(e.selfXVGPath(res))
		if err != nil {
			return err
		}
		colsByType := make(map[string][]int)
		for col, legend := range table.Legends {
			etype, _, _, err := xvg.SplitEnergyLegend(legend)
			if err != nil {
				return fmt.Errorf("%s: %w", e.selfXVGPath(res), err)
			}
			colsByType[etype] = append(colsByType[etype], col)
		}

		sum := func(row []float64, etype string) float64 {
			var s float64
			for _, c := range colsByType[etype] {
				if c < len(row) {
					s += row[c]
				}
			}
			return s
		}

		for _, row := range table.Rows {
			if len(row) == 0 || !e.keepTime(row[0]) {
				continue
			}
			vdwSR := sum(row, "LJ-SR")
			coulSR := sum(row, "Coul-SR")
			vdw14 := sum(row, "LJ-14")
			coul14 := sum(row, "Coul-14")
			fmt.Fprintf(w, "%-10s%-10d%-20.5f%-20.5f%-20.5f%-20.5f%-20.5f%-20.5f%-20.5f\n",
				strconv.FormatFloat(row[0], 'f', -1, 64), res,
				vdwSR+coulSR+vdw14+coul14,
				vdwSR, coulSR, vdw14, coul14, vdwSR+vdw14, coulSR+coul14)
		}
	}
	return w.Flush()
}

// CheckXVGs verifies that every expected fragment table exists, writing
// the missing paths to infoFile. It returns true when all are present.
func (e *Energy) CheckXVGs(infoFile string) (bool, error) {
	f, err := os.Create(infoFile)
	if err != nil {
		return false, err
	}
	defer f.Close()

	fmt.Fprintln(f, "#Files missing")
	allOK := true
	for _, res := range e.Sys.MolRange {
		nFrag := e.fragments(e.Neighbors.AllNeighbors(res))
		for frag := 0; frag < nFrag; frag++ {
			path := e.xvgPath(res, frag)
			if !fileExists(path) {
				fmt.Fprintln(f, path)
				allOK = false
			}
		}
	}
	if !allOK {
		e.logger().Warn("there are xvg files missing", "info", infoFile)
	}
	return allOK, nil
}

// ParseAllEnergies reads an all_energies table back into rows.
func ParseAllEnergies(path string) ([]Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Interaction
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		cols := strings.Fields(sc.Text())
		if len(cols) < 7 {
			continue
		}
		var r Interaction
		var errs [6]error
		r.Time, errs[0] = strconv.ParseFloat(cols[0], 64)
		r.Host, errs[1] = strconv.Atoi(cols[1])
		r.Neighbor, errs[2] = strconv.Atoi(cols[2])
		r.Molparts = cols[3]
		r.VdW, errs[3] = strconv.ParseFloat(cols[4], 64)
		r.Coul, errs[4] = strconv.ParseFloat(cols[5], 64)
		r.Etot, errs[5] = strconv.ParseFloat(cols[6], 64)
		for _, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
		}
		rows = append(rows, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
