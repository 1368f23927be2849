// Package xvg parses the .xvg tables gmx energy writes: grace directives
// carrying the column legends, then whitespace-separated data rows with
// the time in column 0.
package xvg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table is a parsed .xvg file. Legends maps the data column index
// (legend s0 is column 1, after time) to the legend text.
type Table struct {
	Legends map[int]string
	Rows    [][]float64
}

// Parse reads an .xvg stream.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{Legends: make(map[int]string)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@") {
			if col, legend, ok := parseLegend(line); ok {
				t.Legends[col] = legend
			}
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", lineNo, i, err)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseFile reads an .xvg file.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// parseLegend handles lines like
//
//	@ s3 legend "Coul-SR:resid_1-resid_7"
//
// The data column is the legend number plus one (time is column 0).
func parseLegend(line string) (col int, legend string, ok bool) {
	fields := strings.SplitN(line, " ", 4)
	if len(fields) < 4 || fields[2] != "legend" {
		return 0, "", false
	}
	s := fields[1]
	if len(s) < 2 || s[0] != 's' {
		return 0, "", false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, "", false
	}
	return n + 1, strings.Trim(strings.TrimSpace(fields[3]), `"`), true
}

// SplitEnergyLegend decomposes a gmx energy legend like
// "Coul-SR:resid_h_3-resid_t_12" into the energy type and the two group
// names.
func SplitEnergyLegend(legend string) (etype, host, neib string, err error) {
	parts := strings.SplitN(legend, ":", 2)
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("legend %q has no energy type", legend)
	}
	etype = parts[0]
	// group names themselves contain '-' only as the pair separator
	groups := strings.SplitN(parts[1], "-resid_", 2)
	if len(groups) != 2 {
		return "", "", "", fmt.Errorf("legend %q has no group pair", legend)
	}
	return etype, groups[0], "resid_" + groups[1], nil
}
