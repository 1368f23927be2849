package leaflet

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Flip-flop detection constants, in ps: change rows further apart than
// eventGap belong to independent events, rows closer than debounce to the
// previous change are crossing noise.
const (
	eventGap = 10000.0
	debounce = 1000.0
)

// Change is one row of the leaflet trajectory where the assignment
// differs from the previous frame of the same residue.
type Change struct {
	Resid   int
	Resname string
	Leaflet int
	Time    float64
}

// Flip is a completed flip-flop: the residue left its leaflet and settled
// back, or crossed and settled on the other side.
type Flip struct {
	Resid   int
	Resname string
	TStart  float64
	TEnd    float64
	Leaflet int
}

// FlipFlops reads a leaflet trajectory CSV (as written by TrajectoryCSV)
// and extracts leaflet changes and completed flip-flop events. Debounced
// changes go to eventsOut, completed flips to completeOut.
func FlipFlops(inCSV, eventsOut, completeOut string) ([]Change, []Flip, error) {
	rows, err := readTrajectoryCSV(inCSV)
	if err != nil {
		return nil, nil, err
	}

	byResid := make(map[int][]Change)
	var resids []int
	for _, r := range rows {
		if _, ok := byResid[r.Resid]; !ok {
			resids = append(resids, r.Resid)
		}
		byResid[r.Resid] = append(byResid[r.Resid], r)
	}
	sort.Ints(resids)

	var events []Change
	var flips []Flip
	for _, resid := range resids {
		series := byResid[resid]
		sort.Slice(series, func(i, j int) bool { return series[i].Time < series[j].Time })

		changes := leafletChanges(series)
		if len(changes) == 0 {
			continue
		}
		flips = append(flips, completedFlips(changes)...)
		events = append(events, debounced(changes)...)
	}

	if err := writeChanges(eventsOut, events); err != nil {
		return nil, nil, err
	}
	if err := writeFlips(completeOut, flips); err != nil {
		return nil, nil, err
	}
	return events, flips, nil
}

// leafletChanges keeps the rows where the assignment differs from the
// previous row of the same residue.
func leafletChanges(series []Change) []Change {
	var changes []Change
	for i := 1; i < len(series); i++ {
		if series[i].Leaflet != series[i-1].Leaflet {
			changes = append(changes, series[i])
		}
	}
	return changes
}

// completedFlips splits the change rows into windows separated by more
// than eventGap and keeps windows whose first and last change end on the
// same leaflet. A lone change is its own completed event: the residue
// crossed once and settled.
func completedFlips(changes []Change) []Flip {
	var flips []Flip
	windowStart := 0
	flush := func(end int) {
		w := changes[windowStart:end]
		if len(w) == 0 {
			return
		}
		first, last := w[0], w[len(w)-1]
		if first.Leaflet == last.Leaflet {
			flips = append(flips, Flip{
				Resid:   first.Resid,
				Resname: first.Resname,
				TStart:  first.Time,
				TEnd:    last.Time,
				Leaflet: last.Leaflet,
			})
		}
	}
	for i := 1; i < len(changes); i++ {
		if changes[i].Time-changes[i-1].Time > eventGap {
			flush(i)
			windowStart = i
		}
	}
	flush(len(changes))
	return flips
}

// debounced drops change rows closer than debounce to the previous change
// row; those are back-and-forth crossings of the midplane, not events.
func debounced(changes []Change) []Change {
	var kept []Change
	for i, c := range changes {
		if i > 0 && c.Time-changes[i-1].Time <= debounce {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func readTrajectoryCSV(path string) ([]Change, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range []string{"resid", "resname", "leaflet", "time"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, want)
		}
	}

	rows := make([]Change, 0, len(records)-1)
	for _, rec := range records[1:] {
		resid, err := strconv.Atoi(rec[col["resid"]])
		if err != nil {
			return nil, fmt.Errorf("%s: resid: %w", path, err)
		}
		leaf, err := strconv.Atoi(rec[col["leaflet"]])
		if err != nil {
			return nil, fmt.Errorf("%s: leaflet: %w", path, err)
		}
		t, err := strconv.ParseFloat(rec[col["time"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: time: %w", path, err)
		}
		rows = append(rows, Change{Resid: resid, Resname: rec[col["resname"]], Leaflet: leaf, Time: t})
	}
	return rows, nil
}

func writeChanges(path string, events []Change) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"resid", "resname", "leaflet", "time"}); err != nil {
		return err
	}
	for _, e := range events {
		rec := []string{
			strconv.Itoa(e.Resid), e.Resname,
			strconv.Itoa(e.Leaflet),
			strconv.FormatFloat(e.Time, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeFlips(path string, flips []Flip) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"resid", "resname", "t_start", "t_end", "leaflet"}); err != nil {
		return err
	}
	for _, fl := range flips {
		rec := []string{
			strconv.Itoa(fl.Resid), fl.Resname,
			strconv.FormatFloat(fl.TStart, 'f', -1, 64),
			strconv.FormatFloat(fl.TEnd, 'f', -1, 64),
			strconv.Itoa(fl.Leaflet),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}
