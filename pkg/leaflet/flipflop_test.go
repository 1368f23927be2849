package leaflet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// trajectoryCSV builds a leaflet trajectory for one residue from
// (time, leaflet) pairs.
func trajectoryCSV(t *testing.T, resid int, resname string, series [][2]float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("resid,resname,leaflet,time\n")
	for _, s := range series {
		fmt.Fprintf(&b, "%d,%s,%d,%g\n", resid, resname, int(s[1]), s[0])
	}
	path := filepath.Join(t.TempDir(), "leaflet_trajectory.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFlipFlopsCompletedFlip(t *testing.T) {
	// residue settles on the upper leaflet after three crossings, then
	// much later settles back down: two independent completed events
	in := trajectoryCSV(t, 7, "CHL1", [][2]float64{
		{0, 0}, {1000, 0}, {2000, 1}, {3000, 1}, {4000, 0}, {5000, 0}, {6000, 1},
		{20000, 1}, {21000, 0}, {23000, 1}, {25000, 0},
	})
	dir := filepath.Dir(in)
	events, flips, err := FlipFlops(in,
		filepath.Join(dir, "events.csv"), filepath.Join(dir, "complete.csv"))
	if err != nil {
		t.Fatal(err)
	}

	if len(flips) != 2 {
		t.Fatalf("flips: got %d, want 2 (%v)", len(flips), flips)
	}
	if flips[0].TStart != 2000 || flips[0].TEnd != 6000 || flips[0].Leaflet != 1 {
		t.Errorf("first flip: %+v", flips[0])
	}
	if flips[1].TStart != 21000 || flips[1].TEnd != 25000 || flips[1].Leaflet != 0 {
		t.Errorf("second flip: %+v", flips[1])
	}

	if len(events) == 0 {
		t.Fatal("expected debounced change events")
	}
	for _, e := range events {
		if e.Resid != 7 || e.Resname != "CHL1" {
			t.Errorf("event fields: %+v", e)
		}
	}
}

func TestFlipFlopsDebounce(t *testing.T) {
	// rapid back-and-forth around the midplane within 1 ns: only the
	// first change survives the debounce
	in := trajectoryCSV(t, 3, "CHL1", [][2]float64{
		{0, 0}, {100, 1}, {200, 0}, {300, 1}, {400, 0}, {5000, 0},
	})
	dir := filepath.Dir(in)
	events, _, err := FlipFlops(in,
		filepath.Join(dir, "events.csv"), filepath.Join(dir, "complete.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1 (%v)", len(events), events)
	}
	if events[0].Time != 100 {
		t.Errorf("kept event: %+v", events[0])
	}
}

func TestFlipFlopsSingleChange(t *testing.T) {
	// one isolated crossing: the residue flips and stays
	in := trajectoryCSV(t, 5, "CHL1", [][2]float64{
		{0, 0}, {1000, 0}, {2000, 1}, {3000, 1}, {20000, 1},
	})
	dir := filepath.Dir(in)
	_, flips, err := FlipFlops(in,
		filepath.Join(dir, "events.csv"), filepath.Join(dir, "complete.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(flips) != 1 {
		t.Fatalf("flips: got %d, want 1 (%v)", len(flips), flips)
	}
	f := flips[0]
	if f.TStart != 2000 || f.TEnd != 2000 || f.Leaflet != 1 {
		t.Errorf("lone-change flip: %+v", f)
	}
}

func TestFlipFlopsDebounceChain(t *testing.T) {
	// every change is within 1 ns of its predecessor, so the whole chain
	// after the first crossing is noise even though it spans over 1 ns
	in := trajectoryCSV(t, 4, "CHL1", [][2]float64{
		{0, 0}, {100, 1}, {700, 0}, {1300, 1}, {5000, 1},
	})
	dir := filepath.Dir(in)
	events, _, err := FlipFlops(in,
		filepath.Join(dir, "events.csv"), filepath.Join(dir, "complete.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1 (%v)", len(events), events)
	}
	if events[0].Time != 100 {
		t.Errorf("kept event: %+v", events[0])
	}
}

func TestFlipFlopsNoChanges(t *testing.T) {
	in := trajectoryCSV(t, 1, "DPPC", [][2]float64{
		{0, 0}, {1000, 0}, {2000, 0},
	})
	dir := filepath.Dir(in)
	events, flips, err := FlipFlops(in,
		filepath.Join(dir, "events.csv"), filepath.Join(dir, "complete.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 || len(flips) != 0 {
		t.Fatalf("got %d events, %d flips, want none", len(events), len(flips))
	}

	// output files exist with headers only
	data, err := os.ReadFile(filepath.Join(dir, "complete.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "resid,resname,t_start,t_end,leaflet" {
		t.Errorf("complete.csv: %q", string(data))
	}
}
