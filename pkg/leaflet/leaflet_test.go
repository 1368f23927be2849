package leaflet

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

func TestOrientation(t *testing.T) {
	tests := []struct {
		name       string
		head, tail [3]float64
		want       int
	}{
		{"head above tail", [3]float64{0, 0, 5}, [3]float64{0, 0, 2}, 1},
		{"head below tail", [3]float64{0, 0, 2}, [3]float64{0, 0, 5}, 0},
		{"flat lipid", [3]float64{1, 0, 3}, [3]float64{0, 0, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Orientation(tt.head, tt.tail); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

// Two DPPC facing each other plus one cholesterol in the upper leaflet.
const bilayer = `small bilayer, t= 0.00000
6
    1DPPC     P    1   1.000   1.000   6.000
    1DPPC  C216    2   1.000   1.000   4.000
    2DPPC     P    3   2.000   2.000   1.000
    2DPPC  C216    4   2.000   2.000   3.000
    3CHL1    O3    5   3.000   3.000   5.500
    3CHL1   C27    6   3.000   3.000   4.200
   6.00000   6.00000   7.00000
`

func testSys(t *testing.T, content string) *sysinfo.SysInfo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "system.gro")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	sys, err := sysinfo.New(path, []string{"DPPC", "CHL1"}, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestAssignFrame(t *testing.T) {
	sys := testSys(t, bilayer)
	frame, err := gro.ReadFrame(sys.Structure)
	if err != nil {
		t.Fatal(err)
	}

	a := Assigner{Sys: sys, Log: log.New(io.Discard)}
	assign := a.AssignFrame(frame)

	want := map[int]int{1: 1, 2: 0, 3: 1}
	for resid, leaf := range want {
		if assign[resid] != leaf {
			t.Errorf("resid %d: got %d, want %d", resid, assign[resid], leaf)
		}
	}
}

// A splayed DPPC: the sn-2 terminal carbon sits above the phosphate, the
// sn-1 one far below. The structure assignment follows the first chain
// only; the per-frame assignment uses the all-chain center.
const splayed = `splayed lipid, t= 0.00000
3
    1DPPC     P    1   1.000   1.000   5.000
    1DPPC  C216    2   1.000   1.000   6.000
    1DPPC  C316    3   1.000   1.000   1.000
   6.00000   6.00000   7.00000
`

func TestAssignStructureSplayedLipid(t *testing.T) {
	sys := testSys(t, splayed)
	a := Assigner{Sys: sys, Log: log.New(io.Discard)}

	out := filepath.Join(t.TempDir(), "leaflet_assignment.dat")
	assign, err := a.AssignStructure(out)
	if err != nil {
		t.Fatal(err)
	}
	// head below the C216 reference
	if assign[1] != 0 {
		t.Errorf("structure assignment: got leaflet %d, want 0", assign[1])
	}

	frame, err := gro.ReadFrame(sys.Structure)
	if err != nil {
		t.Fatal(err)
	}
	// the chain center (z=3.5) puts the head on top
	if got := a.AssignFrame(frame); got[1] != 1 {
		t.Errorf("frame assignment: got leaflet %d, want 1", got[1])
	}
}

func TestAssignStructureAndReadBack(t *testing.T) {
	sys := testSys(t, bilayer)
	a := Assigner{Sys: sys, Log: log.New(io.Discard)}

	out := filepath.Join(t.TempDir(), "leaflet_assignment.dat")
	assign, err := a.AssignStructure(out)
	if err != nil {
		t.Fatal(err)
	}

	back, err := ReadAssignment(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(assign) {
		t.Fatalf("read back %d entries, want %d", len(back), len(assign))
	}
	for resid, leaf := range assign {
		if back[resid] != leaf {
			t.Errorf("resid %d: got %d, want %d", resid, back[resid], leaf)
		}
	}
}

func TestTrajectoryCSV(t *testing.T) {
	sys := testSys(t, bilayer)

	// second frame: residue 3 flipped down
	frame2 := strings.Replace(bilayer, "t= 0.00000", "t= 10.00000", 1)
	frame2 = strings.Replace(frame2,
		"    3CHL1    O3    5   3.000   3.000   5.500",
		"    3CHL1    O3    5   3.000   3.000   1.000", 1)
	frame2 = strings.Replace(frame2,
		"    3CHL1   C27    6   3.000   3.000   4.200",
		"    3CHL1   C27    6   3.000   3.000   2.300", 1)

	dir := t.TempDir()
	traj := filepath.Join(dir, "traj.gro")
	if err := os.WriteFile(traj, []byte(bilayer+frame2), 0o644); err != nil {
		t.Fatal(err)
	}

	a := Assigner{Sys: sys, Log: log.New(io.Discard)}
	out := filepath.Join(dir, "leaflet_trajectory.csv")
	if err := a.TrajectoryCSV(traj, 0, 2, 10.0, out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header + 3 residues * 2 frames
	if len(lines) != 7 {
		t.Fatalf("lines: got %d, want 7", len(lines))
	}
	if lines[0] != "resid,resname,leaflet,time" {
		t.Errorf("header: %q", lines[0])
	}
	if !strings.Contains(lines[6], "3,CHL1,0,10") {
		t.Errorf("flipped row: %q", lines[6])
	}
}

func TestThickness(t *testing.T) {
	dir := t.TempDir()
	traj := filepath.Join(dir, "traj.gro")
	if err := os.WriteFile(traj, []byte(bilayer), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "thickness.dat")
	if err := Thickness(traj, "P", 0, 1, 10.0, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	// two P atoms at z=6 and z=1
	if !strings.Contains(lines[1], "5.000") {
		t.Errorf("thickness row: %q", lines[1])
	}
}

func TestInterleafletPairs(t *testing.T) {
	assign := map[int]int{1: 0, 2: 0, 3: 1}
	neibs := map[int]map[float64][]int{
		1: {0: {2, 3}},
		2: {0: {1}},
		3: {0: {1}},
	}
	pairs := InterleafletPairs(assign, neibs)
	if len(pairs) != 2 {
		t.Fatalf("pairs: got %d, want 2 (%v)", len(pairs), pairs)
	}
}
