package energy

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/FabKe91/BilayAna/pkg/neighbor"
	"github.com/FabKe91/BilayAna/pkg/sysinfo"
)

const structure = `energy system, t= 0.00000
5
    1DPPC     P    1   1.000   1.000   5.000
    1DPPC   C21    2   1.000   1.000   4.000
    1DPPC   C29    3   1.000   1.000   3.500
    2CHL1    O3    4   2.000   2.000   5.000
    2CHL1   C27    5   2.000   2.000   4.000
  10.00000  10.00000  10.00000
`

func quiet() *log.Logger { return log.New(io.Discard) }

func testSys(t *testing.T) *sysinfo.SysInfo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "system.gro")
	if err := os.WriteFile(path, []byte(structure), 0o644); err != nil {
		t.Fatal(err)
	}
	sys, err := sysinfo.New(path, []string{"DPPC", "CHL1"}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestNewPartModes(t *testing.T) {
	sys := testSys(t)
	tests := []struct {
		part        string
		molparts    int
		denominator int
		allEnergies string
	}{
		{PartComplete, 1, 40, "all_energies.dat"},
		{PartHeadTail, 2, 20, "all_energies_headtail.dat"},
		{PartHeadTailHalfs, 3, 10, "all_energies_headtailhalfs.dat"},
		{PartCarbons, 7, 4, "all_energies_carbons.dat"},
	}
	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			e, err := New(tt.part, sys, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(e.molparts) != tt.molparts {
				t.Errorf("molparts: got %d, want %d", len(e.molparts), tt.molparts)
			}
			if e.denominator != tt.denominator {
				t.Errorf("denominator: got %d, want %d", e.denominator, tt.denominator)
			}
			if e.AllEnergiesFile() != tt.allEnergies {
				t.Errorf("all energies file: got %q, want %q", e.AllEnergiesFile(), tt.allEnergies)
			}
		})
	}

	if _, err := New("bogus", sys, nil, nil); err == nil {
		t.Error("expected error for unknown part mode")
	}
}

func TestMolpartsForSterol(t *testing.T) {
	sys := testSys(t)
	e, err := New(PartHeadTail, sys, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := e.molpartsFor("CHL1"); len(got) != 1 || got[0] != "resid_" {
		t.Errorf("sterol molparts: got %v", got)
	}
	if got := e.molpartsFor("DPPC"); len(got) != 2 {
		t.Errorf("DPPC molparts: got %v", got)
	}
}

func TestFragmentsAndBlock(t *testing.T) {
	sys := testSys(t)
	e, err := New(PartCarbons, sys, nil, nil) // denominator 4
	if err != nil {
		t.Fatal(err)
	}

	all := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if got := e.fragments(all); got != 3 {
		t.Fatalf("fragments: got %d, want 3", got)
	}
	if got := e.block(all, 0); len(got) != 4 || got[0] != 1 {
		t.Errorf("block 0: %v", got)
	}
	if got := e.block(all, 2); len(got) != 1 || got[0] != 9 {
		t.Errorf("block 2: %v", got)
	}

	if got := e.fragments(all[:8]); got != 2 {
		t.Errorf("fragments of 8: got %d, want 2", got)
	}
	if got := e.fragments(nil); got != 0 {
		t.Errorf("fragments of none: got %d, want 0", got)
	}
}

func TestGatherEnergyGroups(t *testing.T) {
	sys := testSys(t)
	e, err := New(PartHeadTail, sys, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// host 1 is a phospholipid, neighbor 2 a sterol
	got := e.gatherEnergyGroups(1, []int{2})
	want := "resid_h_1 resid_t_1 resid_2"
	if got != want {
		t.Errorf("groups: got %q, want %q", got, want)
	}
}

func TestRelevantEnergies(t *testing.T) {
	sys := testSys(t)
	e, err := New(PartComplete, sys, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	sel := e.relevantEnergies(1, []int{2})
	lines := strings.Split(strings.TrimRight(sel, "\n"), "\n")
	want := []string{"Coul-SR:resid_1-resid_2", "LJ-SR:resid_1-resid_2"}
	if len(lines) != len(want) {
		t.Fatalf("selections: got %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("selection %d: got %q, want %q", i, lines[i], want[i])
		}
	}
	if !strings.HasSuffix(sel, "\n\n") {
		t.Error("selection must end with an empty line to finish the prompt")
	}
}

func TestKeepTime(t *testing.T) {
	e := &Energy{Dt: 100}
	tests := []struct {
		t    float64
		want bool
	}{
		{0, true},
		{100, true},
		{2000, true},
		{50, false},
		{199.9999999, true}, // within eps of a step
	}
	for _, tt := range tests {
		if got := e.keepTime(tt.t); got != tt.want {
			t.Errorf("keepTime(%g): got %v, want %v", tt.t, got, tt.want)
		}
	}

	any := &Energy{}
	if !any.keepTime(33.3) {
		t.Error("zero Dt must keep every row")
	}
}

func TestPartLabel(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"resid_", "w"},
		{"resid_h_", "h"},
		{"resid_t_", "t"},
		{"resid_t12_", "t12"},
		{"resid_C3_", "C3"},
	}
	for _, tt := range tests {
		if got := partLabel(tt.prefix); got != tt.want {
			t.Errorf("partLabel(%q): got %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestWriteMDP(t *testing.T) {
	e := &Energy{Temperature: 310}
	path := filepath.Join(t.TempDir(), "rerun.mdp")
	if err := e.writeMDP(path, "resid_1 resid_2"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"integrator              = md",
		"cutoff-scheme           = Verlet",
		"ref_t = 310",
		"energygrps\t\t\t= resid_1 resid_2",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("mdp file missing %q", want)
		}
	}
}

func TestCreateIndexFile(t *testing.T) {
	sys := testSys(t)
	e, err := New(PartComplete, sys, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.Log = quiet()
	e.ResIndexAll = filepath.Join(t.TempDir(), "resindex_all.ndx")

	if err := e.CreateIndexFile(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(e.ResIndexAll)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"[ resid_1 ]", "[ resid_h_1 ]", "[ resid_t_1 ]", "[ resid_t12_1 ]",
		"[ resid_2 ]", "[ System ]",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("index file missing group %q", want)
		}
	}
	// sterols keep a single group
	if strings.Contains(content, "[ resid_h_2 ]") || strings.Contains(content, "[ resid_t_2 ]") {
		t.Error("sterol must not get part groups")
	}
	// residue 1 holds atoms 1-3
	if !strings.Contains(content, "[ resid_1 ]\n    1     2     3 ") {
		t.Errorf("resid_1 group indices wrong:\n%s", content)
	}
}

func TestCheckXVGs(t *testing.T) {
	sys := testSys(t)
	neibs := neighbor.Map{
		1: {0: {2}},
		2: {0: {1}},
	}
	e, err := New(PartComplete, sys, nil, neibs)
	if err != nil {
		t.Fatal(err)
	}
	e.Log = quiet()
	e.Dir = filepath.Join(t.TempDir(), "energy")

	info := filepath.Join(e.Dir, "missing_xvgfiles.info")
	if err := os.MkdirAll(filepath.Join(e.Dir, "xvgtables"), 0o755); err != nil {
		t.Fatal(err)
	}

	ok, err := e.CheckXVGs(info)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected missing tables")
	}
	data, err := os.ReadFile(info)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), e.xvgPath(1, 0)) {
		t.Errorf("info file must list %s:\n%s", e.xvgPath(1, 0), data)
	}

	for _, res := range []int{1, 2} {
		if err := os.WriteFile(e.xvgPath(res, 0), []byte("# empty\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ok, err = e.CheckXVGs(info)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("all tables present, check must pass")
	}
}
