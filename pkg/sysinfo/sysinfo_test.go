package sysinfo

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

const structure = `bilayer patch
7
    1DPPC     P    1   1.000   1.000   5.000
    1DPPC  C216    2   1.000   1.000   2.000
    2CHL1    O3    3   2.000   2.000   5.000
    2CHL1   C20    4   2.000   2.000   3.000
    3DPPC     P    5   3.000   3.000   5.000
    3DPPC  C216    6   3.000   3.000   2.000
    4SOL     OW    7   4.000   4.000   4.000
   6.00000   6.00000   9.00000
`

func writeStructure(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "system.gro")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quiet() *log.Logger { return log.New(io.Discard) }

func TestNew(t *testing.T) {
	path := writeStructure(t, structure)
	sys, err := New(path, []string{"DPPC", "CHL1"}, quiet())
	if err != nil {
		t.Fatal(err)
	}

	if got := sys.NMol(); got != 3 {
		t.Fatalf("NMol: got %d, want 3", got)
	}
	wantRange := []int{1, 2, 3}
	for i, r := range wantRange {
		if sys.MolRange[i] != r {
			t.Errorf("MolRange[%d]: got %d, want %d", i, sys.MolRange[i], r)
		}
	}

	if sys.ResidToLipid[1] != "DPPC" || sys.ResidToLipid[2] != "CHL1" {
		t.Errorf("ResidToLipid: %v", sys.ResidToLipid)
	}
	if _, ok := sys.ResidToLipid[4]; ok {
		t.Error("solvent residue must not be analysed")
	}

	if sys.IndexToResid[3] != 2 || sys.IndexToResid[7] != 4 {
		t.Errorf("IndexToResid: %v", sys.IndexToResid)
	}

	if sys.Counts["DPPC"] != 2 || sys.Counts["CHL1"] != 1 {
		t.Errorf("Counts: %v", sys.Counts)
	}
	if sys.Box != [3]float64{6, 6, 9} {
		t.Errorf("Box: %v", sys.Box)
	}
}

func TestNewUnknownSpecies(t *testing.T) {
	path := writeStructure(t, structure)
	if _, err := New(path, []string{"NOPE"}, quiet()); err == nil {
		t.Fatal("expected error for unknown species")
	}
}

func TestNewMissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope.gro"), []string{"DPPC"}, quiet()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
