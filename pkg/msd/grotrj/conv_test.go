package grotrj

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/msd"
)

func writeWrapped(t *testing.T, dir string, xs []float64) string {
	t.Helper()
	path := filepath.Join(dir, "wrapped.gro")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for i, x := range xs {
		fmt.Fprintf(f, "one atom, t= %.5f\n1\n", float64(i)*10)
		fmt.Fprintf(f, "    1DPPC     P    1%8.3f%8.3f%8.3f\n", x, 1.0, 5.0)
		fmt.Fprintln(f, "   6.00000   6.00000  10.00000")
	}
	return path
}

func readX(t *testing.T, path string) []float64 {
	t.Helper()
	f, err := gro.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var xs []float64
	for {
		frame, err := f.Read()
		if err != nil {
			break
		}
		xs = append(xs, frame.Atoms[0].Pos[0])
	}
	return xs
}

func TestConvUnwrap(t *testing.T) {
	dir := t.TempDir()
	// the atom drifts in +x and is wrapped back across the 6 nm box twice
	in := writeWrapped(t, dir, []float64{5.0, 5.9, 0.1, 1.0, 2.5, 4.0, 5.9, 1.5})
	out := filepath.Join(dir, "unwrapped.gro")

	if err := Conv(&msd.Conv{Traj: in, Out: out}); err != nil {
		t.Fatal(err)
	}

	want := []float64{5.0, 5.9, 6.1, 7.0, 8.5, 10.0, 11.9, 13.5}
	got := readX(t, out)
	if len(got) != len(want) {
		t.Fatalf("frames: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-3 {
			t.Errorf("frame %d: x = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestConvBackwardJump(t *testing.T) {
	dir := t.TempDir()
	// drift in -x across the boundary
	in := writeWrapped(t, dir, []float64{0.5, 0.1, 5.8})
	out := filepath.Join(dir, "unwrapped.gro")

	if err := Conv(&msd.Conv{Traj: in, Out: out}); err != nil {
		t.Fatal(err)
	}

	want := []float64{0.5, 0.1, -0.2}
	got := readX(t, out)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-3 {
			t.Errorf("frame %d: x = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestConvAtomCountChange(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.gro")
	content := "f1, t= 0.00000\n1\n" +
		"    1DPPC     P    1   1.000   1.000   5.000\n" +
		"   6.00000   6.00000  10.00000\n" +
		"f2, t= 10.00000\n2\n" +
		"    1DPPC     P    1   1.000   1.000   5.000\n" +
		"    2DPPC     P    2   2.000   1.000   5.000\n" +
		"   6.00000   6.00000  10.00000\n"
	if err := os.WriteFile(in, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Conv(&msd.Conv{Traj: in, Out: filepath.Join(dir, "out.gro")}); err == nil {
		t.Fatal("expected error on atom count change")
	}
}

func TestConvEmpty(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "empty.gro")
	if err := os.WriteFile(in, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Conv(&msd.Conv{Traj: in, Out: filepath.Join(dir, "out.gro")}); err == nil {
		t.Fatal("expected error for empty trajectory")
	}
}
