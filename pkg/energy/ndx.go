package energy

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
)

// CreateIndexFile writes the index file defining every energy group: per
// analysed residue the whole-residue group plus, for non-sterols, the
// head/tail/half/carbon part groups, and finally a System group with all
// atoms. Group membership is computed from the structure file directly.
func (e *Energy) CreateIndexFile() error {
	frame, err := gro.ReadFrame(e.Sys.Structure)
	if err != nil {
		return fmt.Errorf("read structure: %w", err)
	}

	f, err := os.Create(e.ResIndexAll)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	for _, res := range frame.Residues() {
		resname, ok := e.Sys.ResidToLipid[res.Resid]
		if !ok || resname != res.Resname {
			continue
		}

		writeGroup(w, "resid_"+strconv.Itoa(res.Resid), atomIndices(res.Atoms, nil))
		if lipid.IsSterol(resname) {
			continue
		}

		first, second := lipid.TailHalves(resname)
		parts := []struct {
			prefix string
			names  []string
		}{
			{"resid_h_", lipid.Head(resname)},
			{"resid_t_", lipid.TailAtoms(resname)},
			{"resid_t12_", first},
			{"resid_t22_", second},
		}
		for i, group := range lipid.CarbonGroups(resname) {
			parts = append(parts, struct {
				prefix string
				names  []string
			}{fmt.Sprintf("resid_C%d_", i), group})
		}

		for _, p := range parts {
			indices := atomIndices(res.Atoms, p.names)
			if len(indices) == 0 {
				e.logger().Warn("empty energy group",
					"group", p.prefix+strconv.Itoa(res.Resid), "resname", resname)
				continue
			}
			writeGroup(w, p.prefix+strconv.Itoa(res.Resid), indices)
		}
	}

	all := make([]int, len(frame.Atoms))
	for i, a := range frame.Atoms {
		all[i] = a.Index
	}
	writeGroup(w, "System", all)

	if err := w.Flush(); err != nil {
		return err
	}
	e.logger().Info("index file written", "file", e.ResIndexAll)
	return nil
}

// atomIndices returns the indices of the residue atoms whose name is in
// names; a nil filter selects all atoms.
func atomIndices(atoms []gro.Atom, names []string) []int {
	var wanted map[string]bool
	if names != nil {
		wanted = make(map[string]bool, len(names))
		for _, n := range names {
			wanted[n] = true
		}
	}
	var indices []int
	for _, a := range atoms {
		if wanted == nil || wanted[a.Name] {
			indices = append(indices, a.Index)
		}
	}
	return indices
}

// writeGroup emits one [ name ] block, 15 indices per line as gmx does.
func writeGroup(w *bufio.Writer, name string, indices []int) {
	fmt.Fprintf(w, "[ %s ]\n", name)
	for i, idx := range indices {
		if i > 0 && i%15 == 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%5d ", idx)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}
