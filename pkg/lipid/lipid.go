// Package lipid holds the static definitions of the lipid species the
// toolkit knows about: reference atoms, head group atoms and tail carbon
// chains per residue name. All other packages look lipids up here instead
// of hardcoding atom names.
package lipid

import (
	"strconv"
	"strings"
)

// Sterols and phospholipids are treated differently in several analyses:
// sterols have a single ring body and no head/tail split.
var sterols = map[string]bool{
	"CHL1": true,
	"ERG":  true,
}

type def struct {
	central string
	head    []string
	tails   [][]string
}

// Atom names follow the CHARMM36 convention: sn-1 chain carbons are
// C31..C3n, sn-2 chain carbons C21..C2n.
var defs = map[string]def{
	"DPPC": {
		central: "P",
		head:    pcHead,
		tails:   [][]string{chain("C2", 16), chain("C3", 16)},
	},
	"DUPC": {
		central: "P",
		head:    pcHead,
		tails:   [][]string{chain("C2", 18), chain("C3", 18)},
	},
	"DPPE": {
		central: "P",
		head:    peHead,
		tails:   [][]string{chain("C2", 16), chain("C3", 16)},
	},
	"POPC": {
		central: "P",
		head:    pcHead,
		tails:   [][]string{chain("C2", 18), chain("C3", 16)},
	},
	"DOPC": {
		central: "P",
		head:    pcHead,
		tails:   [][]string{chain("C2", 18), chain("C3", 18)},
	},
	"CHL1": {
		central: "O3",
		tails:   [][]string{{"C20", "C22", "C23", "C24", "C25", "C26", "C27"}},
	},
	"ERG": {
		central: "O3",
		tails:   [][]string{{"C20", "C22", "C23", "C24", "C25", "C26", "C27"}},
	},
}

var pcHead = []string{
	"N", "C11", "C12", "C13", "C14", "C15",
	"P", "O11", "O12", "O13", "O14",
	"C1", "C2", "C3", "O21", "O22", "O31", "O32",
}

var peHead = []string{
	"N", "C11", "C12",
	"P", "O11", "O12", "O13", "O14",
	"C1", "C2", "C3", "O21", "O22", "O31", "O32",
}

func chain(prefix string, n int) []string {
	c := make([]string, n)
	for i := range c {
		c[i] = prefix + strconv.Itoa(i+1)
	}
	return c
}

// Known reports whether the residue name is a known lipid species.
func Known(resname string) bool {
	_, ok := defs[resname]
	return ok
}

// IsSterol reports whether the residue name is a sterol.
func IsSterol(resname string) bool {
	return sterols[resname]
}

// Central returns the reference (head) atom of a lipid, e.g. the phosphate
// P of a phosphatidylcholine or O3 of cholesterol.
func Central(resname string) string {
	return defs[resname].central
}

// Head returns the head group atom names. Sterols have none.
func Head(resname string) []string {
	return defs[resname].head
}

// Tails returns the carbon chains of a lipid, one slice per chain, ordered
// from the glycerol end to the terminal methyl.
func Tails(resname string) [][]string {
	return defs[resname].tails
}

// TailAtoms returns the atoms of all chains flattened into one slice.
func TailAtoms(resname string) []string {
	var all []string
	for _, t := range defs[resname].tails {
		all = append(all, t...)
	}
	return all
}

// LastTailAtom returns the terminal carbon of the first chain. It serves as
// the tail reference for the leaflet orientation test.
func LastTailAtom(resname string) string {
	tails := defs[resname].tails
	if len(tails) == 0 || len(tails[0]) == 0 {
		return ""
	}
	return tails[0][len(tails[0])-1]
}

// TailHalves returns the atoms of the first and second half of every chain.
func TailHalves(resname string) (first, second []string) {
	for _, t := range defs[resname].tails {
		first = append(first, t[:len(t)/2]...)
		second = append(second, t[len(t)/2:]...)
	}
	return first, second
}

// CarbonGroups slices the chains into NCarbonGroups segments along the
// chain axis. Group k holds carbons 2k and 2k+1 of every chain, so the
// groups resolve the interaction energy along the chain depth.
func CarbonGroups(resname string) [][]string {
	groups := make([][]string, NCarbonGroups)
	for _, t := range defs[resname].tails {
		for i, atom := range t {
			g := i / 2
			if g >= NCarbonGroups {
				g = NCarbonGroups - 1
			}
			groups[g] = append(groups[g], atom)
		}
	}
	return groups
}

// NCarbonGroups is the number of per-carbon energy groups a chain is
// split into.
const NCarbonGroups = 7

// AtomMass returns the mass of an atom in u, derived from the element
// implied by the leading letter of its name. Unknown elements weigh 1.
func AtomMass(name string) float64 {
	if name == "" {
		return 1.0
	}
	switch strings.ToUpper(name[:1]) {
	case "C":
		return 12.011
	case "H":
		return 1.008
	case "N":
		return 14.007
	case "O":
		return 15.999
	case "P":
		return 30.974
	case "S":
		return 32.06
	}
	return 1.0
}
