// Package sysinfo derives the per-system bookkeeping every analysis needs
// from the structure file: which residues are lipids under analysis, the
// resid ranges, and the atom index to resid mapping.
package sysinfo

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/lipid"
)

// SysInfo describes the analysed system. It is built once from the
// structure file and shared by the analysis modules.
type SysInfo struct {
	Structure string
	Molecules []string

	// ResidToLipid maps a resid to its residue name, for resids whose
	// residue name is in Molecules.
	ResidToLipid map[int]string

	// IndexToResid maps an atom index to its resid.
	IndexToResid map[int]int

	// MolRange lists the analysed resids in ascending order.
	MolRange []int

	// Counts holds the number of residues per analysed residue name.
	Counts map[string]int

	// Box is the box vector diagonal of the structure frame, in nm.
	Box [3]float64

	Log *log.Logger
}

// New reads the first frame of the structure file and builds the system
// maps. Molecules must name at least one known lipid species present in
// the file; structural oddities are logged as warnings, never fatal.
func New(structure string, molecules []string, logger *log.Logger) (*SysInfo, error) {
	if logger == nil {
		logger = log.Default()
	}
	for _, m := range molecules {
		if !lipid.Known(m) {
			return nil, fmt.Errorf("unknown lipid species %q", m)
		}
	}

	frame, err := gro.ReadFrame(structure)
	if err != nil {
		return nil, fmt.Errorf("read structure: %w", err)
	}

	s := &SysInfo{
		Structure:    structure,
		Molecules:    molecules,
		ResidToLipid: make(map[int]string),
		IndexToResid: make(map[int]int),
		Counts:       make(map[string]int),
		Box:          frame.Box,
		Log:          logger,
	}

	analysed := make(map[string]bool, len(molecules))
	for _, m := range molecules {
		analysed[m] = true
	}

	seenIndex := make(map[int]bool, len(frame.Atoms))
	for _, a := range frame.Atoms {
		if seenIndex[a.Index] {
			logger.Warn("duplicate atom index in structure file", "index", a.Index)
		}
		seenIndex[a.Index] = true
		s.IndexToResid[a.Index] = a.Resid
	}

	atomsPerResid := make(map[int]int)
	for _, r := range frame.Residues() {
		atomsPerResid[r.Resid] += len(r.Atoms)
		if !analysed[r.Resname] {
			continue
		}
		if _, ok := s.ResidToLipid[r.Resid]; !ok {
			s.ResidToLipid[r.Resid] = r.Resname
			s.Counts[r.Resname]++
			s.MolRange = append(s.MolRange, r.Resid)
		}
	}
	sort.Ints(s.MolRange)

	for _, m := range molecules {
		if s.Counts[m] == 0 {
			logger.Warn("no residues of requested species in structure file", "resname", m)
		}
	}
	s.checkAtomCounts(atomsPerResid)

	logger.Info("system info built",
		"residues", len(s.MolRange), "atoms", len(frame.Atoms), "box", frame.Box)
	return s, nil
}

// checkAtomCounts warns about residues whose atom count deviates from the
// most common count of their species, a typical sign of a broken or
// truncated structure file.
func (s *SysInfo) checkAtomCounts(atomsPerResid map[int]int) {
	countsPerType := make(map[string]map[int]int)
	for resid, resname := range s.ResidToLipid {
		if countsPerType[resname] == nil {
			countsPerType[resname] = make(map[int]int)
		}
		countsPerType[resname][atomsPerResid[resid]]++
	}
	mode := make(map[string]int)
	for resname, counts := range countsPerType {
		best := 0
		for n, c := range counts {
			if c > best {
				best = c
				mode[resname] = n
			}
		}
	}
	for resid, resname := range s.ResidToLipid {
		if n := atomsPerResid[resid]; n != mode[resname] {
			s.Log.Warn("residue atom count differs from its species mode",
				"resid", resid, "resname", resname, "atoms", n, "mode", mode[resname])
		}
	}
}

// NMol returns the number of analysed residues.
func (s *SysInfo) NMol() int { return len(s.MolRange) }
