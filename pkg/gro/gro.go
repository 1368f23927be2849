// Package gro reads and writes GROMACS .gro coordinate files. A file may
// hold a single structure or a whole trajectory of frames written back to
// back, as produced by gmx trjconv.
package gro

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Atom is one fixed-column atom line of a .gro file. Positions are in nm.
type Atom struct {
	Resid   int
	Resname string
	Name    string
	Index   int
	Pos     [3]float64
}

// Frame is one configuration: title line, atoms and the box vector
// diagonal. Time is parsed from a "t=" tag in the title when present.
type Frame struct {
	Title   string
	Time    float64
	HasTime bool
	Atoms   []Atom
	Box     [3]float64
}

// Residue groups the consecutive atom lines that share a resid.
type Residue struct {
	Resid   int
	Resname string
	Atoms   []Atom
}

// Reader streams frames out of a .gro file.
type Reader struct {
	r    *bufio.Reader
	line int
	off  int64
}

// NewReader returns a Reader that consumes r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read parses the next frame. It returns io.EOF once the input is
// exhausted.
func (r *Reader) Read() (*Frame, error) {
	title, err := r.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) && title == "" {
			return nil, io.EOF
		}
		return nil, err
	}

	countLine, err := r.readLine()
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil {
		return nil, fmt.Errorf("line %d: atom count: %w", r.line, err)
	}

	f := &Frame{Title: strings.TrimRight(title, "\n")}
	f.Time, f.HasTime = titleTime(f.Title)
	f.Atoms = make([]Atom, 0, n)

	for i := 0; i < n; i++ {
		l, err := r.readLine()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		a, err := parseAtom(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		f.Atoms = append(f.Atoms, a)
	}

	boxLine, err := r.readLine()
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	fields := strings.Fields(boxLine)
	if len(fields) < 3 {
		return nil, fmt.Errorf("line %d: box line has %d fields", r.line, len(fields))
	}
	for k := 0; k < 3; k++ {
		f.Box[k], err = strconv.ParseFloat(fields[k], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: box: %w", r.line, err)
		}
	}

	return f, nil
}

func (r *Reader) readLine() (string, error) {
	l, err := r.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && l != "") {
		return l, err
	}
	r.line++
	r.off += int64(len(l))
	return strings.TrimRight(l, "\n"), nil
}

// Offset returns the byte offset of the next unread line. Recording it
// before a Read gives the seek position of that frame.
func (r *Reader) Offset() int64 { return r.off }

//                 RESID  RESNAME ATOM  INDEX  X       Y       Z
// Column layout:  [0:5)  [5:10)  [10:15) [15:20) then 8-wide floats.
func parseAtom(l string) (Atom, error) {
	if len(l) < 44 {
		return Atom{}, fmt.Errorf("atom line too short (%d chars)", len(l))
	}
	var a Atom
	var err error
	a.Resid, err = strconv.Atoi(strings.TrimSpace(l[0:5]))
	if err != nil {
		return a, fmt.Errorf("resid: %w", err)
	}
	a.Resname = strings.TrimSpace(l[5:10])
	a.Name = strings.TrimSpace(l[10:15])
	a.Index, err = strconv.Atoi(strings.TrimSpace(l[15:20]))
	if err != nil {
		return a, fmt.Errorf("atom index: %w", err)
	}
	for k := 0; k < 3; k++ {
		field := l[20+8*k : 28+8*k]
		a.Pos[k], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return a, fmt.Errorf("coordinate %d: %w", k, err)
		}
	}
	return a, nil
}

func titleTime(title string) (float64, bool) {
	i := strings.LastIndex(title, "t=")
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(title[i+2:])
	if len(fields) == 0 {
		return 0, false
	}
	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return t, true
}

// Residues groups the frame's atoms by consecutive resid. A .gro file
// lists the atoms of a residue contiguously, so a single pass suffices.
func (f *Frame) Residues() []Residue {
	var res []Residue
	for _, a := range f.Atoms {
		if len(res) == 0 || res[len(res)-1].Resid != a.Resid {
			res = append(res, Residue{Resid: a.Resid, Resname: a.Resname})
		}
		last := &res[len(res)-1]
		last.Atoms = append(last.Atoms, a)
	}
	return res
}

// Atom returns the first atom of the residue with the given name.
func (r *Residue) Atom(name string) (Atom, bool) {
	for _, a := range r.Atoms {
		if a.Name == name {
			return a, true
		}
	}
	return Atom{}, false
}

// CenterOfMass computes the mass-weighted center of the named atoms, with
// masses supplied per atom name. Atoms missing from the residue are
// skipped; ok is false if none were found.
func (r *Residue) CenterOfMass(names []string, mass func(string) float64) (com [3]float64, ok bool) {
	var mTot float64
	for _, name := range names {
		a, found := r.Atom(name)
		if !found {
			continue
		}
		m := mass(a.Name)
		for k := 0; k < 3; k++ {
			com[k] += a.Pos[k] * m
		}
		mTot += m
	}
	if mTot == 0 {
		return com, false
	}
	for k := 0; k < 3; k++ {
		com[k] /= mTot
	}
	return com, true
}

// Write emits the frame in .gro format.
func Write(w io.Writer, f *Frame) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, f.Title)
	fmt.Fprintf(bw, "%5d\n", len(f.Atoms))
	for _, a := range f.Atoms {
		// resid and index wrap at 5 digits like gmx does
		fmt.Fprintf(bw, "%5d%-5s%5s%5d%8.3f%8.3f%8.3f\n",
			a.Resid%100000, a.Resname, a.Name, a.Index%100000,
			a.Pos[0], a.Pos[1], a.Pos[2])
	}
	fmt.Fprintf(bw, "%10.5f%10.5f%10.5f\n", f.Box[0], f.Box[1], f.Box[2])
	return bw.Flush()
}

// File is a .gro trajectory opened for frame-wise reading.
type File struct {
	f *os.File
	r *Reader
}

// Open opens a .gro file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{f: f, r: NewReader(f)}, nil
}

// Read returns the next frame or io.EOF.
func (t *File) Read() (*Frame, error) { return t.r.Read() }

// Close closes the underlying file.
func (t *File) Close() error { return t.f.Close() }

// ReadFrame reads only the first frame of a .gro file.
func ReadFrame(path string) (*Frame, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frame, err := f.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}
