package msd

import (
	"fmt"
	"os"
)

// Method is the trajectory backend interface used by the engine. Read
// prepares the backend (and decides how many molecules there are), GetCfg
// returns the per-molecule reference positions of one configuration.
type Method interface {
	Read() error
	GetCfg(int) ([][3]float64, error)
	End() error
}

// MSD computes the mean squared displacement of the analysed lipids,
// averaged over all time origins. Positions must come from an unwrapped
// trajectory (see Conv).
type MSD struct {
	Method Method

	Traj string
	Out  string

	Start int
	End   int
	Mem   int

	Tot    int
	MemPos int // first configuration index held in memory
	Mol    int // set by the backend during Read

	// Dims is the number of displacement components: 3, or 2 for the
	// lateral MSD in the membrane plane.
	Dims int

	Dt float64

	Res []float64
}

// Perform performs the mean squared displacement.
func (m *MSD) Perform() (err error) {
	if m.Dims == 0 {
		m.Dims = 3
	}
	m.Tot = m.End - m.Start
	m.Res = make([]float64, m.Tot-1)
	m.MemPos = m.Tot - m.Mem

	err = m.Method.Read()
	if err != nil {
		return
	}
	if m.Mol <= 0 {
		return fmt.Errorf("backend selected no molecules")
	}

	for i := 0; i < m.Tot-1; i++ {
		fmt.Print("\r> Step ", i+1, "/", m.Tot-1)

		var icfg [][3]float64
		icfg, err = m.Method.GetCfg(i)
		if err != nil {
			return
		}

		for j := i + 1; j < m.Tot; j++ {
			var tcfg [][3]float64

			tcfg, err = m.Method.GetCfg(j)
			if err != nil {
				return
			}

			for mol := 0; mol < m.Mol; mol++ {
				for k := 0; k < m.Dims; k++ {
					d := icfg[mol][k] - tcfg[mol][k]
					m.Res[j-i-1] += d * d
				}
			}
		}
	}

	fmt.Print("\033[2K\033[1G")
	return
}

// Write writes the results into Out.
func (m *MSD) Write() error {
	f, err := os.Create(m.Out)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := 0; i < m.Tot-1; i++ {
		m.Res[i] /= float64((m.Tot - 1 - i) * m.Mol * m.Dims)
		fmt.Fprintln(f, float64(i+1)*m.Dt, m.Res[i])
	}

	return nil
}
