package grotrj

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/FabKe91/BilayAna/pkg/gro"
	"github.com/FabKe91/BilayAna/pkg/msd"
)

// Conv unwraps the periodic boundary jumps of a .gro trajectory: whenever
// an atom moves by more than half a box length between two frames it has
// been wrapped, and a multiple of the box length is added to bring it
// back. The result is the continuous trajectory the MSD needs.
func Conv(c *msd.Conv) error {
	in, err := gro.Open(c.Traj)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	var (
		corr [][3]float64
		prev [][3]float64
	)

	for f := 0; ; f++ {
		frame, err := in.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if f == 0 {
					return fmt.Errorf("%s: empty trajectory", c.Traj)
				}
				return nil
			}
			return fmt.Errorf("frame %d: %w", f, err)
		}

		if corr == nil {
			corr = make([][3]float64, len(frame.Atoms))
			prev = make([][3]float64, len(frame.Atoms))
			for a := range frame.Atoms {
				prev[a] = frame.Atoms[a].Pos
			}
		} else if len(frame.Atoms) != len(corr) {
			return fmt.Errorf("frame %d: atom count changed from %d to %d",
				f, len(corr), len(frame.Atoms))
		} else {
			for a := range frame.Atoms {
				for k := 0; k < 3; k++ {
					if frame.Box[k] <= 0 {
						continue
					}
					pos := frame.Atoms[a].Pos[k] + corr[a][k]
					jump := math.Round((pos - prev[a][k]) / frame.Box[k])
					corr[a][k] -= jump * frame.Box[k]
					pos -= jump * frame.Box[k]
					frame.Atoms[a].Pos[k] = pos
					prev[a][k] = pos
				}
			}
		}

		if err := gro.Write(out, frame); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
	}
}
