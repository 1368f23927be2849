package cfg

import (
	"context"
	"fmt"
	"os"

	"github.com/FabKe91/BilayAna/pkg/energy"
	"github.com/FabKe91/BilayAna/pkg/gmx"
	"github.com/FabKe91/BilayAna/pkg/leaflet"
	"github.com/FabKe91/BilayAna/pkg/msd"
	"github.com/FabKe91/BilayAna/pkg/msd/grotrj"
	"github.com/FabKe91/BilayAna/pkg/neighbor"
	"github.com/FabKe91/BilayAna/pkg/order"
	"github.com/FabKe91/BilayAna/pkg/pofn"
	"github.com/FabKe91/BilayAna/pkg/profile"
	"github.com/FabKe91/BilayAna/pkg/rdf"
)

// Output file names follow the conventions the plotting tooling expects.
const (
	LeafletAssignmentFile = "leaflet_assignment.dat"
	LeafletTrajectoryFile = "leaflet_trajectory.csv"
	FlipFlopEventsFile    = "flipflop_events.csv"
	FlipFlopCompleteFile  = "flipflop_complete.csv"
	ThicknessFile         = "bilayer_thickness.dat"
	NeighborInfoFile      = "neighbor_info"
	PofNFile              = "pofn.dat"
	ScdFile               = "scd_distribution.dat"
	NofSFile              = "nofs.dat"
	EofSFile              = "eofs.dat"
	LateralPrefix         = "lateraldistribution"
	SelfInteractionsFile  = "selfinteractions.dat"
	MissingXVGFile        = "missing_xvgfiles.info"
)

// Leaflets assigns the structure file's lipids to leaflets.
func (c *Cfg) Leaflets() error {
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}
	a := leaflet.Assigner{Sys: sys, Log: c.logger()}
	_, err = a.AssignStructure(LeafletAssignmentFile)
	return err
}

// LeafletTrajectory writes the assignment evolution over the trajectory.
func (c *Cfg) LeafletTrajectory() error {
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}
	a := leaflet.Assigner{Sys: sys, Log: c.logger()}
	return a.TrajectoryCSV(c.Trajectory, c.Start, c.End, c.Dt, LeafletTrajectoryFile)
}

// FlipFlops extracts flip-flop events from the leaflet trajectory,
// producing it first if it does not exist yet.
func (c *Cfg) FlipFlops() error {
	if _, err := os.Stat(LeafletTrajectoryFile); err != nil {
		if err := c.LeafletTrajectory(); err != nil {
			return err
		}
	}
	events, flips, err := leaflet.FlipFlops(LeafletTrajectoryFile, FlipFlopEventsFile, FlipFlopCompleteFile)
	if err != nil {
		return err
	}
	c.logger().Info("flip-flop extraction done", "changes", len(events), "completed", len(flips))
	return nil
}

// Interleaflet reports host/neighbor pairs assigned to different
// leaflets, a hint at misassignments or ongoing flip-flops.
func (c *Cfg) Interleaflet() error {
	if _, err := os.Stat(LeafletAssignmentFile); err != nil {
		if err := c.Leaflets(); err != nil {
			return err
		}
	}
	assign, err := leaflet.ReadAssignment(LeafletAssignmentFile)
	if err != nil {
		return err
	}
	m, err := c.loadNeighbors()
	if err != nil {
		return err
	}
	pairs := leaflet.InterleafletPairs(assign, m)
	for _, p := range pairs {
		c.logger().Info("interleaflet neighborhood", "host", p[0], "neighbor", p[1])
	}
	c.logger().Info("interleaflet pairs found", "count", len(pairs))
	return nil
}

// Thickness writes the bilayer thickness time series.
func (c *Cfg) Thickness() error {
	if _, err := c.SysInfo(); err != nil {
		return err
	}
	return leaflet.Thickness(c.Trajectory, c.ThicknessRef, c.Start, c.End, c.Dt, ThicknessFile)
}

// Neighbors runs the neighbor search over the trajectory.
func (c *Cfg) Neighbors() (neighbor.Map, error) {
	sys, err := c.SysInfo()
	if err != nil {
		return nil, err
	}
	s := neighbor.Searcher{Sys: sys, Cutoff: c.Cutoff, RefAtom: c.RefAtom, Log: c.logger()}
	return s.Run(c.Trajectory, c.Start, c.End, c.Dt, NeighborInfoFile)
}

// loadNeighbors parses an existing neighbor_info or runs the search.
func (c *Cfg) loadNeighbors() (neighbor.Map, error) {
	if _, err := os.Stat(NeighborInfoFile); err == nil {
		return neighbor.ParseFile(NeighborInfoFile)
	}
	return c.Neighbors()
}

// PofN writes the neighbor count distribution per species.
func (c *Cfg) PofN() error {
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}
	m, err := c.loadNeighbors()
	if err != nil {
		return err
	}
	return pofn.Compute(m, sys, PofNFile, c.logger())
}

// Conv unwraps the PBC trajectory into a continuous one and switches the
// configuration over to it.
func (c *Cfg) Conv() error {
	if !c.PBC {
		return fmt.Errorf("pbc set to false")
	}
	out := noPBCName(c.Trajectory)
	conv := &msd.Conv{Traj: c.Trajectory, Out: out}
	if err := grotrj.Conv(conv); err != nil {
		return err
	}
	c.PBC = false
	c.Trajectory = out
	return nil
}

// MSD calculates the mean squared displacement of the lipid centers of
// mass, optionally lateral and leaflet-resolved.
func (c *Cfg) MSD() error {
	if c.PBC {
		return fmt.Errorf("pbc set to true, run the conversion first")
	}
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}

	var assign map[int]int
	if c.Leaflet >= 0 {
		if _, err := os.Stat(LeafletAssignmentFile); err != nil {
			if err := c.Leaflets(); err != nil {
				return err
			}
		}
		assign, err = leaflet.ReadAssignment(LeafletAssignmentFile)
		if err != nil {
			return err
		}
	}

	m := &msd.MSD{
		Traj:  c.Trajectory,
		Out:   c.Trajectory + "_msd.out",
		Start: c.Start,
		End:   c.End,
		Mem:   c.Mem,
		Dt:    c.Dt,
	}
	if c.Lateral {
		m.Dims = 2
	}
	m.Method = grotrj.New(m, sys, assign, c.Leaflet)

	if err := m.Perform(); err != nil {
		return err
	}
	if err := m.Method.End(); err != nil {
		return err
	}
	return m.Write()
}

// RDF computes the lateral radial distribution function of RDFSel around
// RDFRef.
func (c *Cfg) RDF() error {
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}
	if c.RDFRef == "" || c.RDFSel == "" {
		return fmt.Errorf("rdfRef and rdfSel must be specified")
	}
	if _, err := os.Stat(LeafletAssignmentFile); err != nil {
		if err := c.Leaflets(); err != nil {
			return err
		}
	}
	assign, err := leaflet.ReadAssignment(LeafletAssignmentFile)
	if err != nil {
		return err
	}

	r := rdf.RDF{
		Sys: sys, Ref: c.RDFRef, Sel: c.RDFSel,
		BinWidth: c.BinWidth, Assign: assign, Log: c.logger(),
	}
	if err := r.Perform(c.Trajectory, c.Start, c.End); err != nil {
		return err
	}
	return r.Write(fmt.Sprintf("rdf_%s_%s.dat", c.RDFRef, c.RDFSel))
}

// Order writes the Scd order parameter time series.
func (c *Cfg) Order() error {
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}
	s := order.Scd{Sys: sys, Log: c.logger()}
	_, err = s.Run(c.Trajectory, c.Start, c.End, c.Dt, ScdFile)
	return err
}

// loadOrder parses an existing order series or produces it.
func (c *Cfg) loadOrder() ([]order.Record, error) {
	if _, err := os.Stat(ScdFile); err != nil {
		if err := c.Order(); err != nil {
			return nil, err
		}
	}
	return order.ParseFile(ScdFile)
}

// NofS profiles the neighbor count against the order parameter.
func (c *Cfg) NofS() error {
	records, err := c.loadOrder()
	if err != nil {
		return err
	}
	m, err := c.loadNeighbors()
	if err != nil {
		return err
	}
	return profile.NofS(records, m, c.BinWidth, NofSFile, c.logger())
}

// EofS profiles the total interaction energy against the order
// parameter. The all_energies table must exist (see EnergyFile).
func (c *Cfg) EofS() error {
	records, err := c.loadOrder()
	if err != nil {
		return err
	}
	e, err := c.newEnergy(nil)
	if err != nil {
		return err
	}
	rows, err := energy.ParseAllEnergies(e.AllEnergiesFile())
	if err != nil {
		return err
	}
	etot := make(map[profile.EnergyKey]float64, len(rows))
	for _, r := range rows {
		etot[profile.EnergyKey{Time: r.Time, Resid: r.Host}] += r.Etot
	}
	return profile.EofS(records, etot, c.BinWidth, EofSFile, c.logger())
}

// LateralDistribution writes the 2D density grids per species.
func (c *Cfg) LateralDistribution() error {
	sys, err := c.SysInfo()
	if err != nil {
		return err
	}
	return profile.Lateral(c.Trajectory, sys, c.Start, c.End, c.Cell, LateralPrefix, c.logger())
}

func (c *Cfg) newEnergy(m neighbor.Map) (*energy.Energy, error) {
	sys, err := c.SysInfo()
	if err != nil {
		return nil, err
	}
	runner := &gmx.Runner{Bin: c.Gmx, Log: c.logger()}
	e, err := energy.New(c.EnergyPart, sys, runner, m)
	if err != nil {
		return nil, err
	}
	e.Trajectory = c.Trajectory
	e.Topology = c.Topology
	e.Temperature = c.Temperature
	e.Dt = c.Dt
	e.Overwrite = c.Overwrite
	e.Log = c.logger()
	return e, nil
}

// EnergyRun executes the full rerun pipeline: index file, grompp, mdrun
// -rerun and gmx energy for every residue, plus the self interactions.
func (c *Cfg) EnergyRun(ctx context.Context) error {
	m, err := c.loadNeighbors()
	if err != nil {
		return err
	}
	e, err := c.newEnergy(m)
	if err != nil {
		return err
	}
	if err := e.CreateIndexFile(); err != nil {
		return err
	}
	sys, _ := c.SysInfo()
	if err := e.RunCalculation(ctx, sys.MolRange); err != nil {
		return err
	}
	return e.SelfInteractions(ctx)
}

// EnergyFile collects the rerun outputs into the flat energy tables.
func (c *Cfg) EnergyFile() error {
	m, err := c.loadNeighbors()
	if err != nil {
		return err
	}
	e, err := c.newEnergy(m)
	if err != nil {
		return err
	}
	ok, err := e.CheckXVGs(MissingXVGFile)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("xvg tables are missing, see %s", MissingXVGFile)
	}
	if err := e.WriteEnergyFile(); err != nil {
		return err
	}
	return e.WriteSelfInteractions(SelfInteractionsFile)
}
