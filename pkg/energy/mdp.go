package energy

import (
	"fmt"
	"os"
)

// rerunMDP is the parameter file of the energy reruns. It must match the
// production run settings except for the energygrps, which the caller
// appends per fragment.
const rerunMDP = `integrator              = md
dt                      = 0.002
nsteps                  =
nstlog                  = 100000
nstxout                 = 0
nstvout                 = 0
nstfout                 = 0
nstcalcenergy           = 1000
nstenergy               = 100
cutoff-scheme           = Verlet
nstlist                 = 20
rlist                   = 1.2
coulombtype             = pme
rcoulomb                = 1.2
vdwtype                 = Cut-off
vdw-modifier            = Force-switch
rvdw_switch             = 1.0
rvdw                    = 1.2
tcoupl                  = Nose-Hoover
tau_t                   = 1.0
tc-grps                 = System
pcoupl                  = Parrinello-Rahman
pcoupltype              = semiisotropic
tau_p                   = 5.0
compressibility         = 4.5e-5  4.5e-5
ref_p                   = 1.0     1.0
constraints             = h-bonds
constraint_algorithm    = LINCS
continuation            = yes
nstcomm                 = 100
comm_mode               = linear
refcoord_scaling        = com
`

// writeMDP writes the rerun parameter file with the reference
// temperature and the fragment's energy groups appended.
func (e *Energy) writeMDP(path, energyGroups string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(rerunMDP); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "ref_t = %g\n", e.Temperature); err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "energygrps\t\t\t= %s\n", energyGroups)
	return err
}
