package msd

// Conv describes a trajectory unwrap conversion: the wrapped input
// trajectory and the unwrapped output the MSD will run on.
type Conv struct {
	Traj string
	Out  string
}
