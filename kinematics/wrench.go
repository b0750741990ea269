package kinematics

import "github.com/golang/geo/r3"

// Wrench is a force/torque pair acting at the chain tip, expressed in the
// chain root frame.
type Wrench struct {
	Force  r3.Vector
	Torque r3.Vector
}

// Vec6 returns the wrench in the row order used by the Jacobian:
// fx, fy, fz, tx, ty, tz.
func (w Wrench) Vec6() [6]float64 {
	return [6]float64{w.Force.X, w.Force.Y, w.Force.Z, w.Torque.X, w.Torque.Y, w.Torque.Z}
}
