package mechanism

import "github.com/golang/geo/r3"

// JointType distinguishes how a joint's variable moves its child link.
type JointType string

const (
	// Revolute joints rotate about Axis.
	Revolute JointType = "revolute"
	// Prismatic joints translate along Axis.
	Prismatic JointType = "prismatic"
)

// Joint is a single controllable degree of freedom. State fields are
// refreshed from the backing actuator by Transmission.Propagate; command
// fields are overwritten by controllers each tick and pushed back through
// Transmission.PropagateCommands. All access happens on the control loop
// thread unless the caller serializes otherwise.
type Joint struct {
	Name   string
	Type   JointType
	Axis   r3.Vector // unit axis in the joint's parent frame
	Origin r3.Vector // translation from the parent link frame
	Link   string    // child link this joint moves

	Position   float64
	Velocity   float64
	Calibrated bool

	EffortCommand   float64
	VelocityCommand float64
}
