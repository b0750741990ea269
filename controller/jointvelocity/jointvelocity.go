// Package jointvelocity commands a velocity setpoint on a single joint.
//
// It is the simplest controller in the module and doubles as the actuation
// stage of the calibration sequencer, which drives one by hand rather than
// through the registry.
package jointvelocity

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/rdk/logging"

	"mechctl/controller"
	"mechctl/mechanism"
)

// TypeName identifies this controller type in rig configs.
const TypeName = "joint_velocity"

func init() {
	controller.Register(TypeName, New)
}

// Controller writes a velocity setpoint to one joint every tick. The
// setpoint may be replaced from any goroutine.
type Controller struct {
	name     string
	joint    *mechanism.Joint
	setpoint atomic.Float64
}

// New builds the controller from a rig config entry. The "joint" attribute
// names the joint to drive.
func New(deps controller.Deps, conf controller.Config, logger logging.Logger) (controller.Controller, error) {
	jointName := conf.Attributes.String("joint")
	if jointName == "" {
		return nil, errors.New(`"joint" attribute is required`)
	}
	joint, err := deps.Robot.Joint(jointName)
	if err != nil {
		return nil, err
	}
	return NewForJoint(conf.Name, joint), nil
}

// NewForJoint builds the controller directly, bypassing the registry.
func NewForJoint(name string, joint *mechanism.Joint) *Controller {
	return &Controller{name: name, joint: joint}
}

// Name implements controller.Controller.
func (c *Controller) Name() string { return c.name }

// Start zeroes the setpoint so a restarted controller never replays a
// stale command.
func (c *Controller) Start() error {
	c.setpoint.Store(0)
	return nil
}

// SetCommand replaces the velocity setpoint, in joint units per second.
func (c *Controller) SetCommand(v float64) { c.setpoint.Store(v) }

// Command reports the current setpoint.
func (c *Controller) Command() float64 { return c.setpoint.Load() }

// Tick implements controller.Controller.
func (c *Controller) Tick() {
	c.joint.VelocityCommand = c.setpoint.Load()
}

// Close implements controller.Controller.
func (c *Controller) Close() error { return nil }
