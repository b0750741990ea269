// Package rig exposes a generic viam component that assembles a joint
// controller stack: a mechanism built from config, a simulated actuator
// bank, a set of registered controllers ticked on a fixed period, and an
// optional CAN link for commands in and calibration announcements out.
package rig

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"mechctl/canlink"
	"mechctl/controller"
	"mechctl/controller/cartesianwrench"
	"mechctl/controller/jointcalibration"
	"mechctl/controller/jointvelocity"
	"mechctl/kinematics"
	"mechctl/mechanism"
	"mechctl/mechanism/sim"
	"mechctl/realtime"
)

// Model is the resource model this module serves.
var Model = resource.NewModel("mechctl", "controller", "rig")

const defaultTickHz = 1000

func init() {
	resource.RegisterComponent(
		generic.API,
		Model,
		resource.Registration[resource.Resource, *Config]{Constructor: newRig})
}

// newClock is swapped for a mock in tests that drive the loop by hand.
var newClock = clock.New

type rig struct {
	resource.Named
	resource.AlwaysRebuild
	logger logging.Logger

	// mu guards the model during a control step so status snapshots never
	// observe a half stepped cycle.
	mu          sync.Mutex
	robot       *mechanism.Robot
	bank        *sim.Bank
	controllers []controller.Controller
	loop        *realtime.Loop
	link        *canlink.Link
	period      time.Duration
}

func newRig(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (resource.Resource, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	tickHz := newConf.TickHz
	if tickHz == 0 {
		tickHz = defaultTickHz
	}
	if tickHz < 0 {
		return nil, errors.Errorf("tick_hz must be positive, got %d", tickHz)
	}
	period := time.Second / time.Duration(tickHz)
	if period <= 0 {
		return nil, errors.Errorf("tick_hz %d is too fast to schedule", tickHz)
	}

	clk := newClock()
	robot := mechanism.NewRobot(clk, newConf.BaseLink)

	acts := make(map[string]*mechanism.Actuator, len(newConf.Actuators))
	axes := make([]sim.Axis, 0, len(newConf.Actuators))
	for _, ac := range newConf.Actuators {
		if _, ok := acts[ac.Name]; ok {
			return nil, errors.Errorf("duplicate actuator name %q", ac.Name)
		}
		act := &mechanism.Actuator{Name: ac.Name, RawPosition: ac.StartPosition}
		acts[ac.Name] = act
		axes = append(axes, sim.Axis{
			Actuator:  act,
			TravelMin: ac.TravelMin,
			TravelMax: ac.TravelMax,
			Damping:   ac.Damping,
		})
	}

	for _, jc := range newConf.Joints {
		act, ok := acts[jc.Actuator]
		if !ok {
			return nil, errors.Errorf("joint %q references unknown actuator %q", jc.Name, jc.Actuator)
		}
		joint := &mechanism.Joint{
			Name:   jc.Name,
			Type:   mechanism.JointType(jc.Type),
			Axis:   vec3(jc.Axis),
			Origin: vec3(jc.Origin),
			Link:   jc.Link,
		}
		if err := robot.AddJoint(joint, act, jc.Reduction); err != nil {
			return nil, err
		}
	}

	r := &rig{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		robot:  robot,
		bank:   sim.NewBank(axes),
		period: period,
	}

	ctrlDeps := controller.Deps{
		Robot:      robot,
		Period:     period,
		Calibrated: r.publishCalibrated,
	}
	for _, cc := range newConf.Controllers {
		c, err := controller.New(ctrlDeps, cc, logger)
		if err != nil {
			r.closeControllers()
			return nil, err
		}
		r.controllers = append(r.controllers, c)
	}

	if newConf.CAN != nil {
		var sink func(kinematics.Wrench)
		if name := newConf.CAN.WrenchController; name != "" {
			proj, err := r.wrenchController(name)
			if err != nil {
				r.closeControllers()
				return nil, err
			}
			sink = proj.SetCommand
		}
		link, err := canlink.New(newConf.CAN.Channel, sink, logger)
		if err != nil {
			r.closeControllers()
			return nil, err
		}
		r.link = link
	}

	for _, c := range r.controllers {
		if err := c.Start(); err != nil {
			return nil, r.abort(errors.Wrapf(err, "starting controller %q", c.Name()))
		}
	}

	loop, err := realtime.NewLoop(clk, period, r.step, logger)
	if err != nil {
		return nil, r.abort(err)
	}
	r.loop = loop
	r.loop.Start()

	logger.Infow("rig running",
		"joints", len(newConf.Joints),
		"controllers", len(r.controllers),
		"period", period,
	)
	return r, nil
}

func vec3(v []float64) r3.Vector {
	if len(v) != 3 {
		return r3.Vector{}
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// step advances one control cycle: sample the bank, refresh the joints,
// tick every controller in config order, then push commands back down.
func (r *rig) step(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bank.Read(dt)
	r.robot.Propagate()
	for _, c := range r.controllers {
		c.Tick()
	}
	r.robot.PropagateCommands()
	r.bank.Write()
}

// publishCalibrated fans a completion event out to the log and, when a
// bus is up, the CAN announcement. Runs on a publisher drain goroutine,
// never on the loop.
func (r *rig) publishCalibrated(ev controller.CalibrationEvent) {
	r.logger.Infow("calibration complete", "controller", ev.Controller, "joint", ev.Joint)
	if r.link != nil {
		r.link.PublishCalibrated(ev.Controller)
	}
}

func (r *rig) controllerByName(name string) (controller.Controller, error) {
	for _, c := range r.controllers {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, errors.Errorf("no controller named %q", name)
}

func (r *rig) wrenchController(name string) (*cartesianwrench.Projector, error) {
	c, err := r.controllerByName(name)
	if err != nil {
		return nil, err
	}
	proj, ok := c.(*cartesianwrench.Projector)
	if !ok {
		return nil, errors.Errorf("controller %q is not a %s controller", name, cartesianwrench.TypeName)
	}
	return proj, nil
}

func (r *rig) velocityController(name string) (*jointvelocity.Controller, error) {
	c, err := r.controllerByName(name)
	if err != nil {
		return nil, err
	}
	vc, ok := c.(*jointvelocity.Controller)
	if !ok {
		return nil, errors.Errorf("controller %q is not a %s controller", name, jointvelocity.TypeName)
	}
	return vc, nil
}

// DoCommand is the rig's operator surface: wrench and velocity commands
// in, status snapshots out.
func (r *rig) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	name, ok := cmd["command"]
	if !ok {
		return nil, errors.New("missing 'command' value")
	}
	switch name {
	case "set_wrench":
		ctrlName, err := stringArg(cmd, "controller")
		if err != nil {
			return nil, err
		}
		proj, err := r.wrenchController(ctrlName)
		if err != nil {
			return nil, err
		}
		proj.SetCommand(kinematics.Wrench{
			Force: r3.Vector{
				X: floatArg(cmd, "force_x"),
				Y: floatArg(cmd, "force_y"),
				Z: floatArg(cmd, "force_z"),
			},
			Torque: r3.Vector{
				X: floatArg(cmd, "torque_x"),
				Y: floatArg(cmd, "torque_y"),
				Z: floatArg(cmd, "torque_z"),
			},
		})
		return map[string]interface{}{"return": "set_wrench command processed"}, nil

	case "set_velocity":
		ctrlName, err := stringArg(cmd, "controller")
		if err != nil {
			return nil, err
		}
		vc, err := r.velocityController(ctrlName)
		if err != nil {
			return nil, err
		}
		vRaw, ok := cmd["velocity"]
		if !ok {
			return nil, errors.New("velocity must be set to a number")
		}
		v, ok := vRaw.(float64)
		if !ok {
			return nil, errors.Errorf("velocity value must be a number but is type %T", vRaw)
		}
		vc.SetCommand(v)
		return map[string]interface{}{"return": fmt.Sprintf("set_velocity command processed: %f", v)}, nil

	case "status":
		return r.status(), nil

	case "controllers":
		configured := make([]interface{}, 0, len(r.controllers))
		for _, c := range r.controllers {
			configured = append(configured, c.Name())
		}
		types := make([]interface{}, 0)
		for _, tn := range controller.Types() {
			types = append(types, tn)
		}
		return map[string]interface{}{"configured": configured, "types": types}, nil

	default:
		return nil, fmt.Errorf("no such command: %s", name)
	}
}

func (r *rig) status() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	joints := map[string]interface{}{}
	for _, j := range r.robot.Joints() {
		joints[j.Name] = map[string]interface{}{
			"position":         j.Position,
			"velocity":         j.Velocity,
			"calibrated":       j.Calibrated,
			"effort_command":   j.EffortCommand,
			"velocity_command": j.VelocityCommand,
		}
	}
	calibrations := map[string]interface{}{}
	for _, c := range r.controllers {
		if seq, ok := c.(*jointcalibration.Sequencer); ok {
			calibrations[c.Name()] = seq.State().String()
		}
	}
	return map[string]interface{}{"joints": joints, "calibration": calibrations}
}

func stringArg(cmd map[string]interface{}, key string) (string, error) {
	raw, ok := cmd[key]
	if !ok {
		return "", errors.Errorf("%s must be set", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", errors.Errorf("%s value must be a string but is type %T", key, raw)
	}
	return s, nil
}

func floatArg(cmd map[string]interface{}, key string) float64 {
	v, ok := cmd[key].(float64)
	if !ok {
		return 0
	}
	return v
}

func (r *rig) closeControllers() {
	for _, c := range r.controllers {
		if err := c.Close(); err != nil {
			r.logger.Errorw("controller close error", "controller", c.Name(), "error", err)
		}
	}
}

// abort tears down a partially assembled rig on a construction failure.
func (r *rig) abort(err error) error {
	r.closeControllers()
	if r.link != nil {
		if cerr := r.link.Close(); cerr != nil {
			r.logger.Errorw("can link close error", "error", cerr)
		}
	}
	return err
}

// Close stops the loop first so nothing ticks into a closed collaborator,
// then the controllers, then the bus link.
func (r *rig) Close(ctx context.Context) error {
	if r.loop != nil {
		r.loop.Close()
	}
	var err error
	for _, c := range r.controllers {
		err = multierr.Combine(err, c.Close())
	}
	if r.link != nil {
		err = multierr.Combine(err, r.link.Close())
	}
	return err
}
