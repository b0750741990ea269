// Package jointcalibration homes a joint by driving it into its hard stop.
//
// The sequencer runs an open-loop search move, watches the joint velocity
// for a sustained stall, then records the actuator's raw position as its
// zero offset. Completion is announced through a non-blocking publisher so
// the control loop never waits on downstream consumers.
package jointcalibration

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"mechctl/controller"
	"mechctl/controller/jointvelocity"
	"mechctl/mechanism"
	"mechctl/realtime"
)

// TypeName identifies this controller type in rig configs.
const TypeName = "joint_calibration"

func init() {
	controller.Register(TypeName, New)
}

// State is the phase of a calibration run. States only ever advance; a
// fresh run requires Start.
type State int

const (
	StateInitialized State = iota
	StateBeginning
	StateStarting
	StateClosing
	StateCalibrated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateBeginning:
		return "beginning"
	case StateStarting:
		return "starting"
	case StateClosing:
		return "closing"
	case StateCalibrated:
		return "calibrated"
	default:
		return "unknown"
	}
}

// Joint speeds below this magnitude count as stalled.
const stallThreshold = 1e-4

const (
	defaultMoveTime  = 500 * time.Millisecond
	defaultStallTime = 100 * time.Millisecond

	// Minimum model time between completion publishes.
	publishInterval = 500 * time.Millisecond
)

// Sequencer drives one joint through a calibration run. All fields are
// owned by the control loop goroutine; only the publisher crosses threads.
type Sequencer struct {
	name   string
	logger logging.Logger

	robot    *mechanism.Robot
	joint    *mechanism.Joint
	actuator *mechanism.Actuator
	others   []*mechanism.Joint
	vc       *jointvelocity.Controller

	searchVelocity float64
	moveTicks      int
	stallTicks     int

	state       State
	count       int
	stopCount   int
	lastPublish time.Time

	event controller.CalibrationEvent
	pub   *realtime.Publisher[controller.CalibrationEvent]
}

// New builds the sequencer from a rig config entry.
//
// Attributes:
//
//	velocity     search velocity, joint units per second (required)
//	joint        joint to calibrate (required)
//	actuator     actuator whose raw position becomes the zero offset (required)
//	other_joints joints marked calibrated alongside this one
//	move_time    open-loop search duration before stall watching (default 500ms)
//	stall_time   how long the joint must hold still to count as stopped (default 100ms)
func New(deps controller.Deps, conf controller.Config, logger logging.Logger) (controller.Controller, error) {
	attrs := conf.Attributes
	if !attrs.Has("velocity") {
		return nil, errors.New(`"velocity" attribute is required`)
	}
	jointName := attrs.String("joint")
	if jointName == "" {
		return nil, errors.New(`"joint" attribute is required`)
	}
	actName := attrs.String("actuator")
	if actName == "" {
		return nil, errors.New(`"actuator" attribute is required`)
	}
	joint, err := deps.Robot.Joint(jointName)
	if err != nil {
		return nil, err
	}
	act, err := deps.Robot.Actuator(actName)
	if err != nil {
		return nil, err
	}
	if deps.Period <= 0 {
		return nil, errors.New("control period must be positive")
	}
	moveTime, err := controller.DurationAttr(attrs, "move_time", defaultMoveTime)
	if err != nil {
		return nil, err
	}
	stallTime, err := controller.DurationAttr(attrs, "stall_time", defaultStallTime)
	if err != nil {
		return nil, err
	}
	moveTicks := int(moveTime / deps.Period)
	if moveTicks < 1 {
		return nil, errors.Errorf("move_time %v is shorter than the %v control period", moveTime, deps.Period)
	}
	stallTicks := int(stallTime / deps.Period)
	if stallTicks < 1 {
		return nil, errors.Errorf("stall_time %v is shorter than the %v control period", stallTime, deps.Period)
	}

	var others []*mechanism.Joint
	for _, name := range attrs.StringSlice("other_joints") {
		other, err := deps.Robot.Joint(name)
		if err != nil {
			logger.Warnw("ignoring unknown joint in other_joints", "joint", name)
			continue
		}
		others = append(others, other)
	}

	s := &Sequencer{
		name:           conf.Name,
		logger:         logger,
		robot:          deps.Robot,
		joint:          joint,
		actuator:       act,
		others:         others,
		vc:             jointvelocity.NewForJoint(conf.Name+"/velocity", joint),
		searchVelocity: attrs.Float64("velocity", 0),
		moveTicks:      moveTicks,
		stallTicks:     stallTicks,
		event:          controller.CalibrationEvent{Controller: conf.Name, Joint: joint.Name},
	}
	if deps.Calibrated != nil {
		s.pub = realtime.NewPublisher(deps.Calibrated)
	}
	return s, nil
}

// Name implements controller.Controller.
func (s *Sequencer) Name() string { return s.name }

// State reports the current phase. Read it from the loop thread or with
// the rig quiescent.
func (s *Sequencer) State() State { return s.state }

// Start rewinds the sequencer so the next tick begins a fresh run.
func (s *Sequencer) Start() error {
	s.state = StateInitialized
	s.count = 0
	s.stopCount = 0
	s.lastPublish = time.Time{}
	return s.vc.Start()
}

// Tick implements controller.Controller.
func (s *Sequencer) Tick() {
	switch s.state {
	case StateInitialized:
		// A freshly started sequencer drops straight into the search
		// rather than burning a cycle idle.
		fallthrough
	case StateBeginning:
		s.count = 0
		s.stopCount = 0
		s.joint.Calibrated = false
		s.actuator.ZeroOffset = 0
		s.vc.SetCommand(s.searchVelocity)
		s.state = StateStarting
	case StateStarting:
		s.count++
		if s.count > s.moveTicks {
			s.count = 0
			s.stopCount = 0
			s.state = StateClosing
			s.logger.Debugw("search move complete, watching for stall", "joint", s.joint.Name)
		}
	case StateClosing:
		if math.Abs(s.joint.Velocity) < stallThreshold {
			s.stopCount++
		} else {
			s.stopCount = 0
		}
		if s.stopCount > s.stallTicks {
			s.calibrate()
		}
	case StateCalibrated:
		s.tryPublish()
	}
	if s.state != StateCalibrated {
		s.vc.Tick()
	}
}

func (s *Sequencer) calibrate() {
	s.actuator.ZeroOffset = s.actuator.RawPosition
	s.joint.Calibrated = true
	for _, other := range s.others {
		other.Calibrated = true
	}
	// Freeze on the stop. The velocity stage is no longer ticked once the
	// run finishes, so the zero command must be written through here.
	s.vc.SetCommand(0)
	s.vc.Tick()
	s.state = StateCalibrated
	s.logger.Infow("joint calibrated",
		"joint", s.joint.Name,
		"zero_offset", s.actuator.ZeroOffset,
	)
}

// tryPublish announces completion at most once per publishInterval of
// model time. A full slot skips the attempt without moving the window, so
// the announcement is retried next tick rather than dropped.
func (s *Sequencer) tryPublish() {
	if s.pub == nil {
		return
	}
	now := s.robot.Now()
	if !s.lastPublish.Add(publishInterval).Before(now) {
		return
	}
	if s.pub.TryPublish(s.event) {
		s.lastPublish = now
	}
}

// Close implements controller.Controller.
func (s *Sequencer) Close() error {
	if s.pub != nil {
		s.pub.Close()
	}
	return nil
}
