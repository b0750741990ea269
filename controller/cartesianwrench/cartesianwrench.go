// Package cartesianwrench maps a desired tip wrench onto joint efforts
// through the transpose of the chain Jacobian, with an optional one-sided
// joint limit constraint.
package cartesianwrench

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/mat"

	"mechctl/controller"
	"mechctl/kinematics"
)

// TypeName identifies this controller type in rig configs.
const TypeName = "cartesian_wrench"

func init() {
	controller.Register(TypeName, New)
}

// Projector computes tau = J^T w every tick for the chain between two
// links. The desired wrench lives in an atomic mailbox so senders on other
// goroutines always replace the whole value; the tick loads it exactly
// once per cycle.
type Projector struct {
	name   string
	logger logging.Logger
	chain  *kinematics.Chain

	constraintJoint int
	softLimit       float64
	hardLimit       float64
	stiffness       float64

	desired atomic.Pointer[kinematics.Wrench]

	pos  []float64
	jac  *mat.Dense
	wvec *mat.VecDense
	tau  mat.VecDense
}

// New builds the projector from a rig config entry.
//
// Attributes:
//
//	root_name, tip_name        links bounding the chain (required)
//	tip_offset_x/_y/_z         wrench application point in the tip frame
//	constraint_joint           chain joint index the limit law guards (default none)
//	constraint_soft_limit      position where the restoring spring engages
//	constraint_hard_limit      position past which the spring replaces the effort
//	constraint_stiffness       spring gain, must not be negative
func New(deps controller.Deps, conf controller.Config, logger logging.Logger) (controller.Controller, error) {
	attrs := conf.Attributes
	rootName := attrs.String("root_name")
	if rootName == "" {
		return nil, errors.New(`"root_name" attribute is required`)
	}
	tipName := attrs.String("tip_name")
	if tipName == "" {
		return nil, errors.New(`"tip_name" attribute is required`)
	}
	tipOffset := r3.Vector{
		X: attrs.Float64("tip_offset_x", 0),
		Y: attrs.Float64("tip_offset_y", 0),
		Z: attrs.Float64("tip_offset_z", 0),
	}
	chain, err := kinematics.NewChain(deps.Robot, rootName, tipName, tipOffset)
	if err != nil {
		return nil, err
	}

	// JSON numbers arrive as float64, so the index attribute does too.
	constraintJoint := int(attrs.Float64("constraint_joint", -1))
	if constraintJoint >= chain.JointCount() {
		return nil, errors.Errorf("constraint_joint %d out of range for a %d joint chain",
			constraintJoint, chain.JointCount())
	}
	stiffness := attrs.Float64("constraint_stiffness", 0)
	if stiffness < 0 {
		return nil, errors.Errorf("constraint_stiffness must not be negative, got %v", stiffness)
	}

	p := &Projector{
		name:            conf.Name,
		logger:          logger,
		chain:           chain,
		constraintJoint: constraintJoint,
		softLimit:       attrs.Float64("constraint_soft_limit", 0),
		hardLimit:       attrs.Float64("constraint_hard_limit", 0),
		stiffness:       stiffness,
		pos:             make([]float64, chain.JointCount()),
		jac:             mat.NewDense(6, chain.JointCount(), nil),
		wvec:            mat.NewVecDense(6, nil),
	}
	p.tau.ReuseAsVec(chain.JointCount())
	p.desired.Store(&kinematics.Wrench{})
	if constraintJoint >= 0 {
		logger.Infow("joint limit constraint armed",
			"joint_index", constraintJoint,
			"soft_limit", p.softLimit,
			"hard_limit", p.hardLimit,
			"stiffness", p.stiffness,
		)
	}
	return p, nil
}

// Name implements controller.Controller.
func (p *Projector) Name() string { return p.name }

// Start clears the desired wrench so a restarted controller pushes nothing
// until commanded again.
func (p *Projector) Start() error {
	p.desired.Store(&kinematics.Wrench{})
	return nil
}

// SetCommand replaces the desired wrench. Safe from any goroutine.
func (p *Projector) SetCommand(w kinematics.Wrench) {
	p.desired.Store(&w)
}

// Command reports the wrench the next tick will project.
func (p *Projector) Command() kinematics.Wrench {
	return *p.desired.Load()
}

// Tick implements controller.Controller. Until every chain joint is
// calibrated the projector leaves the joint efforts untouched.
func (p *Projector) Tick() {
	if !p.chain.AllCalibrated() {
		return
	}
	w := p.desired.Load()

	p.pos = p.chain.Positions(p.pos)
	p.jac = p.chain.Jacobian(p.pos, p.jac)
	for i, v := range w.Vec6() {
		p.wvec.SetVec(i, v)
	}
	p.tau.MulVec(p.jac.T(), p.wvec)
	p.applyConstraint()
	p.chain.SetEfforts(&p.tau)
}

// applyConstraint implements the one-sided limit law. The sign of
// hard-soft picks which side of the limit is forbidden; past the soft
// limit a restoring spring is added to the projected effort, past the hard
// limit it replaces the effort outright.
func (p *Projector) applyConstraint() {
	j := p.constraintJoint
	if j < 0 {
		return
	}
	pos := p.pos[j]
	spring := p.stiffness * (p.softLimit - pos)
	sgn := sign(p.hardLimit - p.softLimit)
	switch {
	case sgn*(p.hardLimit-pos) < 0:
		p.tau.SetVec(j, spring)
	case sgn*(p.softLimit-pos) < 0:
		p.tau.SetVec(j, p.tau.AtVec(j)+spring)
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Close implements controller.Controller.
func (p *Projector) Close() error { return nil }
