// Package kinematics provides the serial-chain geometry the wrench
// controller projects through: forward kinematics, the geometric Jacobian,
// and the wrench type itself.
package kinematics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/spatialmath"

	"mechctl/mechanism"
)

// Chain is an immutable view over the consecutive joints between two links
// of a robot, plus a fixed tip offset from the last joint frame to the
// point where wrenches act. Topology is fixed at construction; only joint
// positions vary.
type Chain struct {
	joints []*mechanism.Joint
	tip    r3.Vector

	// scratch reused across Jacobian evaluations
	axes    []r3.Vector
	origins []r3.Vector
}

// NewChain resolves the joints between rootLink and tipLink on the robot.
func NewChain(robot *mechanism.Robot, rootLink, tipLink string, tipOffset r3.Vector) (*Chain, error) {
	joints, err := robot.Chain(rootLink, tipLink)
	if err != nil {
		return nil, errors.Wrapf(err, "building chain %s -> %s", rootLink, tipLink)
	}
	n := len(joints)
	return &Chain{
		joints:  joints,
		tip:     tipOffset,
		axes:    make([]r3.Vector, n),
		origins: make([]r3.Vector, n),
	}, nil
}

// JointCount returns the number of joints in the chain.
func (c *Chain) JointCount() int {
	return len(c.joints)
}

// AllCalibrated reports whether every chain joint has a calibrated zero
// reference.
func (c *Chain) AllCalibrated() bool {
	for _, j := range c.joints {
		if !j.Calibrated {
			return false
		}
	}
	return true
}

// Positions copies the current joint positions into dst, allocating only
// when dst cannot hold them.
func (c *Chain) Positions(dst []float64) []float64 {
	if len(dst) != len(c.joints) {
		dst = make([]float64, len(c.joints))
	}
	for i, j := range c.joints {
		dst[i] = j.Position
	}
	return dst
}

// SetEfforts writes tau back to the chain joints' effort commands.
func (c *Chain) SetEfforts(tau *mat.VecDense) {
	for i, j := range c.joints {
		j.EffortCommand = tau.AtVec(i)
	}
}

// Jacobian evaluates the 6xN geometric Jacobian at configuration q and
// stores it in dst, allocating when dst is nil. Rows 0-2 map joint rates
// to tip linear velocity, rows 3-5 to angular velocity, in the root frame.
// q must hold JointCount values.
func (c *Chain) Jacobian(q []float64, dst *mat.Dense) *mat.Dense {
	n := len(c.joints)
	if dst == nil {
		dst = mat.NewDense(6, n, nil)
	}

	pose := spatialmath.NewZeroPose()
	for i, j := range c.joints {
		pose = spatialmath.Compose(pose, spatialmath.NewPoseFromPoint(j.Origin))
		c.origins[i] = pose.Point()
		c.axes[i] = pose.Orientation().RotationMatrix().Mul(j.Axis)
		switch j.Type {
		case mechanism.Revolute:
			rot := &spatialmath.R4AA{Theta: q[i], RX: j.Axis.X, RY: j.Axis.Y, RZ: j.Axis.Z}
			pose = spatialmath.Compose(pose, spatialmath.NewPose(r3.Vector{}, rot))
		case mechanism.Prismatic:
			pose = spatialmath.Compose(pose, spatialmath.NewPoseFromPoint(j.Axis.Mul(q[i])))
		}
	}
	tip := spatialmath.Compose(pose, spatialmath.NewPoseFromPoint(c.tip)).Point()

	for i, j := range c.joints {
		var lin, ang r3.Vector
		switch j.Type {
		case mechanism.Revolute:
			lin = c.axes[i].Cross(tip.Sub(c.origins[i]))
			ang = c.axes[i]
		case mechanism.Prismatic:
			lin = c.axes[i]
		}
		dst.Set(0, i, lin.X)
		dst.Set(1, i, lin.Y)
		dst.Set(2, i, lin.Z)
		dst.Set(3, i, ang.X)
		dst.Set(4, i, ang.Y)
		dst.Set(5, i, ang.Z)
	}
	return dst
}
