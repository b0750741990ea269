// Package mechanism models the robot actuation data path: joints, the
// actuators backing them, and the transmissions mapping between the two.
package mechanism

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Robot holds the ordered joints of a serial mechanism together with their
// actuators and transmissions. Joint order is kinematic order: the first
// joint hangs off the base link, each following joint off the previous
// joint's child link.
type Robot struct {
	clk      clock.Clock
	baseLink string

	joints        []*Joint
	transmissions []*Transmission
	jointsByName  map[string]*Joint
	actsByName    map[string]*Actuator
}

// NewRobot returns an empty robot. baseLink names the link the first joint
// attaches to; it defaults to "base".
func NewRobot(clk clock.Clock, baseLink string) *Robot {
	if clk == nil {
		clk = clock.New()
	}
	if baseLink == "" {
		baseLink = "base"
	}
	return &Robot{
		clk:          clk,
		baseLink:     baseLink,
		jointsByName: map[string]*Joint{},
		actsByName:   map[string]*Actuator{},
	}
}

// AddJoint appends a joint to the chain, backed by act through a
// transmission with the given reduction ratio. The joint axis is
// normalized in place.
func (r *Robot) AddJoint(j *Joint, act *Actuator, reduction float64) error {
	switch {
	case j == nil || act == nil:
		return errors.New("joint and actuator must be non-nil")
	case j.Name == "":
		return errors.New("joint name must be set")
	case act.Name == "":
		return errors.Errorf("actuator for joint %q has no name", j.Name)
	case j.Link == "":
		return errors.Errorf("joint %q has no child link", j.Name)
	case reduction == 0:
		return errors.Errorf("joint %q has a zero reduction ratio", j.Name)
	}
	if j.Type != Revolute && j.Type != Prismatic {
		return errors.Errorf("joint %q has unknown type %q", j.Name, j.Type)
	}
	if j.Axis.Norm() == 0 {
		return errors.Errorf("joint %q has a zero axis", j.Name)
	}
	if _, ok := r.jointsByName[j.Name]; ok {
		return errors.Errorf("duplicate joint name %q", j.Name)
	}
	if _, ok := r.actsByName[act.Name]; ok {
		return errors.Errorf("duplicate actuator name %q", act.Name)
	}
	if j.Link == r.baseLink {
		return errors.Errorf("joint %q may not reuse the base link %q", j.Name, j.Link)
	}
	for _, prev := range r.joints {
		if prev.Link == j.Link {
			return errors.Errorf("duplicate link name %q", j.Link)
		}
	}
	j.Axis = j.Axis.Normalize()
	r.joints = append(r.joints, j)
	r.jointsByName[j.Name] = j
	r.actsByName[act.Name] = act
	r.transmissions = append(r.transmissions, &Transmission{Joint: j, Actuator: act, Reduction: reduction})
	return nil
}

// Joint resolves a joint by name.
func (r *Robot) Joint(name string) (*Joint, error) {
	j, ok := r.jointsByName[name]
	if !ok {
		return nil, errors.Errorf("no joint named %q", name)
	}
	return j, nil
}

// Actuator resolves an actuator by name.
func (r *Robot) Actuator(name string) (*Actuator, error) {
	a, ok := r.actsByName[name]
	if !ok {
		return nil, errors.Errorf("no actuator named %q", name)
	}
	return a, nil
}

// Joints returns the joints in kinematic order. The slice is shared with
// the robot; callers must not reorder it.
func (r *Robot) Joints() []*Joint {
	return r.joints
}

// Chain returns the consecutive joints that move rootLink out to tipLink.
func (r *Robot) Chain(rootLink, tipLink string) ([]*Joint, error) {
	ri, err := r.linkIndex(rootLink)
	if err != nil {
		return nil, err
	}
	ti, err := r.linkIndex(tipLink)
	if err != nil {
		return nil, err
	}
	if ti <= ri {
		return nil, errors.Errorf("link %q is not downstream of link %q", tipLink, rootLink)
	}
	return r.joints[ri:ti], nil
}

func (r *Robot) linkIndex(name string) (int, error) {
	if name == r.baseLink {
		return 0, nil
	}
	for i, j := range r.joints {
		if j.Link == name {
			return i + 1, nil
		}
	}
	return 0, errors.Errorf("no link named %q", name)
}

// Propagate refreshes every joint's state from its actuator.
func (r *Robot) Propagate() {
	for _, t := range r.transmissions {
		t.Propagate()
	}
}

// PropagateCommands pushes every joint's commands down to its actuator.
func (r *Robot) PropagateCommands() {
	for _, t := range r.transmissions {
		t.PropagateCommands()
	}
}

// BaseLink returns the name of the link the first joint attaches to.
func (r *Robot) BaseLink() string {
	return r.baseLink
}

// Now reports the robot model time.
func (r *Robot) Now() time.Time {
	return r.clk.Now()
}
