package mechanism_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"mechctl/mechanism"
)

func testRobot(t *testing.T) *mechanism.Robot {
	t.Helper()
	r := mechanism.NewRobot(clock.NewMock(), "base")
	for _, name := range []string{"shoulder", "elbow", "wrist"} {
		j := &mechanism.Joint{
			Name:   name,
			Type:   mechanism.Revolute,
			Axis:   r3.Vector{Z: 1},
			Origin: r3.Vector{X: 0.1},
			Link:   name + "_link",
		}
		act := &mechanism.Actuator{Name: name + "_motor"}
		test.That(t, r.AddJoint(j, act, 1), test.ShouldBeNil)
	}
	return r
}

func TestTransmissionPropagate(t *testing.T) {
	r := mechanism.NewRobot(clock.NewMock(), "")
	j := &mechanism.Joint{Name: "lift", Type: mechanism.Prismatic, Axis: r3.Vector{Z: 1}, Link: "carriage"}
	act := &mechanism.Actuator{Name: "lift_motor"}
	test.That(t, r.AddJoint(j, act, 2), test.ShouldBeNil)

	act.RawPosition = 2.5
	act.RawVelocity = 1.0
	act.ZeroOffset = 0.5
	r.Propagate()
	test.That(t, j.Position, test.ShouldAlmostEqual, 1.0)
	test.That(t, j.Velocity, test.ShouldAlmostEqual, 0.5)

	j.VelocityCommand = 0.5
	j.EffortCommand = 3.0
	r.PropagateCommands()
	test.That(t, act.VelocityCommand, test.ShouldAlmostEqual, 1.0)
	test.That(t, act.EffortCommand, test.ShouldAlmostEqual, 1.5)
}

func TestResolveByName(t *testing.T) {
	r := testRobot(t)

	j, err := r.Joint("elbow")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j.Name, test.ShouldEqual, "elbow")

	_, err = r.Joint("knee")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "knee")

	a, err := r.Actuator("wrist_motor")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Name, test.ShouldEqual, "wrist_motor")

	_, err = r.Actuator("missing")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestChain(t *testing.T) {
	r := testRobot(t)

	all, err := r.Chain("base", "wrist_link")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, all, test.ShouldHaveLength, 3)
	test.That(t, all[0].Name, test.ShouldEqual, "shoulder")

	inner, err := r.Chain("shoulder_link", "wrist_link")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inner, test.ShouldHaveLength, 2)
	test.That(t, inner[0].Name, test.ShouldEqual, "elbow")

	_, err = r.Chain("wrist_link", "shoulder_link")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = r.Chain("base", "base")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = r.Chain("base", "nowhere")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nowhere")
}

func TestAddJointValidation(t *testing.T) {
	r := testRobot(t)

	dup := &mechanism.Joint{Name: "elbow", Type: mechanism.Revolute, Axis: r3.Vector{Z: 1}, Link: "other"}
	err := r.AddJoint(dup, &mechanism.Actuator{Name: "m1"}, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate joint")

	noAxis := &mechanism.Joint{Name: "j4", Type: mechanism.Revolute, Link: "l4"}
	err = r.AddJoint(noAxis, &mechanism.Actuator{Name: "m2"}, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "zero axis")

	badType := &mechanism.Joint{Name: "j5", Type: "spherical", Axis: r3.Vector{Z: 1}, Link: "l5"}
	err = r.AddJoint(badType, &mechanism.Actuator{Name: "m3"}, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown type")

	zeroRed := &mechanism.Joint{Name: "j6", Type: mechanism.Revolute, Axis: r3.Vector{Z: 1}, Link: "l6"}
	err = r.AddJoint(zeroRed, &mechanism.Actuator{Name: "m4"}, 0)
	test.That(t, err, test.ShouldNotBeNil)

	dupAct := &mechanism.Joint{Name: "j7", Type: mechanism.Revolute, Axis: r3.Vector{Z: 1}, Link: "l7"}
	err = r.AddJoint(dupAct, &mechanism.Actuator{Name: "elbow_motor"}, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate actuator")
}

func TestAxisNormalized(t *testing.T) {
	r := mechanism.NewRobot(clock.NewMock(), "")
	j := &mechanism.Joint{Name: "j", Type: mechanism.Revolute, Axis: r3.Vector{Z: 4}, Link: "l"}
	test.That(t, r.AddJoint(j, &mechanism.Actuator{Name: "m"}, 1), test.ShouldBeNil)
	test.That(t, j.Axis.Z, test.ShouldAlmostEqual, 1)
}

func TestNow(t *testing.T) {
	mk := clock.NewMock()
	r := mechanism.NewRobot(mk, "")
	start := r.Now()
	mk.Add(250 * time.Millisecond)
	test.That(t, r.Now().Sub(start), test.ShouldEqual, 250*time.Millisecond)
}
