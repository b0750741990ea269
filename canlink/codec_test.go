package canlink

import (
	"testing"

	"github.com/go-daq/canbus"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"mechctl/kinematics"
)

func TestWrenchVecRoundTrip(t *testing.T) {
	want := r3.Vector{X: 1.25, Y: -3.2, Z: 0.07}
	frame := encodeVec(wrenchForceID, want)
	test.That(t, frame.ID, test.ShouldEqual, wrenchForceID)
	test.That(t, frame.Kind, test.ShouldEqual, canbus.SFF)
	test.That(t, len(frame.Data), test.ShouldEqual, 6)

	got, err := decodeVec(frame.Data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.X, test.ShouldAlmostEqual, want.X, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, 1e-9)
	test.That(t, got.Z, test.ShouldAlmostEqual, want.Z, 1e-9)
}

func TestWrenchVecSaturates(t *testing.T) {
	frame := encodeVec(wrenchTorqueID, r3.Vector{X: 1e6, Y: -1e6})
	got, err := decodeVec(frame.Data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.X, test.ShouldAlmostEqual, 327.67, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, -327.68, 1e-9)
	test.That(t, got.Z, test.ShouldEqual, 0)
}

func TestDecodeVecRejectsShortPayload(t *testing.T) {
	_, err := decodeVec([]byte{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "want 6 data bytes")
}

func TestAssemblerCombinesLatestHalves(t *testing.T) {
	var got []kinematics.Wrench
	a := &wrenchAssembler{sink: func(w kinematics.Wrench) { got = append(got, w) }}

	test.That(t, a.handle(encodeVec(wrenchForceID, r3.Vector{X: 1})), test.ShouldBeNil)
	test.That(t, a.handle(encodeVec(wrenchTorqueID, r3.Vector{Z: 2})), test.ShouldBeNil)
	test.That(t, a.handle(encodeVec(wrenchForceID, r3.Vector{Y: 3})), test.ShouldBeNil)

	test.That(t, len(got), test.ShouldEqual, 3)
	test.That(t, got[0], test.ShouldResemble, kinematics.Wrench{Force: r3.Vector{X: 1}})
	test.That(t, got[1], test.ShouldResemble, kinematics.Wrench{Force: r3.Vector{X: 1}, Torque: r3.Vector{Z: 2}})
	test.That(t, got[2], test.ShouldResemble, kinematics.Wrench{Force: r3.Vector{Y: 3}, Torque: r3.Vector{Z: 2}})
}

func TestAssemblerIgnoresOtherIDs(t *testing.T) {
	calls := 0
	a := &wrenchAssembler{sink: func(kinematics.Wrench) { calls++ }}

	frame := encodeVec(wrenchForceID, r3.Vector{X: 1})
	frame.ID = 0x400
	test.That(t, a.handle(frame), test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 0)
}

func TestAssemblerRejectsMalformedFrame(t *testing.T) {
	calls := 0
	a := &wrenchAssembler{sink: func(kinematics.Wrench) { calls++ }}

	err := a.handle(canbus.Frame{ID: wrenchForceID, Data: []byte{1, 2}, Kind: canbus.SFF})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, calls, test.ShouldEqual, 0)
}

func TestCalibratedFrameTruncatesName(t *testing.T) {
	frame := encodeCalibrated("front_left_calibration")
	test.That(t, frame.ID, test.ShouldEqual, calibratedID)
	test.That(t, frame.Kind, test.ShouldEqual, canbus.SFF)
	test.That(t, string(frame.Data), test.ShouldEqual, "front_le")

	frame = encodeCalibrated("cal")
	test.That(t, string(frame.Data), test.ShouldEqual, "cal")
}
