package canlink

import (
	"encoding/binary"
	"math"

	"github.com/go-daq/canbus"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"mechctl/kinematics"
)

// Bus IDs for the wrench command pair and the calibration announcement.
const (
	wrenchForceID  uint32 = 0x310
	wrenchTorqueID uint32 = 0x311
	calibratedID   uint32 = 0x320
)

// Vector components travel as little endian int16s at 0.01 units per
// count, the payload style of the rest of the vehicle bus.
const wrenchScale = 0.01

func scaleComponent(v float64) uint16 {
	counts := math.Round(v / wrenchScale)
	if counts > math.MaxInt16 {
		counts = math.MaxInt16
	}
	if counts < math.MinInt16 {
		counts = math.MinInt16
	}
	return uint16(int16(counts))
}

// encodeVec packs a force or torque vector into a wrench frame.
func encodeVec(id uint32, v r3.Vector) canbus.Frame {
	frame := canbus.Frame{
		ID:   id,
		Data: make([]byte, 6),
		Kind: canbus.SFF,
	}
	binary.LittleEndian.PutUint16(frame.Data[0:2], scaleComponent(v.X))
	binary.LittleEndian.PutUint16(frame.Data[2:4], scaleComponent(v.Y))
	binary.LittleEndian.PutUint16(frame.Data[4:6], scaleComponent(v.Z))
	return frame
}

func decodeVec(data []byte) (r3.Vector, error) {
	if len(data) < 6 {
		return r3.Vector{}, errors.Errorf("want 6 data bytes, got %d", len(data))
	}
	return r3.Vector{
		X: float64(int16(binary.LittleEndian.Uint16(data[0:2]))) * wrenchScale,
		Y: float64(int16(binary.LittleEndian.Uint16(data[2:4]))) * wrenchScale,
		Z: float64(int16(binary.LittleEndian.Uint16(data[4:6]))) * wrenchScale,
	}, nil
}

// encodeCalibrated packs a calibration announcement. The payload is the
// controller name truncated to the 8 bytes a classic frame can carry.
func encodeCalibrated(name string) canbus.Frame {
	data := []byte(name)
	if len(data) > 8 {
		data = data[:8]
	}
	return canbus.Frame{ID: calibratedID, Data: data, Kind: canbus.SFF}
}

// wrenchAssembler folds force and torque frames into the latest combined
// wrench. Not safe for concurrent use; it lives on the receive worker.
type wrenchAssembler struct {
	force  r3.Vector
	torque r3.Vector
	sink   func(kinematics.Wrench)
}

func (a *wrenchAssembler) handle(frame canbus.Frame) error {
	switch frame.ID {
	case wrenchForceID:
		v, err := decodeVec(frame.Data)
		if err != nil {
			return err
		}
		a.force = v
	case wrenchTorqueID:
		v, err := decodeVec(frame.Data)
		if err != nil {
			return err
		}
		a.torque = v
	default:
		return nil
	}
	a.sink(kinematics.Wrench{Force: a.force, Torque: a.torque})
	return nil
}
