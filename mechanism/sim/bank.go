// Package sim provides a simulated actuator bank so a full rig can run,
// calibrate, and be tested without hardware on the bus.
package sim

import (
	"time"

	"mechctl/mechanism"
	"mechctl/realtime"
)

// Axis configures one simulated actuator. Travel limits model the
// mechanical hard stops a calibration run searches for; leaving both at
// zero removes them. Damping converts a commanded effort into a steady
// velocity (v = effort/damping) and defaults to 1.
type Axis struct {
	Actuator  *mechanism.Actuator
	TravelMin float64
	TravelMax float64
	Damping   float64
}

type axisState struct {
	velocityCmd float64
	effortCmd   float64
}

// Bank integrates a set of simulated axes on the control cycle. Everything
// advances on the loop goroutine; there is no internal concurrency.
type Bank struct {
	axes    []Axis
	latched []axisState
}

var _ realtime.Backend = (*Bank)(nil)

// NewBank returns a bank over the given axes.
func NewBank(axes []Axis) *Bank {
	b := &Bank{
		axes:    axes,
		latched: make([]axisState, len(axes)),
	}
	for i := range b.axes {
		if b.axes[i].Damping <= 0 {
			b.axes[i].Damping = 1
		}
	}
	return b
}

// Read integrates each axis dt forward using the commands latched by the
// previous Write. A nonzero velocity command drives the axis directly;
// otherwise the effort command pushes against viscous damping. An axis
// pressed into a travel stop holds position and reports zero velocity,
// which is exactly the stall a calibration run watches for.
func (b *Bank) Read(dt time.Duration) {
	secs := dt.Seconds()
	for i := range b.axes {
		ax := &b.axes[i]
		cmd := b.latched[i]

		v := cmd.velocityCmd
		if v == 0 {
			v = cmd.effortCmd / ax.Damping
		}
		pos := ax.Actuator.RawPosition + v*secs

		if ax.TravelMin != 0 || ax.TravelMax != 0 {
			if pos <= ax.TravelMin {
				pos = ax.TravelMin
				if v < 0 {
					v = 0
				}
			}
			if pos >= ax.TravelMax {
				pos = ax.TravelMax
				if v > 0 {
					v = 0
				}
			}
		}

		ax.Actuator.RawPosition = pos
		ax.Actuator.RawVelocity = v
	}
}

// Write latches the actuator commands for the next Read.
func (b *Bank) Write() {
	for i := range b.axes {
		b.latched[i] = axisState{
			velocityCmd: b.axes[i].Actuator.VelocityCommand,
			effortCmd:   b.axes[i].Actuator.EffortCommand,
		}
	}
}
