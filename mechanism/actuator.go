package mechanism

// Actuator is the motor/encoder pair backing a joint. RawPosition and
// RawVelocity are pre-calibration readings in actuator space. ZeroOffset is
// captured once per calibration run and names the raw reading that maps to
// joint position zero.
type Actuator struct {
	Name string

	RawPosition float64
	RawVelocity float64
	ZeroOffset  float64

	EffortCommand   float64
	VelocityCommand float64
}
