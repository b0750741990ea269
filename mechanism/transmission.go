package mechanism

// Transmission maps between actuator space and joint space with a fixed
// reduction ratio.
type Transmission struct {
	Joint     *Joint
	Actuator  *Actuator
	Reduction float64
}

// Propagate refreshes the joint state from the actuator readings, applying
// the zero offset owned by the actuator.
func (t *Transmission) Propagate() {
	t.Joint.Position = (t.Actuator.RawPosition - t.Actuator.ZeroOffset) / t.Reduction
	t.Joint.Velocity = t.Actuator.RawVelocity / t.Reduction
}

// PropagateCommands pushes the joint commands down to the actuator.
func (t *Transmission) PropagateCommands() {
	t.Actuator.VelocityCommand = t.Joint.VelocityCommand * t.Reduction
	t.Actuator.EffortCommand = t.Joint.EffortCommand / t.Reduction
}
