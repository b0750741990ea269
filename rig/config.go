package rig

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/rdk/resource"

	"mechctl/controller"
)

// Config describes a complete rig: the mechanism joint by joint, the
// actuators behind them, the controllers to run, and optionally the CAN
// channel the rig talks to the outside world on.
type Config struct {
	// TickHz is the control cycle rate. Defaults to 1000.
	TickHz      int                 `json:"tick_hz,omitempty"`
	BaseLink    string              `json:"base_link,omitempty"`
	Joints      []JointConfig       `json:"joints"`
	Actuators   []ActuatorConfig    `json:"actuators"`
	Controllers []controller.Config `json:"controllers,omitempty"`
	CAN         *CANConfig          `json:"can,omitempty"`
}

// JointConfig describes one joint of the serial chain, in kinematic order.
// Axis and origin are 3-element vectors in the parent link frame.
type JointConfig struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Link      string    `json:"link"`
	Axis      []float64 `json:"axis"`
	Origin    []float64 `json:"origin,omitempty"`
	Actuator  string    `json:"actuator"`
	Reduction float64   `json:"reduction"`
}

// ActuatorConfig describes one simulated axis. Travel limits are the
// mechanical hard stops; leaving both zero removes them.
type ActuatorConfig struct {
	Name          string  `json:"name"`
	StartPosition float64 `json:"start_position,omitempty"`
	TravelMin     float64 `json:"travel_min,omitempty"`
	TravelMax     float64 `json:"travel_max,omitempty"`
	Damping       float64 `json:"damping,omitempty"`
}

// CANConfig points the rig at a SocketCAN channel. When WrenchController
// names a cartesian_wrench controller, wrench frames received on the bus
// are forwarded to it.
type CANConfig struct {
	Channel          string `json:"channel"`
	WrenchController string `json:"wrench_controller,omitempty"`
}

// Validate checks required fields. Cross-entity semantics (duplicate
// names, link topology, controller attributes) are checked at
// construction where the errors carry more context.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.TickHz < 0 {
		return nil, errors.Errorf("%s: tick_hz must be positive, got %d", path, conf.TickHz)
	}
	if len(conf.Joints) == 0 {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "joints")
	}
	if len(conf.Actuators) == 0 {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "actuators")
	}

	actuators := map[string]bool{}
	for i, ac := range conf.Actuators {
		apath := fmt.Sprintf("%s.actuators.%d", path, i)
		if ac.Name == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(apath, "name")
		}
		actuators[ac.Name] = true
	}

	for i, jc := range conf.Joints {
		jpath := fmt.Sprintf("%s.joints.%d", path, i)
		switch {
		case jc.Name == "":
			return nil, resource.NewConfigValidationFieldRequiredError(jpath, "name")
		case jc.Type == "":
			return nil, resource.NewConfigValidationFieldRequiredError(jpath, "type")
		case jc.Link == "":
			return nil, resource.NewConfigValidationFieldRequiredError(jpath, "link")
		case jc.Actuator == "":
			return nil, resource.NewConfigValidationFieldRequiredError(jpath, "actuator")
		}
		if len(jc.Axis) != 3 {
			return nil, errors.Errorf("%s: axis must have exactly 3 elements", jpath)
		}
		if len(jc.Origin) != 0 && len(jc.Origin) != 3 {
			return nil, errors.Errorf("%s: origin must have exactly 3 elements", jpath)
		}
		if jc.Reduction == 0 {
			return nil, errors.Errorf("%s: reduction must be nonzero", jpath)
		}
		if !actuators[jc.Actuator] {
			return nil, errors.Errorf("%s: references unknown actuator %q", jpath, jc.Actuator)
		}
	}

	for i, cc := range conf.Controllers {
		cpath := fmt.Sprintf("%s.controllers.%d", path, i)
		if cc.Name == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(cpath, "name")
		}
		if cc.Type == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(cpath, "type")
		}
	}

	if conf.CAN != nil && conf.CAN.Channel == "" {
		return nil, resource.NewConfigValidationFieldRequiredError(path+".can", "channel")
	}
	return nil, nil
}
