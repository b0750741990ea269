// Package controller defines the lifecycle shared by every joint
// controller and the registry the rig builds instances from.
package controller

import (
	"time"

	"github.com/pkg/errors"

	rdkutils "go.viam.com/rdk/utils"

	"mechctl/mechanism"
)

// Controller is one periodically ticked control law. Constructors return a
// ready controller or an error; a controller that failed construction is
// never ticked. Tick runs on the control loop goroutine and must not
// block.
type Controller interface {
	Name() string
	// Start runs once before the first Tick and again whenever the rig
	// restarts the controller.
	Start() error
	Tick()
	Close() error
}

// Config names one controller instance and carries its typed attributes.
type Config struct {
	Name       string                `json:"name"`
	Type       string                `json:"type"`
	Attributes rdkutils.AttributeMap `json:"attributes,omitempty"`
}

// CalibrationEvent identifies a completed calibration run. The payload is
// the identity alone; consumers treat it as an edge, not a measurement.
type CalibrationEvent struct {
	Controller string
	Joint      string
}

// Deps are the collaborators a constructor may capture.
type Deps struct {
	Robot  *mechanism.Robot
	Period time.Duration
	// Calibrated, when set, receives completion events from calibration
	// runs. It is invoked from a background goroutine, never from Tick.
	Calibrated func(CalibrationEvent)
}

// DurationAttr reads a duration attribute given as a Go duration string
// ("250ms", "1.5s"), returning def when the key is absent.
func DurationAttr(attrs rdkutils.AttributeMap, key string, def time.Duration) (time.Duration, error) {
	raw, ok := attrs[key]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return 0, errors.Errorf("attribute %q must be a duration string, got %T", key, raw)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "attribute %q", key)
	}
	return d, nil
}
