package stepgen

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"scara/core"
)

const (
	// MaxAxes is fixed by the wiring of the board
	MaxAxes = 10

	// DefaultSpeedRPM is applied at registration and after a microstepping change
	DefaultSpeedRPM = 50.0

	// MaxSpeedRPM caps set_speed requests
	MaxSpeedRPM = 1200.0

	// DefaultDegreesPerStep replaces non-positive or non-finite resolutions
	DefaultDegreesPerStep = 1.0
)

// ErrTooManyAxes is returned when registration would exceed MaxAxes
var ErrTooManyAxes = errors.New("axis count exceeds build-time maximum")

// ConfigError reports an axis setup failure. The wiring is known at init, so
// callers treat it as fatal.
type ConfigError struct {
	Axis int
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("axis %d: configuration error: %v", e.Axis, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Registry owns the fixed-capacity axis arena. Axes are appended at setup and
// never removed; ids are dense from 0.
type Registry struct {
	axes  [MaxAxes]Axis
	count int
	log   *logrus.Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		log: core.ComponentLogger("stepgen"),
	}
}

// Register binds a new axis to port and returns its id. A degreesPerStep that
// is not a positive finite number is clamped to DefaultDegreesPerStep.
func (r *Registry) Register(port core.StepperBackend, stepPin, dirPin core.GPIOPin, degreesPerStep float64) (int, error) {
	if r.count >= MaxAxes {
		return -1, &ConfigError{Axis: r.count, Err: ErrTooManyAxes}
	}
	if port == nil {
		return -1, &ConfigError{Axis: r.count, Err: errors.New("nil port binding")}
	}

	if !validFactor(degreesPerStep) {
		r.log.WithField("axis", r.count).Warnf("degrees_per_step %v is not a positive number, using %v", degreesPerStep, DefaultDegreesPerStep)
		degreesPerStep = DefaultDegreesPerStep
	}

	if err := port.Init(stepPin, dirPin); err != nil {
		return -1, &ConfigError{Axis: r.count, Err: errors.Wrap(err, "init port")}
	}

	id := r.count
	a := &r.axes[id]
	a.id = id
	a.name = fmt.Sprintf("axis%d", id)
	a.backend = port
	a.stepPin = stepPin
	a.dirPin = dirPin
	a.degreesPerStep = degreesPerStep
	a.reduction = 1.0
	a.direction = CW
	r.count++

	r.SetSpeed(id, DefaultSpeedRPM)

	r.log.WithFields(logrus.Fields{
		"axis":    id,
		"backend": port.GetName(),
		"step":    core.PinName(stepPin),
		"dir":     core.PinName(dirPin),
	}).Debug("axis registered")

	return id, nil
}

// Count returns the number of registered axes
func (r *Registry) Count() int {
	return r.count
}

// Axis returns the axis with the given id, or nil
func (r *Registry) Axis(id int) *Axis {
	if id < 0 || id >= r.count {
		return nil
	}
	return &r.axes[id]
}

// Axes returns all registered axes in id order
func (r *Registry) Axes() []*Axis {
	out := make([]*Axis, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = &r.axes[i]
	}
	return out
}

// Lookup returns the id of the named axis, or -1
func (r *Registry) Lookup(name string) int {
	for i := 0; i < r.count; i++ {
		if r.axes[i].name == name {
			return i
		}
	}
	return -1
}

// SetName labels an axis for logs and configuration lookups
func (r *Registry) SetName(id int, name string) {
	if a := r.Axis(id); a != nil && name != "" {
		a.name = name
	}
}

// SetReduction sets the gear/belt factor; non-positive or non-finite ratios
// fall back to 1
func (r *Registry) SetReduction(id int, ratio float64) {
	a := r.Axis(id)
	if a == nil {
		return
	}
	if !validFactor(ratio) {
		ratio = 1.0
	}
	a.reduction = ratio
}

// validFactor reports whether v is positive and finite (NaN compares false)
func validFactor(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// SetRange sets the inclusive soft limits in joint units
func (r *Registry) SetRange(id int, min, max float64) {
	a := r.Axis(id)
	if a == nil {
		return
	}
	if min > max {
		min, max = max, min
	}
	a.minRange = min
	a.maxRange = max
	a.hasRange = true
}

// SetSpeed stores the maximum speed given in motor rpm. Negative values stop
// the axis from limiting motion time, values above MaxSpeedRPM are capped.
func (r *Registry) SetSpeed(id int, rpm float64) {
	a := r.Axis(id)
	if a == nil {
		return
	}
	if rpm < 0 {
		rpm = 0
	}
	if rpm > MaxSpeedRPM {
		rpm = MaxSpeedRPM
	}
	// rpm -> deg/s -> steps/s
	a.maxSpeed = rpm * 360.0 / 60.0 / a.degreesPerStep
}

// ReverseDirection swaps CW and CCW for a motor mounted upside down
func (r *Registry) ReverseDirection(id int, reverse bool) {
	if a := r.Axis(id); a != nil {
		a.reversed = reverse
	}
}

// SetMicrostepping divides the resolution by the driver step division.
// The speed is reset to DefaultSpeedRPM since steps/s changed meaning.
func (r *Registry) SetMicrostepping(id int, factor int) {
	a := r.Axis(id)
	if a == nil {
		return
	}
	if factor < 1 {
		factor = 1
	}
	a.degreesPerStep /= float64(factor)
	r.SetSpeed(id, DefaultSpeedRPM)
}

// SetEnablePin attaches a driver enable line to an axis
func (r *Registry) SetEnablePin(id int, driver core.GPIODriver, pin core.GPIOPin, invert bool) error {
	a := r.Axis(id)
	if a == nil {
		return nil
	}
	if err := driver.ConfigureOutput(pin); err != nil {
		return &ConfigError{Axis: id, Err: errors.Wrap(err, "enable pin")}
	}
	a.enDriver = driver
	a.enPin = pin
	a.hasEnable = true
	a.invertEnable = invert
	a.Disable()
	return nil
}

// EnableAll drives every enable line
func (r *Registry) EnableAll(on bool) {
	for i := 0; i < r.count; i++ {
		if on {
			r.axes[i].Enable()
		} else {
			r.axes[i].Disable()
		}
	}
}
