package planner

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotInitialized rejects motion before axis setup (and homing, when required)
	ErrNotInitialized = errors.New("motion system not initialized")

	// ErrMotionInFlight rejects a plan while the previous motion has not been run
	ErrMotionInFlight = errors.New("previous motion still in flight")

	// ErrAxisCount rejects a vector whose length differs from the axis count
	ErrAxisCount = errors.New("vector length does not match axis count")

	// ErrZeroSpeed rejects a motion whose moving axes all have zero speed
	ErrZeroSpeed = errors.New("moving axes have no speed configured")
)

// RangeError reports the first axis whose target falls outside its soft limits.
// Nothing was committed when it is returned.
type RangeError struct {
	Axis   int
	Name   string
	Target float64
	Min    float64
	Max    float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("axis %d (%s) out of range: target %.3f not in [%.3f, %.3f]",
		e.Axis, e.Name, e.Target, e.Min, e.Max)
}
