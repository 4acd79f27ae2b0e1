package machine

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotImplemented is returned by reserved commands (tool/gripper control)
	ErrNotImplemented = errors.New("tool control not implemented")

	// ErrNoEndstop rejects homing an axis that has no endstop configured
	ErrNoEndstop = errors.New("axis has no endstop")

	// ErrUnknownAxis rejects an axis index outside the registry
	ErrUnknownAxis = errors.New("unknown axis")
)

// HomingError reports an axis whose endstop never triggered within its
// allowed travel. The axis position is left where the search stopped.
type HomingError struct {
	Axis   int
	Name   string
	Travel float64
}

func (e *HomingError) Error() string {
	return fmt.Sprintf("homing axis %d (%s): endstop not triggered after %.3f", e.Axis, e.Name, e.Travel)
}
