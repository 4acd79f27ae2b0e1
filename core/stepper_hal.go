package core

// StepperBackend is the port binding of one axis: the step/direction output
// pair. The runner produces the square wave itself, so a backend only has to
// drive levels; it never times anything.
type StepperBackend interface {
	// Init configures both lines as outputs and parks them low
	Init(stepPin, dirPin GPIOPin) error

	// SetStep drives the step line to the given level
	SetStep(high bool)

	// SetDirection sets the direction output
	// dir: true = reverse (CCW), false = forward (CW)
	SetDirection(dir bool)

	// Stop returns the step line to its idle level
	Stop()

	// GetName returns backend implementation name
	GetName() string
}
