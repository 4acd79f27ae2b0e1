package stepgen

import (
	"sync/atomic"

	"scara/core"
)

// Directions ClockWise and CounterClockWise
const (
	CW  = 1
	CCW = -1
)

// MinPulseInterval is the smallest half-period the runner accepts (µs).
// An interval of zero with steps remaining would spin the step line as fast as
// the loop can poll.
const MinPulseInterval = 1.0

// Axis is one registered stepper: its port binding, mechanical constants and
// the working state of the motion in flight
type Axis struct {
	id   int
	name string

	// Port binding (owned by the I/O collaborator)
	backend core.StepperBackend
	stepPin core.GPIOPin
	dirPin  core.GPIOPin

	// Optional driver enable line
	enDriver     core.GPIODriver
	enPin        core.GPIOPin
	hasEnable    bool
	invertEnable bool

	// Mechanical constants
	degreesPerStep float64 // Effective resolution after microstepping
	reduction      float64 // Motor degrees per joint degree (or mm)
	minRange       float64 // Soft limits, joint units
	maxRange       float64
	hasRange       bool
	maxSpeed       float64 // steps/s
	reversed       bool

	// Position state
	position     float64 // Joint position, authoritative (open loop)
	direction    int     // CW or CCW
	stepPosition int64   // Motor steps counted since boot

	// Motion in flight
	targetSteps int64
	remaining   atomic.Int64
	interval    float64 // Half-period in µs
	lastPulse   uint32
	stepHigh    bool
	fresh       bool // Prepared but not yet stamped by the runner
}

// ID returns the axis index
func (a *Axis) ID() int { return a.id }

// Name returns the configured axis name
func (a *Axis) Name() string { return a.name }

// DegreesPerStep returns the effective resolution
func (a *Axis) DegreesPerStep() float64 { return a.degreesPerStep }

// Reduction returns the gear/belt factor
func (a *Axis) Reduction() float64 { return a.reduction }

// Range returns the soft limits; ok is false when no range was configured
func (a *Axis) Range() (min, max float64, ok bool) {
	return a.minRange, a.maxRange, a.hasRange
}

// InRange reports whether pos lies within the soft limits (inclusive)
func (a *Axis) InRange(pos float64) bool {
	if !a.hasRange {
		return true
	}
	return pos >= a.minRange && pos <= a.maxRange
}

// MaxSpeed returns the configured speed in steps/s
func (a *Axis) MaxSpeed() float64 { return a.maxSpeed }

// Reversed reports whether the direction line is inverted
func (a *Axis) Reversed() bool { return a.reversed }

// Position returns the joint-space position
func (a *Axis) Position() float64 { return a.position }

// SetPosition overwrites the joint-space position (homing, G92)
func (a *Axis) SetPosition(pos float64) { a.position = pos }

// AddPosition commits a displacement
func (a *Axis) AddPosition(d float64) { a.position += d }

// Direction returns the commanded rotation sense of the last motion
func (a *Axis) Direction() int { return a.direction }

// StepPosition returns the signed count of completed motor steps
func (a *Axis) StepPosition() int64 { return a.stepPosition }

// TargetSteps returns the step count of the motion in flight
func (a *Axis) TargetSteps() int64 { return a.targetSteps }

// RemainingSteps returns the steps still to be produced
func (a *Axis) RemainingSteps() int64 { return a.remaining.Load() }

// PulseInterval returns the half-period of the motion in flight (µs)
func (a *Axis) PulseInterval() float64 { return a.interval }

// Busy reports whether the axis has steps left
func (a *Axis) Busy() bool { return a.remaining.Load() > 0 }

// Prepare loads a motion: the direction line is set from the sign of steps
// (XOR the reversal flag), then the step count and half-period are stored
// together. An axis with no steps keeps its direction line untouched.
// Must not be called while the runner is stepping this axis.
func (a *Axis) Prepare(steps int64, interval float64) {
	switch {
	case steps > 0:
		a.setDirection(CW)
	case steps < 0:
		a.setDirection(CCW)
		steps = -steps
	}

	if interval < MinPulseInterval {
		interval = MinPulseInterval
	}
	a.interval = interval
	a.targetSteps = steps
	a.fresh = steps > 0
	a.remaining.Store(steps)
}

// setDirection drives the direction line; CW is low unless the axis is reversed
func (a *Axis) setDirection(dir int) {
	a.direction = dir
	level := dir == CCW
	if a.reversed {
		level = !level
	}
	a.backend.SetDirection(level)
}

// consumeStep counts one completed step unless a halt got there first
func (a *Axis) consumeStep() (left int64, ok bool) {
	for {
		cur := a.remaining.Load()
		if cur <= 0 {
			return 0, false
		}
		if a.remaining.CompareAndSwap(cur, cur-1) {
			return cur - 1, true
		}
	}
}

// halt forces the remaining step count to zero and returns what was dropped
func (a *Axis) halt() int64 {
	return a.remaining.Swap(0)
}

// Enable asserts the driver enable line
func (a *Axis) Enable() {
	if a.hasEnable {
		_ = a.enDriver.SetPin(a.enPin, a.invertEnable)
	}
}

// Disable releases the driver enable line (motor free-wheels)
func (a *Axis) Disable() {
	if a.hasEnable {
		_ = a.enDriver.SetPin(a.enPin, !a.invertEnable)
	}
}
