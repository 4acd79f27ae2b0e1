package stepgen

import (
	"github.com/sirupsen/logrus"

	"scara/core"
)

// Runner is the cooperative pulse scheduler. Each pass polls every axis and
// toggles its step line once the half-period has elapsed; a step counts on the
// falling edge. Nothing else runs on the thread while Run is looping.
type Runner struct {
	reg     *Registry
	clock   core.Clock
	running bool
	started uint32
	log     *logrus.Entry
}

// NewRunner creates a runner over reg driven by clock
func NewRunner(reg *Registry, clock core.Clock) *Runner {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Runner{
		reg:   reg,
		clock: clock,
		log:   core.ComponentLogger("runner"),
	}
}

// Busy reports whether any axis still has steps to produce
func (r *Runner) Busy() bool {
	for i := 0; i < r.reg.count; i++ {
		if r.reg.axes[i].Busy() {
			return true
		}
	}
	return false
}

// Run steps all axes until every one has arrived. It never yields; the only
// way to end it early is Halt from another execution context.
func (r *Runner) Run() {
	for r.Tick() {
	}
}

// Tick performs one scheduler pass and reports whether motion is still in
// progress. It can be driven from an external loop instead of Run; the timing
// is identical.
func (r *Runner) Tick() bool {
	if !r.running {
		if !r.Busy() {
			return false
		}
		r.start()
	}

	busy := false
	for i := 0; i < r.reg.count; i++ {
		a := &r.reg.axes[i]
		if a.fresh {
			// Prepared while a halted pass loop had not finished yet
			a.fresh = false
			a.lastPulse = r.clock.Micros()
			if a.stepHigh {
				a.stepHigh = false
				a.backend.Stop()
			}
		}
		if a.remaining.Load() <= 0 {
			if a.stepHigh {
				// Halted mid-pulse: park the line so the next motion starts on a rising edge
				a.stepHigh = false
				a.backend.Stop()
			}
			continue
		}
		busy = true
		r.step(a)
	}

	if !busy {
		r.finish()
	}
	return busy
}

// start stamps every busy axis so the first edge comes one interval from now
func (r *Runner) start() {
	now := r.clock.Micros()
	busy := uint32(0)
	for i := 0; i < r.reg.count; i++ {
		a := &r.reg.axes[i]
		if a.Busy() {
			a.lastPulse = now
			busy++
		}
		a.fresh = false
	}
	r.running = true
	r.started = now
	core.RecordTiming(core.EvtRunStart, 0, now, busy, 0)
}

func (r *Runner) finish() {
	now := r.clock.Micros()
	r.running = false
	for i := 0; i < r.reg.count; i++ {
		r.reg.axes[i].targetSteps = 0
	}
	elapsed := core.Elapsed(now, r.started)
	core.RecordTiming(core.EvtRunDone, 0, now, elapsed, 0)
	r.log.WithField("elapsed_us", elapsed).Debug("all axes arrived")
}

// step advances the square wave of one axis if its half-period has elapsed
func (r *Runner) step(a *Axis) {
	now := r.clock.Micros()
	if float64(core.Elapsed(now, a.lastPulse)) < a.interval {
		return
	}

	a.stepHigh = !a.stepHigh
	a.backend.SetStep(a.stepHigh)
	a.lastPulse = now

	if a.stepHigh {
		return
	}

	// Trailing edge: one full step done
	left, ok := a.consumeStep()
	if !ok {
		return
	}
	a.stepPosition += int64(a.direction)
	if left == 0 {
		core.RecordTiming(core.EvtAxisArrive, uint8(a.id), now, uint32(a.stepPosition), 0)
	}
}

// Halt forces one axis's remaining step count to zero. This is the only write
// allowed from outside the runner while Run is looping (endstop interrupt,
// emergency stop goroutine).
func (r *Runner) Halt(id int) {
	a := r.reg.Axis(id)
	if a == nil {
		return
	}
	dropped := a.halt()
	if dropped > 0 {
		core.RecordTiming(core.EvtAxisHalt, uint8(id), r.clock.Micros(), uint32(dropped), 0)
	}
}

// HaltAll halts every axis
func (r *Runner) HaltAll() {
	for i := 0; i < r.reg.count; i++ {
		r.Halt(i)
	}
}
