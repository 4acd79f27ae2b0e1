package planner

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"scara/core"
	"scara/standalone/stepgen"
)

// Coupling is a superposition correction between two mechanically linked
// axes: moving Source drags Target through the differential stage, so Target
// receives round(sourceSteps / Ratio) extra steps.
type Coupling struct {
	Name   string
	Source int
	Target int
	Ratio  float64
}

// Planner converts joint displacements to step counts and per-axis pulse
// intervals such that all axes arrive together, then commits the motion to
// the registry for the runner
type Planner struct {
	reg         *stepgen.Registry
	couplings   []Coupling
	minInterval float64
	ready       bool
	log         *logrus.Entry
}

// NewPlanner creates a planner over reg. It rejects motion until SetReady.
func NewPlanner(reg *stepgen.Registry) *Planner {
	return &Planner{
		reg:         reg,
		minInterval: stepgen.MinPulseInterval,
		log:         core.ComponentLogger("planner"),
	}
}

// AddCoupling registers a superposition correction
func (p *Planner) AddCoupling(c Coupling) error {
	if p.reg.Axis(c.Source) == nil || p.reg.Axis(c.Target) == nil {
		return errors.Errorf("coupling %q: unknown axis (%d -> %d)", c.Name, c.Source, c.Target)
	}
	if c.Source == c.Target {
		return errors.Errorf("coupling %q: axis %d coupled to itself", c.Name, c.Source)
	}
	if c.Ratio == 0 || math.IsNaN(c.Ratio) || math.IsInf(c.Ratio, 0) {
		return errors.Errorf("coupling %q: invalid ratio %v", c.Name, c.Ratio)
	}
	p.couplings = append(p.couplings, c)
	return nil
}

// Couplings returns the registered corrections
func (p *Planner) Couplings() []Coupling {
	return p.couplings
}

// SetMinPulseInterval raises the half-period floor (µs)
func (p *Planner) SetMinPulseInterval(us float64) {
	if us < stepgen.MinPulseInterval {
		us = stepgen.MinPulseInterval
	}
	p.minInterval = us
}

// SetReady allows (or blocks) motion commands
func (p *Planner) SetReady(ready bool) {
	p.ready = ready
}

// Ready reports whether motion commands are accepted
func (p *Planner) Ready() bool {
	return p.ready
}

// Positions returns the joint positions in axis order
func (p *Planner) Positions() []float64 {
	axes := p.reg.Axes()
	out := make([]float64, len(axes))
	for i, a := range axes {
		out[i] = a.Position()
	}
	return out
}

// SetPosition overwrites one axis position without moving it
func (p *Planner) SetPosition(axis int, pos float64) {
	if a := p.reg.Axis(axis); a != nil {
		a.SetPosition(pos)
	}
}

// Plan validates and commits a relative motion, returning the expected
// motion time. Either every axis is committed or none is.
func (p *Planner) Plan(displacement []float64) (time.Duration, error) {
	if !p.ready {
		return 0, ErrNotInitialized
	}
	return p.plan(displacement, nil, -1)
}

// PlanAbsolute converts target positions to a displacement and plans it.
// Committed positions are the targets themselves, so repeating the same
// target is a no-op.
func (p *Planner) PlanAbsolute(absolute []float64) (time.Duration, error) {
	if !p.ready {
		return 0, ErrNotInitialized
	}
	if len(absolute) != p.reg.Count() {
		return 0, errors.Wrapf(ErrAxisCount, "got %d values for %d axes", len(absolute), p.reg.Count())
	}

	displacement := make([]float64, len(absolute))
	for i, a := range p.reg.Axes() {
		displacement[i] = absolute[i] - a.Position()
	}
	return p.plan(displacement, absolute, -1)
}

// PlanHoming moves a single axis by delta with its soft limits lifted, since
// its position is not known yet. It is allowed before the planner is ready.
func (p *Planner) PlanHoming(axis int, delta float64) (time.Duration, error) {
	if p.reg.Axis(axis) == nil {
		return 0, errors.Errorf("homing: unknown axis %d", axis)
	}
	displacement := make([]float64, p.reg.Count())
	displacement[axis] = delta
	return p.plan(displacement, nil, axis)
}

// plan runs the range check, step conversion, coupling correction and
// simultaneous-arrival scheduling, and commits only if all of them pass.
// absolute, when set, replaces the committed positions. unlimited names an
// axis whose soft limits are ignored (-1 for none).
func (p *Planner) plan(displacement, absolute []float64, unlimited int) (time.Duration, error) {
	axes := p.reg.Axes()
	if len(displacement) != len(axes) {
		return 0, errors.Wrapf(ErrAxisCount, "got %d values for %d axes", len(displacement), len(axes))
	}
	for _, a := range axes {
		if a.Busy() {
			return 0, ErrMotionInFlight
		}
	}

	// All-or-nothing soft limit check
	for i, a := range axes {
		if i == unlimited {
			continue
		}
		target := a.Position() + displacement[i]
		if absolute != nil {
			target = absolute[i]
		}
		if !a.InRange(target) {
			min, max, _ := a.Range()
			return 0, &RangeError{Axis: i, Name: a.Name(), Target: target, Min: min, Max: max}
		}
	}

	steps := make([]int64, len(axes))
	for i, a := range axes {
		steps[i] = int64(math.Round(displacement[i] * a.Reduction() / a.DegreesPerStep()))
	}
	p.applyCouplings(steps)

	total, err := arrivalTime(axes, steps)
	if err != nil {
		return 0, err
	}
	intervals := p.intervals(steps, total)

	// Commit
	now := core.GetTime()
	for i, a := range axes {
		if absolute != nil {
			a.SetPosition(absolute[i])
		} else {
			a.AddPosition(displacement[i])
		}
		a.Prepare(steps[i], intervals[i])
		if steps[i] != 0 {
			core.RecordTiming(core.EvtMoveCommit, uint8(i), now, uint32(abs64(steps[i])), uint32(intervals[i]))
		}
	}

	duration := time.Duration(total * float64(time.Microsecond))
	p.log.WithFields(logrus.Fields{
		"steps":    steps,
		"duration": duration,
	}).Debug("motion committed")

	return duration, nil
}

// applyCouplings adds the superposition correction terms in registration order
func (p *Planner) applyCouplings(steps []int64) {
	base := make([]int64, len(steps))
	copy(base, steps)
	for _, c := range p.couplings {
		steps[c.Target] += int64(math.Round(float64(base[c.Source]) / c.Ratio))
	}
}

// arrivalTime returns the motion time in µs: the slowest axis at its own
// maximum speed. Axes without speed follow the others.
func arrivalTime(axes []*stepgen.Axis, steps []int64) (float64, error) {
	longest := 0.0
	moving := false
	for i, a := range axes {
		if steps[i] == 0 {
			continue
		}
		moving = true
		if a.MaxSpeed() <= 0 {
			continue
		}
		t := float64(abs64(steps[i])) * 1e6 / a.MaxSpeed()
		if t > longest {
			longest = t
		}
	}
	if moving && longest == 0 {
		return 0, ErrZeroSpeed
	}
	return longest, nil
}

// intervals spreads each axis's edges over the common motion time; two edges
// make one step
func (p *Planner) intervals(steps []int64, total float64) []float64 {
	out := make([]float64, len(steps))
	for i, s := range steps {
		if s == 0 {
			out[i] = total
		} else {
			out[i] = total / (2 * float64(abs64(s)))
		}
		if out[i] < p.minInterval {
			out[i] = p.minInterval
		}
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
