package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scara/core"
	"scara/standalone/stepgen"
)

type nopPort struct{ dir bool }

func (p *nopPort) Init(stepPin, dirPin core.GPIOPin) error { return nil }
func (p *nopPort) SetStep(high bool)                       {}
func (p *nopPort) SetDirection(dir bool)                   { p.dir = dir }
func (p *nopPort) Stop()                                   {}
func (p *nopPort) GetName() string                         { return "nop" }

// newScaraPlanner builds the three-joint arm: Z, arm and forearm at 0.45°/step
func newScaraPlanner(t *testing.T) (*Planner, *stepgen.Registry) {
	t.Helper()
	reg := stepgen.NewRegistry()
	reductions := []float64{45, 4.5, 1.92}
	names := []string{"z", "arm", "forearm"}
	for i, r := range reductions {
		id, err := reg.Register(&nopPort{}, core.GPIOPin(2*i), core.GPIOPin(2*i+1), 0.45)
		require.NoError(t, err)
		reg.SetName(id, names[i])
		reg.SetReduction(id, r)
	}
	reg.SetRange(0, 0, 300)
	reg.SetRange(1, -190, 190)
	reg.SetRange(2, -280, 280)

	p := NewPlanner(reg)
	require.NoError(t, p.AddCoupling(Coupling{Name: "superposition", Source: 1, Target: 2, Ratio: 3.875}))
	p.SetReady(true)
	return p, reg
}

func TestPlanRequiresReady(t *testing.T) {
	p, reg := newScaraPlanner(t)
	p.SetReady(false)

	_, err := p.Plan([]float64{0, 10, 0})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = p.PlanAbsolute([]float64{0, 10, 0})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, 0.0, reg.Axis(1).Position())
}

func TestPlanAxisCount(t *testing.T) {
	p, _ := newScaraPlanner(t)
	_, err := p.Plan([]float64{1, 2})
	assert.ErrorIs(t, err, ErrAxisCount)
}

func TestPlanSuperpositionCorrection(t *testing.T) {
	p, reg := newScaraPlanner(t)

	d, err := p.Plan([]float64{0, 10, 0})
	require.NoError(t, err)

	assert.Equal(t, int64(0), reg.Axis(0).TargetSteps())
	assert.Equal(t, int64(100), reg.Axis(1).TargetSteps())
	assert.Equal(t, int64(26), reg.Axis(2).TargetSteps(), "forearm gets round(100/3.875)")
	assert.Equal(t, stepgen.CW, reg.Axis(2).Direction())

	// Arm is slowest: 100 steps at 50 rpm (666.67 steps/s) is 150 ms
	assert.InDelta(t, float64(150*time.Millisecond), float64(d), float64(time.Microsecond))
	assert.InDelta(t, 10.0, reg.Axis(1).Position(), 1e-12)
	assert.Equal(t, 0.0, reg.Axis(2).Position(), "correction does not move the joint")
}

func TestPlanNegativeCorrection(t *testing.T) {
	p, reg := newScaraPlanner(t)

	_, err := p.Plan([]float64{0, -10, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(100), reg.Axis(1).TargetSteps())
	assert.Equal(t, stepgen.CCW, reg.Axis(1).Direction())
	assert.Equal(t, int64(26), reg.Axis(2).TargetSteps())
	assert.Equal(t, stepgen.CCW, reg.Axis(2).Direction())
}

func TestPlanSimultaneousArrival(t *testing.T) {
	p, reg := newScaraPlanner(t)

	_, err := p.Plan([]float64{1, 10, 20})
	require.NoError(t, err)

	var totals []float64
	for _, a := range reg.Axes() {
		totals = append(totals, a.PulseInterval()*2*float64(a.TargetSteps()))
	}
	assert.InDelta(t, totals[0], totals[1], 1)
	assert.InDelta(t, totals[0], totals[2], 1)
}

func TestPlanIdleAxisIntervalIsTotal(t *testing.T) {
	p, reg := newScaraPlanner(t)

	d, err := p.Plan([]float64{0, 10, 0})
	require.NoError(t, err)
	assert.InDelta(t, float64(d/time.Microsecond), reg.Axis(0).PulseInterval(), 1)
	assert.False(t, reg.Axis(0).Busy())
}

func TestPlanRangeRejectionIsAtomic(t *testing.T) {
	p, reg := newScaraPlanner(t)
	_, err := p.Plan([]float64{10, 10, 10})
	require.NoError(t, err)
	for _, a := range reg.Axes() {
		a.Prepare(0, 1)
	}

	before := p.Positions()
	_, err = p.Plan([]float64{5, 5, 300})
	require.Error(t, err)

	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 2, rangeErr.Axis)
	assert.Equal(t, "forearm", rangeErr.Name)
	assert.InDelta(t, 310.0, rangeErr.Target, 1e-9)

	assert.Equal(t, before, p.Positions())
	for _, a := range reg.Axes() {
		assert.False(t, a.Busy())
	}
}

func TestPlanZeroDisplacementIsNoop(t *testing.T) {
	p, reg := newScaraPlanner(t)

	d, err := p.Plan([]float64{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
	for _, a := range reg.Axes() {
		assert.Equal(t, int64(0), a.RemainingSteps())
		assert.Equal(t, 0.0, a.Position())
	}
}

func TestPlanRejectsWhileInFlight(t *testing.T) {
	p, _ := newScaraPlanner(t)

	_, err := p.Plan([]float64{0, 10, 0})
	require.NoError(t, err)
	_, err = p.Plan([]float64{0, 10, 0})
	assert.ErrorIs(t, err, ErrMotionInFlight)
}

func TestPlanAbsoluteRoundTrip(t *testing.T) {
	p, reg := newScaraPlanner(t)
	runner := stepgen.NewRunner(reg, nil)
	for _, a := range reg.Axes() {
		a.Prepare(0, 1)
	}

	_, err := p.PlanAbsolute([]float64{100, 45.5, -30})
	require.NoError(t, err)
	runner.HaltAll()
	assert.Equal(t, []float64{100, 45.5, -30}, p.Positions())

	d, err := p.PlanAbsolute([]float64{100, 45.5, -30})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
	assert.False(t, runner.Busy())
}

func TestPlanZeroSpeed(t *testing.T) {
	p, reg := newScaraPlanner(t)
	reg.SetSpeed(1, 0)
	reg.SetSpeed(2, 0)

	_, err := p.Plan([]float64{0, 10, 0})
	assert.ErrorIs(t, err, ErrZeroSpeed)
	assert.Equal(t, 0.0, reg.Axis(1).Position())

	// A stalled axis follows the others when one of them has speed
	reg.SetSpeed(2, 50)
	_, err = p.Plan([]float64{0, 10, 0})
	require.NoError(t, err)
}

func TestPlanHomingIgnoresLimits(t *testing.T) {
	p, reg := newScaraPlanner(t)
	p.SetReady(false)

	_, err := p.PlanHoming(0, -5)
	require.NoError(t, err)
	assert.Equal(t, -5.0, reg.Axis(0).Position())
	assert.Equal(t, stepgen.CCW, reg.Axis(0).Direction())
	assert.Equal(t, int64(500), reg.Axis(0).TargetSteps())

	_, err = p.PlanHoming(7, 1)
	assert.Error(t, err)
}

func TestAddCouplingValidation(t *testing.T) {
	p, _ := newScaraPlanner(t)

	assert.Error(t, p.AddCoupling(Coupling{Name: "bad", Source: 0, Target: 9, Ratio: 1}))
	assert.Error(t, p.AddCoupling(Coupling{Name: "self", Source: 1, Target: 1, Ratio: 1}))
	assert.Error(t, p.AddCoupling(Coupling{Name: "zero", Source: 0, Target: 1, Ratio: 0}))
	assert.Len(t, p.Couplings(), 1)
}

func TestMinPulseIntervalFloor(t *testing.T) {
	p, reg := newScaraPlanner(t)
	p.SetMinPulseInterval(5000)

	_, err := p.Plan([]float64{0, 10, 0})
	require.NoError(t, err)
	assert.Equal(t, 5000.0, reg.Axis(1).PulseInterval())

	p.SetMinPulseInterval(0)
	assert.Equal(t, stepgen.MinPulseInterval, p.minInterval)
}
