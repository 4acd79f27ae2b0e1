package machine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"scara/core"
	"scara/standalone"
	"scara/standalone/config"
	"scara/standalone/gcode"
	"scara/standalone/planner"
	"scara/standalone/stepgen"
)

// waitChunk bounds a single busy delay so long waits never overflow the clock
const waitChunk = 100000 // µs

// defaultHomingStep is used when an axis has no homing_step configured
const defaultHomingStep = -0.5

// Manager coordinates the axis registry, planner, runner and command front
// ends of one machine
type Manager struct {
	config      *standalone.MachineConfig
	clock       core.Clock
	registry    *stepgen.Registry
	runner      *stepgen.Runner
	planner     *planner.Planner
	endstops    map[int]*core.Endstop
	parser      *gcode.Parser
	interpreter *gcode.Interpreter

	homed    []bool
	feed     float64
	motorsOn bool

	// Serial interface
	inputBuffer  []byte
	outputBuffer []byte

	// Status
	initialized bool
	running     atomic.Bool

	log *logrus.Entry
}

// NewManager creates a manager from a JSON configuration
func NewManager(configData []byte) (*Manager, error) {
	cfg, err := config.LoadConfig(configData)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return NewManagerWithConfig(cfg)
}

// NewManagerWithConfig creates a manager with an existing config
func NewManagerWithConfig(cfg *standalone.MachineConfig) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("nil machine config")
	}
	return &Manager{
		config:       cfg,
		clock:        core.SystemClock(),
		parser:       gcode.NewParser(),
		endstops:     make(map[int]*core.Endstop),
		inputBuffer:  make([]byte, 0, 256),
		outputBuffer: make([]byte, 0, 256),
		log:          core.ComponentLogger("machine"),
	}, nil
}

// SetClock replaces the time source used by the runner and Wait. Must be
// called before Initialize.
func (m *Manager) SetClock(clock core.Clock) {
	if clock != nil {
		m.clock = clock
	}
}

// Initialize registers every configured axis in declared order and sets up
// couplings, enable lines and endstops. Any failure is a configuration error
// the caller should treat as fatal.
func (m *Manager) Initialize(gpioDriver core.GPIODriver) error {
	if m.initialized {
		return errors.New("already initialized")
	}
	if gpioDriver == nil {
		gpioDriver = core.MustGPIO()
	}

	reg := stepgen.NewRegistry()
	for i, axis := range m.config.Axes {
		if err := m.registerAxis(reg, gpioDriver, i, axis); err != nil {
			return err
		}
	}

	plan := planner.NewPlanner(reg)
	if m.config.MinPulseInterval > 0 {
		plan.SetMinPulseInterval(m.config.MinPulseInterval)
	}
	for _, c := range m.config.Couplings {
		err := plan.AddCoupling(planner.Coupling{
			Name:   c.Name,
			Source: m.config.AxisIndex(c.Source),
			Target: m.config.AxisIndex(c.Target),
			Ratio:  c.Ratio,
		})
		if err != nil {
			return &stepgen.ConfigError{Axis: m.config.AxisIndex(c.Target), Err: err}
		}
	}

	for name, es := range m.config.Endstops {
		idx := m.config.AxisIndex(name)
		if idx < 0 {
			return &stepgen.ConfigError{Axis: -1, Err: errors.Errorf("endstop for unknown axis %q", name)}
		}
		pin, err := core.LookupPin(es.Pin)
		if err != nil {
			return &stepgen.ConfigError{Axis: idx, Err: errors.Wrap(err, "endstop")}
		}
		endstop, err := core.NewEndstop(gpioDriver, pin, es.PullUp, es.Invert)
		if err != nil {
			return &stepgen.ConfigError{Axis: idx, Err: errors.Wrap(err, "endstop")}
		}
		m.endstops[idx] = endstop
	}

	m.registry = reg
	m.planner = plan
	m.runner = stepgen.NewRunner(reg, m.clock)
	m.interpreter = gcode.NewInterpreter(m.config, m, m.SendResponse)
	m.homed = make([]bool, reg.Count())
	m.initialized = true
	m.updateReady()

	m.log.WithFields(logrus.Fields{
		"axes":      reg.Count(),
		"couplings": len(m.config.Couplings),
		"endstops":  len(m.endstops),
		"ready":     plan.Ready(),
	}).Info("machine initialized")

	return nil
}

// registerAxis applies one axis config in the order the registry expects:
// resolution, microstepping, reduction, range, reversal, then speed
func (m *Manager) registerAxis(reg *stepgen.Registry, gpioDriver core.GPIODriver, i int, axis standalone.AxisConfig) error {
	stepPin, err := core.LookupPin(axis.StepPin)
	if err != nil {
		return &stepgen.ConfigError{Axis: i, Err: errors.Wrap(err, "step_pin")}
	}
	dirPin, err := core.LookupPin(axis.DirPin)
	if err != nil {
		return &stepgen.ConfigError{Axis: i, Err: errors.Wrap(err, "dir_pin")}
	}

	id, err := reg.Register(core.NewGPIOBackend(gpioDriver), stepPin, dirPin, axis.DegreesPerStep)
	if err != nil {
		return err
	}

	if axis.Name != "" {
		reg.SetName(id, axis.Name)
	}
	if axis.Microstepping > 1 {
		reg.SetMicrostepping(id, axis.Microstepping)
	}
	reg.SetReduction(id, axis.Reduction)
	if axis.MinPosition != axis.MaxPosition {
		reg.SetRange(id, axis.MinPosition, axis.MaxPosition)
	}
	reg.ReverseDirection(id, axis.InvertDir)
	if axis.SpeedRPM > 0 {
		reg.SetSpeed(id, axis.SpeedRPM)
	}

	if axis.EnablePin != "" {
		enPin, err := core.LookupPin(axis.EnablePin)
		if err != nil {
			return &stepgen.ConfigError{Axis: i, Err: errors.Wrap(err, "enable_pin")}
		}
		if err := reg.SetEnablePin(id, gpioDriver, enPin, axis.InvertEnable); err != nil {
			return err
		}
	}
	return nil
}

// updateReady opens the planner once setup (and homing, when required) is done
func (m *Manager) updateReady() {
	ready := m.initialized
	if ready && m.config.RequireHoming {
		for idx := range m.endstops {
			if !m.homed[idx] {
				ready = false
			}
		}
	}
	m.planner.SetReady(ready)
}

// Registry returns the axis registry (nil before Initialize)
func (m *Manager) Registry() *stepgen.Registry {
	return m.registry
}

// AxisCount returns the number of registered axes
func (m *Manager) AxisCount() int {
	if m.registry == nil {
		return 0
	}
	return m.registry.Count()
}

// Ready reports whether motion commands are accepted
func (m *Manager) Ready() bool {
	return m.initialized && m.planner.Ready()
}

// Move plans a relative motion and runs it to completion
func (m *Manager) Move(displacement []float64) error {
	if !m.initialized {
		return planner.ErrNotInitialized
	}
	d, err := m.planner.Plan(displacement)
	if err != nil {
		return err
	}
	m.run(d)
	return nil
}

// MoveTo plans a motion to absolute joint positions and runs it to completion
func (m *Manager) MoveTo(target []float64) error {
	if !m.initialized {
		return planner.ErrNotInitialized
	}
	d, err := m.planner.PlanAbsolute(target)
	if err != nil {
		return err
	}
	m.run(d)
	return nil
}

// run blocks until the committed motion is done or halted
func (m *Manager) run(expected time.Duration) {
	start := m.clock.Micros()
	m.runner.Run()
	elapsed := core.Elapsed(m.clock.Micros(), start)

	m.log.WithFields(logrus.Fields{
		"expected": expected,
		"elapsed":  time.Duration(elapsed) * time.Microsecond,
	}).Debug("motion done")
}

// SetFeed sets every axis speed from a feed in joint units per minute:
// rpm = feed * reduction / 360. A non-positive feed is ignored.
func (m *Manager) SetFeed(feed float64) error {
	if !m.Ready() {
		return planner.ErrNotInitialized
	}
	if feed <= 0 || math.IsNaN(feed) {
		m.log.WithField("feed", feed).Warn("ignoring non-positive feed")
		return nil
	}

	for i, a := range m.registry.Axes() {
		m.registry.SetSpeed(i, feed*a.Reduction()/360)
	}
	m.feed = feed
	return nil
}

// Wait busy-delays for seconds
func (m *Manager) Wait(seconds float64) {
	if seconds <= 0 || math.IsNaN(seconds) {
		return
	}
	remaining := seconds * 1e6
	for remaining > 0 {
		chunk := math.Min(remaining, waitChunk)
		core.DelayMicros(m.clock, uint32(chunk))
		remaining -= chunk
	}
}

// Home drives one axis in fixed increments toward its endstop until the
// switch is asserted, then zeroes its position. Soft limits are lifted while
// searching; the search gives up after the range span plus the homing margin.
func (m *Manager) Home(axis int) error {
	if !m.initialized {
		return planner.ErrNotInitialized
	}
	a := m.registry.Axis(axis)
	if a == nil {
		return errors.Wrapf(ErrUnknownAxis, "home %d", axis)
	}
	endstop, ok := m.endstops[axis]
	if !ok {
		return errors.Wrapf(ErrNoEndstop, "home %s", a.Name())
	}

	step := m.config.Axes[axis].HomingStep
	if step == 0 {
		step = defaultHomingStep
	}
	limit := 360.0
	if min, max, ok := a.Range(); ok {
		limit = max - min
	}
	limit += m.config.HomingMargin

	log := m.log.WithField("axis", a.Name())
	log.Info("homing")

	travel := 0.0
	for !endstop.Triggered() {
		if math.Abs(travel) >= limit {
			m.homed[axis] = false
			m.updateReady()
			return &HomingError{Axis: axis, Name: a.Name(), Travel: travel}
		}
		d, err := m.planner.PlanHoming(axis, step)
		if err != nil {
			return err
		}
		m.run(d)
		travel += step
	}

	core.RecordTiming(core.EvtEndstop, uint8(axis), m.clock.Micros(), uint32(a.StepPosition()), 0)
	m.planner.SetPosition(axis, 0)
	m.homed[axis] = true
	m.updateReady()

	log.WithField("travel", travel).Info("homed")
	return nil
}

// HomeAll homes every axis that has an endstop, in declared order
func (m *Manager) HomeAll() error {
	if !m.initialized {
		return planner.ErrNotInitialized
	}
	if len(m.endstops) == 0 {
		return ErrNoEndstop
	}
	for i := 0; i < m.registry.Count(); i++ {
		if _, ok := m.endstops[i]; !ok {
			continue
		}
		if err := m.Home(i); err != nil {
			return err
		}
	}
	return nil
}

// SetPosition overwrites one axis position without moving it (G92)
func (m *Manager) SetPosition(axis int, pos float64) {
	if m.initialized {
		m.planner.SetPosition(axis, pos)
	}
}

// Positions returns the joint positions in declared order
func (m *Manager) Positions() []float64 {
	if !m.initialized {
		return nil
	}
	return m.planner.Positions()
}

// EnableMotors drives the stepper driver enable lines
func (m *Manager) EnableMotors(on bool) {
	if !m.initialized {
		return
	}
	m.registry.EnableAll(on)
	m.motorsOn = on
}

// Tool is reserved for gripper control
func (m *Manager) Tool(code int) error {
	m.log.WithField("code", code).Warn("tool control requested")
	return ErrNotImplemented
}

// HaltAxis stops one axis where it is. Safe to call from another goroutine
// while a motion runs (endstop watcher).
func (m *Manager) HaltAxis(axis int) {
	if m.runner != nil {
		m.runner.Halt(axis)
	}
}

// HaltAll stops every axis and leaves the running state. Safe to call from
// another goroutine, e.g. a signal handler; unlike EmergencyStop it leaves
// the homing state alone.
func (m *Manager) HaltAll() {
	m.running.Store(false)
	if m.runner != nil {
		m.runner.HaltAll()
	}
}

// Endstops returns the configured endstops by axis index
func (m *Manager) Endstops() map[int]*core.Endstop {
	out := make(map[int]*core.Endstop, len(m.endstops))
	for axis, es := range m.endstops {
		out[axis] = es
	}
	return out
}

// EmergencyStop halts every axis. Positions are no longer trustworthy, so
// homing flags are cleared.
func (m *Manager) EmergencyStop() {
	if m.runner == nil {
		return
	}
	m.runner.HaltAll()
	for i := range m.homed {
		m.homed[i] = false
	}
	m.updateReady()
	m.log.Warn("emergency stop")
}

// ProcessLine processes a line of G-code
func (m *Manager) ProcessLine(line string) error {
	if !m.initialized {
		return planner.ErrNotInitialized
	}

	cmd, err := m.parser.ParseLine(line)
	if err != nil {
		return err
	}

	if cmd != nil {
		return m.interpreter.Execute(cmd)
	}
	return nil
}

// ProcessByte processes a single byte of input (for serial streaming).
// Each completed line is answered with "ok" or "!<error>".
func (m *Manager) ProcessByte(b byte) error {
	if b != '\n' && b != '\r' {
		m.inputBuffer = append(m.inputBuffer, b)
		return nil
	}

	line := string(m.inputBuffer)
	m.inputBuffer = m.inputBuffer[:0]

	for len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return nil
	}

	if err := m.ProcessLine(line); err != nil {
		m.SendResponse("!" + err.Error() + "\n")
		return err
	}
	m.SendResponse("ok\n")
	return nil
}

// SendResponse queues a response to be sent to the host
func (m *Manager) SendResponse(response string) {
	m.outputBuffer = append(m.outputBuffer, response...)
}

// GetOutput returns any pending output and clears the buffer
func (m *Manager) GetOutput() []byte {
	if len(m.outputBuffer) == 0 {
		return nil
	}

	output := make([]byte, len(m.outputBuffer))
	copy(output, m.outputBuffer)
	m.outputBuffer = m.outputBuffer[:0]
	return output
}

// Start begins operation
func (m *Manager) Start() error {
	if !m.initialized {
		return planner.ErrNotInitialized
	}

	m.running.Store(true)
	m.EnableMotors(true)
	m.SendResponse("SCARA ready\n")
	return nil
}

// IsRunning returns whether the manager is running
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// State returns a snapshot of the machine state
func (m *Manager) State() *standalone.MachineState {
	state := &standalone.MachineState{
		AbsoluteMode: true,
		FeedRate:     m.feed,
		MotorsOn:     m.motorsOn,
	}
	if !m.initialized {
		return state
	}
	state.Positions = m.planner.Positions()
	state.Homed = append([]bool(nil), m.homed...)
	state.AbsoluteMode = m.interpreter.AbsoluteMode()
	return state
}
