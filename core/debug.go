package core

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis index
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtMoveCommit = 1 // Motion committed by the planner (v1=steps, v2=interval µs)
	EvtRunStart   = 2 // Runner started a pass loop (v1=busy axes)
	EvtAxisArrive = 3 // Axis counted its last step (v1=step position)
	EvtAxisHalt   = 4 // Remaining steps forced to zero (v1=steps dropped)
	EvtRunDone    = 5 // All axes arrived (v1=elapsed µs)
	EvtEndstop    = 6 // Endstop observed triggered (v1=homing increments)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	logger = newLogger()

	// debugEnabled controls whether debug output is active
	debugEnabled bool

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  = true
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return l
}

// Logger returns the process logger
func Logger() *logrus.Logger {
	return logger
}

// ComponentLogger returns a logger entry tagged with the component name
func ComponentLogger(component string) *logrus.Entry {
	return logger.WithField("component", component)
}

// SetDebugWriter redirects log output (UART, USB CDC, a file).
// nil restores stderr.
func SetDebugWriter(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)
}

// SetDebugEnabled enables or disables debug output.
// Leave it off while benchmarking pulse timing.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
	if enabled {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// RecordTiming captures a timing event in the ring buffer.
// Safe to call from an alternate execution context (halt path).
func RecordTiming(eventType, axis uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	state := disableInterrupts()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Axis:      axis,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	restoreInterrupts(state)
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// DumpTimingRing writes the timing ring to the debug log (call after a fault
// or once a motion has finished, never from inside the runner loop)
func DumpTimingRing() {
	log := ComponentLogger("timing")
	for _, evt := range TimingEvents() {
		log.WithFields(logrus.Fields{
			"axis":  evt.Axis,
			"clock": evt.Clock,
			"v1":    evt.Value1,
			"v2":    evt.Value2,
		}).Debug(timingEventName(evt.EventType))
	}
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := disableInterrupts()
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
	restoreInterrupts(state)
}

func timingEventName(t uint8) string {
	switch t {
	case EvtMoveCommit:
		return "MOVE_COMMIT"
	case EvtRunStart:
		return "RUN_START"
	case EvtAxisArrive:
		return "AXIS_ARRIVE"
	case EvtAxisHalt:
		return "AXIS_HALT"
	case EvtRunDone:
		return "RUN_DONE"
	case EvtEndstop:
		return "ENDSTOP"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}
