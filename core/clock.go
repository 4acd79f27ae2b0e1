package core

// Monotonic microsecond clock shared by the pulse runner and the wait command.
// The counter is 32 bits wide and wraps every 2^32 µs (~71.6 minutes); all
// comparisons go through Elapsed so a wrap in the middle of a motion is harmless.

// ClockFreq is the resolution of the system clock (1MHz, one tick per microsecond)
const ClockFreq = 1000000

// Clock is a free-running microsecond counter, read-only to the motion core
type Clock interface {
	Micros() uint32
}

// ClockFunc adapts a plain function (e.g. a hardware timer read) to Clock
type ClockFunc func() uint32

// Micros calls f
func (f ClockFunc) Micros() uint32 {
	return f()
}

// clockSource overrides the build-specific default when set by target code
var clockSource ClockFunc

// SetClockSource registers a hardware clock read function.
// Passing nil restores the default source for this build.
func SetClockSource(f ClockFunc) {
	clockSource = f
}

// SystemClock returns the process clock
func SystemClock() Clock {
	return ClockFunc(GetTime)
}

// GetTime returns the current system time in microseconds
func GetTime() uint32 {
	if clockSource != nil {
		return clockSource()
	}
	return getSystemMicros()
}

// SetTime sets the current system time (for boards that latch a hardware
// counter from their main loop, and for testing)
func SetTime(us uint32) {
	setSystemMicros(us)
}

// Elapsed returns the time between since and now, tolerating one wrap of the counter
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// DelayMicros busy-waits on clock for at least us microseconds
func DelayMicros(clock Clock, us uint32) {
	start := clock.Micros()
	for Elapsed(clock.Micros(), start) < us {
	}
}
