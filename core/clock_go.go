//go:build !tinygo

package core

import (
	"sync/atomic"
	"time"
)

var (
	bootTime   = time.Now()
	timeOffset atomic.Uint32
)

// getSystemMicros derives the counter from the Go monotonic clock, truncated to 32 bits
func getSystemMicros() uint32 {
	return uint32(time.Since(bootTime).Microseconds()) + timeOffset.Load()
}

// setSystemMicros shifts the counter so that it reads us right now
func setSystemMicros(us uint32) {
	timeOffset.Store(us - uint32(time.Since(bootTime).Microseconds()))
}
