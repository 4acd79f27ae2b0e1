//go:build tinygo

package core

import "sync/atomic"

var systemMicrosValue uint32

// getSystemMicros returns the last value latched by the board
func getSystemMicros() uint32 {
	return atomic.LoadUint32(&systemMicrosValue)
}

// setSystemMicros latches a hardware timer reading
func setSystemMicros(us uint32) {
	atomic.StoreUint32(&systemMicrosValue, us)
}
