//go:build !tinygo

package core

import "sync"

// State is the saved critical-section state
type State uintptr

// criticalMu stands in for masking interrupts on a hosted OS, where the
// alternate execution context is a goroutine rather than an ISR
var criticalMu sync.Mutex

// disableInterrupts enters the critical section
func disableInterrupts() State {
	criticalMu.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	criticalMu.Unlock()
}
