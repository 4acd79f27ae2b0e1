//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 TIMER peripheral: free-running 64-bit counter at 1MHz
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock is a no-op on the RP2040; the runtime starts the tick generator
func InitClock() {}

// GetHardwareTime reads the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}
