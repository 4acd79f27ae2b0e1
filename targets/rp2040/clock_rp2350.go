//go:build rp2350

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2350 TIMER0 lives at a different address than the RP2040 timer.
// timeRawL (0x28) is the unlatched low word.
const (
	timerBase     = 0x400B0000
	timerTimeRawL = timerBase + 0x28
)

var timerRawL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawL)))

// InitClock discards the first readings after the runtime clock setup
func InitClock() {
	_ = timerRawL.Get()
	_ = timerRawL.Get()
	_ = timerRawL.Get()
}

// GetHardwareTime reads the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRawL.Get()
}
