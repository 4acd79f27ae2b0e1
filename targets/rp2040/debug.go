//go:build rp2040 || rp2350

package main

import (
	"io"
	"machine"

	"scara/core"
)

// debugBaud is the log UART rate; the command channel stays on USB
const debugBaud = 115200

// InitDebugUART routes log output to UART0 (TX=GPIO0, RX=GPIO1). Without a
// working UART, logs are dropped so they never reach the command channel.
func InitDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: debugBaud,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		core.SetDebugWriter(io.Discard)
		return
	}
	core.SetDebugWriter(uart)
}
