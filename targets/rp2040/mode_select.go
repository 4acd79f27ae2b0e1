//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"scara/standalone"
)

// modeStrapPin selects the command protocol at boot: left floating (pulled
// up) keeps the configured mode, tied to ground selects G-code
const modeStrapPin = machine.GPIO22

// SelectMode reads the strap pin and overrides cfg.Mode when it is grounded
func SelectMode(cfg *standalone.MachineConfig) {
	modeStrapPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	time.Sleep(time.Millisecond)
	if !modeStrapPin.Get() {
		cfg.Mode = "gcode"
	}
}
