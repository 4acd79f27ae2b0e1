//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	"scara/core"
	"scara/standalone/config"
	motion "scara/standalone/machine"
	"scara/standalone/menu"
)

func main() {
	// Clear any watchdog state left over from a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	InitClock()
	core.SetClockSource(GetHardwareTime)

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)

	cfg := config.DefaultSCARAConfig()
	SelectMode(cfg)

	manager, err := motion.NewManagerWithConfig(cfg)
	if err != nil {
		fault()
	}
	if err := manager.Initialize(gpioDriver); err != nil {
		core.ComponentLogger("board").WithError(err).Error("configuration failed")
		fault()
	}

	for axis, es := range manager.Endstops() {
		if err := gpioDriver.WatchEndstop(axis, es, manager.HaltAxis); err != nil {
			core.ComponentLogger("board").WithError(err).WithField("axis", axis).Warn("endstop interrupt unavailable")
		}
	}

	if err := manager.Start(); err != nil {
		fault()
	}
	blink(3, 200*time.Millisecond)

	if cfg.Mode == "gcode" {
		runGCode(manager)
	}

	// The greeting is part of the G-code channel only
	manager.GetOutput()
	for {
		err := menu.NewServer(usbChannel{}, manager).Serve(context.Background())
		core.ComponentLogger("board").WithError(err).Warn("menu channel restarted")
		time.Sleep(100 * time.Millisecond)
	}
}

// runGCode feeds USB bytes to the line interpreter forever
func runGCode(manager *motion.Manager) {
	ch := usbChannel{}
	buf := make([]byte, 64)
	for {
		if out := manager.GetOutput(); len(out) > 0 {
			_, _ = ch.Write(out)
		}
		n, err := ch.Read(buf)
		if err != nil {
			continue
		}
		for _, b := range buf[:n] {
			_ = manager.ProcessByte(b)
		}
	}
}

// fault blinks the LED rapidly forever
func fault() {
	for {
		blink(1, 100*time.Millisecond)
	}
}

func blink(times int, period time.Duration) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for i := 0; i < times; i++ {
		led.High()
		time.Sleep(period)
		led.Low()
		time.Sleep(period)
	}
}
