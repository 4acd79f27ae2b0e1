//go:build rp2040 || rp2350

package main

import (
	"machine"

	"scara/core"
)

// RPGPIODriver implements core.GPIODriver on the RP2040/RP2350 pins
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) {
	if _, exists := d.configuredPins[pin]; exists {
		return
	}
	// GPIO numbers map directly to machine pins
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: mode})
	d.configuredPins[pin] = p
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	d.configure(pin, machine.PinOutput)
	return nil
}

func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	d.configure(pin, machine.PinInputPullup)
	return nil
}

func (d *RPGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	d.configure(pin, machine.PinInputPulldown)
	return nil
}

// SetPin drives the pin, configuring it as an output on first use
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, exists := d.configuredPins[pin]
	if !exists {
		d.configure(pin, machine.PinOutput)
		p = d.configuredPins[pin]
	}
	p.Set(value)
	return nil
}

// GetPin reads the current pin state; unconfigured pins read low
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	p, exists := d.configuredPins[pin]
	if !exists {
		return false, nil
	}
	return p.Get(), nil
}

func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	value, _ := d.GetPin(pin)
	return value
}

// WatchEndstop calls halt from the pin interrupt whenever the endstop
// becomes asserted. The halt path only touches the atomic halt flags.
func (d *RPGPIODriver) WatchEndstop(axis int, es *core.Endstop, halt func(axis int)) error {
	p, exists := d.configuredPins[es.Pin]
	if !exists {
		return machine.ErrInvalidInputPin
	}
	return p.SetInterrupt(machine.PinFalling|machine.PinRising, func(machine.Pin) {
		if es.Triggered() {
			halt(axis)
			core.RecordTiming(core.EvtEndstop, uint8(axis), core.GetTime(), 0, 0)
		}
	})
}
