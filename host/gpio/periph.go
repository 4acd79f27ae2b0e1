//go:build !tinygo

// Package gpio provides host-side implementations of core.GPIODriver: real
// lines on Linux single-board computers through periph.io, and a simulated
// bank for dry runs.
package gpio

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"scara/core"
)

// PeriphDriver drives numbered GPIO lines through the periph.io registry
type PeriphDriver struct {
	mu     sync.Mutex
	pins   map[core.GPIOPin]gpio.PinIO
	lookup func(name string) gpio.PinIO
}

// NewPeriphDriver loads the periph.io host drivers and returns a driver over
// the board's GPIO registry
func NewPeriphDriver() (*PeriphDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	return newPeriphDriver(gpioreg.ByName), nil
}

func newPeriphDriver(lookup func(name string) gpio.PinIO) *PeriphDriver {
	return &PeriphDriver{
		pins:   make(map[core.GPIOPin]gpio.PinIO),
		lookup: lookup,
	}
}

// pin resolves and caches the periph pin behind a GPIOPin number
func (d *PeriphDriver) pin(p core.GPIOPin) (gpio.PinIO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if io, ok := d.pins[p]; ok {
		return io, nil
	}
	io := d.lookup(fmt.Sprintf("GPIO%d", p))
	if io == nil {
		return nil, errors.Errorf("no such pin %s", core.PinName(p))
	}
	d.pins[p] = io
	return io, nil
}

// ConfigureOutput configures a pin as output, driven low
func (d *PeriphDriver) ConfigureOutput(p core.GPIOPin) error {
	io, err := d.pin(p)
	if err != nil {
		return err
	}
	return errors.Wrapf(io.Out(gpio.Low), "configure %s as output", core.PinName(p))
}

// ConfigureInputPullUp configures a pin as input with pull-up and edge
// detection
func (d *PeriphDriver) ConfigureInputPullUp(p core.GPIOPin) error {
	return d.configureInput(p, gpio.PullUp)
}

// ConfigureInputPullDown configures a pin as input with pull-down and edge
// detection
func (d *PeriphDriver) ConfigureInputPullDown(p core.GPIOPin) error {
	return d.configureInput(p, gpio.PullDown)
}

func (d *PeriphDriver) configureInput(p core.GPIOPin, pull gpio.Pull) error {
	io, err := d.pin(p)
	if err != nil {
		return err
	}
	return errors.Wrapf(io.In(pull, gpio.BothEdges), "configure %s as input", core.PinName(p))
}

// SetPin drives an output pin
func (d *PeriphDriver) SetPin(p core.GPIOPin, value bool) error {
	io, err := d.pin(p)
	if err != nil {
		return err
	}
	return io.Out(gpio.Level(value))
}

// GetPin reads a pin level
func (d *PeriphDriver) GetPin(p core.GPIOPin) (bool, error) {
	io, err := d.pin(p)
	if err != nil {
		return false, err
	}
	return bool(io.Read()), nil
}

// ReadPin reads a pin level, reporting low for unknown pins
func (d *PeriphDriver) ReadPin(p core.GPIOPin) bool {
	v, _ := d.GetPin(p)
	return v
}

// Close halts every pin the driver touched
func (d *PeriphDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, io := range d.pins {
		if err := io.Halt(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
