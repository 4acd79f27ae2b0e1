package gpio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"scara/core"
)

func newTestPeriph(pins ...*gpiotest.Pin) *PeriphDriver {
	byName := make(map[string]gpio.PinIO)
	for _, p := range pins {
		byName[p.N] = p
	}
	return newPeriphDriver(func(name string) gpio.PinIO {
		if p, ok := byName[name]; ok {
			return p
		}
		return nil
	})
}

func TestPeriphDriverOutputs(t *testing.T) {
	step := &gpiotest.Pin{N: "GPIO2", Num: 2, L: gpio.High}
	drv := newTestPeriph(step)

	require.NoError(t, drv.ConfigureOutput(2))
	assert.Equal(t, gpio.Low, step.Read())

	require.NoError(t, drv.SetPin(2, true))
	assert.True(t, drv.ReadPin(2))
	v, err := drv.GetPin(2)
	require.NoError(t, err)
	assert.True(t, v)

	assert.Error(t, drv.ConfigureOutput(3))
	assert.Error(t, drv.SetPin(3, true))
	assert.False(t, drv.ReadPin(3))
	assert.NoError(t, drv.Close())
}

func TestPeriphDriverBacksStepper(t *testing.T) {
	step := &gpiotest.Pin{N: "GPIO4", Num: 4}
	dir := &gpiotest.Pin{N: "GPIO5", Num: 5}
	backend := core.NewGPIOBackend(newTestPeriph(step, dir))

	require.NoError(t, backend.Init(4, 5))
	backend.SetDirection(true)
	backend.SetStep(true)
	assert.Equal(t, gpio.High, dir.Read())
	assert.Equal(t, gpio.High, step.Read())
	backend.Stop()
	assert.Equal(t, gpio.Low, step.Read())
}

func TestPeriphEndstopPulls(t *testing.T) {
	up := &gpiotest.Pin{N: "GPIO20", Num: 20, EdgesChan: make(chan gpio.Level, 1)}
	down := &gpiotest.Pin{N: "GPIO21", Num: 21, L: gpio.High, EdgesChan: make(chan gpio.Level, 1)}
	drv := newTestPeriph(up, down)

	es, err := core.NewEndstop(drv, 20, true, true)
	require.NoError(t, err)
	assert.Equal(t, gpio.PullUp, up.Pull())
	assert.False(t, es.Triggered())

	es2, err := core.NewEndstop(drv, 21, false, false)
	require.NoError(t, err)
	assert.Equal(t, gpio.PullDown, down.Pull())
	assert.False(t, es2.Triggered())
}

func TestEndstopWatcherHaltsAxis(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO20", Num: 20, EdgesChan: make(chan gpio.Level, 1)}
	drv := newTestPeriph(pin)
	es, err := core.NewEndstop(drv, 20, true, true)
	require.NoError(t, err)

	halted := make(chan int, 4)
	w := NewEndstopWatcher(drv, func(axis int) { halted <- axis })
	w.Add(0, es)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Releasing edge (back high) must not halt
	pin.EdgesChan <- gpio.High
	select {
	case <-halted:
		t.Fatal("halted on release")
	case <-time.After(3 * edgePollTimeout):
	}

	// Switch closes: line pulled low
	pin.EdgesChan <- gpio.Low
	select {
	case axis := <-halted:
		assert.Equal(t, 0, axis)
	case <-time.After(time.Second):
		t.Fatal("endstop edge not seen")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestEndstopWatcherUnknownPin(t *testing.T) {
	drv := newTestPeriph()
	w := NewEndstopWatcher(drv, func(int) {})
	w.Add(0, &core.Endstop{Pin: 30})
	assert.Error(t, w.Run(context.Background()))
}

func TestSimDriver(t *testing.T) {
	sim := NewSimDriver()
	var _ core.GPIODriver = sim

	require.NoError(t, sim.ConfigureOutput(2))
	for i := 0; i < 3; i++ {
		require.NoError(t, sim.SetPin(2, true))
		require.NoError(t, sim.SetPin(2, false))
	}
	require.NoError(t, sim.SetPin(2, false))
	assert.Equal(t, uint64(3), sim.Pulses(2))

	require.NoError(t, sim.ConfigureInputPullUp(20))
	assert.True(t, sim.ReadPin(20))
	sim.Drive(20, false)
	v, err := sim.GetPin(20)
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, sim.ConfigureInputPullDown(21))
	assert.False(t, sim.ReadPin(21))
	sim.Summary()
}
