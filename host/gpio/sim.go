package gpio

import (
	"sync"

	"github.com/sirupsen/logrus"

	"scara/core"
)

// SimDriver is an in-memory GPIO bank for dry runs. It counts rising edges
// per output so a run can be checked without hardware.
type SimDriver struct {
	mu      sync.Mutex
	levels  map[core.GPIOPin]bool
	outputs map[core.GPIOPin]bool
	rising  map[core.GPIOPin]uint64
	log     *logrus.Entry
}

// NewSimDriver creates an empty simulated bank
func NewSimDriver() *SimDriver {
	return &SimDriver{
		levels:  make(map[core.GPIOPin]bool),
		outputs: make(map[core.GPIOPin]bool),
		rising:  make(map[core.GPIOPin]uint64),
		log:     core.ComponentLogger("sim"),
	}
}

func (s *SimDriver) ConfigureOutput(pin core.GPIOPin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[pin] = true
	s.levels[pin] = false
	s.log.WithField("pin", core.PinName(pin)).Debug("output")
	return nil
}

func (s *SimDriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = true
	return nil
}

func (s *SimDriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = false
	return nil
}

func (s *SimDriver) SetPin(pin core.GPIOPin, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value && !s.levels[pin] {
		s.rising[pin]++
	}
	s.levels[pin] = value
	return nil
}

func (s *SimDriver) GetPin(pin core.GPIOPin) (bool, error) {
	return s.ReadPin(pin), nil
}

func (s *SimDriver) ReadPin(pin core.GPIOPin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[pin]
}

// Drive forces an input level, e.g. to close a simulated endstop
func (s *SimDriver) Drive(pin core.GPIOPin, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = value
}

// Pulses returns the rising edges seen on pin
func (s *SimDriver) Pulses(pin core.GPIOPin) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rising[pin]
}

// Summary logs the pulse count of every output
func (s *SimDriver) Summary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pin := range s.outputs {
		s.log.WithFields(logrus.Fields{
			"pin":    core.PinName(pin),
			"pulses": s.rising[pin],
			"level":  s.levels[pin],
		}).Info("output summary")
	}
}
