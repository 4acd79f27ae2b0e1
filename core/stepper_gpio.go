package core

// GPIOBackend implements StepperBackend on top of the registered GPIODriver.
// Used by the host (periph.io, simulation) and as the fallback on boards.
type GPIOBackend struct {
	driver  GPIODriver
	stepPin GPIOPin
	dirPin  GPIOPin
	step    bool
}

// NewGPIOBackend creates a backend bound to driver. A nil driver means the
// global one registered with SetGPIODriver.
func NewGPIOBackend(driver GPIODriver) *GPIOBackend {
	if driver == nil {
		driver = MustGPIO()
	}
	return &GPIOBackend{driver: driver}
}

// Init configures the step and direction pins as outputs
func (b *GPIOBackend) Init(stepPin, dirPin GPIOPin) error {
	b.stepPin = stepPin
	b.dirPin = dirPin

	if err := b.driver.ConfigureOutput(stepPin); err != nil {
		return err
	}
	if err := b.driver.ConfigureOutput(dirPin); err != nil {
		return err
	}
	b.step = false
	if err := b.driver.SetPin(stepPin, false); err != nil {
		return err
	}
	return b.driver.SetPin(dirPin, false)
}

// SetStep drives the step line
func (b *GPIOBackend) SetStep(high bool) {
	b.step = high
	_ = b.driver.SetPin(b.stepPin, high)
}

// SetDirection drives the direction line
func (b *GPIOBackend) SetDirection(dir bool) {
	_ = b.driver.SetPin(b.dirPin, dir)
}

// Stop parks the step line low
func (b *GPIOBackend) Stop() {
	if b.step {
		b.SetStep(false)
	}
}

// GetName returns the backend name
func (b *GPIOBackend) GetName() string {
	return "GPIO"
}
