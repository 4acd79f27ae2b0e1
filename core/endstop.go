// Endstop handling for GPIO-based switches (mechanical, hall effect)
package core

// Endstop is a digital limit input used by the homing procedure
type Endstop struct {
	Pin    GPIOPin // GPIO pin for endstop input
	PullUp bool    // Enable the internal pull-up (switch to ground)
	Invert bool    // Triggered when the line reads low

	driver GPIODriver
}

// NewEndstop configures pin as an input and returns the endstop bound to driver
func NewEndstop(driver GPIODriver, pin GPIOPin, pullUp, invert bool) (*Endstop, error) {
	if driver == nil {
		driver = MustGPIO()
	}

	es := &Endstop{
		Pin:    pin,
		PullUp: pullUp,
		Invert: invert,
		driver: driver,
	}

	var err error
	if pullUp {
		err = driver.ConfigureInputPullUp(pin)
	} else {
		err = driver.ConfigureInputPullDown(pin)
	}
	if err != nil {
		return nil, err
	}

	return es, nil
}

// Triggered reports whether the switch is currently asserted
func (es *Endstop) Triggered() bool {
	return es.driver.ReadPin(es.Pin) != es.Invert
}
