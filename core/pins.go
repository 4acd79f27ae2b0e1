package core

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxPinNumber bounds pin numbers accepted from configuration
const MaxPinNumber = 63

// LookupPin converts a configured pin name ("gpio17", "GPIO17", "17") to a GPIOPin
func LookupPin(name string) (GPIOPin, error) {
	s := strings.TrimSpace(strings.ToLower(name))
	s = strings.TrimPrefix(s, "gpio")
	if s == "" {
		return 0, errors.Errorf("invalid pin name %q", name)
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid pin name %q", name)
	}
	if n > MaxPinNumber {
		return 0, errors.Errorf("pin %q out of range (max gpio%d)", name, MaxPinNumber)
	}
	return GPIOPin(n), nil
}

// PinName returns the canonical configuration name of pin
func PinName(pin GPIOPin) string {
	return "gpio" + strconv.FormatUint(uint64(pin), 10)
}
