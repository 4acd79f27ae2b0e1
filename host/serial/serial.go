package serial

import (
	"io"

	"scara/standalone"
)

// Port represents a serial port interface. The host binary opens the native
// port; tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards pending input and output
	Flush() error
}

// DefaultBaud is the line rate of the arm controller
const DefaultBaud = 38400

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate
	Baud int

	// Read timeout in milliseconds (0 = blocking, which the menu protocol needs)
	ReadTimeout int
}

// DefaultConfig returns the controller's line settings for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device: device,
		Baud:   DefaultBaud,
	}
}

// FromMachineConfig converts the serial section of a machine config
func FromMachineConfig(sc standalone.SerialConfig) *Config {
	cfg := DefaultConfig(sc.Device)
	if sc.Baud > 0 {
		cfg.Baud = sc.Baud
	}
	if sc.ReadTimeout > 0 {
		cfg.ReadTimeout = sc.ReadTimeout
	}
	return cfg
}
