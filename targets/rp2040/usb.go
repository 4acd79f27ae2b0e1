//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"
)

// usbPollInterval is how long a read sleeps while the CDC buffer is empty
const usbPollInterval = 100 * time.Microsecond

// InitUSB configures machine.Serial, which is USB CDC-ACM on these boards
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbChannel is a blocking io.ReadWriter over the USB CDC serial port
type usbChannel struct{}

// Read waits for at least one byte and returns what is buffered
func (usbChannel) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for machine.Serial.Buffered() == 0 {
		time.Sleep(usbPollInterval)
	}

	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Write sends all of p, retrying partial writes
func (usbChannel) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := machine.Serial.Write(p[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}
