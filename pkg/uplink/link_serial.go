//go:build !tinygo

package uplink

import (
	"fmt"

	"go.bug.st/serial"
)

// Open opens the serial port of the fan master.
func Open(portName string, baudrate int, actualTach uint16) (*Link, error) {
	rwc, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudrate,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", portName, err)
	}
	return NewLink(rwc, actualTach), nil
}
