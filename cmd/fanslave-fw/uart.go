//go:build tinygo

package main

import (
	"time"

	"tinygo.org/x/drivers"
)

// blockingUART turns the polling UART read into a blocking one, as the
// frame reader expects.
type blockingUART struct {
	drivers.UART
}

func (u blockingUART) Read(p []byte) (int, error) {
	for u.Buffered() == 0 {
		time.Sleep(time.Millisecond)
	}
	return u.UART.Read(p)
}

// Close is a no-op, the UART stays configured.
func (blockingUART) Close() error { return nil }
