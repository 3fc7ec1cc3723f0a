// Package fanslave emulates the fan controller chips the host talks to: the
// address routing, the per-device register access state machine and the
// register file backed by the shared telemetry.
package fanslave

import (
	"fmt"

	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
)

// DefaultDevices is the number of emulated devices: one per telemetry slot
// pair.
const DefaultDevices = telemetry.Slots / 2

// Slave implements softi2c.Handler for all emulated devices on both buses.
type Slave struct {
	router *Router
}

var _ softi2c.Handler = &Slave{}

// NewSlave creates devices 0..count-1, each owning two telemetry slots.
func NewSlave(fans *telemetry.State, count int) (*Slave, error) {
	if count < 1 || count > DefaultDevices {
		return nil, fmt.Errorf("device count %d out of range [1, %d]", count, DefaultDevices)
	}
	devices := make([]*Device, count)
	for i := range devices {
		devices[i] = NewDevice(i, NewRegisterFile(fans, i*2))
	}
	router, err := NewRouter(devices)
	if err != nil {
		return nil, err
	}
	return &Slave{router: router}, nil
}

// Router returns the routing table.
func (s *Slave) Router() *Router { return s.router }

func isAux(raw uint8) bool {
	return raw>>1 == AuxAddress
}

// ByteWritten implements softi2c.Handler.
func (s *Slave) ByteWritten(bus int, addr uint8, b byte) {
	if isAux(addr) {
		return
	}
	if d, ok := s.router.Lookup(bus, addr); ok {
		d.Receive(b)
	}
}

// ByteRequested implements softi2c.Handler.
func (s *Slave) ByteRequested(bus int, addr uint8) (byte, bool) {
	if isAux(addr) {
		return AuxReply, true
	}
	if d, ok := s.router.Lookup(bus, addr); ok {
		return d.Transmit()
	}
	return idleByte, true
}

// Stopped implements softi2c.Handler.
func (s *Slave) Stopped(bus int, _ uint8) {
	s.router.StopBus(bus)
}
