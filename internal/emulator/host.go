package emulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c/i2csim"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
)

// SimWires opens simulated wires in place of GPIO lines and hands out the
// masters driving them.
type SimWires struct {
	mu    sync.Mutex
	wires map[int]*i2csim.Wire
}

// NewSimWires returns an empty set of simulated wires.
func NewSimWires() *SimWires {
	return &SimWires{wires: make(map[int]*i2csim.Wire)}
}

type simPins struct {
	*i2csim.Wire
}

func (simPins) Close() error { return nil }

// Pins is a PinsFactory.
func (s *SimWires) Pins(_ context.Context, bus BusConfig) (hal.BusPins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wires[bus.ID]; ok {
		return nil, fmt.Errorf("bus %d already open", bus.ID)
	}
	w := i2csim.NewWire()
	s.wires[bus.ID] = w
	return simPins{w}, nil
}

// Wire returns the wire of bus, nil if it was never opened.
func (s *SimWires) Wire(bus int) *i2csim.Wire {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wires[bus]
}

// Host returns a simulated host talking to the first devices emulated on
// these wires.
func (s *SimWires) Host(devices int) *Host {
	h := &Host{devices: devices}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.wires {
		if id >= 0 && id < fanslave.Buses {
			h.masters[id] = i2csim.NewMaster(w)
		}
	}
	return h
}

// Host plays the server side of the fan controller protocol: it starts the
// fans, pushes requested tach values round by round and reads back the
// measured ones. A Host is not safe for concurrent use.
type Host struct {
	masters [fanslave.Buses]*i2csim.Master
	devices int
}

func (h *Host) master(index int) (*i2csim.Master, uint8, error) {
	bus, addr, ok := fanslave.DeviceAddress(index)
	if !ok {
		return nil, 0, fmt.Errorf("device %d out of range", index)
	}
	m := h.masters[bus]
	if m == nil {
		return nil, 0, fmt.Errorf("device %d: bus %d not connected", index, bus)
	}
	return m, addr, nil
}

// Start writes the start register of the trigger device.
func (h *Host) Start() error {
	const trigger = telemetry.Slots/2 - 1
	m, addr, err := h.master(trigger)
	if err != nil {
		return err
	}
	if err := m.Write(addr, fanslave.RegStart, 0x01); err != nil {
		return fmt.Errorf("device %d start: %w", trigger, err)
	}
	return nil
}

// SetFans writes one update round: per device in index order the enable
// register and both requested tach values. The trigger device comes last,
// so its second high byte ends the round.
func (h *Host) SetFans(fans [telemetry.Slots]telemetry.Fan) error {
	for i := 0; i < h.devices; i++ {
		m, addr, err := h.master(i)
		if err != nil {
			return err
		}
		first, second := fans[2*i], fans[2*i+1]

		var enable uint8
		if first.Enabled {
			enable |= 0x40
		}
		if second.Enabled {
			enable |= 0x80
		}

		writes := [][2]uint8{
			{fanslave.RegFanEnable, enable},
			{fanslave.RegRequestedTach1Low, uint8(first.RequestedTach)},
			{fanslave.RegRequestedTach1High, uint8(first.RequestedTach >> 8)},
			{fanslave.RegRequestedTach2Low, uint8(second.RequestedTach)},
			{fanslave.RegRequestedTach2High, uint8(second.RequestedTach >> 8)},
		}
		for _, w := range writes {
			if err := m.Write(addr, w[0], w[1]); err != nil {
				return fmt.Errorf("device %d register %#02x: %w", i, w[0], err)
			}
		}
	}
	return nil
}

// ReadActual reads the measured tach of every emulated slot with one block
// read per device. Slots of devices not emulated stay zero.
func (h *Host) ReadActual() ([telemetry.Slots]uint16, error) {
	var actual [telemetry.Slots]uint16
	for i := 0; i < h.devices; i++ {
		m, addr, err := h.master(i)
		if err != nil {
			return actual, err
		}
		if err := m.Write(addr, fanslave.RegReadCount, 4); err != nil {
			return actual, fmt.Errorf("device %d read count: %w", i, err)
		}
		data, err := m.WriteRead(addr, []byte{0x80 | fanslave.RegActualTach1Low}, 5)
		if err != nil {
			return actual, fmt.Errorf("device %d actual tach: %w", i, err)
		}
		if data[0] != 4 {
			return actual, fmt.Errorf("device %d: block count %d, expected 4", i, data[0])
		}
		actual[2*i] = uint16(data[1]) | uint16(data[2])<<8
		actual[2*i+1] = uint16(data[3]) | uint16(data[4])<<8
	}
	return actual, nil
}
