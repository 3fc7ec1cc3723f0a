// Package telemetry holds the fan data shared between the bus edge handlers
// and the controller loop.
//
// Ownership per field:
//   - enabled, requested tach and both request flags are written by the
//     register file (edge handler side) and read by the controller.
//   - actual tach is written by the controller and read by the register file.
//
// Every element is an independent atomic, so neither side ever sees a torn
// 16-bit value. The request flags are consumed with a read-and-clear swap so
// a request raised while the controller is busy is never lost.
package telemetry

import (
	"fmt"

	"go.uber.org/atomic"
)

// Slots is the number of fan tach slots: seven emulated devices with two
// fans each.
const Slots = 14

// State is the shared telemetry. The zero value is ready to use.
type State struct {
	enabled   [Slots]atomic.Bool
	requested [Slots]atomic.Uint32
	actual    [Slots]atomic.Uint32

	startRequested     atomic.Bool
	rpmUpdateRequested atomic.Bool
}

// New returns a State with every actual tach slot preset to actualTach.
func New(actualTach uint16) *State {
	s := &State{}
	for i := range s.actual {
		s.actual[i].Store(uint32(actualTach))
	}
	return s
}

func (s *State) valid(slot int) bool {
	return slot >= 0 && slot < Slots
}

// SetEnabled records the enable flag of slot. Out of range slots are ignored.
func (s *State) SetEnabled(slot int, enabled bool) {
	if s.valid(slot) {
		s.enabled[slot].Store(enabled)
	}
}

// Enabled returns the enable flag of slot.
func (s *State) Enabled(slot int) bool {
	if !s.valid(slot) {
		return false
	}
	return s.enabled[slot].Load()
}

// SetRequestedTach records the tach count the host asked for.
func (s *State) SetRequestedTach(slot int, tach uint16) {
	if s.valid(slot) {
		s.requested[slot].Store(uint32(tach))
	}
}

// RequestedTach returns the tach count the host asked for.
func (s *State) RequestedTach(slot int) uint16 {
	if !s.valid(slot) {
		return 0
	}
	return uint16(s.requested[slot].Load())
}

// SetActualTach records the measured tach count reported back to the host.
func (s *State) SetActualTach(slot int, tach uint16) {
	if s.valid(slot) {
		s.actual[slot].Store(uint32(tach))
	}
}

// ActualTach returns the measured tach count.
func (s *State) ActualTach(slot int) uint16 {
	if !s.valid(slot) {
		return 0
	}
	return uint16(s.actual[slot].Load())
}

// RequestStart raises the start request flag.
func (s *State) RequestStart() { s.startRequested.Store(true) }

// TakeStartRequest reports whether a start was requested and clears the flag.
func (s *State) TakeStartRequest() bool { return s.startRequested.Swap(false) }

// RequestRPMUpdate raises the RPM update request flag.
func (s *State) RequestRPMUpdate() { s.rpmUpdateRequested.Store(true) }

// TakeRPMUpdateRequest reports whether an RPM update was requested and
// clears the flag.
func (s *State) TakeRPMUpdateRequest() bool { return s.rpmUpdateRequested.Swap(false) }

// Fan is a copy of one slot.
type Fan struct {
	Slot          int
	Enabled       bool
	RequestedTach uint16
	ActualTach    uint16
}

func (f Fan) String() string {
	return fmt.Sprintf("fan%d(enabled=%t requested=%#04x actual=%#04x)", f.Slot, f.Enabled, f.RequestedTach, f.ActualTach)
}

// Snapshot copies every slot. Slots are read one by one.
func (s *State) Snapshot() [Slots]Fan {
	var fans [Slots]Fan
	for i := range fans {
		fans[i] = Fan{
			Slot:          i,
			Enabled:       s.enabled[i].Load(),
			RequestedTach: uint16(s.requested[i].Load()),
			ActualTach:    uint16(s.actual[i].Load()),
		}
	}
	return fans
}
