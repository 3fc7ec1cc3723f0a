// Package softi2c reconstructs the I2C slave side of a bus from raw edge
// events on the clock (SCL) and data (SDA) lines.
//
// The decoder does not touch hardware. Every pin side effect (re-arming an
// interrupt edge, driving SDA for an acknowledge or a data bit, releasing it)
// is returned as a Command, and a thin adapter in pkg/hal applies it to real
// pins. There is no clock stretching and no timeout: the design relies on the
// edge handler finishing well within one bus bit period, and a master that
// never sends a stop leaves the decoder parked in StateWaitStop.
//
// A read ends either with the byte the handler marks last or with a nack from
// the master. In both cases the slave releases SDA and waits for the stop.
package softi2c

import "fmt"

// Line identifies one of the two bus lines.
type Line uint8

const (
	SCL Line = iota
	SDA
)

func (l Line) String() string {
	switch l {
	case SCL:
		return "scl"
	case SDA:
		return "sda"
	default:
		return fmt.Sprintf("line(%d)", uint8(l))
	}
}

// Edge selects which transitions of a line raise an event.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeFalling
	EdgeRising
	EdgeBoth
)

// Accepts reports whether a line observed at level could have been reached
// through an edge this trigger is armed for.
func (e Edge) Accepts(level bool) bool {
	switch e {
	case EdgeFalling:
		return !level
	case EdgeRising:
		return level
	case EdgeBoth:
		return true
	default:
		return false
	}
}

func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeFalling:
		return "falling"
	case EdgeRising:
		return "rising"
	case EdgeBoth:
		return "both"
	default:
		return fmt.Sprintf("edge(%d)", uint8(e))
	}
}

// Event is one pin-change interrupt. Both line levels are sampled at the time
// of the interrupt since start and stop can only be told apart from data bits
// by looking at both.
type Event struct {
	Line Line
	SCL  bool
	SDA  bool
}

// Op is a pin side effect requested by the decoder.
type Op uint8

const (
	// OpArmClock enables the SCL interrupt for Command.Edge.
	OpArmClock Op = iota
	// OpDisableClock masks the SCL interrupt.
	OpDisableClock
	// OpArmData enables the SDA interrupt for Command.Edge.
	OpArmData
	// OpDisableData masks the SDA interrupt while the slave drives SDA.
	OpDisableData
	// OpDriveData switches SDA to open-drain output at Command.Level.
	OpDriveData
	// OpReleaseData switches SDA back to input so the master can drive it.
	OpReleaseData
)

func (o Op) String() string {
	switch o {
	case OpArmClock:
		return "arm_clock"
	case OpDisableClock:
		return "disable_clock"
	case OpArmData:
		return "arm_data"
	case OpDisableData:
		return "disable_data"
	case OpDriveData:
		return "drive_data"
	case OpReleaseData:
		return "release_data"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Command is a single side effect. Edge is used by the arm ops, Level by
// OpDriveData.
type Command struct {
	Op    Op
	Edge  Edge
	Level bool
}

func (c Command) String() string {
	switch c.Op {
	case OpArmClock, OpArmData:
		return c.Op.String() + ":" + c.Edge.String()
	case OpDriveData:
		if c.Level {
			return "drive_data:high"
		}
		return "drive_data:low"
	default:
		return c.Op.String()
	}
}

// Handler receives the semantic results of a decoded transaction. All
// methods are called from the edge handler and must return quickly.
type Handler interface {
	// ByteWritten delivers a byte the master wrote to addr.
	ByteWritten(bus int, addr uint8, b byte)
	// ByteRequested asks for the next byte to send to the master and whether
	// it is the last one of the transfer.
	ByteRequested(bus int, addr uint8) (b byte, last bool)
	// Stopped is called on every stop condition with the last address seen.
	Stopped(bus int, addr uint8)
}

// AddressPattern matches the raw address byte (7-bit address and R/W bit)
// when addr&Mask == Value.
type AddressPattern struct {
	Value uint8
	Mask  uint8
}

// Match reports whether the raw address byte matches the pattern.
func (p AddressPattern) Match(addr uint8) bool {
	return addr&p.Mask == p.Value
}
