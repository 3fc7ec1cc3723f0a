//go:build tinygo

package hal

import (
	"machine"

	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
)

// MachinePins serves a bus from two microcontroller pins with pin-change
// interrupts. All fields but failures are only touched from interrupt context
// or before the first interrupt is armed.
type MachinePins struct {
	scl, sda machine.Pin
	bus      *softi2c.Bus
	sdaEdge  softi2c.Edge
	failures FailureCounter
}

var _ BusPins = (*MachinePins)(nil)

// NewMachinePins configures scl and sda as pulled-up inputs.
func NewMachinePins(scl, sda machine.Pin) *MachinePins {
	scl.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	sda.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &MachinePins{scl: scl, sda: sda}
}

// Failures returns the number of interrupts that could not be re-armed.
func (p *MachinePins) Failures() uint32 {
	return p.failures.Load()
}

func (p *MachinePins) Attach(bus *softi2c.Bus) {
	p.bus = bus
}

func (p *MachinePins) Apply(cmd softi2c.Command) {
	switch cmd.Op {
	case softi2c.OpArmClock:
		p.arm(p.scl, cmd.Edge, p.handleSCL)
	case softi2c.OpDisableClock:
		p.arm(p.scl, softi2c.EdgeNone, nil)
	case softi2c.OpArmData:
		p.sdaEdge = cmd.Edge
		p.arm(p.sda, cmd.Edge, p.handleSDA)
	case softi2c.OpDisableData:
		p.sdaEdge = softi2c.EdgeNone
		p.arm(p.sda, softi2c.EdgeNone, nil)
	case softi2c.OpDriveData:
		if cmd.Level {
			p.release()
			return
		}
		p.sda.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.sda.Low()
	case softi2c.OpReleaseData:
		p.release()
	}
}

func (p *MachinePins) release() {
	p.sda.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if p.sdaEdge != softi2c.EdgeNone {
		p.arm(p.sda, p.sdaEdge, p.handleSDA)
	}
}

func (p *MachinePins) arm(pin machine.Pin, edge softi2c.Edge, handler func(machine.Pin)) {
	if edge == softi2c.EdgeNone {
		handler = nil
	}
	p.failures.Check(pin.SetInterrupt(toPinChange(edge), handler))
}

func toPinChange(e softi2c.Edge) machine.PinChange {
	switch e {
	case softi2c.EdgeRising:
		return machine.PinRising
	case softi2c.EdgeFalling:
		return machine.PinFalling
	case softi2c.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

func (p *MachinePins) handleSCL(machine.Pin) {
	if p.bus != nil {
		p.bus.HandleEdge(softi2c.Event{Line: softi2c.SCL, SCL: p.scl.Get(), SDA: p.sda.Get()})
	}
}

func (p *MachinePins) handleSDA(machine.Pin) {
	if p.bus != nil {
		p.bus.HandleEdge(softi2c.Event{Line: softi2c.SDA, SCL: p.scl.Get(), SDA: p.sda.Get()})
	}
}

// Close masks both interrupts and releases SDA.
func (p *MachinePins) Close() error {
	p.arm(p.scl, softi2c.EdgeNone, nil)
	p.arm(p.sda, softi2c.EdgeNone, nil)
	p.sda.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}
