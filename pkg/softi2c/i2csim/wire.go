// Package i2csim simulates an open-drain I2C bus with a bit-banged master on
// one side and a softi2c.Bus slave on the other.
//
// The wire behaves like pin-change interrupt hardware: an event is raised
// only for transitions the slave has armed, it carries both line levels, and
// events are delivered one at a time. Side effects of the slave's own
// commands (driving SDA) are queued and delivered after the running handler
// returns, never reentrantly.
package i2csim

import "github.com/zephray/XserveFanSpeedController/pkg/softi2c"

// Wire is one simulated bus. It implements softi2c.Pins for the slave side.
type Wire struct {
	masterSCL bool
	masterSDA bool

	slaveDriving bool
	slaveSDA     bool

	sclEdge softi2c.Edge
	sdaEdge softi2c.Edge

	scl, sda bool

	slave       *softi2c.Bus
	pending     []softi2c.Event
	dispatching bool

	commands []softi2c.Command
	record   bool
}

var _ softi2c.Pins = &Wire{}

// NewWire returns an idle bus with both lines released.
func NewWire() *Wire {
	return &Wire{
		masterSCL: true,
		masterSDA: true,
		scl:       true,
		sda:       true,
	}
}

// Connect creates a slave bus for cfg on a fresh wire and the master that
// drives it.
func Connect(cfg softi2c.Config) (*Master, *Wire, *softi2c.Bus) {
	w := NewWire()
	bus := softi2c.NewBus(cfg, w)
	w.Attach(bus)
	return NewMaster(w), w, bus
}

// Attach connects the slave that receives edge events. Events raised before
// attaching are dropped.
func (w *Wire) Attach(slave *softi2c.Bus) {
	w.slave = slave
	w.pending = w.pending[:0]
}

// Record enables keeping every command applied by the slave.
func (w *Wire) Record(enable bool) {
	w.record = enable
	w.commands = w.commands[:0]
}

// Commands returns the recorded slave commands.
func (w *Wire) Commands() []softi2c.Command { return w.commands }

// SCL returns the level of the clock line.
func (w *Wire) SCL() bool { return w.scl }

// SDA returns the level of the data line.
func (w *Wire) SDA() bool { return w.sda }

// SlaveDriving reports whether the slave has SDA configured as output.
func (w *Wire) SlaveDriving() bool { return w.slaveDriving }

// Apply implements softi2c.Pins.
func (w *Wire) Apply(cmd softi2c.Command) {
	if w.record {
		w.commands = append(w.commands, cmd)
	}
	switch cmd.Op {
	case softi2c.OpArmClock:
		w.sclEdge = cmd.Edge
	case softi2c.OpDisableClock:
		w.sclEdge = softi2c.EdgeNone
	case softi2c.OpArmData:
		w.sdaEdge = cmd.Edge
	case softi2c.OpDisableData:
		w.sdaEdge = softi2c.EdgeNone
	case softi2c.OpDriveData:
		w.slaveDriving = true
		w.slaveSDA = cmd.Level
		w.settle()
	case softi2c.OpReleaseData:
		w.slaveDriving = false
		w.settle()
	}
}

func (w *Wire) setSCL(level bool) {
	w.masterSCL = level
	w.settle()
}

func (w *Wire) setSDA(level bool) {
	w.masterSDA = level
	w.settle()
}

// settle recomputes the wired-AND levels, queues events for armed
// transitions and delivers them unless a handler is already running.
func (w *Wire) settle() {
	scl := w.masterSCL
	sda := w.masterSDA && (!w.slaveDriving || w.slaveSDA)

	sclChanged, sdaChanged := scl != w.scl, sda != w.sda
	w.scl, w.sda = scl, sda

	if sclChanged && w.sclEdge.Accepts(scl) {
		w.pending = append(w.pending, softi2c.Event{Line: softi2c.SCL, SCL: scl, SDA: sda})
	}
	if sdaChanged && w.sdaEdge.Accepts(sda) {
		w.pending = append(w.pending, softi2c.Event{Line: softi2c.SDA, SCL: scl, SDA: sda})
	}
	w.flush()
}

func (w *Wire) flush() {
	if w.dispatching || w.slave == nil {
		return
	}
	w.dispatching = true
	defer func() { w.dispatching = false }()
	for len(w.pending) > 0 {
		ev := w.pending[0]
		w.pending = w.pending[1:]
		w.slave.HandleEdge(ev)
	}
}
