package softi2c

import "sync"

// Pins is the hardware side of one bus. Apply must not call back into the
// Bus that issued the command.
type Pins interface {
	Apply(cmd Command)
}

// Bus couples a Decoder with the pins it controls and serializes events.
// On a single core with non-nesting pin interrupts the lock is never
// contended; it matters on preemptive schedulers such as Linux line watchers,
// where SCL and SDA events may arrive on different goroutines.
type Bus struct {
	mu   sync.Mutex
	dec  *Decoder
	pins Pins
	buf  [8]Command
}

// NewBus creates the decoder for cfg and puts pins into the idle
// configuration.
func NewBus(cfg Config, pins Pins) *Bus {
	b := &Bus{
		dec:  NewDecoder(cfg),
		pins: pins,
	}
	b.Reset()
	return b
}

// HandleEdge processes one event and applies the resulting commands before
// returning.
func (b *Bus) HandleEdge(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(b.dec.Step(ev, b.buf[:0]))
}

// Reset returns the bus to idle, releasing SDA.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(b.dec.Reset(b.buf[:0]))
}

func (b *Bus) apply(cmds []Command) {
	for _, cmd := range cmds {
		b.pins.Apply(cmd)
	}
}

// ID returns the bus identifier.
func (b *Bus) ID() int { return b.dec.Bus() }

// State returns the current protocol state.
func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dec.State()
}

// Stats returns the live counters of this bus.
func (b *Bus) Stats() *Stats { return b.dec.Stats() }
