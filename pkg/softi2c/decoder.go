package softi2c

// Config describes one bus.
type Config struct {
	// Bus is the identifier passed to every Handler call.
	Bus int
	// Addresses lists the raw address bytes the slave answers. A mismatch
	// drops the transaction without an acknowledge.
	Addresses []AddressPattern
	// Handler receives decoded bytes.
	Handler Handler
}

// Decoder is the bit-level protocol state machine of one bus.
//
// A Decoder is not safe for concurrent use. Events of one bus must be fed
// strictly one at a time, in arrival order; Bus does that with a lock.
type Decoder struct {
	bus      int
	patterns []AddressPattern
	handler  Handler

	state State
	count uint8
	addr  uint8
	data  uint8
	last  bool

	clockEdge Edge
	dataEdge  Edge

	stats Stats
}

// NewDecoder returns a decoder in StateIdle, waiting for a start condition.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		bus:       cfg.Bus,
		patterns:  append([]AddressPattern(nil), cfg.Addresses...),
		handler:   cfg.Handler,
		state:     StateIdle,
		clockEdge: EdgeNone,
		dataEdge:  EdgeFalling,
	}
}

// Reset forces the decoder back to StateIdle and appends the commands that
// put both lines into their idle configuration.
func (d *Decoder) Reset(out []Command) []Command {
	d.state = StateIdle
	d.count = 0
	d.addr = 0
	d.data = 0
	d.last = false
	out = append(out, Command{Op: OpReleaseData})
	out = d.disableClock(out)
	return d.armData(out, EdgeFalling)
}

// Step advances the state machine by one event and appends the resulting pin
// commands to out. Commands must be applied in order.
func (d *Decoder) Step(ev Event, out []Command) []Command {
	if ev.Line == SDA {
		return d.stepData(ev, out)
	}
	return d.stepClock(ev, out)
}

func (d *Decoder) stepData(ev Event, out []Command) []Command {
	if !d.dataEdge.Accepts(ev.SDA) {
		d.stats.IgnoredEdges.Inc()
		return out
	}

	switch {
	case ev.SCL && ev.SDA:
		// Stop: SDA rises while SCL is high. Always resets the FSM.
		d.state = StateIdle
		out = d.armData(out, EdgeFalling)
		d.stats.Stops.Inc()
		d.handler.Stopped(d.bus, d.addr)
	case ev.SCL && (d.state == StateIdle || d.state == StateWrite):
		// Start or repeated start: SDA falls while SCL is high. Address bits
		// are sampled on SCL rising edges; SDA now watches for stop as well.
		out = d.armClock(out, EdgeRising)
		out = d.armData(out, EdgeBoth)
		d.addr = 0
		d.count = 0
		d.state = StateAddress
		d.stats.Starts.Inc()
	}
	return out
}

func (d *Decoder) stepClock(ev Event, out []Command) []Command {
	if !d.clockEdge.Accepts(ev.SCL) {
		d.stats.IgnoredEdges.Inc()
		return out
	}

	switch d.state {
	case StateAddress:
		d.addr = d.addr<<1 | bit(ev.SDA)
		d.count++
		if d.count < 8 {
			break
		}
		if d.matches(d.addr) {
			d.stats.AddressMatches.Inc()
			d.state = StateAddressAck
			out = d.armClock(out, EdgeFalling)
		} else {
			// Not for us: stay off the bus until the next stop.
			d.stats.AddressMismatches.Inc()
			d.state = StateWaitStop
		}
	case StateAddressAck:
		out = append(out, Command{Op: OpDriveData, Level: false})
		if d.addr&0x01 != 0 {
			d.state = StateReadPrepare
		} else {
			d.state = StateWritePrepare
		}
	case StateReadPrepare:
		if ev.SCL {
			// Acknowledge clock after a data byte: high is a nack from the
			// master, no further byte is fetched.
			if ev.SDA {
				d.stats.ReadNacks.Inc()
				out = d.armData(out, EdgeBoth)
				d.state = StateWaitStop
				break
			}
			out = d.armClock(out, EdgeFalling)
			break
		}
		out = d.prepareRead(out)
	case StateRead:
		out = d.shiftOut(out)
	case StateReadAck:
		out = append(out, Command{Op: OpReleaseData})
		if d.last {
			out = d.armData(out, EdgeBoth)
			d.state = StateWaitStop
		} else {
			out = d.armClock(out, EdgeRising)
			d.state = StateReadPrepare
		}
	case StateWritePrepare:
		// The master puts the next bit out on this falling edge; it is
		// sampled on the following rising edge.
		out = append(out, Command{Op: OpReleaseData})
		out = d.armClock(out, EdgeRising)
		d.state = StateWrite
		d.count = 0
		d.data = 0
	case StateWrite:
		d.data = d.data<<1 | bit(ev.SDA)
		d.count++
		if d.count == 8 {
			d.state = StateWriteAck
			out = d.armClock(out, EdgeFalling)
		}
	case StateWriteAck:
		out = append(out, Command{Op: OpDriveData, Level: false})
		d.stats.BytesWritten.Inc()
		d.handler.ByteWritten(d.bus, d.addr, d.data)
		d.state = StateWritePrepare
	case StateIdle, StateWaitStop:
		// Left only through start/stop on SDA.
	}
	return out
}

// prepareRead fetches the next byte and drives its first bit on the same
// edge, so no clock edge is spent on the handover.
func (d *Decoder) prepareRead(out []Command) []Command {
	d.data, d.last = d.handler.ByteRequested(d.bus, d.addr)
	d.stats.BytesRead.Inc()
	// The slave owns SDA now, its own transitions must not look like start/stop.
	d.dataEdge = EdgeNone
	out = append(out, Command{Op: OpDisableData})
	d.state = StateRead
	d.count = 0
	return d.shiftOut(out)
}

func (d *Decoder) shiftOut(out []Command) []Command {
	out = append(out, Command{Op: OpDriveData, Level: d.data&0x80 != 0})
	d.data <<= 1
	d.count++
	if d.count == 8 {
		d.state = StateReadAck
	}
	return out
}

func (d *Decoder) matches(addr uint8) bool {
	for _, p := range d.patterns {
		if p.Match(addr) {
			return true
		}
	}
	return false
}

func (d *Decoder) armClock(out []Command, e Edge) []Command {
	d.clockEdge = e
	return append(out, Command{Op: OpArmClock, Edge: e})
}

func (d *Decoder) disableClock(out []Command) []Command {
	d.clockEdge = EdgeNone
	return append(out, Command{Op: OpDisableClock})
}

func (d *Decoder) armData(out []Command, e Edge) []Command {
	d.dataEdge = e
	return append(out, Command{Op: OpArmData, Edge: e})
}

// State returns the current protocol state.
func (d *Decoder) State() State { return d.state }

// Bus returns the bus identifier.
func (d *Decoder) Bus() int { return d.bus }

// Address returns the last raw address byte received, R/W bit included.
func (d *Decoder) Address() uint8 { return d.addr }

// ClockEdge returns the edge the SCL interrupt is armed for.
func (d *Decoder) ClockEdge() Edge { return d.clockEdge }

// DataEdge returns the edge the SDA interrupt is armed for.
func (d *Decoder) DataEdge() Edge { return d.dataEdge }

// Stats returns the live counters of this bus.
func (d *Decoder) Stats() *Stats { return &d.stats }

func bit(level bool) uint8 {
	if level {
		return 1
	}
	return 0
}
