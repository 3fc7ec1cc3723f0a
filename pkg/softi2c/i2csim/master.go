package i2csim

import (
	"errors"
	"fmt"
)

var (
	// ErrNack is returned when the slave did not acknowledge a byte.
	ErrNack = errors.New("i2csim: byte not acknowledged")
	// ErrBusHeld is returned when SDA could not be released for a stop.
	ErrBusHeld = errors.New("i2csim: sda held low by slave")
)

// Master is a bit-banged I2C master on a Wire. Every level change is
// delivered to the slave before the method continues, so the slave always
// reacts within the same "bit period".
type Master struct {
	w *Wire
}

// NewMaster returns a master driving w.
func NewMaster(w *Wire) *Master {
	return &Master{w: w}
}

// Start issues a start condition, or a repeated start when a transaction is
// already in progress.
func (m *Master) Start() error {
	if !m.w.masterSCL {
		m.w.setSDA(true)
		m.w.setSCL(true)
	}
	if !m.w.SDA() {
		return ErrBusHeld
	}
	m.w.setSDA(false)
	m.w.setSCL(false)
	return nil
}

// Stop issues a stop condition.
func (m *Master) Stop() error {
	m.w.setSDA(false)
	m.w.setSCL(true)
	m.w.setSDA(true)
	if !m.w.SDA() {
		return ErrBusHeld
	}
	return nil
}

// ClockBits clocks out the top n bits of b without the acknowledge bit. It
// exists to cut a byte short.
func (m *Master) ClockBits(b byte, n int) {
	for i := 0; i < n && i < 8; i++ {
		m.w.setSDA(b&(0x80>>i) != 0)
		m.w.setSCL(true)
		m.w.setSCL(false)
	}
}

// WriteByte sends b and reads the acknowledge bit.
func (m *Master) WriteByte(b byte) error {
	m.ClockBits(b, 8)
	m.w.setSDA(true)
	m.w.setSCL(true)
	ack := !m.w.SDA()
	m.w.setSCL(false)
	if !ack {
		return ErrNack
	}
	return nil
}

// ReceiveByte reads one byte and answers with an acknowledge (ack) or a
// not-acknowledge.
func (m *Master) ReceiveByte(ack bool) (byte, error) {
	m.w.setSDA(true)
	var b byte
	for i := 0; i < 8; i++ {
		m.w.setSCL(true)
		b <<= 1
		if m.w.SDA() {
			b |= 1
		}
		m.w.setSCL(false)
	}
	m.w.setSDA(!ack)
	m.w.setSCL(true)
	m.w.setSCL(false)
	m.w.setSDA(true)
	return b, nil
}

// Write performs start, address+W, data, stop.
func (m *Master) Write(addr uint8, data ...byte) error {
	if err := m.Start(); err != nil {
		return err
	}
	err := func() error {
		if err := m.WriteByte(addr << 1); err != nil {
			return fmt.Errorf("address %#02x: %w", addr, err)
		}
		for i, b := range data {
			if err := m.WriteByte(b); err != nil {
				return fmt.Errorf("byte %d: %w", i, err)
			}
		}
		return nil
	}()
	return m.finish(err)
}

// Read performs start, address+R, n bytes, stop. All but the last byte are
// acknowledged.
func (m *Master) Read(addr uint8, n int) ([]byte, error) {
	if err := m.Start(); err != nil {
		return nil, err
	}
	r := make([]byte, 0, n)
	err := func() error {
		if err := m.WriteByte(addr<<1 | 0x01); err != nil {
			return fmt.Errorf("address %#02x: %w", addr, err)
		}
		for i := 0; i < n; i++ {
			b, err := m.ReceiveByte(i < n-1)
			if err != nil {
				return err
			}
			r = append(r, b)
		}
		return nil
	}()
	return r, m.finish(err)
}

// WriteRead writes w, then reads n bytes after a repeated start. All but the
// last byte are acknowledged.
func (m *Master) WriteRead(addr uint8, w []byte, n int) ([]byte, error) {
	if err := m.Start(); err != nil {
		return nil, err
	}
	r := make([]byte, 0, n)
	err := func() error {
		if err := m.WriteByte(addr << 1); err != nil {
			return fmt.Errorf("address %#02x: %w", addr, err)
		}
		for i, b := range w {
			if err := m.WriteByte(b); err != nil {
				return fmt.Errorf("byte %d: %w", i, err)
			}
		}
		if n == 0 {
			return nil
		}
		if err := m.Start(); err != nil {
			return err
		}
		if err := m.WriteByte(addr<<1 | 0x01); err != nil {
			return fmt.Errorf("address %#02x: %w", addr, err)
		}
		for i := 0; i < n; i++ {
			b, err := m.ReceiveByte(i < n-1)
			if err != nil {
				return err
			}
			r = append(r, b)
		}
		return nil
	}()
	return r, m.finish(err)
}

// finish sends the stop; an earlier error wins over a stop error.
func (m *Master) finish(err error) error {
	if stopErr := m.Stop(); err == nil {
		err = stopErr
	}
	return err
}
