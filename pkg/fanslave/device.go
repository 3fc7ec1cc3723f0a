package fanslave

// DeviceState is the register access state of one emulated device. It is
// scoped to a bus transaction: once a transfer completes the device waits in
// DeviceInvalid until a stop is seen.
type DeviceState uint8

const (
	DeviceIdle DeviceState = iota
	DeviceSingle
	DeviceBlockCount
	DeviceBlockRW
	DeviceInvalid
)

func (s DeviceState) String() string {
	switch s {
	case DeviceIdle:
		return "idle"
	case DeviceSingle:
		return "single"
	case DeviceBlockCount:
		return "block_count"
	case DeviceBlockRW:
		return "block_rw"
	case DeviceInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// blockFlag in the first written byte selects a block transfer; the low
// seven bits are the register address.
const blockFlag = 0x80

// Device is the register access state machine of one emulated fan
// controller.
type Device struct {
	index     int
	regs      *RegisterFile
	state     DeviceState
	reg       uint8
	remaining uint8
}

// NewDevice returns the device with the given index backed by regs.
func NewDevice(index int, regs *RegisterFile) *Device {
	return &Device{index: index, regs: regs}
}

// Index returns the device index.
func (d *Device) Index() int { return d.index }

// State returns the current register access state.
func (d *Device) State() DeviceState { return d.state }

// Registers returns the register file of the device.
func (d *Device) Registers() *RegisterFile { return d.regs }

// Receive handles a byte written by the host.
func (d *Device) Receive(b byte) {
	switch d.state {
	case DeviceIdle:
		d.reg = b &^ blockFlag
		if b&blockFlag != 0 {
			d.state = DeviceBlockCount
		} else {
			d.state = DeviceSingle
		}
	case DeviceSingle:
		d.regs.Write(d.reg, b)
		d.state = DeviceInvalid
	case DeviceBlockCount:
		d.remaining = b
		if d.remaining == 0 {
			d.state = DeviceInvalid
		} else {
			d.state = DeviceBlockRW
		}
	case DeviceBlockRW:
		d.regs.Write(d.reg, b)
		d.advance()
		if d.remaining == 0 {
			d.state = DeviceInvalid
		}
	case DeviceInvalid:
		// Waiting for stop.
	}
}

// Transmit returns the next byte for the host and whether it is the last
// one of the transfer. Reads without a register selected return zero.
func (d *Device) Transmit() (byte, bool) {
	switch d.state {
	case DeviceSingle:
		d.state = DeviceInvalid
		return d.regs.Read(d.reg), true
	case DeviceBlockCount:
		count := d.regs.ReadCount()
		d.remaining = count
		if count == 0 {
			d.state = DeviceInvalid
			return count, true
		}
		d.state = DeviceBlockRW
		return count, false
	case DeviceBlockRW:
		v := d.regs.Read(d.reg)
		d.advance()
		if d.remaining == 0 {
			d.state = DeviceInvalid
			return v, true
		}
		return v, false
	default:
		return 0x00, true
	}
}

// Stop ends the transaction.
func (d *Device) Stop() {
	d.state = DeviceIdle
}

func (d *Device) advance() {
	d.reg = (d.reg + 1) &^ blockFlag
	d.remaining--
}
