package fanslave

import "github.com/zephray/XserveFanSpeedController/pkg/telemetry"

// Register map of one emulated fan controller. Every device owns two
// consecutive telemetry slots; "first" and "second" below refer to them.
const (
	RegReadCount = 0x00 // block read count
	RegFanEnable = 0x07 // bit 6: first fan, bit 7: second fan

	RegRequestedTach1Low  = 0x2a
	RegRequestedTach1High = 0x2b
	RegRequestedTach2Low  = 0x2c
	RegRequestedTach2High = 0x2d // raises the RPM update request on the trigger device

	RegStart = 0x3c // raises the start request on the trigger device

	RegActualTach1Low  = 0x4a
	RegActualTach1High = 0x4b
	RegActualTach2Low  = 0x4c
	RegActualTach2High = 0x4d
)

// RegisterFile maps register addresses of one device onto its telemetry
// slots. Only the device owning the last slot pair forwards the start and
// RPM update triggers, since the host writes it last in every update round.
type RegisterFile struct {
	fans    *telemetry.State
	slot    int
	trigger bool

	readCount uint8

	// Low byte of a requested tach pair, waiting for its high byte.
	staged      uint8
	stagedReg   uint8
	stagedValid bool
}

// NewRegisterFile returns the register file of the device whose first slot
// is slot.
func NewRegisterFile(fans *telemetry.State, slot int) *RegisterFile {
	return &RegisterFile{
		fans:    fans,
		slot:    slot,
		trigger: slot == telemetry.Slots-2,
	}
}

// Slot returns the first telemetry slot owned by this register file.
func (r *RegisterFile) Slot() int { return r.slot }

// Trigger reports whether writes here raise the controller request flags.
func (r *RegisterFile) Trigger() bool { return r.trigger }

// ReadCount returns the configured block read count.
func (r *RegisterFile) ReadCount() uint8 { return r.readCount }

// Write commits one register write. Unknown registers are ignored.
func (r *RegisterFile) Write(reg, val uint8) {
	switch reg {
	case RegReadCount:
		r.readCount = val
	case RegFanEnable:
		r.fans.SetEnabled(r.slot, val&0x40 != 0)
		r.fans.SetEnabled(r.slot+1, val&0x80 != 0)
	case RegRequestedTach1Low, RegRequestedTach2Low:
		r.staged = val
		r.stagedReg = reg
		r.stagedValid = true
	case RegRequestedTach1High:
		r.commit(RegRequestedTach1Low, r.slot, val)
	case RegRequestedTach2High:
		r.commit(RegRequestedTach2Low, r.slot+1, val)
		if r.trigger {
			r.fans.RequestRPMUpdate()
		}
	case RegStart:
		if r.trigger {
			r.fans.RequestStart()
		}
	}
}

// commit stores the 16-bit value only when its low byte was staged first.
func (r *RegisterFile) commit(lowReg uint8, slot int, high uint8) {
	if !r.stagedValid || r.stagedReg != lowReg {
		return
	}
	r.fans.SetRequestedTach(slot, uint16(high)<<8|uint16(r.staged))
	r.stagedValid = false
}

// Read returns the value of reg. Unknown registers read as zero.
func (r *RegisterFile) Read(reg uint8) uint8 {
	switch reg {
	case RegActualTach1Low:
		return uint8(r.fans.ActualTach(r.slot))
	case RegActualTach1High:
		return uint8(r.fans.ActualTach(r.slot) >> 8)
	case RegActualTach2Low:
		return uint8(r.fans.ActualTach(r.slot + 1))
	case RegActualTach2High:
		return uint8(r.fans.ActualTach(r.slot+1) >> 8)
	default:
		return 0x00
	}
}
