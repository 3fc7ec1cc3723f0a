package fanslave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
)

func TestRegisterFileTachPairCommits(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0)
	regs := fanslave.NewRegisterFile(fans, 4)

	regs.Write(fanslave.RegRequestedTach1Low, 0x34)
	assert.Equal(t, uint16(0), fans.RequestedTach(4), "low byte alone is staged")

	regs.Write(fanslave.RegRequestedTach1High, 0x12)
	assert.Equal(t, uint16(0x1234), fans.RequestedTach(4))

	regs.Write(fanslave.RegRequestedTach2Low, 0x00)
	regs.Write(fanslave.RegRequestedTach2High, 0x04)
	assert.Equal(t, uint16(0x0400), fans.RequestedTach(5))
}

func TestRegisterFileHighWithoutLowIgnored(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name   string
		writes [][2]uint8
	}{
		{
			name:   "high only",
			writes: [][2]uint8{{fanslave.RegRequestedTach1High, 0x12}},
		},
		{
			name: "low of the other pair",
			writes: [][2]uint8{
				{fanslave.RegRequestedTach2Low, 0x34},
				{fanslave.RegRequestedTach1High, 0x12},
			},
		},
		{
			name: "second high after commit",
			writes: [][2]uint8{
				{fanslave.RegRequestedTach1Low, 0x34},
				{fanslave.RegRequestedTach1High, 0x00},
				{fanslave.RegRequestedTach1High, 0x12},
			},
		},
	}

	for _, tcl := range testcases {
		tc := tcl
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fans := telemetry.New(0)
			regs := fanslave.NewRegisterFile(fans, 0)
			for _, w := range tc.writes {
				regs.Write(w[0], w[1])
			}
			assert.NotEqual(t, uint16(0x1234), fans.RequestedTach(0))
			assert.NotEqual(t, uint16(0x1200), fans.RequestedTach(0))
		})
	}
}

func TestRegisterFileEnableFlags(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		val           uint8
		first, second bool
	}{
		{0x00, false, false},
		{0x40, true, false},
		{0x80, false, true},
		{0xc0, true, true},
		{0x3f, false, false},
	}

	for _, tc := range testcases {
		fans := telemetry.New(0)
		regs := fanslave.NewRegisterFile(fans, 2)
		regs.Write(fanslave.RegFanEnable, tc.val)
		assert.Equal(t, tc.first, fans.Enabled(2), "value %#02x", tc.val)
		assert.Equal(t, tc.second, fans.Enabled(3), "value %#02x", tc.val)
	}
}

func TestRegisterFileActualTach(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0)
	fans.SetActualTach(6, 0xbeef)
	fans.SetActualTach(7, 0x0102)
	regs := fanslave.NewRegisterFile(fans, 6)

	assert.Equal(t, uint8(0xef), regs.Read(fanslave.RegActualTach1Low))
	assert.Equal(t, uint8(0xbe), regs.Read(fanslave.RegActualTach1High))
	assert.Equal(t, uint8(0x02), regs.Read(fanslave.RegActualTach2Low))
	assert.Equal(t, uint8(0x01), regs.Read(fanslave.RegActualTach2High))
	assert.Equal(t, uint8(0x00), regs.Read(fanslave.RegRequestedTach1Low))
	assert.Equal(t, uint8(0x00), regs.Read(0x7f))
}

func TestRegisterFileTriggers(t *testing.T) {
	t.Parallel()

	for slot := 0; slot < telemetry.Slots; slot += 2 {
		fans := telemetry.New(0)
		regs := fanslave.NewRegisterFile(fans, slot)
		trigger := slot == telemetry.Slots-2
		assert.Equal(t, trigger, regs.Trigger())

		regs.Write(fanslave.RegRequestedTach2High, 0x00)
		regs.Write(fanslave.RegStart, 0x01)
		assert.Equal(t, trigger, fans.TakeRPMUpdateRequest(), "slot %d", slot)
		assert.Equal(t, trigger, fans.TakeStartRequest(), "slot %d", slot)
	}
}

func TestRegisterFileReadCount(t *testing.T) {
	t.Parallel()

	regs := fanslave.NewRegisterFile(telemetry.New(0), 0)
	assert.Equal(t, uint8(0), regs.ReadCount())
	regs.Write(fanslave.RegReadCount, 4)
	assert.Equal(t, uint8(4), regs.ReadCount())
	assert.Equal(t, uint8(0), regs.Read(fanslave.RegReadCount), "count is write only")
}
