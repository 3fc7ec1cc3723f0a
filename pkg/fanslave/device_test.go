package fanslave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
)

func newDevice(fans *telemetry.State) *fanslave.Device {
	return fanslave.NewDevice(0, fanslave.NewRegisterFile(fans, 0))
}

func TestDeviceSingleWrite(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0)
	d := newDevice(fans)

	d.Receive(fanslave.RegFanEnable)
	assert.Equal(t, fanslave.DeviceSingle, d.State())
	d.Receive(0xc0)
	assert.Equal(t, fanslave.DeviceInvalid, d.State())
	assert.True(t, fans.Enabled(0))
	assert.True(t, fans.Enabled(1))

	// Anything after the value is dropped until stop.
	d.Receive(0x00)
	assert.True(t, fans.Enabled(0))

	d.Stop()
	assert.Equal(t, fanslave.DeviceIdle, d.State())
}

func TestDeviceSingleRead(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0x0ccc)
	d := newDevice(fans)

	d.Receive(fanslave.RegActualTach1High)
	b, last := d.Transmit()
	assert.Equal(t, uint8(0x0c), b)
	assert.True(t, last)
	assert.Equal(t, fanslave.DeviceInvalid, d.State())

	b, last = d.Transmit()
	assert.Equal(t, uint8(0x00), b)
	assert.True(t, last)
}

func TestDeviceReadWithoutRegister(t *testing.T) {
	t.Parallel()

	d := newDevice(telemetry.New(0x1234))
	b, last := d.Transmit()
	assert.Equal(t, uint8(0x00), b)
	assert.True(t, last)
}

func TestDeviceBlockWrite(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0)
	d := newDevice(fans)

	for _, b := range []byte{0x80 | fanslave.RegRequestedTach1Low, 4, 0x34, 0x12, 0x78, 0x56} {
		d.Receive(b)
	}
	assert.Equal(t, fanslave.DeviceInvalid, d.State())
	assert.Equal(t, uint16(0x1234), fans.RequestedTach(0))
	assert.Equal(t, uint16(0x5678), fans.RequestedTach(1))
}

func TestDeviceBlockWriteZeroCount(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0)
	d := newDevice(fans)

	d.Receive(0x80 | fanslave.RegFanEnable)
	d.Receive(0)
	assert.Equal(t, fanslave.DeviceInvalid, d.State(), "zero count writes nothing")
	for i := 0; i < 300; i++ {
		d.Receive(0xc0)
	}
	assert.False(t, fans.Enabled(0))
	assert.False(t, fans.Enabled(1))

	d.Stop()
	assert.Equal(t, fanslave.DeviceIdle, d.State())
	d.Receive(0x80 | fanslave.RegFanEnable)
	d.Receive(1)
	assert.Equal(t, fanslave.DeviceBlockRW, d.State())
	d.Receive(0xc0)
	assert.True(t, fans.Enabled(0))
	assert.Equal(t, fanslave.DeviceInvalid, d.State())
}

func TestDeviceBlockRead(t *testing.T) {
	t.Parallel()

	fans := telemetry.New(0)
	fans.SetActualTach(0, 0x1122)
	fans.SetActualTach(1, 0x3344)
	d := newDevice(fans)

	d.Receive(fanslave.RegReadCount)
	d.Receive(4)
	d.Stop()

	d.Receive(0x80 | fanslave.RegActualTach1Low)

	type reply struct {
		b    byte
		last bool
	}
	var got []reply
	for i := 0; i < 5; i++ {
		b, last := d.Transmit()
		got = append(got, reply{b, last})
	}
	assert.Equal(t, []reply{
		{4, false},
		{0x22, false},
		{0x11, false},
		{0x44, false},
		{0x33, true},
	}, got)
	assert.Equal(t, fanslave.DeviceInvalid, d.State())
}

func TestDeviceBlockReadZeroCount(t *testing.T) {
	t.Parallel()

	d := newDevice(telemetry.New(0))
	d.Receive(0x80 | fanslave.RegActualTach1Low)

	b, last := d.Transmit()
	assert.Equal(t, uint8(0), b)
	assert.True(t, last)
	assert.Equal(t, fanslave.DeviceInvalid, d.State())
}

func TestDeviceRegisterWraps(t *testing.T) {
	t.Parallel()

	d := newDevice(telemetry.New(0))
	d.Receive(fanslave.RegReadCount)
	d.Receive(3)
	d.Stop()

	// 0x7f, 0x00, 0x01: the index wraps within seven bits.
	d.Receive(0xff)
	d.Receive(3)
	d.Receive(0xaa)
	d.Receive(5)
	d.Receive(0xbb)
	assert.Equal(t, uint8(5), d.Registers().ReadCount())
}

func TestDeviceStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", fanslave.DeviceIdle.String())
	assert.Equal(t, "block_rw", fanslave.DeviceBlockRW.String())
	assert.Equal(t, "unknown", fanslave.DeviceState(42).String())
}
