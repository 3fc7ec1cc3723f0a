package i2csim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c/i2csim"
)

type recorder struct {
	written []byte
	replies []byte
	stops   int
}

func (r *recorder) ByteWritten(_ int, _ uint8, b byte) {
	r.written = append(r.written, b)
}

func (r *recorder) ByteRequested(_ int, _ uint8) (byte, bool) {
	if len(r.replies) == 0 {
		return 0xff, true
	}
	b := r.replies[0]
	r.replies = r.replies[1:]
	return b, len(r.replies) == 0
}

func (r *recorder) Stopped(int, uint8) {
	r.stops++
}

func connect(h softi2c.Handler) (*i2csim.Master, *i2csim.Wire, *softi2c.Bus) {
	return i2csim.Connect(softi2c.Config{
		Bus:       0,
		Addresses: []softi2c.AddressPattern{{Value: 0xa0, Mask: 0xf8}},
		Handler:   h,
	})
}

func assertReleased(t *testing.T, w *i2csim.Wire, bus *softi2c.Bus) {
	t.Helper()
	assert.Equal(t, softi2c.StateIdle, bus.State())
	assert.True(t, w.SCL())
	assert.True(t, w.SDA())
	assert.False(t, w.SlaveDriving())
}

func TestWireIdle(t *testing.T) {
	t.Parallel()

	w := i2csim.NewWire()
	assert.True(t, w.SCL())
	assert.True(t, w.SDA())
	assert.False(t, w.SlaveDriving())
}

func TestMasterWrite(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m, w, bus := connect(rec)

	err := m.Write(0x53, 0x01, 0x80, 0xff, 0x00)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x80, 0xff, 0x00}, rec.written)
	assert.Equal(t, 1, rec.stops)
	assertReleased(t, w, bus)

	stats := bus.Stats().Snapshot()
	assert.Equal(t, uint32(1), stats.Starts)
	assert.Equal(t, uint32(1), stats.Stops)
	assert.Equal(t, uint32(1), stats.AddressMatches)
	assert.Equal(t, uint32(4), stats.BytesWritten)
}

func TestMasterWriteNotAcknowledged(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m, w, bus := connect(rec)

	err := m.Write(0x20, 0x01)
	assert.ErrorIs(t, err, i2csim.ErrNack)
	assert.Empty(t, rec.written)
	assertReleased(t, w, bus)
	assert.Equal(t, uint32(1), bus.Stats().AddressMismatches.Load())
}

func TestMasterRead(t *testing.T) {
	t.Parallel()

	rec := &recorder{replies: []byte{0xa5, 0x00, 0x7f}}
	m, w, bus := connect(rec)

	data, err := m.Read(0x50, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa5, 0x00, 0x7f}, data)
	assertReleased(t, w, bus)
}

func TestMasterWriteRead(t *testing.T) {
	t.Parallel()

	rec := &recorder{replies: []byte{0x3c}}
	m, w, bus := connect(rec)

	data, err := m.WriteRead(0x53, []byte{0x4a}, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4a}, rec.written)
	assert.Equal(t, []byte{0x3c}, data)
	assertReleased(t, w, bus)
	assert.Equal(t, uint32(2), bus.Stats().Starts.Load(), "repeated start counts")
}

func TestMasterWriteReadNotAcknowledged(t *testing.T) {
	t.Parallel()

	rec := &recorder{replies: []byte{0x3c}}
	m, w, bus := connect(rec)

	// 0x57 is outside the 0x50-0x53 family.
	data, err := m.WriteRead(0x57, []byte{0x4a}, 1)
	assert.ErrorIs(t, err, i2csim.ErrNack)
	assert.Empty(t, data)
	assert.Empty(t, rec.written)
	assertReleased(t, w, bus)

	stats := bus.Stats().Snapshot()
	assert.Equal(t, uint32(1), stats.Starts, "no repeated start after the nack")
	assert.Equal(t, uint32(1), stats.AddressMismatches)
	assert.Equal(t, uint32(0), stats.BytesRead)

	// The next transaction is served.
	data, err = m.WriteRead(0x53, []byte{0x4a}, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3c}, data)
	assertReleased(t, w, bus)
}

func TestMasterNackBeforeLastByte(t *testing.T) {
	t.Parallel()

	rec := &recorder{replies: []byte{0x3c, 0x00, 0x00}}
	m, w, bus := connect(rec)

	data, err := m.Read(0x51, 1)
	require.NoError(t, err, "stop must get through")
	assert.Equal(t, []byte{0x3c}, data)
	assertReleased(t, w, bus)
	assert.Equal(t, 1, rec.stops)
	assert.Equal(t, uint32(1), bus.Stats().ReadNacks.Load())
	assert.Equal(t, []byte{0x00, 0x00}, rec.replies, "remaining bytes not fetched")

	data, err = m.Read(0x51, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, data)
	assertReleased(t, w, bus)
}

func TestMasterPastLastByteReadsIdle(t *testing.T) {
	t.Parallel()

	rec := &recorder{replies: []byte{0x12}}
	m, w, bus := connect(rec)

	data, err := m.Read(0x50, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0xff, 0xff}, data)
	assertReleased(t, w, bus)
}

func TestMasterTruncatedByte(t *testing.T) {
	t.Parallel()

	for n := 0; n < 8; n++ {
		n := n
		t.Run("", func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			m, w, bus := connect(rec)

			require.NoError(t, m.Start())
			require.NoError(t, m.WriteByte(0xa6))
			m.ClockBits(0x55, n)
			require.NoError(t, m.Stop())

			assert.Empty(t, rec.written)
			assertReleased(t, w, bus)

			// The bus accepts a full transaction afterwards.
			require.NoError(t, m.Write(0x53, 0x42))
			assert.Equal(t, []byte{0x42}, rec.written)
		})
	}
}

func TestWireRecord(t *testing.T) {
	t.Parallel()

	m, w, _ := connect(&recorder{})
	w.Record(true)

	require.NoError(t, m.Write(0x53, 0x00))

	var drives int
	for _, cmd := range w.Commands() {
		if cmd.Op == softi2c.OpDriveData {
			assert.False(t, cmd.Level, "writes only ever acknowledge")
			drives++
		}
	}
	assert.Equal(t, 2, drives, "address and data acknowledge")
}
