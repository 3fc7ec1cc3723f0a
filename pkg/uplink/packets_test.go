package uplink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink/proto"
)

func TestPacketLayout(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name     string
		gen      uplink.PacketGenerator
		expected proto.Packet
	}{
		{
			name:     "start",
			gen:      &uplink.StartPacket{},
			expected: proto.Packet{Command: uplink.CmdStart},
		},
		{
			name:     "enable",
			gen:      &uplink.SetEnabledPacket{Slot: 13, Enabled: true},
			expected: proto.Packet{Command: uplink.CmdSetEnabled, Data: proto.Data{13, 1, 0}},
		},
		{
			name:     "disable",
			gen:      &uplink.SetEnabledPacket{Slot: 2},
			expected: proto.Packet{Command: uplink.CmdSetEnabled, Data: proto.Data{2, 0, 0}},
		},
		{
			name:     "requested tach is little endian",
			gen:      &uplink.SetRequestedTachPacket{Slot: 1, Tach: 0x0400},
			expected: proto.Packet{Command: uplink.CmdSetRequestedTach, Data: proto.Data{1, 0x00, 0x04}},
		},
		{
			name:     "actual tach",
			gen:      &uplink.ActualTachPacket{Slot: 7, Tach: 0x0ccc},
			expected: proto.Packet{Command: uplink.NotifyActualTach, Data: proto.Data{7, 0xcc, 0x0c}},
		},
	}

	for _, tcl := range testcases {
		tc := tcl
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, tc.gen.Packet())
		})
	}
}

func TestPacketFromPacket(t *testing.T) {
	t.Parallel()

	var tach uplink.ActualTachPacket
	require.NoError(t, tach.FromPacket(proto.Packet{Command: uplink.NotifyActualTach, Data: proto.Data{3, 0x34, 0x12}}))
	assert.Equal(t, uplink.ActualTachPacket{Slot: 3, Tach: 0x1234}, tach)

	err := tach.FromPacket(proto.Packet{Command: uplink.CmdSetRequestedTach, Data: proto.Data{3, 0x34, 0x12}})
	assert.ErrorIs(t, err, uplink.ErrInvalidCommand)

	err = tach.FromPacket(proto.Packet{Command: uplink.NotifyActualTach, Data: proto.Data{14, 0x34, 0x12}})
	assert.ErrorIs(t, err, uplink.ErrInvalidSlot)

	var enabled uplink.SetEnabledPacket
	require.NoError(t, enabled.FromPacket((&uplink.SetEnabledPacket{Slot: 5, Enabled: true}).Packet()))
	assert.Equal(t, uplink.SetEnabledPacket{Slot: 5, Enabled: true}, enabled)

	var requested uplink.SetRequestedTachPacket
	require.NoError(t, requested.FromPacket((&uplink.SetRequestedTachPacket{Slot: 0, Tach: 5}).Packet()))
	assert.Equal(t, uint16(5), requested.Tach)

	var start uplink.StartPacket
	assert.NoError(t, start.FromPacket(proto.Packet{Command: uplink.CmdStart}))
	assert.ErrorIs(t, start.FromPacket(proto.Packet{Command: uplink.CmdSetEnabled}), uplink.ErrInvalidCommand)
}

func TestMatchCmd(t *testing.T) {
	t.Parallel()

	match := uplink.MatchCmd(uplink.NotifyActualTach)
	assert.True(t, match(proto.Packet{Command: uplink.NotifyActualTach}))
	assert.False(t, match(proto.Packet{Command: uplink.CmdStart}))
}
