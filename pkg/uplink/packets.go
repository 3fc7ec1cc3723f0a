package uplink

import (
	"errors"

	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink/proto"
)

const (
	Baudrate = 115200
)

const (
	// Emulator -> fan master
	CmdStart            proto.Command = 0x01
	CmdSetEnabled       proto.Command = 0x02
	CmdSetRequestedTach proto.Command = 0x03

	// Fan master -> emulator, after every update round and in regular intervals
	NotifyActualTach proto.Command = 0xa1
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrInvalidSlot    = errors.New("invalid slot")
)

// MatchCmd returns an event bus filter for packets carrying cmd.
func MatchCmd(cmd proto.Command) func(proto.Packet) bool {
	return func(pkt proto.Packet) bool {
		return pkt.Command == cmd
	}
}

type PacketGenerator interface {
	Packet() proto.Packet
}

func slotFrom(packet proto.Packet) (uint8, error) {
	if int(packet.Data[0]) >= telemetry.Slots {
		return 0, ErrInvalidSlot
	}
	return packet.Data[0], nil
}

func tachData(slot uint8, tach uint16) proto.Data {
	return proto.Data{slot, uint8(tach), uint8(tach >> 8)}
}

func tachFrom(data proto.Data) uint16 {
	return uint16(data[2])<<8 | uint16(data[1])
}

// StartPacket tells the fan master to spin up the fans.
type StartPacket struct{}

func (p *StartPacket) Packet() proto.Packet {
	return proto.Packet{Command: CmdStart}
}

func (p *StartPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != CmdStart {
		return ErrInvalidCommand
	}
	return nil
}

// SetEnabledPacket switches one fan slot on or off.
type SetEnabledPacket struct {
	Slot    uint8
	Enabled bool
}

func (p *SetEnabledPacket) Packet() proto.Packet {
	var flag uint8
	if p.Enabled {
		flag = 1
	}
	return proto.Packet{
		Command: CmdSetEnabled,
		Data:    proto.Data{p.Slot, flag, 0},
	}
}

func (p *SetEnabledPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != CmdSetEnabled {
		return ErrInvalidCommand
	}
	slot, err := slotFrom(packet)
	if err != nil {
		return err
	}
	p.Slot = slot
	p.Enabled = packet.Data[1] != 0
	return nil
}

// SetRequestedTachPacket forwards the tach value the host requested for a slot.
type SetRequestedTachPacket struct {
	Slot uint8
	Tach uint16
}

func (p *SetRequestedTachPacket) Packet() proto.Packet {
	return proto.Packet{
		Command: CmdSetRequestedTach,
		Data:    tachData(p.Slot, p.Tach),
	}
}

func (p *SetRequestedTachPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != CmdSetRequestedTach {
		return ErrInvalidCommand
	}
	slot, err := slotFrom(packet)
	if err != nil {
		return err
	}
	p.Slot = slot
	p.Tach = tachFrom(packet.Data)
	return nil
}

// ActualTachPacket reports the measured tach count of a slot.
type ActualTachPacket struct {
	Slot uint8
	Tach uint16
}

func (p *ActualTachPacket) Packet() proto.Packet {
	return proto.Packet{
		Command: NotifyActualTach,
		Data:    tachData(p.Slot, p.Tach),
	}
}

func (p *ActualTachPacket) FromPacket(packet proto.Packet) error {
	if packet.Command != NotifyActualTach {
		return ErrInvalidCommand
	}
	slot, err := slotFrom(packet)
	if err != nil {
		return err
	}
	p.Slot = slot
	p.Tach = tachFrom(packet.Data)
	return nil
}
