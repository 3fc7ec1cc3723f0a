package uplink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/zephray/XserveFanSpeedController/pkg/eventbus"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink/proto"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const inboundTopic = "uplink:inbound"

// LinkStats counts inbound traffic of a Link.
type LinkStats struct {
	Packets uint32
	Errors  uint32
}

// Link is a FanMaster reached over a byte stream, usually a serial port.
type Link struct {
	rwc io.ReadWriteCloser
	r   *proto.Reader
	mu  sync.Mutex // write mutex

	actual [telemetry.Slots]atomic.Uint32

	rxPackets atomic.Uint32
	rxErrors  atomic.Uint32

	eb eventbus.EventBus[proto.Packet]
}

var _ FanMaster = &Link{}

// NewLink returns a link on rwc reporting actualTach on every slot until the
// fan master sends its first measurement. Run must be running for
// measurements to arrive.
func NewLink(rwc io.ReadWriteCloser, actualTach uint16) *Link {
	l := &Link{
		rwc: rwc,
		r:   proto.NewReader(bufio.NewReader(rwc)),
		eb:  eventbus.New[proto.Packet](),
	}
	for i := range l.actual {
		l.actual[i].Store(uint32(actualTach))
	}
	return l
}

// Run reads inbound packets until ctx is done or the stream fails. It closes
// the stream on return.
func (l *Link) Run(parentCtx context.Context) error {
	wg, ctx := errgroup.WithContext(parentCtx)

	// Subscribe before reading so no measurement is missed
	sub := l.eb.Subscribe(inboundTopic, 16, MatchCmd(NotifyActualTach))
	defer sub.Unsubscribe()

	// Closing the stream unblocks the reader
	wg.Go(func() error {
		<-ctx.Done()
		return l.rwc.Close()
	})

	wg.Go(func() error {
		for {
			pkt, err := l.r.ReadPacket(ctx)
			switch {
			case err == nil:
				l.rxPackets.Inc()
				l.eb.Publish(inboundTopic, pkt)
			case errors.Is(err, proto.ErrChecksumMismatch), errors.Is(err, proto.ErrInvalidFrame):
				l.rxErrors.Inc()
				log.FromContext(ctx).Debug("Dropped packet from fan master", zap.Error(err))
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("reading from fan master: %w", err)
			}
		}
	})

	wg.Go(func() error {
		var update ActualTachPacket
		for {
			select {
			case <-ctx.Done():
				return nil
			case pkt := <-sub.C():
				if err := update.FromPacket(pkt); err != nil {
					l.rxErrors.Inc()
					log.FromContext(ctx).Debug("Invalid actual tach packet", zap.Error(err))
					continue
				}
				l.actual[update.Slot].Store(uint32(update.Tach))
			}
		}
	})

	if err := wg.Wait(); err != nil && parentCtx.Err() == nil {
		return err
	}
	return nil
}

// Subscribe returns a subscription to inbound packets matching filter.
func (l *Link) Subscribe(bufSize int, filter func(proto.Packet) bool) eventbus.Subscriber[proto.Packet] {
	return l.eb.Subscribe(inboundTopic, bufSize, filter)
}

// Stats returns the inbound packet counters.
func (l *Link) Stats() LinkStats {
	return LinkStats{
		Packets: l.rxPackets.Load(),
		Errors:  l.rxErrors.Load(),
	}
}

func (l *Link) write(ctx context.Context, pktGen PacketGenerator) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return proto.WritePacket(ctx, l.rwc, pktGen.Packet())
}

func (l *Link) Start(ctx context.Context) error {
	return l.write(ctx, &StartPacket{})
}

func (l *Link) SetFans(ctx context.Context, fans []telemetry.Fan) error {
	for _, f := range fans {
		if f.Slot < 0 || f.Slot >= telemetry.Slots {
			return ErrInvalidSlot
		}
		slot := uint8(f.Slot)
		if err := l.write(ctx, &SetEnabledPacket{Slot: slot, Enabled: f.Enabled}); err != nil {
			return fmt.Errorf("fan %d: %w", f.Slot, err)
		}
		if err := l.write(ctx, &SetRequestedTachPacket{Slot: slot, Tach: f.RequestedTach}); err != nil {
			return fmt.Errorf("fan %d: %w", f.Slot, err)
		}
	}
	return nil
}

func (l *Link) ActualTach(_ context.Context) ([telemetry.Slots]uint16, error) {
	var tach [telemetry.Slots]uint16
	for i := range tach {
		tach[i] = uint16(l.actual[i].Load())
	}
	return tach, nil
}

// Close closes the underlying stream.
func (l *Link) Close() error {
	return l.rwc.Close()
}
