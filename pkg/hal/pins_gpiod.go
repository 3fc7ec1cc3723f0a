//go:build linux && !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warthog618/gpiod"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// gpiodPins serves a bus from two GPIO character device lines. The kernel
// reports both edges on both lines all the time; edges the decoder has not
// armed are masked here.
type gpiodPins struct {
	chip     *gpiod.Chip
	scl, sda *gpiod.Line

	bus atomic.Pointer[softi2c.Bus]

	sclEdge atomic.Uint32
	sdaEdge atomic.Uint32

	// driving is only touched from Apply, which the bus serializes. sdaLow
	// mirrors it for the event handlers.
	driving bool
	sdaLow  atomic.Bool

	logger *zap.Logger

	sclEvents, sdaEvents prometheus.Counter
	sclMasked, sdaMasked prometheus.Counter
	failures             prometheus.Counter
}

// NewGpiodPins requests the lines of cfg for bus id. Both lines start as
// pulled-up inputs.
func NewGpiodPins(ctx context.Context, id int, cfg BusConfig) (BusPins, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Chip, err)
	}

	label := strconv.Itoa(id)
	p := &gpiodPins{
		chip:      chip,
		logger:    log.FromContext(ctx).With(zap.Int("bus", id)),
		sclEvents: pinEvents.WithLabelValues(label, "scl"),
		sdaEvents: pinEvents.WithLabelValues(label, "sda"),
		sclMasked: pinEventsMasked.WithLabelValues(label, "scl"),
		sdaMasked: pinEventsMasked.WithLabelValues(label, "sda"),
		failures:  pinErrors.WithLabelValues(label),
	}

	p.scl, err = chip.RequestLine(cfg.SCL,
		gpiod.WithEventHandler(p.handleSCL), gpiod.WithBothEdges, gpiod.WithPullUp)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("requesting scl line %d: %w", cfg.SCL, err), chip.Close())
	}

	p.sda, err = chip.RequestLine(cfg.SDA,
		gpiod.WithEventHandler(p.handleSDA), gpiod.WithBothEdges, gpiod.WithPullUp)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("requesting sda line %d: %w", cfg.SDA, err), p.scl.Close(), chip.Close())
	}

	return p, nil
}

func (p *gpiodPins) Attach(bus *softi2c.Bus) {
	p.bus.Store(bus)
}

func (p *gpiodPins) Apply(cmd softi2c.Command) {
	switch cmd.Op {
	case softi2c.OpArmClock:
		p.sclEdge.Store(uint32(cmd.Edge))
	case softi2c.OpDisableClock:
		p.sclEdge.Store(uint32(softi2c.EdgeNone))
	case softi2c.OpArmData:
		p.sdaEdge.Store(uint32(cmd.Edge))
	case softi2c.OpDisableData:
		p.sdaEdge.Store(uint32(softi2c.EdgeNone))
	case softi2c.OpDriveData:
		// Open drain: a high bit is the released line.
		p.drive(!cmd.Level)
	case softi2c.OpReleaseData:
		p.drive(false)
	}
}

func (p *gpiodPins) drive(low bool) {
	if low == p.driving {
		return
	}
	var err error
	if low {
		err = p.sda.Reconfigure(gpiod.AsOutput(0), gpiod.AsOpenDrain)
	} else {
		err = p.sda.Reconfigure(gpiod.AsInput, gpiod.WithBothEdges)
	}
	if err != nil {
		p.failures.Inc()
		p.logger.Warn("Failed to reconfigure sda", zap.Bool("low", low), zap.Error(err))
		return
	}
	p.driving = low
	p.sdaLow.Store(low)
}

func (p *gpiodPins) level(l *gpiod.Line) bool {
	v, err := l.Value()
	if err != nil {
		p.failures.Inc()
		// A floating line reads high through the pull-up.
		return true
	}
	return v != 0
}

func (p *gpiodPins) sdaLevel() bool {
	if p.sdaLow.Load() {
		return false
	}
	return p.level(p.sda)
}

func (p *gpiodPins) handleSCL(evt gpiod.LineEvent) {
	p.sclEvents.Inc()
	high := evt.Type == gpiod.LineEventRisingEdge
	if !softi2c.Edge(p.sclEdge.Load()).Accepts(high) {
		p.sclMasked.Inc()
		return
	}
	p.dispatch(softi2c.Event{Line: softi2c.SCL, SCL: high, SDA: p.sdaLevel()})
}

func (p *gpiodPins) handleSDA(evt gpiod.LineEvent) {
	p.sdaEvents.Inc()
	high := evt.Type == gpiod.LineEventRisingEdge
	if !softi2c.Edge(p.sdaEdge.Load()).Accepts(high) {
		p.sdaMasked.Inc()
		return
	}
	p.dispatch(softi2c.Event{Line: softi2c.SDA, SCL: p.level(p.scl), SDA: high})
}

func (p *gpiodPins) dispatch(ev softi2c.Event) {
	if bus := p.bus.Load(); bus != nil {
		bus.HandleEdge(ev)
	}
}

// Close releases both lines and the chip.
func (p *gpiodPins) Close() error {
	return errors.Join(
		p.scl.Close(),
		p.sda.Close(),
		p.chip.Close(),
	)
}
