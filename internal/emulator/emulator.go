// Package emulator wires the fan controller emulator together: the slave
// buses, the emulated devices, the shared telemetry, the fan master and the
// controller loop between them.
package emulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/zephray/XserveFanSpeedController/pkg/fancontroller"
	"github.com/zephray/XserveFanSpeedController/pkg/fanslave"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
	"github.com/zephray/XserveFanSpeedController/pkg/ledengine"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink"
	"github.com/zephray/XserveFanSpeedController/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PinsFactory opens the pins of one configured bus.
type PinsFactory func(ctx context.Context, bus BusConfig) (hal.BusPins, error)

// Options are the collaborators that differ between hardware, simulation
// and tests.
type Options struct {
	// Pins opens the configured buses. Required.
	Pins PinsFactory
	// Master overrides the fan master selected by the uplink config.
	Master uplink.FanMaster
	// Clock drives the controller loop and the status LED, the real clock
	// if nil.
	Clock util.Clock
	// Led is the status LED, none if nil.
	Led hal.Led
}

// Emulator owns every component of a running emulator.
type Emulator struct {
	fans       *telemetry.State
	slave      *fanslave.Slave
	pins       []hal.BusPins
	buses      []*softi2c.Bus
	master     uplink.FanMaster
	link       *uplink.Link
	controller *fancontroller.Controller
	led        hal.Led
	clock      util.Clock
}

// New builds the emulator for cfg. Nothing runs until Run; edge events are
// served as soon as New returns.
func New(ctx context.Context, cfg Config, opts Options) (*Emulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Buses) == 0 {
		return nil, ErrNoBuses
	}
	if opts.Pins == nil {
		return nil, errors.New("no pins factory")
	}

	fans := telemetry.New(cfg.InitialActualTach)
	slave, err := fanslave.NewSlave(fans, cfg.Devices)
	if err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	e := &Emulator{
		fans:  fans,
		slave: slave,
		led:   opts.Led,
		clock: clock,
	}

	for _, b := range cfg.Buses {
		pins, err := opts.Pins(ctx, b)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("bus %d: %w", b.ID, err), e.closePins())
		}
		bus := softi2c.NewBus(softi2c.Config{
			Bus:       b.ID,
			Addresses: fanslave.Addresses,
			Handler:   slave,
		}, pins)
		pins.Attach(bus)

		e.pins = append(e.pins, pins)
		e.buses = append(e.buses, bus)
		log.FromContext(ctx).Info("Serving bus", zap.Int("bus", b.ID), zap.Int("scl", b.SCL), zap.Int("sda", b.SDA))
	}

	switch {
	case opts.Master != nil:
		e.master = opts.Master
	case cfg.Uplink.Port != "":
		link, err := uplink.Open(cfg.Uplink.Port, cfg.Uplink.Baudrate, cfg.InitialActualTach)
		if err != nil {
			return nil, errors.Join(err, e.closePins())
		}
		e.link = link
		e.master = link
		log.FromContext(ctx).Info("Using serial fan master", zap.String("port", cfg.Uplink.Port))
	default:
		e.master = uplink.NewLoopback(cfg.InitialActualTach)
		log.FromContext(ctx).Info("Using loopback fan master")
	}

	e.controller = fancontroller.New(fancontroller.Config{
		Fans:         fans,
		Master:       e.master,
		Clock:        clock,
		PollInterval: cfg.PollInterval,
		WaitForStart: cfg.WaitForStart,
	})

	return e, nil
}

// Run runs the controller loop and the fan master link until ctx is done or
// one of them fails. The pins are closed on return.
func (e *Emulator) Run(ctx context.Context) error {
	defer func() {
		if err := e.closePins(); err != nil {
			log.FromContext(ctx).Error("Failed to close pins", zap.Error(err))
		}
	}()

	log.FromContext(ctx).Info("Starting emulator", zap.Int("buses", len(e.buses)), zap.Int("devices", len(e.slave.Router().Devices())))

	wg, ctx := errgroup.WithContext(ctx)
	if e.link != nil {
		wg.Go(func() error {
			return e.link.Run(log.Named(ctx, "uplink"))
		})
	}
	wg.Go(func() error {
		return e.controller.Run(log.Named(ctx, "controller"))
	})
	if e.led != nil {
		wg.Go(func() error {
			return e.runStatus(ctx)
		})
	}
	return wg.Wait()
}

// runStatus blinks the status LED until the fan master starts, then keeps it
// lit and flashes a burst after every update round. The LED is switched off
// on return.
func (e *Emulator) runStatus(ctx context.Context) error {
	engine := ledengine.NewLedEngine(ledengine.LedEngineOpts{Led: e.led, Clock: e.clock})
	updates := e.controller.Subscribe(1)
	defer updates.Unsubscribe()

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return engine.Run(ctx)
	})
	wg.Go(func() error {
		return ledengine.Status(ctx, engine, e.clock, e.controller.StartedC(), updates.C())
	})

	err := wg.Wait()
	if offErr := e.led.Set(false); offErr != nil {
		log.FromContext(ctx).Warn("Failed to switch off status LED", zap.Error(offErr))
	}
	return err
}

func (e *Emulator) closePins() error {
	var errs []error
	for _, p := range e.pins {
		errs = append(errs, p.Close())
	}
	e.pins = nil
	return errors.Join(errs...)
}

// Fans returns the shared telemetry.
func (e *Emulator) Fans() *telemetry.State { return e.fans }

// Slave returns the emulated devices.
func (e *Emulator) Slave() *fanslave.Slave { return e.slave }

// Buses returns the slave buses in configuration order.
func (e *Emulator) Buses() []*softi2c.Bus { return e.buses }

// Controller returns the controller loop.
func (e *Emulator) Controller() *fancontroller.Controller { return e.controller }

// Master returns the fan master in use.
func (e *Emulator) Master() uplink.FanMaster { return e.master }

// Collector returns a prometheus collector exporting the emulator state.
func (e *Emulator) Collector() *Collector {
	return &Collector{
		buses:      e.buses,
		fans:       e.fans,
		controller: e.controller,
		link:       e.link,
	}
}
