// Package fancontroller runs the loop between the host requests raised on
// the slave buses and the fan master.
package fancontroller

import (
	"context"
	"fmt"
	"time"

	"github.com/zephray/XserveFanSpeedController/pkg/eventbus"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink"
	"github.com/zephray/XserveFanSpeedController/pkg/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// UpdateTopic carries an Update after every completed update round.
const UpdateTopic = "telemetry:update"

// Update is the telemetry after an update round.
type Update struct {
	Time time.Time
	Fans [telemetry.Slots]telemetry.Fan
}

// Config configures a Controller.
type Config struct {
	Fans         *telemetry.State
	Master       uplink.FanMaster
	Clock        util.Clock
	PollInterval time.Duration
	WaitForStart bool
}

// Controller is the consumer of the host requests: it starts the fan master
// once the host asks for it, and on every RPM update request pushes the
// requested tach values out and copies the measured ones back.
type Controller struct {
	fans         *telemetry.State
	master       uplink.FanMaster
	clock        util.Clock
	interval     time.Duration
	waitForStart bool

	started   atomic.Bool
	startedCh chan struct{}
	rounds    atomic.Uint32

	eb eventbus.EventBus[Update]
}

// New returns a controller; the real clock is used when none is
// configured.
func New(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Controller{
		fans:         cfg.Fans,
		master:       cfg.Master,
		clock:        clock,
		interval:     cfg.PollInterval,
		waitForStart: cfg.WaitForStart,
		startedCh:    make(chan struct{}),
		eb:           eventbus.New[Update](),
	}
}

// Run polls the request flags until ctx is done or the fan master fails.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	if !c.waitForStart {
		if err := c.start(ctx); err != nil {
			return err
		}
	} else {
		log.FromContext(ctx).Info("Waiting for start request from host")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
		if err := c.poll(ctx); err != nil {
			return err
		}
	}
}

func (c *Controller) poll(ctx context.Context) error {
	if !c.started.Load() {
		// RPM update requests stay pending until the fans run
		if !c.fans.TakeStartRequest() {
			return nil
		}
		if err := c.start(ctx); err != nil {
			return err
		}
	} else if c.fans.TakeStartRequest() {
		log.FromContext(ctx).Debug("Ignoring start request, fans already running")
	}

	if !c.fans.TakeRPMUpdateRequest() {
		return nil
	}
	return c.update(ctx)
}

func (c *Controller) start(ctx context.Context) error {
	log.FromContext(ctx).Info("Starting fan master")
	if err := c.master.Start(ctx); err != nil {
		return fmt.Errorf("starting fan master: %w", err)
	}
	c.started.Store(true)
	close(c.startedCh)
	return nil
}

func (c *Controller) update(ctx context.Context) error {
	fans := c.fans.Snapshot()
	if err := c.master.SetFans(ctx, fans[:]); err != nil {
		return fmt.Errorf("pushing requested tach: %w", err)
	}

	actual, err := c.master.ActualTach(ctx)
	if err != nil {
		return fmt.Errorf("reading actual tach: %w", err)
	}
	for slot, tach := range actual {
		c.fans.SetActualTach(slot, tach)
	}

	c.rounds.Inc()
	update := Update{Time: c.clock.Now(), Fans: c.fans.Snapshot()}
	c.eb.Publish(UpdateTopic, update)

	if ce := log.FromContext(ctx).Check(zap.DebugLevel, "Fan update"); ce != nil {
		ce.Write(zap.Any("fans", update.Fans))
	}
	return nil
}

// Started reports whether the fan master was started.
func (c *Controller) Started() bool { return c.started.Load() }

// StartedC is closed once the fan master was started.
func (c *Controller) StartedC() <-chan struct{} { return c.startedCh }

// Rounds returns the number of completed update rounds.
func (c *Controller) Rounds() uint32 { return c.rounds.Load() }

// Subscribe returns a subscription to the updates published on UpdateTopic.
func (c *Controller) Subscribe(bufSize int) eventbus.Subscriber[Update] {
	return c.eb.Subscribe(UpdateTopic, bufSize, eventbus.MatchAll[Update])
}
