// Package uplink talks to the fan master: the side that drives the real
// fans and measures their speed.
package uplink

import (
	"context"
	"errors"
	"sync"

	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
)

var ErrNotStarted = errors.New("fan master not started")

// FanMaster is the fan driving side consumed by the controller loop.
type FanMaster interface {
	// Start spins up the fans.
	Start(ctx context.Context) error
	// SetFans pushes enable flags and requested tach of every slot.
	SetFans(ctx context.Context, fans []telemetry.Fan) error
	// ActualTach returns the latest measured tach count of every slot.
	ActualTach(ctx context.Context) ([telemetry.Slots]uint16, error)
}

// Loopback is a FanMaster without fans: every enabled slot reaches its
// requested tach instantly, disabled slots keep their last value.
type Loopback struct {
	mu      sync.Mutex
	started bool
	actual  [telemetry.Slots]uint16
}

var _ FanMaster = &Loopback{}

// NewLoopback returns a loopback master reporting actualTach on every slot
// until the first update.
func NewLoopback(actualTach uint16) *Loopback {
	l := &Loopback{}
	for i := range l.actual {
		l.actual[i] = actualTach
	}
	return l
}

func (l *Loopback) Start(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

// Started reports whether Start was called.
func (l *Loopback) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func (l *Loopback) SetFans(_ context.Context, fans []telemetry.Fan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return ErrNotStarted
	}
	for _, f := range fans {
		if f.Slot < 0 || f.Slot >= telemetry.Slots {
			return ErrInvalidSlot
		}
		if f.Enabled {
			l.actual[f.Slot] = f.RequestedTach
		}
	}
	return nil
}

func (l *Loopback) ActualTach(_ context.Context) ([telemetry.Slots]uint16, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.actual, nil
}
