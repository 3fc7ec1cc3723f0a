package util

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockClock implements the Clock interface using the testify mock package.
type MockClock struct {
	mock.Mock
}

// Now returns the current time.
func (mc *MockClock) Now() time.Time {
	args := mc.Called()
	return args.Get(0).(time.Time)
}

// After waits for the duration to elapse and then sends the current time
func (mc *MockClock) After(d time.Duration) <-chan time.Time {
	args := mc.Called(d)
	return args.Get(0).(chan time.Time)
}

// NewTicker returns the Ticker the expectation was set up with, usually a
// ManualTicker.
func (mc *MockClock) NewTicker(d time.Duration) Ticker {
	args := mc.Called(d)
	return args.Get(0).(Ticker)
}

// ManualTicker is a Ticker fired by the test.
type ManualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

// NewManualTicker returns a ticker that only fires on Tick.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

// Tick delivers t, blocking until the consumer receives it. It reports false
// if the ticker was stopped first.
func (m *ManualTicker) Tick(t time.Time) bool {
	select {
	case m.ch <- t:
		return true
	case <-m.stopped:
		return false
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() {
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
}
