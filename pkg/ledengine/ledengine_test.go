package ledengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zephray/XserveFanSpeedController/pkg/hal"
	"github.com/zephray/XserveFanSpeedController/pkg/ledengine"
	"github.com/zephray/XserveFanSpeedController/pkg/util"
)

func TestPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  ledengine.BlinkPattern
		want ledengine.BlinkPattern
	}{
		{
			"static on",
			ledengine.NewStaticPattern(true),
			ledengine.BlinkPattern{Base: true, Active: true, Delays: []time.Duration{time.Hour}},
		},
		{
			"static off",
			ledengine.NewStaticPattern(false),
			ledengine.BlinkPattern{Base: false, Active: false, Delays: []time.Duration{time.Hour}},
		},
		{
			"slow blink",
			ledengine.NewSlowBlinkPattern(),
			ledengine.BlinkPattern{Base: false, Active: true, Delays: []time.Duration{time.Second, time.Second}},
		},
		{
			"burst",
			ledengine.NewBurstPattern(),
			ledengine.BlinkPattern{
				Base:   false,
				Active: true,
				Delays: []time.Duration{
					500 * time.Millisecond,
					100 * time.Millisecond,
					100 * time.Millisecond,
					100 * time.Millisecond,
					100 * time.Millisecond,
					100 * time.Millisecond,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestSetPatternRejectsEmpty(t *testing.T) {
	t.Parallel()

	engine := ledengine.NewLedEngine(ledengine.LedEngineOpts{Led: &hal.LedMock{}})
	assert.Error(t, engine.SetPattern(ledengine.BlinkPattern{Base: true}))
}

func Test_LedEngine_SetPattern_WhileRunning(t *testing.T) {
	t.Parallel()

	clk := util.MockClock{}
	clkAfterChan := make(chan time.Time)
	restarted := make(chan struct{})
	clk.On("After", time.Hour).Once().Return(clkAfterChan)
	clk.On("After", time.Hour).Once().Return(clkAfterChan).Run(func(mock.Arguments) { close(restarted) })

	running := make(chan struct{})
	ledMock := hal.LedMock{}
	ledMock.On("Set", false).Once().Return(nil).Run(func(mock.Arguments) { close(running) })
	ledMock.On("Set", true).Once().Return(nil)

	engine := ledengine.NewLedEngine(ledengine.LedEngineOpts{
		Led:   &ledMock,
		Clock: &clk,
	})

	ctx, cancel := context.WithCancel(context.Background())

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := engine.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}()

	// We want to change the pattern while the engine is running
	<-running
	assert.NoError(t, engine.SetPattern(ledengine.NewStaticPattern(true)))

	<-restarted

	cancel()
	wg.Wait()

	clk.AssertExpectations(t)
	ledMock.AssertExpectations(t)
}

func Test_LedEngine_SetPattern_BeforeRun(t *testing.T) {
	t.Parallel()

	clk := util.MockClock{}
	clkAfterChan := make(chan time.Time)
	clk.On("After", time.Hour).Once().Return(clkAfterChan)

	ledMock := hal.LedMock{}
	ledMock.On("Set", true).Once().Return(nil)

	engine := ledengine.NewLedEngine(ledengine.LedEngineOpts{
		Led:   &ledMock,
		Clock: &clk,
	})
	// We want to change the pattern BEFORE the engine is started
	assert.NoError(t, engine.SetPattern(ledengine.NewStaticPattern(true)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := engine.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	clk.AssertExpectations(t)
	ledMock.AssertExpectations(t)
}

func Test_LedEngine_SetLedFailureInPattern(t *testing.T) {
	t.Parallel()

	clk := util.MockClock{}
	clkAfterChan := make(chan time.Time, 1)
	clk.On("After", time.Hour).Once().Return(clkAfterChan)

	ledMock := hal.LedMock{}
	call0 := ledMock.On("Set", false).Once().Return(nil)
	ledMock.On("Set", false).Once().Return(errors.New("failure")).NotBefore(call0)

	engine := ledengine.NewLedEngine(ledengine.LedEngineOpts{
		Led:   &ledMock,
		Clock: &clk,
	})

	// Time tick -> Set() fails
	clkAfterChan <- time.Now()

	err := engine.Run(context.Background())
	assert.EqualError(t, err, "failure")

	clk.AssertExpectations(t)
	ledMock.AssertExpectations(t)
}
