package ledengine

import (
	"context"
	"time"

	"github.com/zephray/XserveFanSpeedController/pkg/util"
)

// Status shows the run phase on engine: a slow blink until started is
// closed, steady on afterwards, and one burst cycle for every value received
// on activity. It returns when ctx is done or a pattern is rejected.
func Status[T any](ctx context.Context, engine LedEngine, clock util.Clock, started <-chan struct{}, activity <-chan T) error {
	if err := engine.SetPattern(NewSlowBlinkPattern()); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-started:
	}

	steady := NewStaticPattern(true)
	if err := engine.SetPattern(steady); err != nil {
		return err
	}

	burst := NewBurstPattern()
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-activity:
			if !ok {
				activity = nil
				continue
			}
			// A burst during a burst restarts it.
			if err := engine.SetPattern(burst); err != nil {
				return err
			}
			settle = clock.After(burst.Duration())
		case <-settle:
			settle = nil
			if err := engine.SetPattern(steady); err != nil {
				return err
			}
		}
	}
}
