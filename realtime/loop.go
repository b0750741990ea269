// Package realtime provides the fixed-period control cycle and the
// single-slot publisher that hands data from the cycle to slower consumers.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"go.viam.com/rdk/logging"
)

// Backend is the hardware side of the control cycle. Read samples actuator
// state after dt of wall time; Write latches the commands the next Read
// will act on. Both are called from the loop goroutine only.
type Backend interface {
	Read(dt time.Duration)
	Write()
}

// Loop invokes a step function at a fixed period driven by a clock. The
// clock is injectable so tests can drive the cycle with a mock.
type Loop struct {
	clk    clock.Clock
	period time.Duration
	step   func(dt time.Duration)
	logger logging.Logger

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop returns a loop that will call step once per period. The loop does
// not run until Start is called.
func NewLoop(clk clock.Clock, period time.Duration, step func(dt time.Duration), logger logging.Logger) (*Loop, error) {
	if period <= 0 {
		return nil, errors.Errorf("loop period must be positive, got %v", period)
	}
	if step == nil {
		return nil, errors.New("loop step function must be non-nil")
	}
	if clk == nil {
		clk = clock.New()
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Loop{
		clk:       clk,
		period:    period,
		step:      step,
		logger:    logger,
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}, nil
}

// Period returns the configured cycle period.
func (l *Loop) Period() time.Duration {
	return l.period
}

// Start launches the cycle worker.
func (l *Loop) Start() {
	l.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		l.run(l.cancelCtx)
	}, l.activeBackgroundWorkers.Done)
}

func (l *Loop) run(ctx context.Context) {
	ticker := l.clk.Ticker(l.period)
	defer ticker.Stop()

	last := l.clk.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := l.clk.Now()
		if elapsed := now.Sub(last); elapsed > l.period*3/2 {
			l.logger.Debugw("control cycle overrun", "elapsed", elapsed, "period", l.period)
		}
		last = now
		l.step(l.period)
	}
}

// Close stops the cycle and waits for the worker to exit.
func (l *Loop) Close() {
	l.cancel()
	l.activeBackgroundWorkers.Wait()
}
