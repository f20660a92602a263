package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ticker runs a job immediately and then once every Interval.
// A zero Interval runs the job once.
type Ticker struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Run blocks until ctx is cancelled (or after the single run when Interval is zero).
// A failing run is logged; the schedule continues.
func (t *Ticker) Run(ctx context.Context, fn func(context.Context) error) {
	log := t.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Run immediately once at startup
	t.runOnce(ctx, log, fn)
	if t.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("schedule stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			t.runOnce(ctx, log, fn)
		}
	}
}

func (t *Ticker) runOnce(ctx context.Context, log *zap.Logger, fn func(context.Context) error) {
	start := time.Now()
	if err := fn(ctx); err != nil {
		log.Error("scheduled run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Debug("scheduled run finished", zap.Duration("elapsed", time.Since(start)))
}
