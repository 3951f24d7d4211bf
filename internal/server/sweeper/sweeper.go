// Package sweeper runs the periodic expiry sweep that removes dead records
// and their offloaded blobs.
package sweeper

import (
	"context"
	"time"

	"github.com/sealbox/sealbox/internal/logging"
)

// Sweep is the unit of work; satisfied by SecretService.ExpireSweep.
type Sweep func(ctx context.Context) (int64, error)

type Sweeper struct {
	interval time.Duration
	sweep    Sweep
	logger   logging.Logger
}

func New(interval time.Duration, sweep Sweep, logger logging.Logger) *Sweeper {
	return &Sweeper{interval: interval, sweep: sweep, logger: logger}
}

// Run sweeps once immediately and then on every tick until the context is
// cancelled. Sweep errors are logged, not fatal; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	deleted, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error(ctx, "expiry sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info(ctx, "expiry sweep", "deleted", deleted)
	}
}
