package worker

import (
	"context"
	"log/slog"
	"time"
)

// ExpireFunc sweeps up to limit overdue records and reports how many it
// transitioned.
type ExpireFunc func(ctx context.Context, limit int) (int, error)

// Sweeper is the safety net behind lazy expiry: holds of sessions that are
// never read again still get released, and stale quotes still expire.
type Sweeper struct {
	interval time.Duration
	batch    int
	logger   *slog.Logger
	sweeps   map[string]ExpireFunc
}

func NewSweeper(interval time.Duration, batch int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		batch:    batch,
		logger:   logger,
		sweeps:   make(map[string]ExpireFunc),
	}
}

func (s *Sweeper) Register(name string, fn ExpireFunc) {
	s.sweeps[name] = fn
}

// Run blocks until ctx is cancelled, sweeping every interval. A failing
// sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	for name, fn := range s.sweeps {
		n, err := fn(ctx, s.batch)
		if err != nil {
			s.logger.Error("sweep failed", "sweep", name, "error", err)
			continue
		}
		if n > 0 {
			s.logger.Info("sweep expired records", "sweep", name, "count", n)
		}
	}
}
