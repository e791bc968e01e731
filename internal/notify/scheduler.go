package notify

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the reminder check period.
const DefaultInterval = time.Minute

// CheckFunc runs one evaluation at now.
type CheckFunc func(ctx context.Context, now time.Time) error

// Scheduler runs Check once immediately and then every Interval until the
// context is cancelled. Checks never overlap. A failing check is logged and
// the loop continues.
type Scheduler struct {
	Clock    Clock
	Interval time.Duration
	Check    CheckFunc
	Logger   *slog.Logger
}

// Run blocks until ctx is done and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	clock := s.Clock
	if clock == nil {
		clock = SystemClock
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s.tick(ctx, clock, logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.tick(ctx, clock, logger)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, clock Clock, logger *slog.Logger) {
	if s.Check == nil {
		return
	}
	now := clock.Now()
	if err := s.Check(ctx, now); err != nil {
		logger.Warn("reminder check failed", "at", now, "err", err)
	}
}
