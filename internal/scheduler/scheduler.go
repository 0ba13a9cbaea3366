// Package scheduler fires the evaluation pipeline once per minute. It does
// not serialize runs: a slow tick overlapping the next one is tolerated
// because the persisted minute-key stamp makes duplicate evaluation
// harmless.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tavira/kestrel/internal/service"
)

// Scheduler runs the once-per-minute periodic trigger.
type Scheduler struct {
	runner *service.Runner
	cron   *cron.Cron
	loc    *time.Location
}

// New creates a scheduler firing in the given zone.
func New(runner *service.Runner, loc *time.Location) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
	}
}

// Start registers the every-minute entry and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("Starting scheduler", "timezone", s.loc.String())

	_, err := s.cron.AddFunc("* * * * *", func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops ticking and waits for an in-flight run to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	slog.Info("Stopping scheduler")

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		slog.Info("Scheduler stopped")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for in-flight evaluation to complete")
	}
}

// tick runs one evaluation; the periodic surface logs and discards the
// result.
func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()

	result, err := s.runner.Run(ctx)
	if err != nil {
		slog.Error("Scheduled evaluation failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}

	if result.Executed > 0 {
		slog.Info("Scheduled evaluation completed",
			"executed", result.Executed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
