package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler fires pipeline runs on a fixed interval. Manual triggers do not
// go through the scheduler; both paths converge on the orchestrator's
// single-flight guard, so a tick during a manual run is simply rejected.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	log      *slog.Logger
}

// NewScheduler creates a scheduler for the orchestrator.
func NewScheduler(orch *Orchestrator, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{orch: orch, interval: interval, log: log}
}

// Start blocks, firing a run immediately and then on every tick, until the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.fire(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	runID, err := s.orch.TriggerAsync(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Info("scheduled run skipped, another run is active")
	case err != nil:
		s.log.Error("scheduled run failed to start", slog.Any("err", err))
	default:
		s.log.Info("scheduled run started", slog.String("run", runID))
	}
}
