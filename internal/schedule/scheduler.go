// Package schedule runs periodic full resyncs on a cron expression.
package schedule

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"air2graph/internal/ingest"
)

// Scheduler triggers ingestion runs on a fixed cron schedule. A run still in
// flight when the next tick fires makes the tick wait on the orchestrator's
// run lock rather than ingesting concurrently.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *ingest.Orchestrator
	schedule     string
	logger       *slog.Logger
}

// NewScheduler creates a scheduler for the given cron expression.
func NewScheduler(orchestrator *ingest.Orchestrator, schedule string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		orchestrator: orchestrator,
		schedule:     schedule,
		logger:       logger,
	}
}

// Start registers the resync entry and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx := context.Background()
		run, runErr := s.orchestrator.Run(ctx, ingest.Options{})
		if runErr != nil {
			var id string
			if run != nil {
				id = run.ID
			}
			s.logger.Warn("scheduled ingestion failed", "run_id", id, "error", runErr)
			return
		}
		s.logger.Info("scheduled ingestion finished", "run_id", run.ID)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("ingestion scheduler started", "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("ingestion scheduler stopped")
}
