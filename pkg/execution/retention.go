package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/verdantlabs/greenlight/pkg/persistence"
)

// DefaultRetentionSchedule runs the sweep daily at 03:00.
const DefaultRetentionSchedule = "0 3 * * *"

// Sweeper periodically deletes execution records older than the retention
// window. It is the only component allowed to remove them.
type Sweeper struct {
	records   persistence.ExecutionRecordRepository
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewSweeper(records persistence.ExecutionRecordRepository, retention time.Duration, schedule string, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}

	return &Sweeper{
		records:   records,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger.With("module", "retention_sweeper"),
	}
}

// Start schedules the sweep. Retention of zero or less disables the sweeper.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.retention <= 0 {
		s.logger.InfoContext(ctx, "Retention sweeper disabled")

		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Retention sweeper started",
		"schedule", s.schedule, "retention", s.retention)

	return nil
}

// Sweep deletes records older than the retention window once.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)

	deleted, err := s.records.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Retention sweep completed",
		"deleted", deleted, "cutoff", cutoff)
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
