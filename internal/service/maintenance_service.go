package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/streamvio/streamvio/internal/repository"
)

// MaintenanceService periodically deletes terminal job records older than
// the retention window. The engine itself never deletes jobs; retention is
// strictly a housekeeping concern.
type MaintenanceService struct {
	repo      repository.TranscodeJobRepository
	retention time.Duration
	spec      string
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewMaintenanceService creates a maintenance service. spec is a 6-field
// cron expression (with seconds).
func NewMaintenanceService(repo repository.TranscodeJobRepository, spec string, retention time.Duration, logger *slog.Logger) *MaintenanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceService{
		repo:      repo,
		retention: retention,
		spec:      spec,
		logger:    logger.With(slog.String("component", "maintenance")),
	}
}

// Start schedules the cleanup job. Returns an error when the cron
// expression does not parse.
func (s *MaintenanceService) Start() error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.spec, func() {
		if err := s.CleanupJobs(context.Background()); err != nil {
			s.logger.Error("job cleanup failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("scheduling job cleanup: %w", err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("job retention scheduled",
		slog.String("cron", s.spec),
		slog.Duration("retention", s.retention),
	)
	return nil
}

// Stop halts the schedule, waiting for a running cleanup to finish.
func (s *MaintenanceService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// CleanupJobs deletes terminal jobs whose completion is older than the
// retention window.
func (s *MaintenanceService) CleanupJobs(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting expired jobs: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("expired jobs deleted",
			slog.Int64("count", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}
