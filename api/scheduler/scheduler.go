package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/registry"
)

// Scheduler runs periodic registry maintenance jobs
type Scheduler struct {
	cron     *cron.Cron
	Registry registry.Registry
	log      *zap.SugaredLogger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(reg registry.Registry, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		Registry: reg,
		log:      log,
	}
}

// Start registers the jobs on spec and begins running them
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.ReportRegistryHealth); err != nil {
		s.log.Errorw("failed to register registry health job", "error", err, "spec", spec)
		return err
	}
	s.cron.Start()
	s.log.Infow("Registry scheduler started", "spec", spec)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Registry scheduler stopped")
}

// ReportRegistryHealth logs how many devices are active and how many were
// deactivated after their subscription expired
func (s *Scheduler) ReportRegistryHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stats, err := s.Registry.Stats(ctx)
	if err != nil {
		s.log.Errorw("failed to count devices", "error", err)
		return
	}
	s.log.Infow("Registry health",
		"activeDevices", stats.Active,
		"inactiveDevices", stats.Inactive,
	)
}
