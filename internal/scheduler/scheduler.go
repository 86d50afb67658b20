// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
)

// Job is a named maintenance task that reports how many rows it touched.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Scheduler runs every job on one cron schedule.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

// New creates a Scheduler running jobs on the standard five-field cron spec.
func New(ctx context.Context, spec string, jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), jobs: jobs}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop prevents further runs and waits for a running one to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce runs every job in order. A failing job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		n, err := job.Run(ctx)
		if err != nil {
			logger.Log.Error().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
			continue
		}
		if n > 0 {
			logger.Log.Info().Str("job", job.Name).Int64("affected", n).Msg("Scheduled job finished")
		}
	}
}
