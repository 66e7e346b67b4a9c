// Package scheduler runs recurring exploration jobs in watch mode.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job is one scheduled exploration run. The context carries the per-run
// wall-clock ceiling; a failed run is logged and the schedule continues.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	job       Job
	logger    zerolog.Logger
}

// New creates a scheduler running job every interval.
func New(interval time.Duration, job Job, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		job:       job,
		logger:    logger,
	}
}

// Start schedules the job and starts the underlying scheduler. The first run
// fires immediately; ctx cancellation stops future runs and interrupts the
// one in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, err := s.scheduler.Every(interval).StartImmediately().Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info().Dur("interval", interval).Msg("scheduled exploration run starting")
		if err := s.job(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled exploration run failed")
			return
		}
		s.logger.Info().Msg("scheduled exploration run completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler; the current job, if any, finishes on its own.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
