package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs periodic maintenance jobs, such as the counter day
// rollover check of a live session.
type Scheduler struct {
	logger logrus.FieldLogger
	cron   *cron.Cron
}

// New creates a stopped scheduler. A job that panics is recovered and
// logged; a job still running when its next tick fires is skipped.
func New(logger logrus.FieldLogger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(
				cron.Recover(cronLogger),
				cron.SkipIfStillRunning(cronLogger),
			),
		),
	}
}

// Every registers job under a cron spec. Descriptors such as "@every 1m"
// and "@hourly" are accepted along with standard five-field specs.
func (s *Scheduler) Every(spec, name string, job func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		job()
		s.logger.WithFields(logrus.Fields{
			"job":      name,
			"duration": time.Since(started).String(),
		}).Debug("Scheduled job finished")
	})
	return err
}

// Start the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop the scheduler and wait for running jobs, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
