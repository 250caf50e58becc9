package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Config struct {
	LapseSpec    string
	ReminderSpec string
}

// Scheduler runs Jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	config Config
	logger *zap.Logger
}

func NewScheduler(jobs *Jobs, config Config, logger *zap.Logger) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		config: config,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron loop. A job with an invalid
// schedule is logged and skipped.
func (s *Scheduler) Start() {
	s.add("lapse sweep", s.config.LapseSpec, s.jobs.ExpireLapsedSubscriptions)
	s.add("renewal reminders", s.config.ReminderSpec, s.jobs.SendRenewalReminders)
	s.cron.Start()
}

func (s *Scheduler) add(name, spec string, job func()) {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		s.logger.Error("Failed to schedule job", zap.String("job", name), zap.String("schedule", spec), zap.Error(err))
		return
	}
	s.logger.Info("Scheduled job", zap.String("job", name), zap.String("schedule", spec))
}

// Stop stops scheduling new runs. The returned context is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries reports how many jobs were registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
