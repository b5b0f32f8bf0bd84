package scheduler

import (
	"context"
	"fmt"
	"time"

	"SpreadSync/internal/config"
	"SpreadSync/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	JobLive   = "live"
	JobScores = "scores"

	defaultJobTimeout = 10 * time.Minute
)

// Job one cron entry.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs sync jobs on cron specs; a run still in progress makes the next tick a no-op.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logrus.Logger
	timeout time.Duration
}

func New(logger *logrus.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		timeout: defaultJobTimeout,
	}
}

func (s *Scheduler) Add(job Job) error {
	if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
		return fmt.Errorf("schedule %s job (%q): %w", job.Name, job.Spec, err)
	}
	s.logger.WithFields(logrus.Fields{"job": job.Name, "spec": job.Spec}).Info("job scheduled")
	return nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		entry := s.logger.WithField("job", job.Name)
		if err := job.Run(ctx); err != nil {
			entry.WithError(err).Error("scheduled job failed")
			return
		}
		entry.WithField("elapsed", time.Since(start).String()).Info("scheduled job finished")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// Jobs builds the enabled jobs; unknown names in enabled_jobs are logged and ignored.
func Jobs(cfg config.SyncConfig, bookmakers []string, sync *service.SyncService, scores *service.ScoreSyncService, logger *logrus.Logger) []Job {
	available := map[string]Job{
		JobLive: {
			Name: JobLive,
			Spec: cfg.Cron,
			Run: func(ctx context.Context) error {
				_, err := sync.SyncLive(ctx, bookmakers)
				return err
			},
		},
		JobScores: {
			Name: JobScores,
			Spec: cfg.ScoresCron,
			Run: func(ctx context.Context) error {
				_, err := scores.Run(ctx, service.ReconcileRequest{})
				return err
			},
		},
	}

	var jobs []Job
	for _, name := range cfg.EnabledJobs {
		job, ok := available[name]
		if !ok {
			logger.WithField("job", name).Warn("unknown job in sync.enabled_jobs")
			continue
		}
		if job.Spec == "" {
			logger.WithField("job", name).Warn("job enabled without a cron spec, skipping")
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}
