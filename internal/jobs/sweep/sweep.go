// Package sweep evicts per-session query caches that have not been used for a while.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const jobName = "query-cache-sweep"

type Sweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

type Job struct {
	sweeper Sweeper
	maxIdle time.Duration
	logger  *zap.Logger
}

func New(sweeper Sweeper, maxIdle time.Duration, logger *zap.Logger) *Job {
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		sweeper: sweeper,
		maxIdle: maxIdle,
		logger:  logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.sweeper == nil {
		return fmt.Errorf("sweeper is nil")
	}

	removed := j.sweeper.SweepIdle(j.maxIdle)
	if removed > 0 {
		j.logger.Info("query cache sweep completed", zap.Int("evicted", removed))
	}
	return nil
}

// Scheduler runs the sweep job on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

func Start(ctx context.Context, job *Job, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(gocronLogger{log: logger.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := job.Run(ctx); err != nil {
				logger.Warn("query cache sweep failed", zap.Error(err))
			}
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule job %q: %w", jobName, err)
	}

	s.Start()
	logger.Info("job scheduled", zap.String("name", jobName), zap.Duration("interval", interval))
	return &Scheduler{scheduler: s, logger: logger}, nil
}

func (s *Scheduler) Stop() error {
	if s == nil || s.scheduler == nil {
		return nil
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

type gocronLogger struct {
	log *zap.SugaredLogger
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debugw(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Infow(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warnw(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Errorw(msg, args...) }
