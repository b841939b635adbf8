package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"makosite/internal/contact"
	"makosite/internal/metrics"
)

// Redeliverer is the part of the contact queue the redelivery job drives.
type Redeliverer interface {
	Prober
	metrics.QueueCounter
	Redeliver(ctx context.Context) (contact.RedeliverResult, error)
}

// RedeliveryJob sends queued contact messages again once the endpoint is
// reachable.
type RedeliveryJob struct {
	queue  Redeliverer
	logger *zap.Logger
}

// NewRedeliveryJob creates a job over queue.
func NewRedeliveryJob(queue Redeliverer, logger *zap.Logger) *RedeliveryJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedeliveryJob{queue: queue, logger: logger}
}

// Run redelivers the queue if it holds messages and the endpoint answers its
// health check. ran is false when nothing was attempted.
func (j *RedeliveryJob) Run(ctx context.Context) (res contact.RedeliverResult, ran bool) {
	n, err := j.queue.CountQueued(ctx)
	if err != nil {
		j.logger.Error("failed to read contact queue", zap.Error(err))
		return res, false
	}
	if n == 0 {
		return res, false
	}
	if !j.queue.HealthCheck(ctx) {
		j.logger.Debug("contact endpoint down, redelivery skipped", zap.Int("queued", n))
		return res, false
	}

	res, err = j.queue.Redeliver(ctx)
	if err != nil {
		j.logger.Warn("scheduled redelivery incomplete",
			zap.Int("delivered", res.Delivered), zap.Int("queued", res.Attempted), zap.Error(err))
		return res, true
	}
	j.logger.Info("scheduled redelivery complete", zap.Int("delivered", res.Delivered))
	return res, true
}

// Schedule runs the job on the cron spec until the returned stop function is
// called. Overlapping runs are skipped.
func (j *RedeliveryJob) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	log := cronLogger{j.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := c.AddFunc(spec, func() { j.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid redelivery schedule %q: %w", spec, err)
	}
	c.Start()
	j.logger.Info("contact redelivery scheduled", zap.String("schedule", spec))

	return func() { <-c.Stop().Done() }, nil
}

// cronLogger routes cron's logging to zap. Scheduler chatter goes to debug.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
