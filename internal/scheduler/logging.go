package scheduler

import (
	"context"
	"time"

	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	obscontext "github.com/smallbiznis/crm/internal/observability/context"
	obslogger "github.com/smallbiznis/crm/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun accumulates the outcome of one job execution.
type jobRun struct {
	job        string
	runID      string
	trigger    string
	startedAt  time.Time
	processed  int
	errorCount int
	message    string
	details    map[string]any
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processed += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (r *jobRun) SetDetail(key string, value any) {
	if r == nil {
		return
	}
	if r.details == nil {
		r.details = map[string]any{}
	}
	r.details[key] = value
}

func (r *jobRun) status(err error) string {
	switch {
	case err != nil && r.processed > 0:
		return jobrundomain.StatusPartial
	case err != nil || r.errorCount > 0:
		return jobrundomain.StatusFailed
	default:
		return jobrundomain.StatusSuccess
	}
}

func (s *Scheduler) newJobRun(ctx context.Context, job, trigger string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.newRunID(),
		trigger:   trigger,
		startedAt: s.clock.Now().UTC(),
	}
	return obscontext.WithJobRun(ctx, job, run.runID), run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("trigger", run.trigger),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("trigger", run.trigger),
		zap.String("status", run.status(err)),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processed),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if err != nil {
		log.Error("scheduler.job.finish", append(fields,
			zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
			zap.Error(err),
		)...)
		return
	}
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}
