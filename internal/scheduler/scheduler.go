package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/config"
	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/crm/internal/order/domain"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

var (
	ErrInvalidConfig = errors.New("scheduler: invalid config")
	ErrUnknownJob    = errors.New("unknown_job")
	ErrLeaseHeld     = errors.New("job_lease_held")
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Jobs       *config.JobsConfigHolder
	ProductSvc productdomain.Service
	OrderSvc   orderdomain.Service
	JobRunSvc  jobrundomain.Service         `optional:"true"`
	Lease      Lease                        `optional:"true"`
	Sink       Sink                         `optional:"true"`
	HTTPClient *http.Client                 `optional:"true"`
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
	Config     Config                       `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	jobs       *config.JobsConfigHolder
	productSvc productdomain.Service
	orderSvc   orderdomain.Service
	jobRunSvc  jobrundomain.Service
	lease      Lease
	sink       Sink
	httpClient *http.Client
	metrics    *obsmetrics.SchedulerMetrics
	specs      []jobSpec
}

// jobSpec binds a job name to its schedule settings and its body.
type jobSpec struct {
	name     string
	settings func(cfg config.JobsConfig) (enabled bool, interval time.Duration)
	run      func(ctx context.Context, run *jobRun, cfg config.JobsConfig) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Jobs == nil || p.ProductSvc == nil || p.OrderSvc == nil {
		return nil, ErrInvalidConfig
	}

	s := &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		jobs:       p.Jobs,
		productSvc: p.ProductSvc,
		orderSvc:   p.OrderSvc,
		jobRunSvc:  p.JobRunSvc,
		lease:      p.Lease,
		sink:       p.Sink,
		httpClient: p.HTTPClient,
		metrics:    p.Metrics,
	}
	if s.lease == nil {
		s.lease = NewLocalLease()
	}
	if s.sink == nil {
		s.sink = NewFileSink()
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if s.metrics == nil {
		s.metrics = obsmetrics.Scheduler()
	}

	s.specs = []jobSpec{
		{
			name: JobLowStockReplenish,
			settings: func(cfg config.JobsConfig) (bool, time.Duration) {
				return cfg.LowStock.Enabled, cfg.LowStock.Interval
			},
			run: s.lowStockJob,
		},
		{
			name: JobHeartbeat,
			settings: func(cfg config.JobsConfig) (bool, time.Duration) {
				return cfg.Heartbeat.Enabled, cfg.Heartbeat.Interval
			},
			run: s.heartbeatJob,
		},
		{
			name: JobOrderReminders,
			settings: func(cfg config.JobsConfig) (bool, time.Duration) {
				return cfg.Reminders.Enabled, cfg.Reminders.Interval
			},
			run: s.orderRemindersJob,
		},
	}
	return s, nil
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		names = append(names, spec.name)
	}
	return names
}

// RunJob executes one job immediately, outside its schedule. Disabled jobs
// still run when triggered this way.
func (s *Scheduler) RunJob(ctx context.Context, name, trigger string) (*jobrundomain.JobRun, error) {
	for _, spec := range s.specs {
		if spec.name == name {
			if trigger == "" {
				trigger = jobrundomain.TriggerManual
			}
			return s.runJob(ctx, spec, trigger)
		}
	}
	return nil, ErrUnknownJob
}

// RunForever runs every job on its own interval until ctx is cancelled. A
// failed run is logged and recorded; the next tick still happens.
func (s *Scheduler) RunForever(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range s.specs {
		spec := spec
		g.Go(func() error {
			s.loop(ctx, spec)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, spec jobSpec) {
	for {
		_, interval := spec.settings(s.jobs.Get())
		if interval <= 0 {
			interval = time.Minute
		}

		nextRun := time.Now().Add(interval)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if lag := time.Since(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(spec.name, lag)
		}

		// Re-read after waiting so a reload that disables the job applies.
		if enabled, _ := spec.settings(s.jobs.Get()); !enabled {
			s.metrics.IncJobDeferred(spec.name, obsmetrics.SchedulerDeferredReasonDisabled)
			continue
		}
		if _, err := s.runJob(ctx, spec, jobrundomain.TriggerSchedule); err != nil && !errors.Is(err, ErrLeaseHeld) {
			s.log.Warn("scheduler run failed", zap.String("job", spec.name), zap.Error(err))
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, spec jobSpec, trigger string) (*jobrundomain.JobRun, error) {
	key := s.cfg.LeasePrefix + spec.name
	token, err := s.lease.Acquire(parent, key, s.cfg.LeaseTTL)
	if err != nil {
		s.metrics.IncJobError(spec.name, err)
		return nil, fmt.Errorf("%s: acquire lease: %w", spec.name, err)
	}
	if token == "" {
		s.metrics.IncJobDeferred(spec.name, obsmetrics.SchedulerDeferredReasonLeaseHeld)
		s.log.Debug("scheduler.job.deferred", zap.String("job", spec.name))
		return nil, ErrLeaseHeld
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cancel()
		if err := s.lease.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("release job lease failed", zap.String("job", spec.name), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx, run := s.newJobRun(ctx, spec.name, trigger)

	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(spec.name)
	start := time.Now()

	jobErr := spec.run(ctx, run, s.jobs.Get())

	s.metrics.ObserveJobDuration(spec.name, time.Since(start))
	if jobErr != nil {
		if errors.Is(jobErr, context.DeadlineExceeded) {
			s.metrics.IncJobTimeout(spec.name)
		}
		s.metrics.IncJobError(spec.name, jobErr)
	}
	s.logJobFinish(ctx, run, jobErr)

	record, err := s.record(context.WithoutCancel(ctx), run, jobErr)
	if err != nil {
		s.logger(ctx).Warn("record job run failed", zap.Error(err))
	}
	if jobErr != nil {
		return record, fmt.Errorf("%s: %w", spec.name, jobErr)
	}
	return record, nil
}

func (s *Scheduler) record(ctx context.Context, run *jobRun, jobErr error) (*jobrundomain.JobRun, error) {
	errorCount := run.errorCount
	if jobErr != nil && errorCount == 0 {
		errorCount = 1
	}
	entry := jobrundomain.JobRun{
		RunID:      run.runID,
		Job:        run.job,
		Trigger:    run.trigger,
		Status:     run.status(jobErr),
		Processed:  run.processed,
		ErrorCount: errorCount,
		Message:    run.message,
		StartedAt:  run.startedAt,
		FinishedAt: s.clock.Now().UTC(),
	}
	if len(run.details) > 0 {
		entry.Details = datatypes.JSONMap(run.details)
	}

	if s.jobRunSvc == nil {
		return &entry, nil
	}
	stored, err := s.jobRunSvc.Record(ctx, entry)
	if err != nil {
		return &entry, err
	}
	return stored, nil
}

func (s *Scheduler) newRunID() string {
	return ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String()
}
