package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the scheduler so jobs can be triggered on demand.
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(NewLease),
	fx.Provide(func() Sink { return NewFileSink() }),
	fx.Provide(New),
)

// RunnerModule starts the job loops for the lifetime of the app.
var RunnerModule = fx.Module("scheduler.runner",
	fx.Invoke(NewRunner),
)

func NewRunner(lc fx.Lifecycle, sched *Scheduler, log *zap.Logger) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				if err := sched.RunForever(ctx); err != nil {
					log.Error("scheduler stopped", zap.Error(err))
				}
			}()
			log.Info("scheduler started", zap.Strings("jobs", sched.Jobs()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
