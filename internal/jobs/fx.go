package jobs

import (
	"context"

	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/jobs/executor"
	"github.com/denhac/memberbridge/internal/jobs/queue"
	"github.com/denhac/memberbridge/internal/jobs/repository"
	"github.com/denhac/memberbridge/internal/jobs/service"
	"github.com/denhac/memberbridge/internal/jobs/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("jobs",
	fx.Provide(repository.Provide),
	fx.Provide(fx.Annotate(queue.New, fx.As(new(domain.Queue)))),
	fx.Provide(service.New),
)

// WorkerModule runs the worker pool for the lifetime of the app.
var WorkerModule = fx.Module("jobs.worker",
	fx.Provide(executor.New),
	fx.Provide(worker.New),
	fx.Invoke(startWorker),
)

func startWorker(lc fx.Lifecycle, cfg config.Config, w *worker.Worker, log *zap.Logger) {
	if !cfg.Worker.Enabled {
		log.Info("job worker disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				w.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
