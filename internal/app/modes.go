package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bookpricer/internal/domain"
	"github.com/alanyoungcy/bookpricer/internal/feed"
	"github.com/alanyoungcy/bookpricer/internal/notify"
	"github.com/alanyoungcy/bookpricer/internal/pipeline"
	"github.com/alanyoungcy/bookpricer/internal/server"
	"github.com/alanyoungcy/bookpricer/internal/server/handler"
	"github.com/alanyoungcy/bookpricer/internal/server/ws"
	"github.com/alanyoungcy/bookpricer/internal/service"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// StreamMode runs the core alone: events in, reports on stdout, diagnostics
// on the diagnostics writer.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies, diag io.Writer) (domain.Run, error) {
	svc := a.newService(deps)
	return a.newRunner(deps, svc, diag).Run(ctx, a.runConfig())
}

// ServeMode runs the publish and full modes. It takes the single-writer lock
// for the instrument, serves the HTTP API and WebSocket hub while the run is
// in progress and, in full mode, prunes old runs on the retention schedule.
// The API stops when the run ends.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies, diag io.Writer) (domain.Run, error) {
	a.logger.InfoContext(ctx, "starting serve mode", slog.String("mode", a.cfg.Mode))

	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, writerLockKey(a.cfg.Pricer.Instrument), a.cfg.Pricer.LockTTLDuration())
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Run{}, fmt.Errorf("app: instrument %s already has a running pricer: %w", a.cfg.Pricer.Instrument, err)
		}
		if err != nil {
			return domain.Run{}, fmt.Errorf("app: %w", err)
		}
		defer unlock()
	}

	svc := a.newService(deps)
	runner := a.newRunner(deps, svc, diag)

	g, gctx := errgroup.WithContext(ctx)
	// serveCtx ends the supporting goroutines once the run is over.
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	var run domain.Run
	g.Go(func() error {
		defer stopServing()
		var err error
		run, err = runner.Run(gctx, a.runConfig())
		return err
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(serveCtx, g, deps, svc)
	}

	if deps.RunStore != nil && a.cfg.Retention.Days > 0 && a.cfg.Retention.Cron != "" {
		pruner := pipeline.NewPruner(deps.RunStore, a.cfg.Retention.Days, a.logger)
		g.Go(func() error {
			err := pruner.RunCron(serveCtx, a.cfg.Retention.Cron)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	return run, err
}

// startHTTPServer adds the HTTP server, its shutdown watcher and the
// WebSocket hub to g. All three stop when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.PricerService) {
	startedAt := time.Now().UTC()

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Channels:   []string{notify.ReportChannel(a.cfg.Pricer.Instrument)},
			Mode:       a.cfg.Mode,
			Instrument: a.cfg.Pricer.Instrument,
			StartedAt:  startedAt,
			Status:     func() any { return svc.Snapshot() },
		})
		g.Go(func() error {
			if err := hub.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode, svc, startedAt),
		Book:   handler.NewBookHandler(svc, deps.IncomeCache, deps.DepthCache, a.logger),
	}
	if deps.RunStore != nil {
		handlers.Runs = handler.NewRunHandler(deps.RunStore, deps.ReportStore, deps.ErrorStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindowDuration(),
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func (a *App) newService(deps *Dependencies) *service.PricerService {
	svc := service.NewPricerService(a.cfg.Pricer.Instrument, a.cfg.Pricer.TargetSize, a.logger)
	if deps.DepthCache != nil && a.cfg.Pricer.DepthEvery > 0 {
		svc = svc.WithDepthCache(deps.DepthCache, a.cfg.Pricer.DepthEvery, a.cfg.Pricer.DepthLevels)
	}
	return svc
}

func (a *App) newRunner(deps *Dependencies, svc *service.PricerService, diag io.Writer) *pipeline.Runner {
	var publisher *notify.Publisher
	if len(deps.Senders) > 0 {
		publisher = notify.NewPublisher(deps.Senders, a.logger)
	}
	return pipeline.NewRunner(pipeline.RunnerDeps{
		Service:     svc,
		Output:      a.io.Stdout,
		Diagnostics: diag,
		Open: feed.OpenOptions{
			Format: feed.Format(a.cfg.Pricer.Format),
			Stdin:  a.io.Stdin,
			Blobs:  deps.BlobReader,
			Bucket: a.cfg.S3.Bucket,
			Bus:    deps.SignalBus,
			Kafka: feed.KafkaConfig{
				Brokers:   a.cfg.Kafka.Brokers,
				GroupID:   a.cfg.Kafka.GroupID,
				Partition: a.cfg.Kafka.Partition,
				MaxWait:   a.cfg.Kafka.MaxWaitDuration(),
			},
			Logger: a.logger,
		},
		Publisher: publisher,
		Runs:      deps.RunStore,
		Errors:    deps.ErrorStore,
		Archiver:  deps.Archiver,
		Alerter:   deps.Alerter,
		Logger:    a.logger,
	})
}

func (a *App) runConfig() pipeline.RunConfig {
	return pipeline.RunConfig{
		Input:       a.cfg.Pricer.Input,
		Format:      feed.Format(a.cfg.Pricer.Format),
		MaxMessages: a.cfg.Pricer.MaxMessages,
	}
}

// writerLockKey names the lock that keeps a single pricer per instrument.
func writerLockKey(instrument string) string {
	return "writer:" + instrument
}
