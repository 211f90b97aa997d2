package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/nftmart/internal/archive"
	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/events"
	"github.com/alanyoungcy/nftmart/internal/market"
	"github.com/alanyoungcy/nftmart/internal/server"
	"github.com/alanyoungcy/nftmart/internal/server/handler"
	"github.com/alanyoungcy/nftmart/internal/server/ws"
)

const (
	eventBuffer     = 1024
	shutdownTimeout = 10 * time.Second
)

// pipeline is the engine's event sink together with the goroutines that
// drain it.
type pipeline struct {
	sink    domain.EventSink
	runners []func(ctx context.Context) error
}

// buildPipeline assembles the event sinks. The journal and the bus share one
// queue that applies backpressure rather than dropping; notifications get
// their own lossy queue so a slow webhook never delays the journal. Without a
// bus the hub is fed directly.
func buildPipeline(deps *Dependencies, hub *ws.Hub, logger *slog.Logger) pipeline {
	var p pipeline
	var root events.Fanout

	var durable events.Fanout
	if deps.EventStore != nil {
		durable = append(durable, events.NewJournal(deps.EventStore, logger))
	}
	if deps.SignalBus != nil {
		durable = append(durable, events.NewPublisher(deps.SignalBus, logger))
	}
	if len(durable) > 0 {
		q := events.NewBlockingAsync(durable, eventBuffer, logger)
		root = append(root, q)
		p.runners = append(p.runners, q.Run)
	}

	if deps.Notifier != nil {
		q := events.NewAsync(deps.Notifier, eventBuffer, logger)
		root = append(root, q)
		p.runners = append(p.runners, q.Run)
	}

	if hub != nil && deps.SignalBus == nil {
		root = append(root, hub)
	}

	if len(root) == 0 {
		p.sink = events.Discard{}
	} else {
		p.sink = root
	}
	return p
}

// ServeMode runs the market engine behind the HTTP API, together with the
// event pipeline and, when configured, the archive schedule.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(deps.SignalBus, deps.Clock, a.logger)
	}

	pipe := buildPipeline(deps, hub, a.logger)
	for _, run := range pipe.runners {
		g.Go(func() error { return run(ctx) })
	}

	engine := market.NewEngine(deps.Backend, deps.Clock, pipe.sink, a.cfg.Market.TreasuryAccount(), a.logger)

	seeded, err := Seed(ctx, engine, a.cfg, deps.Operator, a.logger)
	if err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}
	a.logger.InfoContext(ctx, "market engine ready",
		slog.Bool("seeded", seeded),
		slog.String("treasury", engine.Treasury().Hex()),
		slog.String("operator", deps.Operator.Hex()),
	)

	if deps.Archiver != nil {
		job := archive.NewJob(deps.Archiver, deps.LockManager, a.retention(), a.logger)
		g.Go(func() error {
			err := job.RunCron(ctx, a.cfg.Archive.Cron)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else if a.cfg.Archive.Enabled {
		a.logger.WarnContext(ctx, "archive.enabled is set but no event journal is wired; archive schedule disabled")
	}

	if a.cfg.Server.Enabled {
		g.Go(func() error {
			return hub.Run(ctx)
		})
		a.startHTTPServer(ctx, g, deps, engine, hub)
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}

	return g.Wait()
}

// ArchiveMode performs one archive pass and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("archive mode: needs archive.enabled and the postgres backend")
	}
	job := archive.NewJob(deps.Archiver, deps.LockManager, a.retention(), a.logger)
	n, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	attrs := []any{slog.Int64("archived", n)}
	if objs, err := deps.BlobReader.List(ctx, a.cfg.Archive.Prefix); err != nil {
		a.logger.WarnContext(ctx, "archive mode: list archives", slog.String("error", err.Error()))
	} else {
		var size int64
		for _, o := range objs {
			size += o.Size
		}
		attrs = append(attrs, slog.Int("objects", len(objs)), slog.Int64("bytes", size))
	}
	a.logger.InfoContext(ctx, "archive mode finished", attrs...)
	return nil
}

func (a *App) retention() time.Duration {
	return time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
}

// startHTTPServer registers the API on g and shuts it down when ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, engine *market.Engine, hub *ws.Hub) {
	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:   handler.NewStatusHandler(engine, deps.Clock, deps.Operator, a.logger),
		Listings: handler.NewListingHandler(engine, a.logger),
		Orders:   handler.NewOrderHandler(engine, a.logger),
		Auctions: handler.NewAuctionHandler(engine, a.logger),
		Assets:   handler.NewAssetHandler(engine, a.logger),
		Admin:    handler.NewAdminHandler(engine, a.logger),
	}
	if deps.EventStore != nil {
		handlers.Events = handler.NewEventHandler(deps.EventStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		Operator:     deps.Operator,
		SignatureTTL: a.cfg.Server.SignatureTTL.Duration,
		RateLimit:    a.cfg.Server.RateLimit,
		RateWindow:   a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, server.Guards{
		Limiter: deps.RateLimiter,
		Replay:  deps.ReplayGuard,
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
