package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/service/dashboard"
	"CoinPull/internal/usecase"
	pkgcache "CoinPull/pkg/cache"
	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
	applogger "CoinPull/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	store      drepo.PriceStore
	publisher  drepo.Publisher
	cache      pkgcache.Service
	dash       *dashboard.Dashboard
	seeds      *usecase.SeedRunner
	live       *usecase.LivePoller
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	store drepo.PriceStore,
	publisher drepo.Publisher,
	cache pkgcache.Service,
	dash *dashboard.Dashboard,
	seeds *usecase.SeedRunner,
	live *usecase.LivePoller,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		l:          l.Component("app"),
		store:      store,
		publisher:  publisher,
		cache:      cache,
		dash:       dash,
		seeds:      seeds,
		live:       live,
		httpServer: httpServer,
	}
}

// Run initializes the store, serves HTTP and blocks until interrupted.
// With startLive the poller starts immediately instead of waiting for a command.
func (a *App) Run(startLive bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.store.Initialize(ctx); err != nil {
		a.close()
		return fmt.Errorf("initialize store: %w", err)
	}
	a.l.Info("store ready", applogger.String("type", a.cfg.Store.Type))

	if err := a.httpServer.Start(); err != nil {
		a.close()
		return err
	}

	if startLive || a.cfg.Live.AutoStart {
		a.live.Start(context.WithoutCancel(ctx))
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// Seed runs one seeding pass with the configured defaults and returns when it is done.
// An interrupt cancels the run; batches already inserted stay in the store.
func (a *App) Seed() (models.SeedResult, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	if err := a.store.Initialize(ctx); err != nil {
		return models.SeedResult{}, fmt.Errorf("initialize store: %w", err)
	}

	return a.seeds.Run(ctx, models.SeedRequest{
		AssetIDs:      a.cfg.Ingest.Assets,
		QuoteCurrency: a.cfg.Ingest.QuoteCurrency,
		TargetRows:    a.cfg.Ingest.TargetRows,
		ClearFirst:    a.cfg.Ingest.ClearFirst,
	})
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")

	if a.live.Stop() {
		a.l.Info("live polling stopped")
	}
	if a.seeds.Cancel() {
		a.seeds.Wait()
		a.l.Info("running seed cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	a.close()
	a.l.Info("shutdown complete")
	return nil
}

// close releases infrastructure clients.
func (a *App) close() {
	if hub := a.dash.Hub(); hub != nil {
		hub.Close()
	}
	if err := a.publisher.Close(); err != nil {
		a.l.Warn("publisher close error", applogger.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.l.Warn("cache close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.l.Warn("store close error", applogger.Error(err))
	}
}
