// Package app wires configuration, adapters and use cases into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsStream/internal/broadcast"
	"NewsStream/internal/buffer"
	"NewsStream/internal/config"
	"NewsStream/internal/httpapi"
	"NewsStream/internal/infrastructure/feed"
	"NewsStream/internal/infrastructure/llm"
	"NewsStream/internal/infrastructure/memory"
	"NewsStream/internal/infrastructure/ml"
	"NewsStream/internal/infrastructure/scheduler"
	"NewsStream/internal/infrastructure/storage"
	"NewsStream/internal/logging"
	"NewsStream/internal/normalize"
	"NewsStream/internal/ports"
	"NewsStream/internal/usecase"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.KeyValueStore
	repo      *storage.Repository
	buffer    *buffer.Buffer
	hub       *broadcast.Hub
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *http.Server
}

// New connects to the store and builds every component. A store that cannot
// be reached aborts startup.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := openStore(ctx, cfg.Store, baseLogger)
	if err != nil {
		return nil, err
	}

	return build(cfg, store, newMemoryGuard(cfg, baseLogger), baseLogger), nil
}

func build(cfg config.Config, store ports.KeyValueStore, guard ports.MemoryGuard, baseLogger *slog.Logger) *Application {
	repo := storage.NewRepository(store, cfg.Store.TTL, baseLogger.With("component", "store"))
	capacity := cfg.Buffer.Capacity()
	buf := buffer.New(capacity, capacity)
	hub := broadcast.NewHub(baseLogger.With("component", "broadcast"))

	fetcher := feed.NewFetcher(
		cfg.Poller.RequestTimeout,
		cfg.Retry.BaseDelay,
		cfg.Retry.MaxRetries,
		baseLogger.With("component", "fetcher"),
		feed.WithUserAgent(cfg.Poller.UserAgent),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Repository:     repo,
		Analyzer:       newAnalyzer(cfg.Analysis, baseLogger.With("component", "analysis")),
		Broadcaster:    hub,
		Buffer:         buf,
		Normalizer:     normalize.New(cfg.Poller.DefaultCategory, baseLogger.With("component", "normalize")),
		EntriesPerFeed: cfg.Poller.EntriesPerFeed,
		Logger:         baseLogger.With("component", "pipeline"),
	})

	poller := usecase.NewPoller(usecase.PollerDeps{
		Feeds:           cfg.Feeds,
		Fetcher:         fetcher,
		Pipeline:        pipeline,
		Memory:          guard,
		Buffer:          buf,
		BatchSize:       cfg.Poller.BatchSize,
		BatchPause:      cfg.Poller.BatchPause,
		CleanupInterval: cfg.Poller.CleanupInterval,
		Retention:       cfg.Poller.Retention,
		Logger:          baseLogger.With("component", "poller"),
	})

	handler := httpapi.NewHandler(buf, repo, hub, baseLogger.With("component", "http"))
	router := httpapi.NewRouter(handler, cfg.Server.AllowedOrigins)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		repo:      repo,
		buffer:    buf,
		hub:       hub,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(scheduler.NewIntervalScheduler(cfg.Poller.Interval), poller),
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run seeds the buffer, starts polling and serves HTTP until ctx is done,
// then shuts everything down in order.
func (a *Application) Run(ctx context.Context) error {
	a.initBuffer(ctx)

	a.logger.Info("starting feed polling", "feeds", len(a.cfg.Feeds), "interval", a.cfg.Poller.Interval)
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops polling, waits for in-flight work, closes the store, tells
// subscribers and finally stops the HTTP server.
func (a *Application) Shutdown(ctx context.Context) error {
	a.logger.Info("starting graceful shutdown")
	var errs []error

	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	} else {
		a.logger.Info("polling task cancelled")
	}

	if err := a.pipeline.WaitAnalyses(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait analyses: %w", err))
	}

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	} else {
		a.logger.Info("store connections closed")
	}

	a.hub.Shutdown()

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}

	a.logger.Info("cleanup completed")
	return errors.Join(errs...)
}

func (a *Application) initBuffer(ctx context.Context) {
	if a.cfg.Store.ClearOnStart {
		a.logger.Info("clearing store on startup")
		if err := a.repo.Clear(ctx); err != nil {
			a.logger.Error("clear on start failed", "error", err)
		}
		a.buffer.Seed(nil)
		return
	}

	existing := a.repo.GetRecent(ctx, a.buffer.Capacity())
	a.buffer.Seed(existing)
	a.logger.Info("buffer initialized", "articles", len(existing))
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.KeyValueStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Backend {
	case config.StorePostgres:
		db, err := storage.OpenPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		store, err := storage.NewPostgresStore(db, cfg.Postgres.Table, logger.With("component", "postgres"))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := store.Ping(pingCtx); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := store.EnsureSchema(pingCtx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("connected to postgres", "table", cfg.Postgres.Table)
		return store, nil
	default:
		opts := storage.RedisOptions(cfg.Redis)
		store := storage.NewRedisStore(redis.NewClient(opts))
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
		return store, nil
	}
}

func newAnalyzer(cfg config.AnalysisConfig, logger *slog.Logger) ports.Analyzer {
	if cfg.Endpoint == "" {
		logger.Warn("analysis endpoint not configured, articles will not be analyzed")
		return nil
	}
	if cfg.API == config.AnalysisChat {
		logger.Info("analysis via chat completions", "endpoint", cfg.Endpoint, "model", cfg.Model)
		return llm.NewChatClient(cfg, logger)
	}
	logger.Info("analysis via completions", "endpoint", cfg.Endpoint, "model", cfg.Model)
	return ml.NewClient(cfg, logger)
}

func newMemoryGuard(cfg config.Config, logger *slog.Logger) ports.MemoryGuard {
	monitor, err := memory.NewMonitor(cfg.Memory.ThresholdMB, logger.With("component", "memory"))
	if err != nil {
		logger.Warn("memory monitor unavailable, cycles will not be throttled", "error", err)
		return nil
	}
	return monitor
}
