package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"brightside/internal/adapter/fetcher"
	"brightside/internal/adapter/parser"
	"brightside/internal/cache"
	"brightside/internal/config"
	"brightside/internal/domain"
	"brightside/internal/logger"
	"brightside/internal/migrations"
	"brightside/internal/registry"
	"brightside/internal/sentiment"
	server "brightside/internal/transport/http"
	"brightside/internal/usecase"
	"brightside/internal/worker"
	"brightside/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Core - общие компоненты агрегатора без HTTP-сервера и воркера.
// Используется и сервером, и разовыми командами CLI.
type Core struct {
	Log        *slog.Logger
	Registry   *registry.Registry
	Store      storage.Storage
	Cache      *cache.Cache
	Fetcher    *fetcher.HTTPFetcher
	Parser     *parser.FeedParser
	Filter     *sentiment.Filter
	Processor  *usecase.FeedProcessingUseCase
	Moderation *usecase.ModerationUseCase
	Aggregator *usecase.Aggregator
}

// NewCore собирает компоненты по конфигурации. Если база данных настроена,
// подключается к ней и применяет миграции, иначе использует хранилище в памяти.
func NewCore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Core, error) {
	extra := make([]domain.FeedSource, 0, len(cfg.App.FeedURLs))
	for _, f := range cfg.App.FeedURLs {
		extra = append(extra, domain.FeedSource{Name: f.Name, URL: f.URL, Region: f.Region, Category: f.Category})
	}
	reg, err := registry.Default(extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed catalog: %w", err)
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	keywords := cfg.App.NegativeKeywords
	if len(keywords) == 0 {
		keywords = sentiment.DefaultNegativeKeywords
	}
	c := &Core{
		Log:      log,
		Registry: reg,
		Store:    store,
		Cache:    cache.New(cfg.CacheTTL()),
		Fetcher: fetcher.NewHTTPFetcher(log, fetcher.Options{
			UserAgent:       cfg.App.UserAgent,
			Timeout:         cfg.FetchTimeoutDuration(),
			PerHostInterval: 250 * time.Millisecond,
		}),
		Parser: parser.NewFeedParser(log),
		Filter: sentiment.NewFilter(sentiment.NewVaderScorer(), sentiment.NewBlocklist(keywords), cfg.App.PositiveThreshold),
	}
	c.Processor = usecase.NewFeedProcessingUseCase(c.Fetcher, c.Parser, c.Filter, log)
	c.Moderation = usecase.NewModerationUseCase(reg, store, store, c.Cache, log)
	c.Aggregator = usecase.NewAggregator(c.Processor, c.Moderation, store, c.Cache, log, usecase.AggregatorOptions{
		Concurrency:  cfg.App.FetchConcurrency,
		FetchTimeout: cfg.FetchTimeoutDuration(),
	})
	return c, nil
}

// Close освобождает хранилище.
func (c *Core) Close() {
	c.Store.Close()
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if !cfg.Database.Enabled() {
		return storage.NewMemoryStore(log), nil
	}
	dbPool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("Database connection established", slog.String("component", "database"))
	if err := migrations.Apply(ctx, log, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return storage.NewPostgresStore(dbPool, log), nil
}

// App представляет приложение BrightSide.
// Координирует работу HTTP-сервера, воркера обновления, хранилища и логирования.
// Обеспечивает graceful startup и shutdown.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	core     *Core
	server   *http.Server
	worker   *worker.Worker
	stopChan chan os.Signal
	wg       sync.WaitGroup
}

// New создает и инициализирует приложение: логгер, хранилище, конвейер
// обработки лент, воркер и HTTP-сервер.
func New(cfg *config.Config) (*App, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)
	if cfg.InsecureAdmin() {
		appLogger.Warn("Admin credentials are the insecure defaults; set ADMIN_USER and ADMIN_PASS",
			slog.String("component", "app"),
		)
	}

	core, err := NewCore(context.Background(), cfg, appLogger)
	if err != nil {
		return nil, err
	}

	w := worker.New(core.Aggregator, cfg.ProcessingEvery(), appLogger)
	handler := server.NewHandler(appLogger, server.Deps{
		News:          usecase.NewNewsGetterUseCase(core.Cache, core.Aggregator, appLogger, cfg.App.DefaultNewsLimit, cfg.App.LazyRefresh),
		Moderation:    core.Moderation,
		Subscriptions: usecase.NewSubscriptionUseCase(core.Store, appLogger),
		Refresher:     core.Aggregator,
		Scheduler:     w,
	}, server.Options{
		AdminUser:     cfg.Admin.Username,
		AdminPass:     cfg.Admin.Password,
		SessionSecret: cfg.Admin.SessionSecret,
		Categories:    core.Registry.Categories(),
		Regions:       core.Registry.Regions(),
	})
	if cfg.Admin.SessionSecret == "" {
		appLogger.Warn("SESSION_SECRET is not set; admin sessions will not survive a restart",
			slog.String("component", "app"),
		)
	}

	return &App{
		config: cfg,
		logger: appLogger,
		core:   core,
		server: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           server.NewServer(appLogger, handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
		worker:   w,
		stopChan: make(chan os.Signal, 1),
	}, nil
}

// Run запускает воркер и HTTP-сервер и блокируется до получения сигнала
// завершения. Возвращает ошибку, если сервер не удалось запустить.
func (a *App) Run() error {
	a.logger.Info("Starting BrightSide",
		slog.String("component", "app"),
		slog.Int("catalog_size", len(a.core.Registry.Sources())),
		slog.String("processing_interval", a.worker.Interval().String()),
		slog.Float64("threshold", a.core.Filter.Threshold()),
	)
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.core.Close()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	a.worker.Start()
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)
	serveErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
			serveErr <- err
		}
	}()
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case runErr = <-serveErr:
	}
	if err := a.Shutdown(); err != nil {
		return err
	}
	return runErr
}

// Shutdown останавливает воркер, завершает HTTP-сервер с таймаутом 10 секунд,
// закрывает хранилище и ожидает завершения всех горутин.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	signal.Stop(a.stopChan)
	a.worker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var shutdownErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
		shutdownErr = err
	}
	a.core.Close()
	a.wg.Wait()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return shutdownErr
}
