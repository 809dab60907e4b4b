// Package server wires the collector's components into a runnable application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/api"
	"github.com/JakeFAU/keyword-news-collector/internal/archive"
	"github.com/JakeFAU/keyword-news-collector/internal/clock/system"
	"github.com/JakeFAU/keyword-news-collector/internal/collector"
	"github.com/JakeFAU/keyword-news-collector/internal/config"
	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/events/sinks"
	collyfetcher "github.com/JakeFAU/keyword-news-collector/internal/fetcher/colly"
	"github.com/JakeFAU/keyword-news-collector/internal/feed"
	"github.com/JakeFAU/keyword-news-collector/internal/hash/sha256"
	"github.com/JakeFAU/keyword-news-collector/internal/id/uuid"
	"github.com/JakeFAU/keyword-news-collector/internal/metrics"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/orchestrator"
	"github.com/JakeFAU/keyword-news-collector/internal/platform"
	"github.com/JakeFAU/keyword-news-collector/internal/policy/ratelimit"
	"github.com/JakeFAU/keyword-news-collector/internal/pool"
	memorypublisher "github.com/JakeFAU/keyword-news-collector/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/keyword-news-collector/internal/publisher/pubsub"
	"github.com/JakeFAU/keyword-news-collector/internal/scheduler"
	"github.com/JakeFAU/keyword-news-collector/internal/storage/gcs"
	"github.com/JakeFAU/keyword-news-collector/internal/storage/local"
	"github.com/JakeFAU/keyword-news-collector/internal/storage/memory"
	"github.com/JakeFAU/keyword-news-collector/internal/storage/postgres"
	"github.com/JakeFAU/keyword-news-collector/internal/subscription"
	"github.com/JakeFAU/keyword-news-collector/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store          news.Store
	collectionPool *pool.Pool
	eventPool      *pool.Pool
	relay          *events.Relay
	orchestrator   *orchestrator.Orchestrator
	subscriptions  *subscription.Service
	feed           *feed.Query
	scheduler      *scheduler.Scheduler
	apiServer      *api.Server

	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	blobs           *gcs.BlobStore
}

// Build creates the application's dependencies. On error every resource
// opened so far is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (app *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app = &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			app.closeInfrastructure()
			app = nil
		}
	}()

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)
	telemetry.InstallPropagator()

	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("postgres", cfg.Database.DSN != ""),
		zap.String("archive_backend", cfg.Archive.Backend),
	)

	if app.store, err = openStore(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}
	if err = app.buildPools(); err != nil {
		return nil, err
	}

	app.relay = events.NewRelay(app.eventPool, events.Config{
		HandlerTimeout: cfg.Events.HandlerTimeout,
		Logger:         logger.Named("relay"),
		Observer:       app.metrics,
	})

	archiver, err := app.setupArchive(ctx)
	if err != nil {
		return nil, err
	}

	ids := uuid.New()
	clock := system.New()
	registry := buildRegistry(cfg)
	fanOut := collector.NewFanOut(registry, collector.FanOutConfig{
		FetchTimeout:  cfg.Collection.FetchTimeout,
		MaxConcurrent: int64(cfg.Collection.MaxConcurrentFetches),
		Limiter:       app.buildLimiter(),
		Observer:      app.metrics,
		Logger:        logger.Named("fanout"),
	})
	task := collector.NewTask(app.store, fanOut, ids, clock, collector.TaskConfig{
		PageSize: cfg.Collection.PageSize,
		Flusher:  app.relay,
		Archiver: archiver,
		Observer: app.metrics,
		Logger:   logger.Named("task"),
	})
	app.orchestrator = orchestrator.New(app.store, fanOut, task, app.collectionPool, orchestrator.Config{
		Logger:   logger.Named("orchestrator"),
		Observer: app.metrics,
	})

	lifecycle := subscription.NewKeywordLifecycle(app.store, app.relay, ids, clock, logger.Named("keywords"))
	app.subscriptions = subscription.NewService(
		app.store,
		app.relay,
		subscription.NewAggregate(ids, clock),
		logger.Named("subscriptions"),
	)
	app.feed = feed.New(app.store, logger.Named("feed"))

	if err = app.subscribeHandlers(ctx, lifecycle); err != nil {
		return nil, err
	}

	app.scheduler = scheduler.New(app.orchestrator, scheduler.Config{
		Interval:     cfg.Collection.Schedule.Interval,
		InitialDelay: cfg.Collection.Schedule.InitialDelay,
		Logger:       logger.Named("scheduler"),
	})
	app.apiServer = api.NewServer(api.Config{
		Store:    app.store,
		Gatherer: app.registry,
		Metrics:  app.metrics,
		Logger:   logger,
	})

	logger.Info("application built",
		zap.Int("enabled_platforms", len(registry.Enabled())),
		zap.Int("page_size", cfg.Collection.PageSize),
	)
	return app, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (news.Store, error) {
	if cfg.DSN == "" {
		logger.Warn("no database DSN configured, using in-memory store")
		return memory.NewStore(), nil
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	}, logger.Named("postgres"))
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	if cfg.Migrate {
		version, err := store.Migrate()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("database schema up to date", zap.Uint("version", version))
	}
	return store, nil
}

func (a *App) buildPools() error {
	var err error
	a.collectionPool, err = newPool("collection", a.cfg.Collection.Pool, a.metrics, a.logger)
	if err != nil {
		return err
	}
	a.eventPool, err = newPool("events", a.cfg.Events.Pool, a.metrics, a.logger)
	return err
}

func newPool(name string, cfg config.PoolConfig, m *metrics.Metrics, logger *zap.Logger) (*pool.Pool, error) {
	p, err := pool.New(pool.Config{
		Name:          name,
		CoreWorkers:   cfg.CoreWorkers,
		MaxWorkers:    cfg.MaxWorkers,
		QueueCapacity: cfg.QueueCapacity,
		IdleTimeout:   cfg.IdleTimeout,
		Logger:        logger.Named("pool"),
		OnReject:      m.PoolRejected,
	})
	if err != nil {
		return nil, fmt.Errorf("%s pool init failed: %w", name, err)
	}
	if err := m.RegisterPool(p); err != nil {
		return nil, fmt.Errorf("%s pool metrics: %w", name, err)
	}
	return p, nil
}

func buildRegistry(cfg config.Config) *platform.Registry {
	getter := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	})
	return platform.NewRegistry(
		platform.NewNaver(platform.NaverConfig{
			Enabled:      cfg.Platforms.Naver.Enabled,
			ClientID:     cfg.Platforms.Naver.ClientID,
			ClientSecret: cfg.Platforms.Naver.ClientSecret,
		}, getter),
		platform.NewDaum(platform.DaumConfig{
			Enabled: cfg.Platforms.Daum.Enabled,
			APIKey:  cfg.Platforms.Daum.APIKey,
		}, getter),
		platform.NewGoogle(platform.GoogleConfig{
			Enabled:  cfg.Platforms.Google.Enabled,
			Language: cfg.Platforms.Google.Language,
			Region:   cfg.Platforms.Google.Region,
		}, getter),
	)
}

func (a *App) buildLimiter() *ratelimit.Limiter {
	p := a.cfg.Platforms
	return ratelimit.New(ratelimit.Config{
		Default: ratelimit.Rule{RPS: p.Google.RPS, Burst: p.Google.Burst},
		PerKey: map[string]ratelimit.Rule{
			string(news.PlatformNaver):  {RPS: p.Naver.RPS, Burst: p.Naver.Burst},
			string(news.PlatformDaum):   {RPS: p.Daum.RPS, Burst: p.Daum.Burst},
			string(news.PlatformGoogle): {RPS: p.Google.RPS, Burst: p.Google.Burst},
		},
		OnDelay: a.metrics.ObserveRateLimitDelay,
	})
}

func (a *App) setupArchive(ctx context.Context) (collector.Archiver, error) {
	var blobs news.BlobStore
	switch a.cfg.Archive.Backend {
	case config.ArchiveGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.blobs = store
		blobs = store
		a.logger.Info("archiving raw batches to GCS", zap.String("bucket", a.cfg.Archive.Bucket))
	case config.ArchiveLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		blobs = store
		a.logger.Info("archiving raw batches locally", zap.String("path", a.cfg.Archive.BaseDir))
	case config.ArchiveMemory:
		blobs = memory.NewBlobStore()
		a.logger.Info("archiving raw batches in memory")
	default:
		a.logger.Debug("raw archive disabled")
		return nil, nil
	}
	archiver, err := archive.New(blobs, sha256.New(), a.cfg.Archive.Prefix)
	if err != nil {
		return nil, fmt.Errorf("archive init failed: %w", err)
	}
	return archiver, nil
}

func (a *App) subscribeHandlers(ctx context.Context, lifecycle *subscription.KeywordLifecycle) error {
	a.relay.Subscribe(events.TypeKeywordRegistered, "collect-new-keyword", a.orchestrator.KeywordRegisteredHandler())
	a.relay.Subscribe(events.TypeUserKeywordAdded, "ensure-keyword", lifecycle.KeywordAddedHandler())
	a.relay.Subscribe(events.TypeUserKeywordRemoved, "prune-keywords", lifecycle.KeywordRemovedHandler())

	a.relay.SubscribeAll("log", sinks.NewLogSink(a.logger.Named("events")))
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("prometheus sink init failed: %w", err)
	}
	a.relay.SubscribeAll("prometheus", promSink)

	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	a.relay.SubscribeAll("publish", sinks.NewPublishSink(publisher, a.cfg.PubSub.TopicName))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (sinks.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = a.pubsubClient.Publisher(a.cfg.PubSub.TopicName)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(a.pubsubPublisher), nil
}

// Orchestrator exposes the collection entry points.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orchestrator }

// Subscriptions exposes user and keyword management.
func (a *App) Subscriptions() *subscription.Service { return a.subscriptions }

// Feed exposes the personalization query.
func (a *App) Feed() *feed.Query { return a.feed }

// Handler returns the operational HTTP handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Run starts the scheduler and the ops server, then blocks until ctx is
// canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Collection.Schedule.Enabled {
		a.scheduler.Start(ctx)
	} else {
		a.logger.Info("scheduled collection disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	a.scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(context.Background())
}

// Close drains the collection pool, then the event pool, then releases
// infrastructure. Each drain is bounded by its configured shutdown timeout.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	// Collection tasks flush events, so the event pool must outlive them.
	if err := drain(ctx, a.collectionPool, a.cfg.Collection.Pool.ShutdownTimeout); err != nil {
		a.logger.Warn("collection pool drain incomplete", zap.Error(err))
		errs = append(errs, err)
	}
	if err := drain(ctx, a.eventPool, a.cfg.Events.Pool.ShutdownTimeout); err != nil {
		a.logger.Warn("event pool drain incomplete", zap.Error(err))
		errs = append(errs, err)
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func drain(ctx context.Context, p *pool.Pool, timeout time.Duration) error {
	if p == nil {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Shutdown(ctx)
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// Migrate opens the configured database and applies embedded migrations.
func Migrate(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (uint, error) {
	if cfg.DSN == "" {
		return 0, errors.New("database.dsn is required to migrate")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	}, logger.Named("postgres"))
	if err != nil {
		return 0, fmt.Errorf("postgres store init failed: %w", err)
	}
	defer store.Close()
	version, err := store.Migrate()
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return version, nil
}
