package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sourcegraph/conc/pool"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/courtstats/internal/config"
	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
	"github.com/riskibarqy/courtstats/internal/domain/statcache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/cache/memcache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/cache/rediscache"
	"github.com/riskibarqy/courtstats/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/courtstats/internal/infrastructure/notification"
	"github.com/riskibarqy/courtstats/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/courtstats/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/courtstats/internal/interfaces/httpapi"
	idgen "github.com/riskibarqy/courtstats/internal/platform/id"
	"github.com/riskibarqy/courtstats/internal/platform/lock"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/metrics"
	"github.com/riskibarqy/courtstats/internal/platform/resilience"
	"github.com/riskibarqy/courtstats/internal/usecase"
)

const (
	metricsNamespace   = "courtstats"
	startupPingTimeout = 5 * time.Second
)

// App owns every long-lived component of the service.
type App struct {
	Server   *http.Server
	consumer *notification.KafkaConsumer

	shutdownTimeout time.Duration
	closers         []namedCloser
	logger          *logging.Logger
}

type namedCloser struct {
	name string
	fn   func() error
}

// New builds the service from configuration. Resources opened before a
// failure are closed before New returns.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (_ *App, err error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	registry := metrics.NewRegistry()
	recorder := metrics.New(registry, metricsNamespace)

	repo, err := a.buildRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := a.buildCacheStore(ctx, cfg, recorder)
	if err != nil {
		return nil, err
	}

	coordinator := lock.NewCoordinator(store, idgen.NewUUIDGenerator(), lock.Config{
		Lease:          cfg.LockLease,
		MaxWait:        cfg.LockMaxWait,
		InitialBackoff: cfg.LockInitialBackoff,
		MaxBackoff:     cfg.LockMaxBackoff,
	}, logger.Named("lock"))
	locker := usecase.NewPairLocker(coordinator, recorder, logger)
	cache := usecase.NewStatsCache(store, cfg.CacheTTL)

	repair, err := buildRepairScheduler(cfg, recorder, logger)
	if err != nil {
		return nil, err
	}

	statsSvc := usecase.NewGameStatsService(repo, cache, locker, repair, recorder, logger)
	refresher := usecase.NewCacheRefresher(repo, cache, locker, cfg.NotificationTimeout, recorder, logger)
	warmupSvc := usecase.NewCacheWarmupService(repo, refresher, cfg.WarmupMaxWorkers, recorder, logger)

	if cfg.KafkaEnabled {
		readers := notification.NewKafkaReaders(notification.KafkaConfig{
			Brokers:   cfg.KafkaBrokers,
			Topic:     cfg.KafkaTopic,
			GroupID:   cfg.KafkaGroupID,
			Consumers: cfg.KafkaConsumers,
			MinBytes:  cfg.KafkaMinBytes,
			MaxBytes:  cfg.KafkaMaxBytes,
			MaxWait:   cfg.KafkaMaxWait,
		})
		a.consumer = notification.NewKafkaConsumer(readers, refresher, recorder, logger)
		logger.Info("kafka consumers configured",
			"topic", cfg.KafkaTopic,
			"group_id", cfg.KafkaGroupID,
			"consumers", len(readers),
		)
	}

	routerCfg := httpapi.RouterConfig{
		SwaggerEnabled:     cfg.SwaggerEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJobToken:   cfg.InternalJobToken,
		RequestTimeout:     cfg.RequestTimeout,
	}
	if cfg.MetricsEnabled {
		routerCfg.Metrics = metrics.Handler(registry)
	}
	handler := httpapi.NewHandler(statsSvc, refresher, warmupSvc, logger)
	router := httpapi.NewRouter(handler, routerCfg, logger)

	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}
	a.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return a, nil
}

func (a *App) buildRepository(ctx context.Context, cfg config.Config) (gamestats.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		var seed []gamestats.StatLine
		if cfg.StoreSeed {
			seed = memory.SeedStatLines()
		}
		a.logger.Warn("using in-memory aggregate store, data is lost on restart", "seeded", cfg.StoreSeed)
		return memory.NewGameStatsRepository(seed), nil
	case config.StoreDriverPostgres:
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.addCloser("postgres", db.Close)
		a.logger.Info("postgres connected", "db", redactDBURL(cfg.DBURL), "max_open_conns", cfg.DBMaxOpenConns)
		return postgres.NewGameStatsRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openDatabase(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", cfg.DBURL,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", redactDBURL(cfg.DBURL), err)
	}
	return db, nil
}

func (a *App) buildCacheStore(ctx context.Context, cfg config.Config, recorder *metrics.Recorder) (statcache.Store, error) {
	switch cfg.CacheDriver {
	case config.CacheDriverMemory:
		a.logger.Warn("using in-process cache, locks do not span instances")
		return memcache.NewStore(), nil
	case config.CacheDriverRedis:
		client := rediscache.NewClient(rediscache.Config{
			Addr:         cfg.RedisAddr,
			Username:     cfg.RedisUsername,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
		})
		a.addCloser("redis", client.Close)

		breakerCfg := resilience.CircuitBreakerConfig{
			Enabled:          cfg.CacheCircuitEnabled,
			FailureThreshold: cfg.CacheCircuitFailureCount,
			OpenTimeout:      cfg.CacheCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.CacheCircuitHalfOpenMaxReq,
		}
		breaker := resilience.NewCircuitBreakerFromConfig(breakerCfg)
		observeBreaker(breaker, breakerCfg, "redis", recorder, a.logger)

		store := rediscache.NewStore(client, breaker, a.logger)
		pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.CacheDriver)
	}
}

// buildRepairScheduler returns nil when QStash is disabled; the write path then
// only invalidates.
func buildRepairScheduler(cfg config.Config, recorder *metrics.Recorder, logger *logging.Logger) (usecase.CacheRepairScheduler, error) {
	if !cfg.QStashEnabled {
		logger.Info("cache repair scheduling disabled", "reason", "QSTASH_ENABLED=false")
		return nil, nil
	}

	breakerCfg := resilience.CircuitBreakerConfig{
		Enabled:          cfg.QStashCircuitEnabled,
		FailureThreshold: cfg.QStashCircuitFailureCount,
		OpenTimeout:      cfg.QStashCircuitOpenTimeout,
		HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
	}
	publisher, err := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
		BaseURL:          cfg.QStashBaseURL,
		Token:            cfg.QStashToken,
		TargetBaseURL:    cfg.QStashTargetBaseURL,
		Retries:          cfg.QStashRetries,
		InternalJobToken: cfg.InternalJobToken,
		CircuitBreaker:   breakerCfg,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build qstash publisher: %w", err)
	}
	observeBreaker(publisher.Breaker(), breakerCfg, "qstash", recorder, logger)

	return jobqueue.NewRefreshScheduler(publisher, cfg.CacheRepairDelay), nil
}

func observeBreaker(breaker *resilience.CircuitBreaker, cfg resilience.CircuitBreakerConfig, dependency string, recorder *metrics.Recorder, logger *logging.Logger) {
	logger.Info("circuit breaker configured", append([]any{"dependency", dependency}, cfg.LogFields()...)...)
	breaker.OnStateChange(func(from, to resilience.CircuitState) {
		recorder.CircuitOpen(dependency, to != resilience.CircuitStateClosed)
		logger.Warn("circuit breaker state changed",
			"dependency", dependency,
			"from", from,
			"to", to,
		)
	})
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, fn: fn})
}

// Run serves HTTP and consumes notifications until ctx is cancelled or one of
// them fails. The HTTP server is drained within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		a.logger.Info("http server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	})
	if a.consumer != nil {
		p.Go(func(ctx context.Context) error {
			return a.consumer.Run(ctx)
		})
	}

	return p.Wait()
}

// Close releases consumers and connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka consumer: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
