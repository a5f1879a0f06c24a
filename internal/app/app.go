package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/event"
	handler "github.com/utafrali/marketplace/internal/handler/http"
	"github.com/utafrali/marketplace/internal/realtime"
	"github.com/utafrali/marketplace/internal/repository/postgres"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/internal/storage"
	"github.com/utafrali/marketplace/internal/storage/breaker"
	"github.com/utafrali/marketplace/internal/storage/memory"
	miniostore "github.com/utafrali/marketplace/internal/storage/minio"
	"github.com/utafrali/marketplace/migrations"
	"github.com/utafrali/marketplace/pkg/database"
	"github.com/utafrali/marketplace/pkg/health"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/tracing"
)

const (
	serviceName    = "marketplace"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the marketplace server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stopLimiter    context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName, serviceVersion))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis carries chat notifications.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Kafka producer, or a no-op publisher when events are disabled.
	var (
		producer *pkgkafka.Producer
		events   service.EventPublisher = event.Noop{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("kafka disabled, domain events are discarded")
	}

	// Object storage behind a circuit breaker.
	backend, local, err := newStorage(ctx, cfg, logger)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, err
	}
	images := storage.NewImageStore(backend, logger)

	// Build the dependency graph.
	productRepo := postgres.NewProductRepository(pool)
	storeRepo := postgres.NewStoreRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	conversationRepo := postgres.NewConversationRepository(pool)
	notifier := realtime.NewNotifier(rdb, logger)

	catalogService := service.NewCatalogService(productRepo, storeRepo, categoryRepo, images, events, logger, cfg.DefaultImageURL)
	categoryService := service.NewCategoryService(categoryRepo, logger)
	storeService := service.NewStoreService(storeRepo, images, events, logger, cfg.DefaultStoreLogo)
	reviewService := service.NewReviewService(reviewRepo, productRepo, events, logger)
	chatService := service.NewChatService(conversationRepo, productRepo, notifier, logger)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.Register("storage", backend.Ping)
	if producer != nil {
		healthHandler.Register("kafka", producer.Ping)
	}

	// The limiter's janitor runs until shutdown.
	limiterCtx, stopLimiter := context.WithCancel(context.Background())

	routerCfg := handler.RouterConfig{
		ServiceName:    serviceName,
		Catalog:        catalogService,
		Categories:     categoryService,
		Stores:         storeService,
		Reviews:        reviewService,
		Chat:           chatService,
		Stream:         notifier,
		Health:         healthHandler,
		ValidateToken:  verifier.Validate,
		CORS:           middleware.DefaultCORSConfig(),
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		RateLimit:      middleware.RateLimit(limiterCtx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
		Logger:         logger,
	}
	if local != nil {
		routerCfg.Media = local
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.NewRouter(routerCfg),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		stopLimiter:    stopLimiter,
	}, nil
}

// newStorage builds the configured object backend wrapped in a circuit
// breaker. The memory backend is also returned so its objects can be served.
func newStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, *memory.Storage, error) {
	var (
		backend storage.Storage
		local   *memory.Storage
	)

	switch cfg.StorageBackend {
	case config.StorageMinio:
		m, err := miniostore.New(cfg.Minio())
		if err != nil {
			return nil, nil, fmt.Errorf("create minio client: %w", err)
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("object storage ready",
			slog.String("backend", config.StorageMinio),
			slog.String("endpoint", cfg.MinioEndpoint),
			slog.String("bucket", cfg.MinioBucket),
		)
		backend = m
	default:
		local = memory.New(cfg.PublicBaseURL())
		logger.Info("object storage ready",
			slog.String("backend", config.StorageMemory),
			slog.String("base_url", cfg.PublicBaseURL()),
		)
		backend = local
	}

	guarded, err := breaker.New(backend, cfg.Breaker(), prometheus.DefaultRegisterer, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wrap storage in circuit breaker: %w", err)
	}
	return guarded, local, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown drains HTTP first, then flushes spans, then closes the clients.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.stopLimiter()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
