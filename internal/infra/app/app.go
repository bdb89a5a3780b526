package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/cache"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/config"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/database"
	kafkainfra "github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/kafka"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
	redisinfra "github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/redis"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/telemetry"
	postgresrepo "github.com/NayakVandana/ecommerce-v1-sub003/internal/repository/postgres"
	redisrepo "github.com/NayakVandana/ecommerce-v1-sub003/internal/repository/redis"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/middleware"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/routes"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/usecase"
)

const metricsNamespace = "storefront"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	application := &Application{
		cfg:    cfg,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}

	repos := postgresrepo.NewRepositories(pool)
	users := cache.NewUserDirectory(repos.Users, cfg.Identity.UserCacheSize, cfg.Identity.UserCacheTTL)
	tokenCache := redisrepo.NewTokenCache(redisClient.Client(), cfg.Redis.TokenPrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			application.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	identityMetrics, err := telemetry.NewIdentityMetrics(prometheus.DefaultRegisterer, metricsNamespace)
	if err != nil {
		application.close()
		return nil, fmt.Errorf("init identity metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  metricsNamespace,
	})
	if err != nil {
		application.close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	tokenService := usecase.NewTokenService(repos.Tokens, users, log).
		WithCache(tokenCache, cfg.Identity.TokenCacheTTL).
		WithEvents(eventPublisher).
		WithMetrics(identityMetrics)
	sessionService := usecase.NewSessionService(repos.Sessions, log).
		WithAffinityWindow(cfg.Identity.AffinityWindow).
		WithEvents(eventPublisher).
		WithMetrics(identityMetrics)
	authService := usecase.NewAuthService(users, tokenService, log).WithUserCache(users)
	impersonationService := usecase.NewImpersonationService(tokenService, users, log)

	application.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    prometheus.DefaultGatherer,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Tokens:        tokenService,
			Sessions:      sessionService,
			Impersonation: impersonationService,
		},
	})

	return application, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting storefront identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.App.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases backing connections. The producer goes first so buffered events flush.
func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
