package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/config"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/handlers"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/middleware"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Tokens        *usecase.TokenService
	Sessions      *usecase.SessionService
	Impersonation *usecase.ImpersonationService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	identityCfg := deps.Config.Identity

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(middleware.TracingOptions{}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.CORS(
		deps.Config.App.AllowedOrigins,
		[]string{identityCfg.TokenHeader, identityCfg.SessionHeader, identityCfg.ImpersonateHeader},
		[]string{identityCfg.SessionHeader, middleware.RequestIDHeader, middleware.TraceIDHeader},
	))

	checks := make(map[string]handlers.ReadinessCheck, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	services := deps.Services
	if services.Tokens == nil || services.Sessions == nil {
		return r
	}

	resolver := middleware.NewIdentityResolver(services.Tokens, services.Sessions, identityCfg, deps.Logger)
	if services.Impersonation != nil {
		resolver.WithImpersonator(services.Impersonation)
	}

	api := r.Group("/api/v1")
	{
		if services.Auth != nil {
			authHandler := handlers.NewAuthHandler(services.Auth, identityCfg)
			authHandler.RegisterRoutes(api.Group("/auth"), resolver.RequireUser(), buildLoginMiddlewares(deps)...)
		}

		identityHandler := handlers.NewIdentityHandler(services.Sessions)
		api.GET("/identity", resolver.Resolve(), identityHandler.Current)

		admin := api.Group("/admin", resolver.RequireUser(), middleware.RequireAdmin())
		admin.GET("/sessions/:session_id", identityHandler.Session)
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(
		middleware.RateLimitRule{
			Name:       "auth_login_ip",
			Limit:      limit,
			Window:     window,
			Identifier: middleware.ClientIPIdentifier(),
		},
		middleware.RateLimitRule{
			Name:       "auth_login_email",
			Limit:      limit,
			Window:     window,
			Identifier: middleware.BodyFieldIdentifier("email"),
		},
	)}
}
