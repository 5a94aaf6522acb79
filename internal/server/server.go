package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/config"
	"github.com/aman-churiwal/portfolio-api/internal/handler"
	"github.com/aman-churiwal/portfolio-api/internal/healthcheck"
	"github.com/aman-churiwal/portfolio-api/internal/middleware"
	"github.com/aman-churiwal/portfolio-api/internal/parcel"
	"github.com/aman-churiwal/portfolio-api/internal/places"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/aman-churiwal/portfolio-api/internal/ratelimit"
	"github.com/aman-churiwal/portfolio-api/internal/repository"
	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Route names used as the endpoint half of rate limit keys.
const (
	endpointSearch       = "parcels.search"
	endpointImport       = "portfolios.import"
	endpointAutocomplete = "address.autocomplete"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	recorder   *middleware.RequestRecorder
	health     *healthcheck.Checker
	httpServer *http.Server

	auth      *middleware.Auth
	limiter   *ratelimit.Limiter
	portfolio *handler.PortfolioHandler
	lookup    *handler.LookupHandler
	usage     *handler.UsageHandler
	system    *handler.SystemHandler
	analytics *handler.AnalyticsHandler
}

// New wires every component. redis may be nil when neither the rate limiter
// nor the quota store is configured against it.
func New(cfg *config.Config, logger zerolog.Logger, postgres *storage.Postgres, redis *storage.RedisClient) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiterStore, err := ratelimit.NewStore(cfg.RateLimit.Backend, redis, cfg.RateLimit.SweepInterval.Duration)
	if err != nil {
		return nil, err
	}

	counters, err := newCounterStore(cfg.Quota.Backend, postgres, redis)
	if err != nil {
		return nil, err
	}

	quotaSvc := quota.NewService(counters, quota.Options{
		FreeLimit:    cfg.Quota.FreeLimit,
		StoreTimeout: cfg.Quota.StoreTimeout.Duration,
	}, logger)

	parcelClient := parcel.NewClient(parcel.Config{
		BaseURL:     cfg.Parcel.BaseURL,
		APIKey:      cfg.Parcel.APIKey,
		Timeout:     cfg.Parcel.Timeout.Duration,
		MaxFailures: cfg.Parcel.Breaker.MaxFailures,
		OpenTimeout: cfg.Parcel.Breaker.Timeout.Duration,
	}, logger)

	placesClient := places.NewClient(places.Config{
		BaseURL:  cfg.Places.BaseURL,
		APIKey:   cfg.Places.APIKey,
		CacheTTL: cfg.Places.CacheTTL.Duration,
	}, logger)

	propertyRepo := repository.NewPropertyRepository(postgres)
	portfolioSvc := service.NewPortfolioService(repository.NewPortfolioRepository(postgres), propertyRepo)
	lookupSvc := service.NewLookupService(quotaSvc, parcelClient, portfolioSvc, propertyRepo, logger)

	checks := map[string]healthcheck.Pinger{"database": postgres}
	if redis != nil {
		checks["redis"] = redis
	}
	health := healthcheck.NewChecker(checks, healthcheck.Config{
		Interval:    cfg.Health.Interval.Duration,
		Timeout:     cfg.Health.Timeout.Duration,
		MaxFailures: cfg.Health.MaxFailures,
	}, logger)
	requestLogs := repository.NewRequestLogRepository(postgres)

	s := &Server{
		router:    gin.New(),
		config:    cfg,
		logger:    logger,
		health:    health,
		auth:      middleware.NewAuth(service.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), quotaSvc, logger),
		limiter:   ratelimit.NewLimiter(limiterStore, logger),
		portfolio: handler.NewPortfolioHandler(portfolioSvc),
		lookup:    handler.NewLookupHandler(lookupSvc, placesClient, logger),
		usage:     handler.NewUsageHandler(quotaSvc),
		system:    handler.NewSystemHandler(health, []handler.Breaker{parcelClient.Breaker()}, logger),
		analytics: handler.NewAnalyticsHandler(service.NewAnalyticsService(requestLogs)),
	}

	if cfg.RequestLog.Enabled {
		s.recorder = middleware.NewRequestRecorder(
			requestLogs,
			cfg.RequestLog.BufferSize,
			cfg.RequestLog.FlushInterval.Duration,
			logger,
		)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func newCounterStore(backend string, postgres *storage.Postgres, redis *storage.RedisClient) (quota.CounterStore, error) {
	switch backend {
	case "postgres":
		return repository.NewUsageRepository(postgres), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("redis quota backend needs a redis client")
		}
		return repository.NewRedisUsageStore(redis), nil
	case "memory":
		return quota.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown quota backend: %s", backend)
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.Server.CORSOrigins))
	if s.recorder != nil {
		s.router.Use(s.recorder.Middleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.system.Health)

	api := s.router.Group("/api/v1", s.auth.RequireAuth())
	{
		api.GET("/usage", s.usage.Get)

		api.GET("/parcels/search", middleware.RateLimit(s.limiter, endpointSearch, ratelimit.Normal), s.lookup.Search)
		api.GET("/address/autocomplete", middleware.RateLimit(s.limiter, endpointAutocomplete, ratelimit.Lenient), s.lookup.Autocomplete)

		portfolios := api.Group("/portfolios")
		{
			portfolios.POST("", s.portfolio.Create)
			portfolios.GET("", s.portfolio.List)
			portfolios.GET("/:id", s.portfolio.Get)
			portfolios.PATCH("/:id", s.portfolio.Update)
			portfolios.DELETE("/:id", s.portfolio.Delete)
			portfolios.GET("/:id/properties", s.portfolio.ListProperties)
			portfolios.DELETE("/:id/properties/:propertyId", s.portfolio.DeleteProperty)
			portfolios.POST("/:id/import", middleware.RateLimit(s.limiter, endpointImport, ratelimit.Strict), s.lookup.Import)
		}
	}

	admin := s.router.Group("/admin", s.auth.RequireAuth(), middleware.RequireRole(s.config.Auth.AdminRole))
	{
		admin.GET("/status", s.system.Status)
		admin.POST("/breakers/:name/reset", s.system.ResetBreaker)
		admin.PUT("/users/:id/tier", s.usage.SetTier)
		admin.GET("/analytics", s.analytics.GetSummary)
		admin.DELETE("/request-logs", s.analytics.Cleanup)
	}
}

func (s *Server) Run(addr string) error {
	s.health.Start()
	if s.recorder != nil {
		s.recorder.Start()
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout.Duration,
		WriteTimeout: s.config.Server.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().
		Str("addr", addr).
		Str("environment", s.config.Server.Environment).
		Str("rate_limit_backend", s.config.RateLimit.Backend).
		Str("quota_backend", s.config.Quota.Backend).
		Msg("Starting portfolio API")

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then flushes the request log and
// stops the health checker.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.recorder != nil {
		s.recorder.Stop()
	}
	s.health.Stop()

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
