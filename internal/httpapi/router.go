package httpapi

import (
	"fmt"
	"net/http"
	"net/url"

	"credgate/internal/config"
	"credgate/internal/logging"
	"credgate/internal/metrics"
	"credgate/internal/middleware"
	"credgate/internal/quota"
	"credgate/internal/ratelimit"
	"credgate/internal/scheduler"
	"credgate/internal/storage"
)

// Dependencies aggregates the long-lived services behind the HTTP layer so
// main can start and stop them with the server.
type Dependencies struct {
	DB            *storage.DB
	Scheduler     *scheduler.ResetScheduler
	RequestLogger *logging.Worker
	closeRedis    func() error
}

// Close releases everything the router opened.
func (d *Dependencies) Close() error {
	d.Scheduler.Stop()
	d.RequestLogger.Stop()
	if err := d.closeRedis(); err != nil {
		return err
	}
	return d.DB.Close()
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Repositories and services
	keyCache := storage.NewKeyCache(redisClient, cfg.KeyCache.TTL)
	apiKeyRepo := storage.NewAPIKeyRepository(db, keyCache)
	usageRepo := storage.NewUsageRepository(db)
	requestLogRepo := storage.NewRequestLogRepository(db)

	tracker := quota.NewTracker(usageRepo)
	limiter := ratelimit.NewRateLimiter(redisClient, cfg.RateLimit.Window)
	fallback := ratelimit.NewLocalLimiter(cfg.RateLimit.Window)

	requestLogger := logging.NewWorker(requestLogRepo, logging.Config{
		BufferSize:    cfg.RequestLog.BufferSize,
		BatchSize:     cfg.RequestLog.BatchSize,
		FlushInterval: cfg.RequestLog.FlushInterval,
	})
	requestLogger.Start()

	resetScheduler := scheduler.NewResetScheduler(usageRepo, apiKeyRepo, db, scheduler.Config{
		CronSpec:   cfg.Scheduler.CronSpec,
		BatchSize:  cfg.Scheduler.BatchSize,
		BatchDelay: cfg.Scheduler.BatchDelay,
	})
	if err := resetScheduler.Start(); err != nil {
		db.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to start reset scheduler: %w", err)
	}

	deps := &Dependencies{
		DB:            db,
		Scheduler:     resetScheduler,
		RequestLogger: requestLogger,
		closeRedis:    redisClient.Close,
	}

	// The gateway pipeline, outermost first. The request logger sits
	// inside auth so rejected-but-authenticated requests are audited,
	// while anonymous probes are not. Rate limiting runs before quota so
	// a burst over the per-minute ceiling does not burn daily budget.
	pipeline := chain(
		middleware.RecoveryMiddleware(cfg.IsProduction()),
		middleware.MetricsMiddleware(),
		middleware.APIKeyMiddleware(NewDatabaseAPIKeyStore(apiKeyRepo)),
		middleware.RequestLoggerMiddleware(requestLogger),
		middleware.ScopeMiddleware(),
		middleware.RateLimitMiddleware(limiter, fallback, middleware.RateLimitConfig{
			PerAddressLimit: cfg.RateLimit.PerAddressLimit,
			FailClosed:      cfg.RateLimit.FailClosed,
		}),
		middleware.QuotaMiddleware(tracker),
	)

	mux := http.NewServeMux()

	// Proxied search API
	mux.Handle("/api/", pipeline(NewProxyHandler(upstream)))

	// Key self-inspection: authenticated with the key, exempt from quota
	// so checking remaining budget never consumes it.
	detailsHandler := NewKeyDetailsHandler(tracker)
	detailsPipeline := chain(
		middleware.RecoveryMiddleware(cfg.IsProduction()),
		middleware.MetricsMiddleware(),
		middleware.APIKeyMiddleware(NewDatabaseAPIKeyStore(apiKeyRepo)),
	)
	mux.Handle("/key/details", detailsPipeline(http.HandlerFunc(detailsHandler.Details)))

	// Health check endpoint - public
	healthHandler := NewHealthHandler(db, redisClient)
	mux.HandleFunc("/health", healthHandler.Health)

	// Metrics endpoint - public
	mux.Handle("/metrics", metrics.Handler())

	// Admin management endpoints - protected with AdminJWTMiddleware
	adminJWT := middleware.AdminJWTMiddleware(cfg.AdminJWTSecret)
	adminHandler := NewAdminAPIKeysHandler(apiKeyRepo, tracker)
	mux.Handle("/admin/keys", adminJWT(http.HandlerFunc(adminHandler.HandleKeys)))
	mux.Handle("/admin/keys/", adminJWT(http.HandlerFunc(adminHandler.HandleKey)))

	return mux, deps, nil
}

// chain composes middleware outermost-first.
func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
