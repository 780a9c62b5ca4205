package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/health"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/repo"
	"github.com/noah-isme/backend-kasir/internal/shipping"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kasir")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kasir-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "kasir-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	catalogLookup := catalog.CachedLookup{
		Inner: repo.CatalogRepo{Pool: pool},
		Cache: catalog.NewCache(redisClient, cfg.ReferenceCacheTTL),
	}

	quoteSvc := &cart.Service{
		Catalog:        catalogLookup,
		TaxCfg:         repo.TaxConfigRepo{Pool: pool},
		ShippingCfg:    repo.ShippingConfigRepo{Pool: pool},
		Discounts:      repo.DiscountRepo{Pool: pool},
		Store:          repo.StoreRepo{Pool: pool},
		Carrier:        shipping.MockClient{},
		Currency:       cfg.Currency,
		TaxDisplayMode: cfg.TaxDisplayMode,
	}
	quoteHandler := &cart.Handler{
		Svc:      quoteSvc,
		Validate: validator.New(),
		Logger:   logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", false)
	if pprofEnabled {
		r.Mount("/debug/pprof", newPprofMux())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("parse rate limit")
	}
	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: "kasir:ratelimit",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	rateMiddleware := limiterstdlib.NewMiddleware(limiter.New(limiterStore, rate))

	r.Route("/api/v1", func(v chi.Router) {
		v.With(rateMiddleware.Handler).Post("/quote", quoteHandler.Quote)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 10_000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	<-shutdownDone
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	return mux
}
