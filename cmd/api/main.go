package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/musharafmush/pos-sub010/internal/app"
	"github.com/musharafmush/pos-sub010/internal/audit"
	"github.com/musharafmush/pos-sub010/internal/billing"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/config"
	"github.com/musharafmush/pos-sub010/internal/health"
	"github.com/musharafmush/pos-sub010/internal/jobs"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/ratelimit"
	"github.com/musharafmush/pos-sub010/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 15 * time.Second
	checkTimeout    = 500 * time.Millisecond
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg, "api")
	if err != nil {
		bootLogger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)
		bootLogger.Fatal().Err(err).Msg("bootstrap")
	}
	defer deps.Close()
	logger := deps.Logger

	if cfg.MigrateOnStart {
		if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Msg("migrations applied")
	}

	st := store.New(deps.DB)
	catalogService, err := deps.Catalog(st)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	taskClient := jobs.NewClient(deps.TaskRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	billingService, err := billing.NewService(billing.ServiceConfig{
		Catalog:     catalogService,
		Customers:   st,
		Redemptions: taskClient,
		Settings:    cfg.Billing(),
		Metrics:     deps.Metrics,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise billing service")
	}

	limiterStore, err := ratelimit.NewStore(deps.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	rateLimiter, err := ratelimit.New(limiterStore, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("parse rate limit")
	}
	limit := ratelimit.Handler{
		Limiter: rateLimiter,
		Key:     ratelimit.TerminalKey,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") },
	}

	var (
		httpMetrics    *obs.HTTPMetrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics("pos", buckets, deps.MetricsRegistry)
		metricsHandler = promhttp.Handler()
	}

	rdb := deps.Redis
	router := billing.NewRouter(billing.RouterConfig{
		Handler: &billing.Handler{Svc: billingService},
		Health: health.Handler{Checks: []health.Check{
			health.PingCheck("db", deps.DB, checkTimeout),
			{Name: "redis", Timeout: checkTimeout, Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}},
		}},
		Logger:         logger,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: metricsHandler,
		Idempotency:    common.Idem{R: rdb, TTL: cfg.IdempotencyTTL},
		Audit:          &audit.Service{Store: st, Enabled: cfg.AuditEnabled},
		RateLimit:      limit.Middleware,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		MaxBodyBytes:   maxBodyBytes,
		Tracing:        deps.Tracing,
		ServiceName:    cfg.ServiceName,
	})

	handler := router
	if user := envOrDefault("PPROF_BASIC_AUTH_USER", ""); user != "" {
		mux := http.NewServeMux()
		mux.Handle("/debug/pprof/", protectPprof(newPprofMux(), user, envOrDefault("PPROF_BASIC_AUTH_PASS", "")))
		mux.Handle("/", router)
		handler = mux
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("business_state", cfg.BusinessState.String()).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
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

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
