// Package app bootstraps the infrastructure shared by the API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/musharafmush/pos-sub010/internal/catalog"
	"github.com/musharafmush/pos-sub010/internal/config"
	"github.com/musharafmush/pos-sub010/internal/lock"
	"github.com/musharafmush/pos-sub010/internal/migrations"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/resilience"
)

const (
	connectTimeout = 5 * time.Second

	cacheBreakerMinRequests = 5
	cacheBreakerRatio       = 0.5
	cacheBreakerOpenFor     = 30 * time.Second
)

// Dependencies holds the connections and telemetry shared across modules.
type Dependencies struct {
	Config          *config.Config
	Logger          zerolog.Logger
	DB              *pgxpool.Pool
	Redis           *redis.Client
	TaskRedis       asynq.RedisConnOpt
	MetricsRegistry prometheus.Registerer
	Metrics         *obs.DomainMetrics
	Tracing         bool

	shutdownTracer func(context.Context) error
}

// Bootstrap connects to Postgres and Redis, installs tracing when enabled and
// registers domain metrics. component names the binary in logs and connection
// metadata. Callers must Close the result.
func Bootstrap(ctx context.Context, cfg *config.Config, component string) (*Dependencies, error) {
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("component", component).
		Logger()

	deps := &Dependencies{
		Config:          cfg,
		Logger:          logger,
		MetricsRegistry: prometheus.DefaultRegisterer,
	}
	deps.Metrics = obs.NewDomainMetrics("pos", deps.MetricsRegistry)

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   cfg.ServiceName + "-" + component,
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: 1,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			deps.Tracing = true
			deps.shutdownTracer = shutdown
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := NewPool(connectCtx, cfg.DatabaseURL, cfg.ServiceName+"-"+component)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.DB = pool

	rdb, err := NewRedis(connectCtx, cfg.RedisURL, cfg.MetricsEnabled)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Redis = rdb

	taskRedis, err := TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.TaskRedis = taskRedis
	return deps, nil
}

// Close releases every connection opened by Bootstrap and flushes pending spans.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := d.shutdownTracer(ctx); err != nil {
			d.Logger.Error().Err(err).Msg("shutdown tracer")
		}
	}
}

// Catalog builds the catalog service over st with the shared Redis cache. Cache
// access sits behind a circuit breaker and refills are serialised with a Redis lock.
func (d *Dependencies) Catalog(st catalog.Store) (*catalog.Service, error) {
	breaker := resilience.NewBreaker(cacheBreakerMinRequests, cacheBreakerRatio, cacheBreakerOpenFor).
		WithTarget("redis_cache").
		WithLogger(d.Logger).
		WithMetrics(resilience.NewMetrics("pos", d.MetricsRegistry))
	cfg := catalog.ServiceConfig{
		Store:   st,
		Cache:   catalog.NewCache(d.Redis, d.Config.OfferCacheTTL).WithBreaker(breaker),
		Metrics: d.Metrics,
		Logger:  d.Logger,
	}
	if d.Redis != nil {
		cfg.Locker = &lock.Locker{R: d.Redis}
	}
	return catalog.NewService(cfg)
}

// NewPool opens a traced pgx pool and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens an instrumented Redis client and verifies it with a ping.
func NewRedis(ctx context.Context, redisURL string, withMetrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	instrumentErr := redisotel.InstrumentTracing(rdb)
	if withMetrics {
		instrumentErr = errors.Join(instrumentErr, redisotel.InstrumentMetrics(rdb))
	}
	if instrumentErr != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("instrument redis: %w", instrumentErr)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// TaskRedisOpt converts a redis:// URL into asynq connection options.
func TaskRedisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}
	return opt, nil
}

// RunMigrations applies the embedded schema.
func RunMigrations(databaseURL string) error {
	if err := migrations.Up(databaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Meter returns the OpenTelemetry meter for instrumentation hooks.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
