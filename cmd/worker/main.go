package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/musharafmush/pos-sub010/internal/app"
	"github.com/musharafmush/pos-sub010/internal/config"
	"github.com/musharafmush/pos-sub010/internal/jobs"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg, "worker")
	if err != nil {
		bootLogger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)
		bootLogger.Fatal().Err(err).Msg("bootstrap")
	}
	defer deps.Close()
	logger := deps.Logger

	st := store.New(deps.DB)
	catalogService, err := deps.Catalog(st)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	redeemJob, err := jobs.NewRedeemJob(st, deps.Metrics, app.Meter("github.com/musharafmush/pos-sub010/worker"), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redeem job")
	}
	redeemJob.WithCache(catalogService)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   deps.TaskRedis,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRedeemOffers, Handler: redeemJob.Handle},
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise worker")
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}
