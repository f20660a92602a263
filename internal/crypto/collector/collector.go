package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptoetl/config"
	"cryptoetl/internal/api"
	"cryptoetl/internal/crypto/export"
	"cryptoetl/internal/crypto/pipeline"
	"cryptoetl/internal/crypto/query"
	"cryptoetl/internal/crypto/schedule"
	"cryptoetl/internal/crypto/snapshot"
	"cryptoetl/pkg/coinmarketcap"
	"cryptoetl/pkg/storage/sqlstore"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// StartCollector wires the store, the CoinMarketCap client, the exporter and the optional
// cache and read API, then runs the pipeline on the configured schedule until ctx is done.
func StartCollector(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Initialize the relational store
	store, err := sqlstore.Open(cfg.Store, cfg.Environment, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	// Create REST client and extractor for listings
	cmc := cfg.CoinMarketCap
	restClient := coinmarketcap.NewRESTClient(cmc.BaseURL, cmc.ResolveAPIKey(cfg.Environment), cmc.Timeout)
	extractor := &snapshot.Extractor{
		Source:  restClient,
		Limit:   cmc.Limit,
		Convert: cmc.Convert,
		Timeout: cmc.Timeout,
		Logger:  logger.Named("extractor"),
	}

	// Query cache is optional; the pipeline runs without it
	rdb, err := query.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, query cache disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}
	service := query.NewService(store, rdb, cfg.Redis.TTL, logger.Named("query"))

	opts := pipeline.Options{
		Store:     store,
		Exporter:  export.NewExporter(logger.Named("export")),
		OutputDir: cfg.Export.OutputDir,
		Extractor: extractor,
		Logger:    logger.Named("pipeline"),
	}
	if rdb != nil {
		opts.Invalidator = service
	}
	orch := pipeline.New(opts)

	if cfg.API.Enabled {
		app := api.New(service, logger.Named("api"))
		go func() {
			logger.Info("read API listening", zap.String("addr", cfg.API.Addr))
			if err := app.Listen(cfg.API.Addr); err != nil {
				logger.Error("read API stopped", zap.Error(err))
			}
		}()
		defer func() {
			if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				logger.Warn("read API shutdown", zap.Error(err))
			}
		}()
	}

	ticker := &schedule.Ticker{Interval: cfg.Schedule.Interval, Logger: logger.Named("schedule")}
	var lastErr error
	ticker.Run(ctx, func(ctx context.Context) error {
		report, err := orch.RunOnce(ctx)
		lastErr = err
		if err != nil {
			return err
		}
		logger.Info("snapshot stored",
			zap.String("run_id", report.RunID),
			zap.Int("loaded", report.Loaded),
			zap.Bool("extraction_failed", report.ExtractionFailed),
		)
		return nil
	})

	// With an API server the process lives until ctx is cancelled
	if cfg.API.Enabled && cfg.Schedule.Interval <= 0 {
		<-ctx.Done()
	}

	// A single run reports its outcome to the caller
	if cfg.Schedule.Interval <= 0 && lastErr != nil {
		var stageErr *pipeline.StageError
		if errors.As(lastErr, &stageErr) {
			return fmt.Errorf("snapshot run failed at %s: %w", stageErr.Stage, stageErr.Err)
		}
		return lastErr
	}
	return nil
}
