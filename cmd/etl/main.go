package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cryptoetl/config"
	"cryptoetl/internal/crypto/collector"
	"cryptoetl/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load(os.Getenv("CRYPTOETL_CONFIG_DIR"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// run collector
	if err := collector.StartCollector(ctx, cfg, log); err != nil {
		log.Fatal("collector failed", zap.Error(err))
	}
}
