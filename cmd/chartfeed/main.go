package main

import (
	"context"
	"os/signal"
	"syscall"

	"chartfeed/config"
	"chartfeed/internal/app"
	"chartfeed/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run datafeed
	if err := app.Run(ctx, cfg, log); err != nil {
		log.Fatal("chartfeed failed", zap.Error(err))
	}
}
