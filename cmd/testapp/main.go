package main

import (
	"context"
	"log/slog"
	"os"

	"httpmediator/internal/app"
	"httpmediator/internal/config"
	"httpmediator/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log, closeLog := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		ConsoleJSON:  cfg.Log.ConsoleJSON,
		File:         cfg.Log.File,
		App:          "testapp",
	})
	defer func() { _ = closeLog() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup", "err", err)
		_ = closeLog()
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		log.Error("run", "err", err)
		_ = closeLog()
		os.Exit(1)
	}
}
