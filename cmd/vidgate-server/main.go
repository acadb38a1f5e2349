package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"vidgate/internal/app"
	"vidgate/internal/config"
	"vidgate/internal/infrastructure"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		return 1
	}
	defer logger.Close()

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry", slog.String("error", err.Error()))
		return 1
	}

	ctx := context.Background()
	application, err := app.NewApplication(ctx, cfg, logger.Logger, providers)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		return 1
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
