package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/ledgerdev"
	"fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentApp)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	cancel()
	if err != nil {
		logger.Error("Failed to create backend",
			log.NewFields().WithOperation(log.OpStartup).WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		os.Exit(1)
	}

	dev := ledgerdev.New(res.Repo, res.Events, ledgerdev.Config{
		JWTSecret:          cfg.JWTSecret,
		TokenTTL:           cfg.TokenTTL,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	}, logger)

	srv := cli.NewServer(":"+cfg.LedgerPort, dev.Handler())
	logger.Info("Starting development ledger", "port", cfg.LedgerPort, "backend", bcfg.Type.String())

	cleanup := func() {
		dev.Close()
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}
	if err := cli.Run(logger, srv, 15*time.Second, cleanup); err != nil {
		logger.Error("Server error", log.NewFields().WithError(err, log.ErrorTypeInternal).ToSlice()...)
		os.Exit(1)
	}
}
