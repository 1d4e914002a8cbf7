package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/export"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/session"
	"fintrack/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentApp)

	sess, err := session.Open(cfg.SessionDir, logger)
	if err != nil {
		logger.Error("Failed to open session",
			log.NewFields().WithOperation(log.OpStartup).WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		os.Exit(1)
	}
	logger.Info("Session opened", "dir", cfg.SessionDir, log.FieldState, sess.State().String())

	states, unsubscribe := sess.Subscribe()
	go func() {
		for st := range states {
			logger.Info("Session state changed", log.FieldState, st.String())
		}
	}()

	client := ledger.New(cfg.LedgerAPIURL, ledger.Options{
		Timeout:     cfg.RequestTimeout,
		Credentials: sess,
		Logger:      logger,
	})
	income := store.NewRecords(core.Income, client.Records(core.Income), logger, store.WithMessages(ledger.Message))
	expense := store.NewRecords(core.Expense, client.Records(core.Expense), logger, store.WithMessages(ledger.Message))
	profile := store.NewProfile(client, logger, store.WithMessages(ledger.Message))

	limiter := ratelimit.NewLimiter(ratelimit.PerMinute(cfg.LoginRatePerMinute))

	deps := apphttp.Deps{
		Session:      sess,
		Auth:         client,
		Income:       income,
		Expense:      expense,
		Profile:      profile,
		LoginLimiter: limiter,
		Logger:       logger,
	}

	exportCfg := export.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}
	if exportCfg.Enabled() {
		sheets, err := export.NewSheets(context.Background(), exportCfg, logger)
		switch {
		case err == nil:
			deps.Exporter = sheets
			logger.Info("Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		case errors.Is(err, export.ErrNotConfigured):
		default:
			logger.Warn("Sheets export disabled",
				log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		}
	}

	srv := cli.NewServer(":"+cfg.Port, apphttp.NewServer(deps).Handler())
	logger.Info("Starting fintrack", "port", cfg.Port, "ledger", cfg.LedgerAPIURL)

	cleanup := func() {
		unsubscribe()
		limiter.Stop()
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close session", log.FieldError, err.Error())
		}
	}
	if err := cli.Run(logger, srv, shutdownTimeout, cleanup); err != nil {
		logger.Error("Server error", log.NewFields().WithError(err, log.ErrorTypeInternal).ToSlice()...)
		os.Exit(1)
	}
}
