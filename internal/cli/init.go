// Package cli provides common process initialization shared by cmd/finview,
// cmd/finctl and cmd/oauth-init.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"finview/internal/config"
	"finview/internal/log"
	ports "finview/internal/sheets"
	gsheets "finview/internal/sheets/google"
	"finview/internal/sheets/memory"
	"finview/internal/session"
	"finview/internal/storage"
)

// SetupLogger initializes structured text logging on stdout at level and
// installs it as the default logger.
func SetupLogger(level slog.Level) *log.Logger {
	logger := log.New(log.Config{Level: level, Output: os.Stdout})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// InitSentry enables error reporting when a DSN is configured. The returned
// flush function must be called before exit; report is nil when reporting
// is disabled.
func InitSentry(cfg *config.Config, logger *log.Logger, release string) (flush func(), report func(context.Context, error)) {
	flush = func() {}
	if cfg.SentryDSN == "" {
		return flush, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     release,
	})
	if err != nil {
		// Reporting is best effort; the dashboard still runs without it.
		logger.Error("Failed to initialize Sentry", log.FieldError, err)
		return flush, nil
	}
	logger.Info("Sentry error reporting enabled", "environment", cfg.SentryEnvironment)
	return func() { sentry.Flush(2 * time.Second) }, ReportError
}

// ReportError sends err to Sentry using the hub bound to ctx when present.
func ReportError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// NewLedgerReader builds the ledger source selected by DATA_BACKEND.
func NewLedgerReader(cfg *config.Config, logger *log.Logger) (ports.LedgerReader, error) {
	switch cfg.DataBackend {
	case "memory":
		logger.Info("Using memory ledger backend", "seed_dir", cfg.SeedDir)
		return memory.NewFromFiles(cfg.SeedDir), nil
	case "sheets":
		client, err := gsheets.New(gsheets.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
			TotalsRange:   cfg.GoogleTotalsRange,
			RowsRange:     cfg.GoogleRowsRange,
			MaxRetries:    cfg.SheetsMaxRetries,
			Logger:        logger.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("sheets client: %w", err)
		}
		logger.Info("Using Google Sheets ledger backend", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

// NewSessionStore builds the session store selected by SESSION_BACKEND. The
// returned close function releases it.
func NewSessionStore(cfg *config.Config, logger *log.Logger) (session.Store, func() error, error) {
	switch cfg.SessionBackend {
	case "memory":
		return session.NewMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		repo, err := InitSQLite(logger, cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// InitSQLite opens the SQLite session repository at dbPath and applies
// pending migrations.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		return nil, fmt.Errorf("sqlite repository: %w", err)
	}
	logger.Info("SQLite session store ready", "path", dbPath)
	return repo, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before the returned context is
// cancelled; done is closed once cleanup has returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
