package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finview/internal/auth"
	"finview/internal/cli"
	"finview/internal/config"
	"finview/internal/core"
	apphttp "finview/internal/http"
	"finview/internal/log"
	"finview/internal/services"
	"finview/internal/view"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.SlogLevel())
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	flush, report := cli.InitSentry(cfg, logger, "finview@"+version)
	defer flush()

	if err := run(cfg, logger, report); err != nil {
		logger.Error("finview stopped with error", log.FieldError, err)
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, report func(context.Context, error)) error {
	reader, err := cli.NewLedgerReader(cfg, logger)
	if err != nil {
		return err
	}

	opts := []services.LedgerOption{services.WithLogger(logger.Logger)}
	if report != nil {
		opts = append(opts, services.WithErrorReporter(report))
	}
	ledger := services.NewLedgerService(reader, cfg.LedgerCacheTTL, opts...)

	sessions, closeSessions, err := cli.NewSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSessions(); err != nil {
			logger.Warn("Failed to close session store", log.FieldError, err)
		}
	}()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	tax, hourly, err := cfg.Rates()
	if err != nil {
		return err
	}
	est, err := core.NewEstimator(tax, hourly)
	if err != nil {
		return err
	}
	money, err := core.NewMoneyFormatter(cfg.Currency)
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             ledger,
		Sessions:           sessions,
		Auth:               provider,
		Views:              view.NewBuilder(est, money),
		Logger:             logger,
		SessionTTL:         cfg.SessionTTL,
		CookieSecure:       cfg.CookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Report:             report,
	})
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting finview server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"session_backend", cfg.SessionBackend,
		"version", version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
	return nil
}

// newProvider signs in against Google, or locally when no OAuth client is
// configured for the memory backend.
func newProvider(cfg *config.Config, logger *log.Logger) (auth.Provider, error) {
	if cfg.UsesDevAuth() {
		logger.Warn("No Google OAuth client configured, using development sign-in")
		return auth.DevProvider{}, nil
	}
	return auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleOAuthClientID,
		ClientSecret: cfg.GoogleOAuthClientSecret,
		RedirectURL:  cfg.GoogleOAuthRedirectURL,
	})
}
