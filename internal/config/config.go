package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port               string
	CookieSecure       bool
	RateLimitPerMinute int

	// Ledger source
	DataBackend         string
	SeedDir             string
	GoogleSpreadsheetID string
	GoogleSheetName     string
	GoogleTotalsRange   string
	GoogleRowsRange     string
	SheetsMaxRetries    int
	LedgerCacheTTL      time.Duration

	// OAuth client. When the client id is empty and the memory backend is
	// selected, a development sign-in is used instead of Google.
	GoogleOAuthClientID     string
	GoogleOAuthClientSecret string
	GoogleOAuthRedirectURL  string

	// Sessions
	SessionBackend string
	SQLiteDBPath   string
	SessionTTL     time.Duration

	// Estimator and display
	TaxRate    string
	HourlyRate string
	Currency   string

	// Observability
	LogLevel          string
	SentryDSN         string
	SentryEnvironment string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:         getEnv("DATA_BACKEND", "memory"),
		SeedDir:             getEnv("SEED_DIR", "./data"),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleTotalsRange:   getEnv("GOOGLE_TOTALS_RANGE", "I5:K5"),
		GoogleRowsRange:     getEnv("GOOGLE_ROWS_RANGE", "A3:D999"),
		SheetsMaxRetries:    getEnvInt("SHEETS_MAX_RETRIES", 2),
		LedgerCacheTTL:      getEnvDuration("LEDGER_CACHE_TTL", 60*time.Second),

		GoogleOAuthClientID:     getEnv("GOOGLE_OAUTH_CLIENT_ID", ""),
		GoogleOAuthClientSecret: getEnv("GOOGLE_OAUTH_CLIENT_SECRET", ""),
		GoogleOAuthRedirectURL:  getEnv("GOOGLE_OAUTH_REDIRECT_URL", "http://localhost:8081/auth/callback"),

		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/finview.db"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		TaxRate:    getEnv("TAX_RATE", "0.07375"),
		HourlyRate: getEnv("HOURLY_RATE", "25"),
		Currency:   strings.ToUpper(getEnv("CURRENCY", money.USD)),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "development"),
	}

	return cfg
}

// Rates parses the configured tax and hourly rates.
func (c *Config) Rates() (tax, hourly decimal.Decimal, err error) {
	tax, err = decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid tax rate '%s': %w", c.TaxRate, err)
	}
	hourly, err = decimal.NewFromString(strings.TrimSpace(c.HourlyRate))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid hourly rate '%s': %w", c.HourlyRate, err)
	}
	return tax, hourly, nil
}

// UsesDevAuth reports whether sign-in bypasses Google.
func (c *Config) UsesDevAuth() bool {
	return c.DataBackend == "memory" && strings.TrimSpace(c.GoogleOAuthClientID) == ""
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !oneOf(c.DataBackend, "memory", "sheets") {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sheets]", c.DataBackend))
	}
	if !oneOf(c.SessionBackend, "memory", "sqlite") {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of [memory sqlite]", c.SessionBackend))
	}

	if c.SessionBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite session backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleOAuthClientID == "" || c.GoogleOAuthClientSecret == "" {
			errors = append(errors, "GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET are required for sheets backend")
		}
		if c.GoogleTotalsRange == "" || c.GoogleRowsRange == "" {
			errors = append(errors, "Google totals and rows ranges cannot be empty")
		}
	}

	if c.GoogleOAuthClientID != "" {
		if u, err := url.Parse(c.GoogleOAuthRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid OAuth redirect URL '%s': must be absolute", c.GoogleOAuthRedirectURL))
		}
	}

	if tax, hourly, err := c.Rates(); err != nil {
		errors = append(errors, err.Error())
	} else {
		if tax.IsNegative() {
			errors = append(errors, fmt.Sprintf("invalid tax rate %s: must not be negative", tax))
		} else if tax.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			errors = append(errors, fmt.Sprintf("invalid tax rate %s: must be a fraction below 1", tax))
		}
		if !hourly.IsPositive() {
			errors = append(errors, fmt.Sprintf("invalid hourly rate %s: must be greater than zero", hourly))
		}
	}

	if money.GetCurrency(c.Currency) == nil {
		errors = append(errors, fmt.Sprintf("unsupported currency '%s'", c.Currency))
	}

	if c.LedgerCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid ledger cache TTL %v: must not be negative", c.LedgerCacheTTL))
	} else if c.LedgerCacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid ledger cache TTL %v: must be at most 1 hour", c.LedgerCacheTTL))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SheetsMaxRetries < 0 || c.SheetsMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid sheets max retries %d: must be between 0 and 10", c.SheetsMaxRetries))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
