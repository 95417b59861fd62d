package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mail providers.
const (
	MailSendGrid = "sendgrid"
	MailSES      = "ses"
	MailLog      = "log"
)

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
	LedgerSQLite   = "sqlite"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env       string
	HTTPPort  string
	LogLevel  string
	LogFormat string
	StaticDir string

	SheetID         string
	CredentialsFile string
	SheetRange      string

	MailProvider   string
	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	LedgerBackend string
	RedisAddr     string
	DatabaseURL   string
	SQLitePath    string

	SyncEnabled       bool
	SyncInterval      time.Duration
	SyncStartupDelay  time.Duration
	SyncDispatchDelay time.Duration

	RateLimitPerMin int
}

// IsProduction reports whether the app runs with production settings.
func (a App) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Load returns application config populated from environment variables with
// sensible defaults. A config.yaml in the working directory is read when
// present; the environment always wins over it.
func Load() (App, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app_env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("static_dir", "public")
	v.SetDefault("google_credentials_file", "credentials.json")
	v.SetDefault("sheet_range", "Sheet1!A2:F")
	v.SetDefault("mail_from_name", "TEDx Silver Oaks")
	v.SetDefault("ledger_backend", LedgerMemory)
	v.SetDefault("sqlite_path", "data/entrypass.db")
	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_interval", 5*time.Minute)
	v.SetDefault("sync_startup_delay", 3*time.Second)
	v.SetDefault("sync_dispatch_delay", time.Second)
	v.SetDefault("rate_limit_per_min", 120)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return App{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := App{
		Env:               v.GetString("app_env"),
		HTTPPort:          httpPort(v),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		StaticDir:         v.GetString("static_dir"),
		SheetID:           v.GetString("google_sheet_id"),
		CredentialsFile:   v.GetString("google_credentials_file"),
		SheetRange:        v.GetString("sheet_range"),
		MailProvider:      strings.ToLower(v.GetString("mail_provider")),
		SendGridAPIKey:    v.GetString("sendgrid_api_key"),
		MailFrom:          v.GetString("sendgrid_from_email"),
		MailFromName:      v.GetString("mail_from_name"),
		LedgerBackend:     strings.ToLower(v.GetString("ledger_backend")),
		RedisAddr:         v.GetString("redis_addr"),
		DatabaseURL:       v.GetString("database_url"),
		SQLitePath:        v.GetString("sqlite_path"),
		SyncEnabled:       v.GetBool("sync_enabled"),
		SyncInterval:      v.GetDuration("sync_interval"),
		SyncStartupDelay:  v.GetDuration("sync_startup_delay"),
		SyncDispatchDelay: v.GetDuration("sync_dispatch_delay"),
		RateLimitPerMin:   v.GetInt("rate_limit_per_min"),
	}

	if cfg.MailProvider == "" {
		cfg.MailProvider = MailSendGrid
		if !cfg.IsProduction() {
			cfg.MailProvider = MailLog
		}
	}

	if err := cfg.validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

// httpPort prefers HTTP_PORT and falls back to the conventional PORT.
func httpPort(v *viper.Viper) string {
	if p := v.GetString("http_port"); p != "" {
		return p
	}
	if p := v.GetString("port"); p != "" {
		return p
	}
	return "3000"
}

func (a App) validate() error {
	var errs []error

	switch a.MailProvider {
	case MailSendGrid:
		if a.SendGridAPIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required for the sendgrid mail provider"))
		}
		if a.MailFrom == "" {
			errs = append(errs, errors.New("SENDGRID_FROM_EMAIL is required for the sendgrid mail provider"))
		}
	case MailSES:
		if a.MailFrom == "" {
			errs = append(errs, errors.New("SENDGRID_FROM_EMAIL is required as the sender address"))
		}
	case MailLog:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q", a.MailProvider))
	}

	switch a.LedgerBackend {
	case LedgerMemory:
	case LedgerRedis:
		if a.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis ledger backend"))
		}
	case LedgerPostgres:
		if a.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres ledger backend"))
		}
	case LedgerSQLite:
		if a.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite ledger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", a.LedgerBackend))
	}

	if a.SyncEnabled && a.SheetID == "" {
		errs = append(errs, errors.New("GOOGLE_SHEET_ID is required when sync is enabled"))
	}
	if a.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", a.SyncInterval))
	}
	if a.SyncDispatchDelay < 0 {
		errs = append(errs, fmt.Errorf("SYNC_DISPATCH_DELAY must not be negative, got %s", a.SyncDispatchDelay))
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger from the configured level and format.
func (a App) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(a.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
