package config

import (
	"fmt"
	"strings" // For LogLevel normalization
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`

	CronSpecNotifications string        `env:"CRON_SPEC_NOTIFICATIONS" envDefault:"0 9 * * *"` // 09:00 UTC daily
	CronTimeout           time.Duration `env:"CRON_TIMEOUT" envDefault:"5m"`

	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	CronSecret string `env:"CRON_SECRET"`

	SMTP SMTPConfig `envPrefix:"SMTP_"`

	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	// Operator bot; disabled when the token is empty.
	TelegramToken   string `env:"TELEGRAM_TOKEN"`
	AdminTelegramID int64  `env:"ADMIN_TELEGRAM_ID"`

	SelectorWorkers    int `env:"SELECTOR_WORKERS" envDefault:"4"`
	MaterializeWorkers int `env:"MATERIALIZE_WORKERS" envDefault:"4"`
}

// SMTPConfig configures outbound mail. An empty Host selects the log transport.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Pass     string `env:"PASS"`
	FromName string `env:"FROM_NAME" envDefault:"Subscription Tracker"`
	From     string `env:"FROM"`
	Secure   bool   `env:"SECURE"` // implicit TLS, usually port 465
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.DatabaseDriver = strings.ToLower(cfg.DatabaseDriver)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: want %q or %q", cfg.DatabaseDriver, DriverPostgres, DriverSQLite)
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}
	if cfg.SelectorWorkers <= 0 {
		cfg.SelectorWorkers = 1
	}
	if cfg.MaterializeWorkers <= 0 {
		cfg.MaterializeWorkers = 1
	}
	if cfg.CronTimeout <= 0 {
		return nil, fmt.Errorf("invalid CRON_TIMEOUT %s", cfg.CronTimeout)
	}

	return cfg, nil
}

// BotEnabled reports whether the operator bot should be started.
func (c *AppConfig) BotEnabled() bool {
	return c.TelegramToken != ""
}
