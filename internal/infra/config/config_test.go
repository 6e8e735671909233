package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/subs")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0 9 * * *", cfg.CronSpecNotifications)
	assert.Equal(t, 5*time.Minute, cfg.CronTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:3000", cfg.AppBaseURL)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Empty(t, cfg.SMTP.Host)
	assert.Equal(t, 4, cfg.SelectorWorkers)
	assert.False(t, cfg.BotEnabled())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:subs.db")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CRON_TIMEOUT", "90s")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_USER", "robot@example.com")
	t.Setenv("SMTP_SECURE", "true")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ADMIN_TELEGRAM_ID", "4242")
	t.Setenv("SELECTOR_WORKERS", "0")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.CronTimeout)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.Secure)
	assert.Equal(t, "robot@example.com", cfg.SMTP.From)
	assert.True(t, cfg.BotEnabled())
	assert.Equal(t, int64(4242), cfg.AdminTelegramID)
	assert.Equal(t, 1, cfg.SelectorWorkers)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{}},
		{"unknown driver", map[string]string{"DATABASE_URL": "x", "DATABASE_DRIVER": "mysql"}},
		{"bot without admin", map[string]string{"DATABASE_URL": "x", "TELEGRAM_TOKEN": "123:abc"}},
		{"bad admin id", map[string]string{"DATABASE_URL": "x", "ADMIN_TELEGRAM_ID": "alice"}},
		{"bad timeout", map[string]string{"DATABASE_URL": "x", "CRON_TIMEOUT": "-1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
