package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	env := map[string]string{
		"PAYMENTS_PRIMARY__ENV":                 "test",
		"PAYMENTS_SERVER__PORT":                 "8080",
		"PAYMENTS_SERVER__READ_TIMEOUT":         "5s",
		"PAYMENTS_SERVER__WRITE_TIMEOUT":        "10s",
		"PAYMENTS_SERVER__IDLE_TIMEOUT":         "60s",
		"PAYMENTS_DATABASE__HOST":               "localhost",
		"PAYMENTS_DATABASE__PORT":               "5432",
		"PAYMENTS_DATABASE__USER":               "payments",
		"PAYMENTS_DATABASE__PASSWORD":           "p@ss word",
		"PAYMENTS_DATABASE__NAME":               "ledger",
		"PAYMENTS_DATABASE__SSL_MODE":           "disable",
		"PAYMENTS_DATABASE__MAX_OPEN_CONNS":     "10",
		"PAYMENTS_DATABASE__MAX_IDLE_CONNS":     "2",
		"PAYMENTS_DATABASE__CONN_MAX_LIFETIME":  "1h",
		"PAYMENTS_DATABASE__CONN_MAX_IDLE_TIME": "30m",
		"PAYMENTS_BUS__DRIVER":                  "redis",
		"PAYMENTS_BUS__ADDR":                    "localhost:6379",
		"PAYMENTS_BUS__PARTITIONS":              "4",
		"PAYMENTS_MERCHANT_CLIENT__BASE_URL":    "http://merchants:9000",
		"PAYMENTS_MERCHANT_CLIENT__TIMEOUT":     "3s",
		"PAYMENTS_RETRY__BASE_DELAY":            "200ms",
		"PAYMENTS_RETRY__MAX_RETRIES":           "3",
		"PAYMENTS_WORKER__INTERVAL":             "30s",
		"PAYMENTS_WORKER__STALE_AFTER":          "2m",
		"PAYMENTS_WORKER__BATCH_SIZE":           "50",
		"PAYMENTS_LOGGER__LEVEL":                "debug",
		"PAYMENTS_RATE_LIMIT__RATE":             "100-M",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads nested sections from env", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "redis", cfg.Bus.Driver)
		assert.Equal(t, 4, cfg.Bus.Partitions)
		assert.Equal(t, "http://merchants:9000", cfg.MerchantClient.BaseURL)
		assert.Equal(t, 200*time.Millisecond, cfg.Retry.BaseDelay)
		assert.Equal(t, 2*time.Minute, cfg.Worker.StaleAfter)
		assert.Equal(t, "100-M", cfg.RateLimit.Rate)
	})

	t.Run("rejects unknown bus driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PAYMENTS_BUS__DRIVER", "kafka")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("fails when required values are missing", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PAYMENTS_DATABASE__HOST", "")

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_URLs(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "payments",
		Password: "p@ss word",
		Name:     "ledger",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://payments:p%40ss%20word@db:5432/ledger?sslmode=disable", cfg.ConnString())
	assert.Equal(t, "pgx5://payments:p%40ss%20word@db:5432/ledger?sslmode=disable", cfg.MigrateURL())
}

func TestLoggerConfig_Level(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LoggerConfig{Level: "DEBUG"}.level())
	assert.Equal(t, slog.LevelWarn, LoggerConfig{Level: "warn"}.level())
	assert.Equal(t, slog.LevelInfo, LoggerConfig{}.level())
	assert.NotNil(t, LoggerConfig{Format: "text"}.NewLogger())
}
