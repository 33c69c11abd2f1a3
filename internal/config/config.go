package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "PAYMENTS_"

type Config struct {
	Primary        Primary              `koanf:"primary"`
	Server         ServerConfig         `koanf:"server"`
	Database       DatabaseConfig       `koanf:"database"`
	Bus            BusConfig            `koanf:"bus"`
	MerchantClient MerchantClientConfig `koanf:"merchant_client"`
	Retry          RetryConfig          `koanf:"retry"`
	Logger         LoggerConfig         `koanf:"logger"`
	Worker         WorkerConfig         `koanf:"worker"`
	RateLimit      RateLimitConfig      `koanf:"rate_limit"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// BusConfig selects the event bus. The memory driver keeps everything in
// process and is meant for local runs.
type BusConfig struct {
	Driver       string        `koanf:"driver" validate:"required,oneof=redis memory"`
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	Consumer     string        `koanf:"consumer"`
	Partitions   int           `koanf:"partitions" validate:"required,min=1"`
	BlockTimeout time.Duration `koanf:"block_timeout"`
	ClaimIdle    time.Duration `koanf:"claim_idle"`
	MaxLen       int64         `koanf:"max_len"`
}

// MerchantClientConfig points at a remote balance collaborator. When
// BaseURL is empty the in-process merchant service is used.
type MerchantClientConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int           `koanf:"max_retries"`
}

type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	StaleAfter time.Duration `koanf:"stale_after" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
}

type RateLimitConfig struct {
	// Rate uses the limiter format, e.g. "100-M" for 100 requests a minute.
	Rate string `koanf:"rate"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
