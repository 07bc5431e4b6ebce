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

type Config struct {
	Primary      Primary           `koanf:"primary"`
	Server       ServerConfig      `koanf:"server"`
	Database     DatabaseConfig    `koanf:"database"`
	Redis        RedisConfig       `koanf:"redis"`
	Gateway      GatewayConfig     `koanf:"gateway"`
	Idempotency  IdempotencyConfig `koanf:"idempotency"`
	Executor     ExecutorConfig    `koanf:"executor"`
	ChargeRetry  RetryConfig       `koanf:"charge_retry"`
	RenewalRetry RetryConfig       `koanf:"renewal_retry"`
	Worker       WorkerConfig      `koanf:"worker"`
	Logger       LoggerConfig      `koanf:"logger"`
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

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type GatewayConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required"`
	SecretKey   string        `koanf:"secret_key" validate:"required"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"required"`
}

type IdempotencyConfig struct {
	TTL time.Duration `koanf:"ttl" validate:"required"`
}

type ExecutorConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"required"`
	BaseDelay   time.Duration `koanf:"base_delay" validate:"required"`
}

// RetryConfig tunes one worker retry policy. Charge jobs and renewal jobs
// carry different constants but share the algorithm.
type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay" validate:"required"`
	MaxDelay   time.Duration `koanf:"max_delay" validate:"required"`
	MaxRetries int           `koanf:"max_retries" validate:"required"`
}

type WorkerConfig struct {
	ChargeInterval   time.Duration `koanf:"charge_interval" validate:"required"`
	RecoveryInterval time.Duration `koanf:"recovery_interval" validate:"required"`
	BatchSize        int           `koanf:"batch_size" validate:"required"`
	StaleCancelAfter time.Duration `koanf:"stale_cancel_after" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("SUBPAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "SUBPAY_")),
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
