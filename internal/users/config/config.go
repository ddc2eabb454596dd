// Package config содержит конфигурацию сервиса учетных записей.
package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgconfig "gousers/pkg/config"
	"gousers/pkg/logger"
)

// Константы ошибок и сообщений для конфигурации.
const (
	ServiceName         = "users"
	DefaultEnvPath      = ".env"
	LogConfigLoaded     = "users service configuration"
	ErrFailedLoadConfig = "failed to load users service configuration"
	ErrInvalidConfig    = "invalid users service configuration"
)

// Config представляет полную конфигурацию приложения.
type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	HTTP      HTTPConfig      `yaml:"http"`
	Security  SecurityConfig  `yaml:"security"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Load загружает конфигурацию из env-файла envPath или переменных окружения.
func Load(ctx context.Context, envPath string) (*Config, error) {
	log := logger.Log(ctx)

	cfg, err := pkgconfig.Load[Config](ctx, ServiceName, envPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrFailedLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, ErrInvalidConfig, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrInvalidConfig, err)
	}

	log.Info(ctx, LogConfigLoaded,
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("log_level", cfg.Logging.GetLevel()),
		zap.String("log_mode", string(cfg.Logging.GetEnvironment())),
		zap.String("grpc_address", cfg.GRPC.GetAddress()),
		zap.String("http_address", cfg.HTTP.GetAddress()),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
		zap.Int("shutdown_timeout_seconds", cfg.Shutdown.Timeout))

	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Postgres.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
