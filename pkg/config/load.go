// Package config предоставляет функциональность для загрузки конфигурации из переменных окружения.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	"gousers/pkg/logger"
)

const (
	msgLoadingConfiguration    = "loading configuration"
	msgConfigurationLoaded     = "configuration loaded successfully"
	msgEnvFileMissing          = "env file not found, reading process environment"
	msgFailedLoadConfiguration = "failed to load configuration"

	errFailedLoadConfiguration = "failed to load configuration"

	attrService = "service"
	attrPath    = "path"
)

// Load читает конфигурацию типа T из env-файла envPath, а при его отсутствии
// из переменных окружения процесса.
func Load[T any](ctx context.Context, serviceName, envPath string) (*T, error) {
	log := logger.Log(ctx)

	log.Info(ctx, msgLoadingConfiguration,
		zap.String(attrService, serviceName),
		zap.String(attrPath, envPath))

	var cfg T
	var err error

	if _, statErr := os.Stat(envPath); envPath != "" && statErr == nil {
		err = cleanenv.ReadConfig(envPath, &cfg)
	} else {
		if envPath != "" && !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", errFailedLoadConfiguration, statErr)
		}
		log.Debug(ctx, msgEnvFileMissing, zap.String(attrPath, envPath))
		err = cleanenv.ReadEnv(&cfg)
	}

	if err != nil {
		log.Error(ctx, msgFailedLoadConfiguration,
			zap.String(attrService, serviceName),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errFailedLoadConfiguration, err)
	}

	log.Info(ctx, msgConfigurationLoaded, zap.String(attrService, serviceName))

	return &cfg, nil
}
