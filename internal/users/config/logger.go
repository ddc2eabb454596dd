package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"gousers/pkg/logger"
)

var (
	logLevels = []interface{}{"debug", "info", "warn", "warning", "error"}
	logModes  = []interface{}{string(logger.Development), string(logger.Production)}
)

// LoggingConfig содержит настройки логирования.
type LoggingConfig struct {
	Level string `yaml:"level" env:"USERS_LOGGER_LEVEL" env-default:"info"`
	Mode  string `yaml:"mode" env:"USERS_LOGGER_MODE" env-default:"development"`
}

// Validate допускает только известные уровни и режимы, без учета регистра.
func (l *LoggingConfig) Validate() error {
	level, mode := l.normalized()
	return validation.Errors{
		"level": validation.Validate(level, validation.Required, validation.In(logLevels...)),
		"mode":  validation.Validate(mode, validation.Required, validation.In(logModes...)),
	}.Filter()
}

// GetLevel возвращает уровень в нижнем регистре.
func (l *LoggingConfig) GetLevel() string {
	level, _ := l.normalized()
	return level
}

// GetEnvironment переводит режим в logger.Environment.
func (l *LoggingConfig) GetEnvironment() logger.Environment {
	if _, mode := l.normalized(); mode == string(logger.Production) {
		return logger.Production
	}
	return logger.Development
}

func (l *LoggingConfig) normalized() (string, string) {
	return strings.ToLower(strings.TrimSpace(l.Level)), strings.ToLower(strings.TrimSpace(l.Mode))
}
