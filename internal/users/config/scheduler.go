package config

import (
	"fmt"
	"time"
)

// SchedulerConfig содержит настройки периодических задач очистки.
type SchedulerConfig struct {
	Enabled               bool          `yaml:"enabled" env:"USERS_SCHEDULER_ENABLED" env-default:"true"`
	NotActivatedHour      int           `yaml:"not_activated_hour" env:"USERS_SCHEDULER_NOT_ACTIVATED_HOUR" env-default:"1"`
	AuditHour             int           `yaml:"audit_hour" env:"USERS_SCHEDULER_AUDIT_HOUR" env-default:"0"`
	NotActivatedRetention time.Duration `yaml:"not_activated_retention" env:"USERS_NOT_ACTIVATED_RETENTION" env-default:"72h"`
	AuditRetention        time.Duration `yaml:"audit_retention" env:"USERS_AUDIT_RETENTION" env-default:"720h"`
	AnonymousLogin        string        `yaml:"anonymous_login" env:"USERS_ANONYMOUS_LOGIN" env-default:"anonymoususer"`
	AuthorityCacheTTL     time.Duration `yaml:"authority_cache_ttl" env:"USERS_AUTHORITY_CACHE_TTL" env-default:"1h"`
}

// Validate проверяет часы запуска и окна хранения.
func (s *SchedulerConfig) Validate() error {
	for name, hour := range map[string]int{"not_activated_hour": s.NotActivatedHour, "audit_hour": s.AuditHour} {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("scheduler %s must be within 0..23, got %d", name, hour)
		}
	}
	if s.NotActivatedRetention <= 0 || s.AuditRetention <= 0 {
		return fmt.Errorf("scheduler retention windows must be positive")
	}
	return nil
}
