package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gousers/pkg/logger"
)

const (
	msgHealthCheckFailed = "health check failed"

	defaultHealthTimeout = 2 * time.Second
)

// HealthCheck проверяет одну зависимость сервиса.
type HealthCheck func(ctx context.Context) error

// HealthChecker выполняет именованные проверки зависимостей.
type HealthChecker struct {
	timeout time.Duration

	mu     sync.RWMutex
	names  []string
	checks map[string]HealthCheck
}

// NewHealthChecker создает набор проверок с ограничением времени на каждую.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &HealthChecker{
		timeout: timeout,
		checks:  make(map[string]HealthCheck),
	}
}

// Register добавляет или заменяет проверку.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// Check выполняет все проверки и объединяет ошибки.
func (h *HealthChecker) Check(ctx context.Context) error {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	checks := make([]HealthCheck, 0, len(names))
	for _, name := range names {
		checks = append(checks, h.checks[name])
	}
	h.mu.RUnlock()

	var errs []error
	for i, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			logger.Log(ctx).Warn(ctx, msgHealthCheckFailed, zap.String("check", names[i]), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
		}
	}
	return errors.Join(errs...)
}
