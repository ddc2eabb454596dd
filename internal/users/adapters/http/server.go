// Package http предоставляет служебный HTTP сервер: метрики Prometheus и пробы состояния.
package http

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gousers/internal/users/config"
	"gousers/pkg/logger"
)

// Константы для логирования.
const (
	LogServerStarting  = "Starting HTTP server"
	LogServerStarted   = "HTTP server started"
	LogServerStopping  = "Stopping HTTP server"
	LogServerStopped   = "HTTP server stopped"
	ErrServerStart     = "failed to start HTTP server"
	ErrServerStop      = "failed to stop HTTP server"
	ErrServerNotActive = "HTTP server is not started"

	// LivePath - проба живости процесса.
	LivePath = "/health/live"
	// ReadyPath - проба готовности зависимостей.
	ReadyPath = "/health/ready"

	defaultMetricsPath = "/metrics"

	statusUp   = "UP"
	statusDown = "DOWN"
)

// HealthChecker проверяет зависимости сервиса.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Server представляет служебный HTTP сервер.
type Server struct {
	cfg     *config.HTTPConfig
	app     *fiber.App
	checker HealthChecker

	mu       sync.Mutex
	baseCtx  context.Context
	listener net.Listener
}

// New создает служебный HTTP сервер. gatherer может быть nil, тогда /metrics не публикуется.
func New(ctx context.Context, cfg *config.HTTPConfig, gatherer prometheus.Gatherer, checker HealthChecker) *Server {
	s := &Server{
		cfg:     cfg,
		checker: checker,
		baseCtx: context.WithoutCancel(ctx),
		app: fiber.New(fiber.Config{
			AppName: "users-ops",
		}),
	}

	s.app.Use(NewLoggerMiddleware(s.baseCtx))
	s.app.Use(NewRecoveryMiddleware(s.baseCtx))

	s.app.Get(LivePath, s.live)
	s.app.Get(ReadyPath, s.ready)

	if gatherer != nil {
		metricsPath := cfg.MetricsPath
		if metricsPath == "" {
			metricsPath = defaultMetricsPath
		}
		s.app.Get(metricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})

	return s
}

// Start запускает HTTP сервер.
func (s *Server) Start(ctx context.Context) error {
	log := logger.Log(ctx)
	address := s.cfg.GetAddress()

	log.Info(ctx, LogServerStarting, zap.String("address", address))

	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error(ctx, ErrServerStart, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrServerStart, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.app.Listener(listener, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			log.Error(ctx, ErrServerStart, zap.Error(err))
		}
	}()

	log.Info(ctx, LogServerStarted, zap.String("address", listener.Addr().String()))
	return nil
}

// Addr возвращает фактический адрес сервера.
func (s *Server) Addr() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil, fmt.Errorf("%s", ErrServerNotActive)
	}
	return s.listener.Addr(), nil
}

// Stop останавливает HTTP сервер.
func (s *Server) Stop(ctx context.Context) error {
	log := logger.Log(ctx)
	log.Info(ctx, LogServerStopping)

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		log.Error(ctx, ErrServerStop, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrServerStop, err)
	}

	log.Info(ctx, LogServerStopped)
	return nil
}

func (s *Server) live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": statusUp})
}

func (s *Server) ready(c fiber.Ctx) error {
	if s.checker == nil {
		return c.JSON(fiber.Map{"status": statusUp})
	}

	if err := s.checker.Check(s.baseCtx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": statusDown,
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": statusUp})
}
