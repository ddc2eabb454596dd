// Package grpc предоставляет gRPC сервер проверки состояния сервиса учетных записей.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"gousers/internal/users/config"
	"gousers/pkg/logger"
)

// Константы для логирования.
const (
	LogServerStarting  = "Starting gRPC server"
	LogServerStarted   = "gRPC server started"
	LogServerStopping  = "Stopping gRPC server"
	LogServerStopped   = "gRPC server stopped"
	LogStatusChanged   = "health status changed"
	ErrServerStart     = "failed to start gRPC server"
	ErrServerNotActive = "gRPC server is not started"

	// ServiceName - имя сервиса в ответах health.
	ServiceName = "gousers.users"

	defaultCheckInterval = 10 * time.Second
)

// HealthChecker проверяет зависимости сервиса.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Server представляет gRPC сервер со службой health.
type Server struct {
	cfg      *config.GRPCConfig
	server   *grpc.Server
	health   *health.Server
	checker  HealthChecker
	interval time.Duration

	mu       sync.Mutex
	listener net.Listener
	status   healthpb.HealthCheckResponse_ServingStatus
	stop     chan struct{}
	done     chan struct{}
}

// New создает новый экземпляр gRPC сервера. interval <= 0 означает интервал по умолчанию.
func New(cfg *config.GRPCConfig, checker HealthChecker, interval time.Duration) *Server {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		cfg:      cfg,
		server:   server,
		health:   healthServer,
		checker:  checker,
		interval: interval,
		status:   healthpb.HealthCheckResponse_NOT_SERVING,
	}
}

// Start запускает gRPC сервер и периодическое обновление статуса.
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
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.Refresh(ctx)

	go func() {
		if err := s.server.Serve(listener); err != nil {
			log.Error(ctx, ErrServerStart, zap.Error(err))
		}
	}()
	go s.watch(context.WithoutCancel(ctx))

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

// Refresh выполняет проверки и публикует статус SERVING или NOT_SERVING.
func (s *Server) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	var checkErr error
	if s.checker != nil {
		if checkErr = s.checker.Check(ctx); checkErr != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	if changed {
		logger.Log(ctx).Info(ctx, LogStatusChanged, zap.String("status", status.String()), zap.Error(checkErr))
	}
}

func (s *Server) watch(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Stop останавливает gRPC сервер.
func (s *Server) Stop(ctx context.Context) {
	log := logger.Log(ctx)

	log.Info(ctx, LogServerStopping)

	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	s.health.Shutdown()
	s.server.GracefulStop()
	log.Info(ctx, LogServerStopped)
}
