// Package main реализует точку входа сервиса учетных записей.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"gousers/internal/users/adapters/cache"
	"gousers/internal/users/adapters/grpc"
	"gousers/internal/users/adapters/http"
	"gousers/internal/users/adapters/metrics"
	"gousers/internal/users/adapters/postgres"
	"gousers/internal/users/adapters/security"
	"gousers/internal/users/adapters/services"
	"gousers/internal/users/app"
	"gousers/internal/users/config"
	"gousers/internal/users/db"
	portcache "gousers/internal/users/ports/cache"
	portservices "gousers/internal/users/ports/services"
	"gousers/pkg/db/redis"
	"gousers/pkg/logger"
	"gousers/pkg/resilience"
	"gousers/pkg/shutdown"
)

// Константы для переменных окружения.
const (
	EnvLoggerMode  = "USERS_LOGGER_MODE"
	EnvLoggerLevel = "USERS_LOGGER_LEVEL"
	EnvConfigPath  = "USERS_ENV_FILE"
)

// Константы для сообщений об ошибках.
const (
	ErrInitLogger           = "failed to initialize logger"
	ErrSyncLogger           = "failed to sync logger"
	ErrLoadConfig           = "failed to load configuration"
	ErrInitLoggerWithConfig = "failed to initialize logger with configuration settings"
	ErrInitDB               = "failed to initialize database"
	ErrInitCache            = "failed to initialize user cache"
	ErrStartGRPC            = "failed to start gRPC server"
	ErrStartHTTP            = "failed to start HTTP server"
)

// Константы для игнорируемых ошибок.
const (
	ErrSyncStderr = "sync /dev/stderr: invalid argument"
	ErrSyncStdout = "sync /dev/stdout: invalid argument"
)

// Константы для сообщений сервиса.
const (
	LogServiceStarted      = "users service started"
	LogServiceShutdownDone = "users service shutdown complete"
	LogClosingDB           = "closing database connections"
	LogClosingCache        = "closing user cache"
	LogStoppingServers     = "stopping servers"
	LogStoppingScheduler   = "stopping scheduler"
	LogInitRepo            = "initializing repositories"
	LogInitCache           = "initializing user cache"
	LogCacheDisabled       = "user cache disabled"
	LogInitServices        = "initializing services"
	LogInitUseCases        = "initializing use cases"
	LogStartingScheduler   = "starting scheduler"
	LogSchedulerDisabled   = "scheduler disabled"
	LogStartingGRPC        = "starting gRPC server"
	LogStartingHTTP        = "starting HTTP server"
)

const (
	healthCheckPostgres = "postgres"
	healthCheckRedis    = "redis"

	healthCheckInterval = 10 * time.Second
)

func main() {
	boot := config.LoggingConfig{Level: os.Getenv(EnvLoggerLevel), Mode: os.Getenv(EnvLoggerMode)}

	log, err := logger.NewLogger(boot.GetEnvironment(), boot.GetLevel())
	if err != nil {
		panic(ErrInitLogger + ": " + err.Error())
	}

	logger.SetGlobalLogger(log)

	ctx := logger.NewRequestIDContext(context.Background(), "")

	var exitCode int

	func() {
		defer func() {
			if err := log.Sync(); err != nil {
				errMsg := err.Error()
				if strings.Contains(errMsg, ErrSyncStderr) || strings.Contains(errMsg, ErrSyncStdout) {
					return
				}
				if _, writeErr := fmt.Fprintf(os.Stderr, "%s: %v\n", ErrSyncLogger, err); writeErr != nil {
					panic(writeErr)
				}
			}
		}()

		envPath := os.Getenv(EnvConfigPath)
		if envPath == "" {
			envPath = config.DefaultEnvPath
		}

		cfg, err := config.Load(ctx, envPath)
		if err != nil {
			log.Error(ctx, ErrLoadConfig, zap.Error(err))
			exitCode = 1
			return
		}

		finalLogger, err := logger.NewLogger(cfg.Logging.GetEnvironment(), cfg.Logging.GetLevel())
		if err != nil {
			log.Error(ctx, ErrInitLoggerWithConfig, zap.Error(err))
			exitCode = 1
			return
		}
		logger.SetGlobalLogger(finalLogger)
		log = finalLogger
		ctx = logger.NewContext(ctx, finalLogger)

		database, err := db.New(ctx, &cfg.Postgres)
		if err != nil {
			log.Error(ctx, ErrInitDB, zap.Error(err))
			exitCode = 1
			return
		}

		log.Info(ctx, LogServiceStarted,
			zap.String("environment", string(cfg.Logging.GetEnvironment())),
			zap.String("log_level", cfg.Logging.GetLevel()),
			zap.String("startup_time", time.Now().Format(time.RFC3339)))

		clock := clockwork.NewRealClock()
		health := app.NewHealthChecker(0)
		health.Register(healthCheckPostgres, database.Ping)

		log.Info(ctx, LogInitCache)
		userCache, err := newUserCache(ctx, cfg, clock, health)
		if err != nil {
			log.Error(ctx, ErrInitCache, zap.Error(err))
			database.Close(ctx)
			exitCode = 1
			return
		}

		log.Info(ctx, LogInitRepo)
		repoFactory := postgres.NewRepositoryFactory(database.Pool())
		authorityRepo := cache.NewCachedAuthorityRepository(repoFactory.AuthorityRepository(), cfg.Scheduler.AuthorityCacheTTL)

		log.Info(ctx, LogInitServices)
		serviceFactory := services.NewServiceFactory(cfg.Security.BcryptCost)

		registry := prometheus.NewRegistry()
		var recorder portservices.MetricsRecorder = metrics.NoopRecorder{}
		if cfg.HTTP.Enabled {
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			recorder = metrics.NewPrometheusRecorder(registry)
		}

		log.Info(ctx, LogInitUseCases)
		userUseCase := app.NewUserUseCase(app.UserUseCaseDeps{
			Users:                 repoFactory.UserRepository(),
			Authorities:           authorityRepo,
			Transactor:            repoFactory.Transactor(),
			Passwords:             serviceFactory.PasswordService(),
			Keys:                  serviceFactory.KeyService(),
			Principal:             security.NewContextPrincipal(),
			Cache:                 userCache,
			Metrics:               recorder,
			Clock:                 clock,
			AnonymousLogin:        cfg.Scheduler.AnonymousLogin,
			NotActivatedRetention: cfg.Scheduler.NotActivatedRetention,
		})
		auditUseCase := app.NewAuditUseCase(repoFactory.AuditEventRepository(), recorder, clock, cfg.Scheduler.AuditRetention)

		var scheduler *app.Scheduler
		if cfg.Scheduler.Enabled {
			log.Info(ctx, LogStartingScheduler)
			scheduler = app.NewScheduler(clock, resilience.DefaultRetryConfig(),
				app.RemoveNotActivatedUsersJob(userUseCase, cfg.Scheduler.NotActivatedHour),
				app.RemoveOldAuditEventsJob(auditUseCase, cfg.Scheduler.AuditHour),
			)
			scheduler.Start(ctx)
		} else {
			log.Info(ctx, LogSchedulerDisabled)
		}

		log.Info(ctx, LogStartingGRPC)
		grpcServer := grpc.New(&cfg.GRPC, health, healthCheckInterval)
		if err := grpcServer.Start(ctx); err != nil {
			log.Error(ctx, ErrStartGRPC, zap.Error(err))
			exitCode = 1
			shutdown.Run(ctx, cfg.Shutdown.GetTimeout(), releaseHook(ctx, scheduler, userCache, database))
			return
		}

		var httpServer *http.Server
		if cfg.HTTP.Enabled {
			log.Info(ctx, LogStartingHTTP)
			httpServer = http.New(ctx, &cfg.HTTP, registry, health)
			if err := httpServer.Start(ctx); err != nil {
				log.Error(ctx, ErrStartHTTP, zap.Error(err))
				exitCode = 1
				grpcServer.Stop(ctx)
				shutdown.Run(ctx, cfg.Shutdown.GetTimeout(), releaseHook(ctx, scheduler, userCache, database))
				return
			}
		}

		shutdown.Wait(ctx, cfg.Shutdown.GetTimeout(),
			func(ctx context.Context) error {
				log.Info(ctx, LogStoppingServers)
				grpcServer.Stop(ctx)
				if httpServer != nil {
					return httpServer.Stop(ctx)
				}
				return nil
			},
			releaseHook(ctx, scheduler, userCache, database),
		)

		log.Info(ctx, LogServiceShutdownDone)
	}()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newUserCache подключает Redis при включенном кэше, иначе возвращает пустой кэш.
func newUserCache(ctx context.Context, cfg *config.Config, clock clockwork.Clock, health *app.HealthChecker) (portcache.UserCache, error) {
	if !cfg.Redis.Enabled {
		logger.Log(ctx).Info(ctx, LogCacheDisabled)
		return cache.NewNoopUserCache(), nil
	}

	client, err := redis.NewClient(ctx, cfg.Redis.GetClientConfig())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrInitCache, err)
	}
	health.Register(healthCheckRedis, client.Ping)

	breaker := resilience.NewCircuitBreaker("users-cache", cfg.Redis.GetBreakerConfig(), clock)
	return cache.NewRedisUserCache(client, cfg.Redis.UserTTL, breaker), nil
}

// releaseHook останавливает фоновые задачи и закрывает хранилища.
func releaseHook(ctx context.Context, scheduler *app.Scheduler, userCache portcache.UserCache, database *db.DB) shutdown.Hook {
	log := logger.Log(ctx)
	return func(ctx context.Context) error {
		if scheduler != nil {
			log.Info(ctx, LogStoppingScheduler)
			if err := scheduler.Stop(ctx); err != nil {
				log.Warn(ctx, LogStoppingScheduler, zap.Error(err))
			}
		}

		log.Info(ctx, LogClosingCache)
		if err := userCache.Close(ctx); err != nil {
			log.Warn(ctx, LogClosingCache, zap.Error(err))
		}

		log.Info(ctx, LogClosingDB)
		database.Close(ctx)
		return nil
	}
}
