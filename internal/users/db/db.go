// Package db инициализирует базу данных сервиса учетных записей.
package db

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"gousers/internal/users/config"
	"gousers/pkg/db/postgres"
	"gousers/pkg/logger"
)

// Константы для сообщений логгера.
const (
	LogDBInitializing    = "initializing users database"
	LogDBInitialized     = "users database initialized successfully"
	LogMigrationStarting = "starting database migrations for users service"
)

// Константы для сообщений об ошибках.
const (
	ErrDBMigrations = "failed to apply users database migrations"
	ErrDBConnection = "failed to connect to users database"
	ErrGetPath      = "failed to get path"
)

// DB представляет соединение с базой данных сервиса учетных записей.
type DB struct {
	database *postgres.Database
}

// MigrationsSource возвращает URL источника миграций golang-migrate для каталога dir.
func MigrationsSource(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return "file://" + dir, nil
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrGetPath, err)
	}
	return "file://" + absPath, nil
}

// New применяет миграции и открывает пул соединений.
func New(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	log := logger.Log(ctx)

	log.Info(ctx, LogDBInitializing,
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Int("min_conn", cfg.MinConn),
		zap.Int("max_conn", cfg.MaxConn),
		zap.Duration("max_conn_lifetime", cfg.MaxConnLifetime))

	migrationsPath, err := MigrationsSource(cfg.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrDBMigrations, err)
	}

	log.Info(ctx, LogMigrationStarting, zap.String("migrations_path", migrationsPath))
	if err := postgres.MigrateDSN(ctx, cfg.GetConnectionURL(), migrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrDBMigrations, err)
	}

	database, err := postgres.New(ctx, cfg.GetDSN(), cfg.GetPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrDBConnection, err)
	}

	log.Info(ctx, LogDBInitialized)

	return &DB{database: database}, nil
}

// Close закрывает соединение с базой данных.
func (db *DB) Close(ctx context.Context) {
	db.database.Close(ctx)
}

// Pool возвращает пул соединений с базой данных.
func (db *DB) Pool() *pgxpool.Pool {
	return db.database.Pool()
}

// Ping проверяет соединение с базой данных.
func (db *DB) Ping(ctx context.Context) error {
	return db.database.Ping(ctx)
}
