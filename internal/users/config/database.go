package config

import (
	"fmt"
	"net/url"
	"time"

	"gousers/pkg/db/postgres"
)

// PostgresConfig содержит настройки подключения к базе данных.
type PostgresConfig struct {
	Host          string `yaml:"host" env:"USERS_POSTGRES_HOST" env-default:"localhost"`
	Port          int    `yaml:"port" env:"USERS_POSTGRES_PORT" env-default:"5432"`
	User          string `yaml:"user" env:"USERS_POSTGRES_USER" env-default:"postgres"`
	Password      string `yaml:"password" env:"USERS_POSTGRES_PASSWORD" env-default:"postgres"`
	Database      string `yaml:"database" env:"USERS_POSTGRES_DB" env-default:"users"`
	SSLMode       string `yaml:"ssl_mode" env:"USERS_POSTGRES_SSL_MODE" env-default:"disable"`
	MinConn       int    `yaml:"min_conn" env:"USERS_POSTGRES_MIN_CONN" env-default:"1"`
	MaxConn       int    `yaml:"max_conn" env:"USERS_POSTGRES_MAX_CONN" env-default:"10"`
	MigrationsDir string `yaml:"migrations_dir" env:"USERS_MIGRATIONS_DIR" env-default:"migrations/users"`

	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" env:"USERS_POSTGRES_MAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" env:"USERS_POSTGRES_MAX_CONN_IDLE_TIME" env-default:"30m"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period" env:"USERS_POSTGRES_HEALTH_CHECK_PERIOD" env-default:"1m"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" env:"USERS_POSTGRES_CONNECT_TIMEOUT" env-default:"5s"`
}

// Validate проверяет границы пула соединений.
func (p *PostgresConfig) Validate() error {
	if p.MinConn < 0 || p.MaxConn <= 0 {
		return fmt.Errorf("postgres pool bounds must be positive, got min_conn %d, max_conn %d", p.MinConn, p.MaxConn)
	}
	if p.MinConn > p.MaxConn {
		return fmt.Errorf("postgres min_conn %d exceeds max_conn %d", p.MinConn, p.MaxConn)
	}
	return nil
}

// GetPoolOptions возвращает параметры пула для postgres.New.
func (p *PostgresConfig) GetPoolOptions() postgres.PoolOptions {
	return postgres.PoolOptions{
		MinConns:          int32(p.MinConn), //nolint:gosec
		MaxConns:          int32(p.MaxConn), //nolint:gosec
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ConnectTimeout:    p.ConnectTimeout,
	}
}

// GetDSN возвращает строку подключения к PostgreSQL.
func (p *PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// GetConnectionURL возвращает URL-строку подключения для миграций.
func (p *PostgresConfig) GetConnectionURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}
