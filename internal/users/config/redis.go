package config

import (
	"time"

	"gousers/pkg/db/redis"
	"gousers/pkg/resilience"
)

// RedisConfig содержит настройки кэша пользователей в Redis.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" env:"USERS_REDIS_ENABLED" env-default:"false"`
	Host         string        `yaml:"host" env:"USERS_REDIS_HOST" env-default:"localhost"`
	Port         int           `yaml:"port" env:"USERS_REDIS_PORT" env-default:"6379"`
	Password     string        `yaml:"password" env:"USERS_REDIS_PASSWORD" env-default:""`
	DB           int           `yaml:"db" env:"USERS_REDIS_DB" env-default:"0"`
	PoolSize     int           `yaml:"pool_size" env:"USERS_REDIS_POOL_SIZE" env-default:"10"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"USERS_REDIS_DIAL_TIMEOUT" env-default:"3s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"USERS_REDIS_READ_TIMEOUT" env-default:"2s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"USERS_REDIS_WRITE_TIMEOUT" env-default:"2s"`
	UserTTL      time.Duration `yaml:"user_ttl" env:"USERS_REDIS_USER_TTL" env-default:"1h"`

	BreakerErrorThreshold   int           `yaml:"breaker_error_threshold" env:"USERS_REDIS_BREAKER_ERRORS" env-default:"5"`
	BreakerTimeout          time.Duration `yaml:"breaker_timeout" env:"USERS_REDIS_BREAKER_TIMEOUT" env-default:"10s"`
	BreakerSuccessThreshold int           `yaml:"breaker_success_threshold" env:"USERS_REDIS_BREAKER_SUCCESSES" env-default:"2"`
}

// GetClientConfig возвращает настройки клиента Redis.
func (r *RedisConfig) GetClientConfig() *redis.Config {
	return &redis.Config{
		Host:         r.Host,
		Port:         r.Port,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	}
}

// GetBreakerConfig возвращает настройки Circuit Breaker для кэша.
func (r *RedisConfig) GetBreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		ErrorThreshold:   r.BreakerErrorThreshold,
		Timeout:          r.BreakerTimeout,
		SuccessThreshold: r.BreakerSuccessThreshold,
	}
}
