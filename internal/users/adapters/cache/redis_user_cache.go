// Package cache содержит реализации кэширования пользователей и ролей.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/ports/cache"
	"gousers/pkg/db/redis"
	"gousers/pkg/logger"
	"gousers/pkg/resilience"
)

// Константы для логирования.
const (
	LogMethodGet   = "GetByLogin"
	LogMethodSet   = "SetByLogin"
	LogMethodEvict = "Evict"

	ErrorFailedToGet    = "failed to get user from redis"
	ErrorFailedToSet    = "failed to set user in redis"
	ErrorFailedToEvict  = "failed to evict users from redis"
	ErrorFailedToDecode = "failed to decode cached user"
	ErrorFailedToEncode = "failed to encode user for cache"
	ErrorFailedToClose  = "failed to close redis connection"

	keyPrefixLogin = "users:by-login:"
)

// RedisClient - операции Redis, используемые кэшем.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close(ctx context.Context) error
}

// cachedUser - профиль с ролями без учетных данных.
type cachedUser struct {
	ID               int64      `json:"id"`
	Login            string     `json:"login"`
	FirstName        string     `json:"first_name,omitempty"`
	LastName         string     `json:"last_name,omitempty"`
	Email            string     `json:"email,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	LangKey          string     `json:"lang_key,omitempty"`
	Activated        bool       `json:"activated"`
	Authorities      []string   `json:"authorities"`
	CreatedBy        string     `json:"created_by"`
	CreatedDate      time.Time  `json:"created_date"`
	LastModifiedBy   string     `json:"last_modified_by,omitempty"`
	LastModifiedDate *time.Time `json:"last_modified_date,omitempty"`
}

// RedisUserCache реализует cache.UserCache поверх Redis с защитой Circuit Breaker.
type RedisUserCache struct {
	client  RedisClient
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
}

// NewRedisUserCache создает новый кэш пользователей.
func NewRedisUserCache(client RedisClient, ttl time.Duration, breaker *resilience.CircuitBreaker) cache.UserCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("redis-user-cache", resilience.DefaultCircuitBreakerConfig(), nil)
	}
	return &RedisUserCache{client: client, ttl: ttl, breaker: breaker}
}

func loginKey(login string) string {
	return keyPrefixLogin + strings.ToLower(login)
}

// GetByLogin возвращает пользователя из кэша или (nil, nil) при промахе.
// Недоступность Redis трактуется как промах.
func (c *RedisUserCache) GetByLogin(ctx context.Context, login string) (*entities.User, error) {
	log := logger.Log(ctx).With(zap.String("method", LogMethodGet), zap.String("login", login))

	var payload []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		payload, err = c.client.Get(ctx, loginKey(login))
		if errors.Is(err, redis.ErrNil) {
			return nil
		}
		return err
	})
	if err != nil {
		log.Warn(ctx, ErrorFailedToGet, zap.Error(err))
		return nil, nil
	}
	if payload == nil {
		return nil, nil
	}

	var cached cachedUser
	if err := json.Unmarshal(payload, &cached); err != nil {
		log.Warn(ctx, ErrorFailedToDecode, zap.Error(err))
		return nil, nil
	}

	return cached.toEntity(), nil
}

// SetByLogin кладет пользователя в кэш.
func (c *RedisUserCache) SetByLogin(ctx context.Context, user *entities.User) error {
	log := logger.Log(ctx).With(zap.String("method", LogMethodSet), zap.String("login", user.Login))

	payload, err := json.Marshal(fromEntity(user))
	if err != nil {
		log.Error(ctx, ErrorFailedToEncode, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrorFailedToEncode, err)
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, loginKey(user.Login), payload, c.ttl)
	})
	if err != nil {
		log.Warn(ctx, ErrorFailedToSet, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrorFailedToSet, err)
	}

	return nil
}

// Evict удаляет пользователей из кэша по логинам.
func (c *RedisUserCache) Evict(ctx context.Context, logins ...string) error {
	keys := make([]string, 0, len(logins))
	for _, login := range logins {
		if login != "" {
			keys = append(keys, loginKey(login))
		}
	}
	if len(keys) == 0 {
		return nil
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Delete(ctx, keys...)
	})
	if err != nil {
		logger.Log(ctx).Warn(ctx, ErrorFailedToEvict, zap.String("method", LogMethodEvict), zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("%s: %w", ErrorFailedToEvict, err)
	}

	return nil
}

// Close закрывает соединение с Redis.
func (c *RedisUserCache) Close(ctx context.Context) error {
	if err := c.client.Close(ctx); err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToClose, err)
	}
	return nil
}

func fromEntity(u *entities.User) cachedUser {
	return cachedUser{
		ID:               u.ID,
		Login:            u.Login,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		ImageURL:         u.ImageURL,
		LangKey:          u.LangKey,
		Activated:        u.Activated,
		Authorities:      u.Authorities,
		CreatedBy:        u.CreatedBy,
		CreatedDate:      u.CreatedDate,
		LastModifiedBy:   u.LastModifiedBy,
		LastModifiedDate: u.LastModifiedDate,
	}
}

func (c cachedUser) toEntity() *entities.User {
	authorities := c.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	return &entities.User{
		ID:               c.ID,
		Login:            c.Login,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Email:            c.Email,
		ImageURL:         c.ImageURL,
		LangKey:          c.LangKey,
		Activated:        c.Activated,
		Authorities:      authorities,
		CreatedBy:        c.CreatedBy,
		CreatedDate:      c.CreatedDate,
		LastModifiedBy:   c.LastModifiedBy,
		LastModifiedDate: c.LastModifiedDate,
	}
}
