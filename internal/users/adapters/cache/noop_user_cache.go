package cache

import (
	"context"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/ports/cache"
)

// NoopUserCache используется, когда Redis отключен в конфигурации.
type NoopUserCache struct{}

// NewNoopUserCache создает кэш, который ничего не хранит.
func NewNoopUserCache() cache.UserCache {
	return NoopUserCache{}
}

// GetByLogin всегда возвращает промах.
func (NoopUserCache) GetByLogin(context.Context, string) (*entities.User, error) {
	return nil, nil
}

// SetByLogin ничего не делает.
func (NoopUserCache) SetByLogin(context.Context, *entities.User) error {
	return nil
}

// Evict ничего не делает.
func (NoopUserCache) Evict(context.Context, ...string) error {
	return nil
}

// Close ничего не делает.
func (NoopUserCache) Close(context.Context) error {
	return nil
}
