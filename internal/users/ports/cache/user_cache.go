// Package cache определяет порт кэша пользователей.
package cache

import (
	"context"

	"gousers/internal/users/domain/entities"
)

// UserCache хранит пользователя вместе с ролями по логину.
// Хэш пароля и ключи активации и сброса в кэш не попадают.
// GetByLogin возвращает (nil, nil) при промахе.
type UserCache interface {
	GetByLogin(ctx context.Context, login string) (*entities.User, error)

	SetByLogin(ctx context.Context, user *entities.User) error

	Evict(ctx context.Context, logins ...string) error

	Close(ctx context.Context) error
}
