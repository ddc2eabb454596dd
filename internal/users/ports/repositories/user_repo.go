// Package repositories определяет порты хранилищ.
package repositories

import (
	"context"
	"time"

	"gousers/internal/users/domain/entities"
)

// KeyGuard - ожидаемые значения одноразовых ключей при обновлении. Пустое поле не проверяется.
type KeyGuard struct {
	ActivationKey string
	ResetKey      string
}

// UserRepository - хранилище пользователей и их членства в ролях.
// Точечные выборки возвращают entities.ErrUserNotFound, если записи нет.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*entities.User, error)

	FindByLogin(ctx context.Context, login string) (*entities.User, error)

	// FindByEmail сравнивает e-mail без учета регистра.
	FindByEmail(ctx context.Context, email string) (*entities.User, error)

	FindByActivationKey(ctx context.Context, key string) (*entities.User, error)

	FindByResetKey(ctx context.Context, key string) (*entities.User, error)

	FindWithAuthoritiesByLogin(ctx context.Context, login string) (*entities.User, error)

	FindWithAuthoritiesByID(ctx context.Context, id int64) (*entities.User, error)

	FindWithAuthoritiesByEmail(ctx context.Context, email string) (*entities.User, error)

	FindAllByLoginNot(ctx context.Context, page entities.Pageable, login string) ([]*entities.User, error)

	CountByLoginNot(ctx context.Context, login string) (int64, error)

	// FindNotActivatedBefore возвращает неактивированных пользователей с активационным ключом,
	// созданных раньше cutoff.
	FindNotActivatedBefore(ctx context.Context, cutoff time.Time) ([]*entities.User, error)

	// LockNotActivated блокирует строку до конца транзакции, если пользователь все еще
	// не активирован и ключ активации не израсходован.
	LockNotActivated(ctx context.Context, id int64) (bool, error)

	Create(ctx context.Context, user *entities.User) (*entities.User, error)

	// Update возвращает entities.ErrUserNotFound, если строка уже удалена.
	Update(ctx context.Context, user *entities.User) (*entities.User, error)

	// UpdateConsumingKey как Update, но только если ключи строки совпадают с guard.
	// Израсходованный конкурентно ключ дает entities.ErrUserNotFound.
	UpdateConsumingKey(ctx context.Context, user *entities.User, guard KeyGuard) (*entities.User, error)

	// Delete не считает ошибкой отсутствие строки.
	Delete(ctx context.Context, id int64) error

	SaveUserAuthority(ctx context.Context, userID int64, authority string) error

	DeleteUserAuthority(ctx context.Context, userID int64, authority string) error

	DeleteUserAuthorities(ctx context.Context, userID int64) error
}
