// Package api определяет входящие порты сервиса учетных записей.
package api

import (
	"context"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
)

// UserUseCase определяет операции жизненного цикла учетной записи.
// Результат (nil, nil) означает "пусто": ключ не найден, истек или пользователь отсутствует.
type UserUseCase interface {
	RegisterUser(ctx context.Context, dto services.UserDTO, password string) (*entities.User, error)

	CreateUser(ctx context.Context, dto services.UserDTO) (*entities.User, error)

	ActivateRegistration(ctx context.Context, key string) (*entities.User, error)

	RequestPasswordReset(ctx context.Context, email string) (*entities.User, error)

	CompletePasswordReset(ctx context.Context, newPassword, key string) (*entities.User, error)

	ChangePassword(ctx context.Context, currentPassword, newPassword string) error

	UpdateCurrentUser(ctx context.Context, firstName, lastName, email, langKey, imageURL string) error

	UpdateUser(ctx context.Context, dto services.UserDTO) (*services.UserDTO, error)

	DeleteUserByLogin(ctx context.Context, login string) error

	DeleteUser(ctx context.Context, user *entities.User) error

	RemoveNotActivatedUsers(ctx context.Context) ([]*entities.User, error)

	GetAllManagedUsers(ctx context.Context, page entities.Pageable) ([]*services.UserDTO, error)

	CountManagedUsers(ctx context.Context) (int64, error)

	GetUserWithAuthoritiesByLogin(ctx context.Context, login string) (*entities.User, error)

	GetUserWithAuthorities(ctx context.Context, id int64) (*entities.User, error)

	GetCurrentUserWithAuthorities(ctx context.Context) (*entities.User, error)

	GetAuthorities(ctx context.Context) ([]string, error)
}
