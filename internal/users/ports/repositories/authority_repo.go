package repositories

import (
	"context"

	"gousers/internal/users/domain/entities"
)

// AuthorityRepository - хранилище фиксированного набора ролей.
type AuthorityRepository interface {
	// FindByName возвращает entities.ErrAuthorityNotFound для неизвестной роли.
	FindByName(ctx context.Context, name string) (*entities.Authority, error)

	FindAll(ctx context.Context) ([]*entities.Authority, error)
}
