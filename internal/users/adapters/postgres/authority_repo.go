package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/ports/repositories"
	"gousers/pkg/logger"
)

const (
	errQueryAuthority   = "error querying authority"
	errQueryAuthorities = "error querying authorities"
)

// AuthorityRepository реализует repositories.AuthorityRepository для Postgres.
type AuthorityRepository struct {
	pool PgxPoolInterface
}

// NewAuthorityRepository создает новый экземпляр репозитория ролей.
func NewAuthorityRepository(pool PgxPoolInterface) repositories.AuthorityRepository {
	return &AuthorityRepository{pool: pool}
}

// FindByName находит роль по имени.
func (r *AuthorityRepository) FindByName(ctx context.Context, name string) (*entities.Authority, error) {
	log := logger.Log(ctx).With(zap.String(repositoryAttr, "authority"), zap.String("method", "FindByName"))

	var authority entities.Authority
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT name FROM jhi_authority WHERE name = $1`, name).Scan(&authority.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug(ctx, "authority not found", zap.String("name", name))
			return nil, entities.ErrAuthorityNotFound
		}
		log.Error(ctx, errQueryAuthority, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryAuthority, err)
	}

	return &authority, nil
}

// FindAll возвращает все роли, упорядоченные по имени.
func (r *AuthorityRepository) FindAll(ctx context.Context) ([]*entities.Authority, error) {
	log := logger.Log(ctx).With(zap.String(repositoryAttr, "authority"), zap.String("method", "FindAll"))

	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT name FROM jhi_authority ORDER BY name`)
	if err != nil {
		log.Error(ctx, errQueryAuthorities, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryAuthorities, err)
	}
	defer rows.Close()

	authorities := make([]*entities.Authority, 0)
	for rows.Next() {
		var authority entities.Authority
		if err := rows.Scan(&authority.Name); err != nil {
			log.Error(ctx, errQueryAuthorities, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", errQueryAuthorities, err)
		}
		authorities = append(authorities, &authority)
	}
	if err := rows.Err(); err != nil {
		log.Error(ctx, errQueryAuthorities, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryAuthorities, err)
	}

	return authorities, nil
}
