package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/ports/repositories"
)

const allAuthoritiesKey = "authorities:all"

// CachedAuthorityRepository кэширует в памяти процесса неизменяемый набор ролей.
type CachedAuthorityRepository struct {
	next  repositories.AuthorityRepository
	cache *gocache.Cache
}

// NewCachedAuthorityRepository оборачивает репозиторий ролей кэшем с указанным TTL.
func NewCachedAuthorityRepository(next repositories.AuthorityRepository, ttl time.Duration) repositories.AuthorityRepository {
	return &CachedAuthorityRepository{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// FindByName возвращает роль из кэша или из хранилища. Отсутствующие роли не кэшируются.
func (r *CachedAuthorityRepository) FindByName(ctx context.Context, name string) (*entities.Authority, error) {
	if cached, ok := r.cache.Get(name); ok {
		authority := cached.(entities.Authority)
		return &authority, nil
	}

	authority, err := r.next.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(name, *authority)
	return authority, nil
}

// FindAll возвращает все роли из кэша или из хранилища.
func (r *CachedAuthorityRepository) FindAll(ctx context.Context) ([]*entities.Authority, error) {
	if cached, ok := r.cache.Get(allAuthoritiesKey); ok {
		return cloneAuthorities(cached.([]entities.Authority)), nil
	}

	authorities, err := r.next.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]entities.Authority, 0, len(authorities))
	for _, a := range authorities {
		values = append(values, *a)
	}
	r.cache.SetDefault(allAuthoritiesKey, values)

	return authorities, nil
}

func cloneAuthorities(values []entities.Authority) []*entities.Authority {
	result := make([]*entities.Authority, 0, len(values))
	for _, v := range values {
		authority := v
		result = append(result, &authority)
	}
	return result
}
