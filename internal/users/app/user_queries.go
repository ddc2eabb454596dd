package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
	"gousers/pkg/logger"
)

const (
	methodGetAllManagedUsers            = "GetAllManagedUsers"
	methodCountManagedUsers             = "CountManagedUsers"
	methodGetUserWithAuthoritiesByLogin = "GetUserWithAuthoritiesByLogin"
	methodGetUserWithAuthorities        = "GetUserWithAuthorities"
	methodGetAuthorities                = "GetAuthorities"

	msgCacheHit         = "user served from cache"
	msgCacheReadFailed  = "failed to read cached user"
	msgCacheWriteFailed = "failed to cache user"

	msgErrListUsers       = "failed to list managed users"
	msgErrCountUsers      = "failed to count managed users"
	msgErrListAuthorities = "failed to list authorities"

	errCtxListingUsers       = "listing managed users"
	errCtxCountingUsers      = "counting managed users"
	errCtxListingAuthorities = "listing authorities"
)

// GetAllManagedUsers возвращает страницу пользователей без анонимной учетной записи.
func (u *UserUseCaseImpl) GetAllManagedUsers(ctx context.Context, page entities.Pageable) ([]*services.UserDTO, error) {
	log := logger.Log(ctx).With(zap.String("method", methodGetAllManagedUsers),
		zap.Int("page", page.Page), zap.Int("size", page.Limit()))

	users, err := u.userRepo.FindAllByLoginNot(ctx, page, u.anonymousLogin)
	if err != nil {
		log.Error(ctx, msgErrListUsers, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxListingUsers, err)
	}

	result := make([]*services.UserDTO, 0, len(users))
	for _, user := range users {
		result = append(result, services.NewUserDTO(user))
	}
	return result, nil
}

// CountManagedUsers считает пользователей без анонимной учетной записи.
func (u *UserUseCaseImpl) CountManagedUsers(ctx context.Context) (int64, error) {
	count, err := u.userRepo.CountByLoginNot(ctx, u.anonymousLogin)
	if err != nil {
		logger.Log(ctx).Error(ctx, msgErrCountUsers, zap.String("method", methodCountManagedUsers), zap.Error(err))
		return 0, fmt.Errorf("%s: %w", errCtxCountingUsers, err)
	}
	return count, nil
}

// GetUserWithAuthoritiesByLogin читает пользователя с ролями через кэш.
// Результат не содержит учетных данных ни при попадании, ни при промахе.
func (u *UserUseCaseImpl) GetUserWithAuthoritiesByLogin(ctx context.Context, login string) (*entities.User, error) {
	login = strings.ToLower(login)
	log := logger.Log(ctx).With(zap.String("method", methodGetUserWithAuthoritiesByLogin), zap.String("login", login))

	cached, err := u.cache.GetByLogin(ctx, login)
	if err != nil {
		log.Warn(ctx, msgCacheReadFailed, zap.Error(err))
	}
	if cached != nil {
		log.Debug(ctx, msgCacheHit)
		return cached.WithoutCredentials(), nil
	}

	user, err := findOptional(ctx, u.userRepo.FindWithAuthoritiesByLogin, login)
	if err != nil {
		log.Error(ctx, msgErrFindUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	if user == nil {
		return nil, nil
	}

	user = user.WithoutCredentials()
	if err := u.cache.SetByLogin(ctx, user); err != nil {
		log.Warn(ctx, msgCacheWriteFailed, zap.Error(err))
	}
	return user, nil
}

// GetUserWithAuthorities читает пользователя с ролями по ID.
func (u *UserUseCaseImpl) GetUserWithAuthorities(ctx context.Context, id int64) (*entities.User, error) {
	user, err := findOptional(ctx, u.userRepo.FindWithAuthoritiesByID, id)
	if err != nil {
		logger.Log(ctx).Error(ctx, msgErrFindUser,
			zap.String("method", methodGetUserWithAuthorities), zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	return user, nil
}

// GetCurrentUserWithAuthorities читает текущего пользователя с ролями.
func (u *UserUseCaseImpl) GetCurrentUserWithAuthorities(ctx context.Context) (*entities.User, error) {
	login, ok := u.principal.CurrentLogin(ctx)
	if !ok {
		logger.Log(ctx).Debug(ctx, msgNoPrincipal)
		return nil, nil
	}
	return u.GetUserWithAuthoritiesByLogin(ctx, login)
}

// GetAuthorities возвращает имена всех ролей.
func (u *UserUseCaseImpl) GetAuthorities(ctx context.Context) ([]string, error) {
	authorities, err := u.authorityRepo.FindAll(ctx)
	if err != nil {
		logger.Log(ctx).Error(ctx, msgErrListAuthorities, zap.String("method", methodGetAuthorities), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxListingAuthorities, err)
	}

	names := make([]string, 0, len(authorities))
	for _, authority := range authorities {
		names = append(names, authority.Name)
	}
	return names, nil
}
