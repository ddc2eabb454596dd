// Package app содержит сценарии использования сервиса учетных записей.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
	"gousers/internal/users/ports/api"
	"gousers/internal/users/ports/cache"
	"gousers/internal/users/ports/repositories"
	svc "gousers/internal/users/ports/services"
	"gousers/pkg/logger"
)

const (
	methodRegisterUser            = "RegisterUser"
	methodCreateUser              = "CreateUser"
	methodActivateRegistration    = "ActivateRegistration"
	methodRequestPasswordReset    = "RequestPasswordReset"
	methodCompletePasswordReset   = "CompletePasswordReset"
	methodChangePassword          = "ChangePassword"
	methodUpdateCurrentUser       = "UpdateCurrentUser"
	methodUpdateUser              = "UpdateUser"
	methodDeleteUserByLogin       = "DeleteUserByLogin"
	methodDeleteUser              = "DeleteUser"
	methodRemoveNotActivatedUsers = "RemoveNotActivatedUsers"

	msgStartRegistration      = "starting user registration"
	msgReclaimingLogin        = "removing not activated user holding the login"
	msgReclaimingEmail        = "removing not activated user holding the email"
	msgLoginUsed              = "login already used by an activated user"
	msgEmailUsed              = "email already used by an activated user"
	msgAuthoritySkipped       = "unknown authority skipped"
	msgUserRegistered         = "user registered"
	msgUserCreated            = "user created"
	msgActivationKeyNotFound  = "no user for activation key"
	msgUserActivated          = "user activated"
	msgResetNotAllowed        = "password reset not allowed for email"
	msgResetRequested         = "password reset requested"
	msgResetKeyNotFound       = "reset key not found or expired"
	msgPasswordReset          = "password reset completed"
	msgNoPrincipal            = "no current principal"
	msgInvalidCurrentPassword = "current password does not match"
	msgPasswordChanged        = "password changed"
	msgUserUpdated            = "user updated"
	msgUserVanished           = "user removed concurrently"
	msgUserNotPersisted       = "user has no id, nothing to delete"
	msgUserDeleted            = "user deleted"
	msgCleanupCandidates      = "not activated users found"
	msgCleanupSkipped         = "user activated concurrently, skipped"
	msgCleanupFinished        = "not activated users removed"
	msgCacheEvictFailed       = "failed to evict cached user"

	msgErrValidation       = "user validation failed"
	msgErrHashPassword     = "failed to hash password"
	msgErrGenerateKey      = "failed to generate key"
	msgErrFindUser         = "failed to find user"
	msgErrFindAuthority    = "failed to find authority"
	msgErrCreateUser       = "failed to create user"
	msgErrUpdateUser       = "failed to update user"
	msgErrDeleteUser       = "failed to delete user"
	msgErrVerifyPassword   = "failed to verify password"
	msgErrFindCandidates   = "failed to find not activated users"
	msgErrRemoveNotActived = "failed to remove not activated user"

	errCtxValidatingUser     = "validating user"
	errCtxHashingPassword    = "hashing password"
	errCtxGeneratingKey      = "generating key"
	errCtxCheckingLogin      = "checking login"
	errCtxCheckingEmail      = "checking email"
	errCtxResolvingAuthority = "resolving authority"
	errCtxCreatingUser       = "creating user"
	errCtxFindingUser        = "finding user"
	errCtxUpdatingUser       = "updating user"
	errCtxDeletingUser       = "deleting user"
	errCtxVerifyingPassword  = "verifying password"
	errCtxFindingCandidates  = "finding not activated users"
	errCtxRemovingCandidate  = "removing not activated user"
)

// UserUseCaseDeps собирает зависимости сервиса учетных записей.
type UserUseCaseDeps struct {
	Users       repositories.UserRepository
	Authorities repositories.AuthorityRepository
	Transactor  repositories.Transactor
	Passwords   svc.PasswordService
	Keys        svc.KeyService
	Principal   svc.PrincipalProvider
	Cache       cache.UserCache
	Metrics     svc.MetricsRecorder
	Clock       clockwork.Clock

	// AnonymousLogin исключается из выборок управляемых пользователей.
	AnonymousLogin string
	// NotActivatedRetention - возраст, после которого неактивированный пользователь удаляется.
	NotActivatedRetention time.Duration
}

// UserUseCaseImpl реализует интерфейс UserUseCase.
type UserUseCaseImpl struct {
	userRepo       repositories.UserRepository
	authorityRepo  repositories.AuthorityRepository
	tx             repositories.Transactor
	passwordSvc    svc.PasswordService
	keySvc         svc.KeyService
	principal      svc.PrincipalProvider
	cache          cache.UserCache
	metrics        svc.MetricsRecorder
	clock          clockwork.Clock
	anonymousLogin string
	retention      time.Duration
}

// NewUserUseCase создает новый экземпляр сервиса учетных записей.
func NewUserUseCase(deps UserUseCaseDeps) api.UserUseCase {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.AnonymousLogin == "" {
		deps.AnonymousLogin = services.AnonymousUser
	}
	if deps.NotActivatedRetention <= 0 {
		deps.NotActivatedRetention = services.NotActivatedRetention
	}

	return &UserUseCaseImpl{
		userRepo:       deps.Users,
		authorityRepo:  deps.Authorities,
		tx:             deps.Transactor,
		passwordSvc:    deps.Passwords,
		keySvc:         deps.Keys,
		principal:      deps.Principal,
		cache:          deps.Cache,
		metrics:        deps.Metrics,
		clock:          deps.Clock,
		anonymousLogin: strings.ToLower(deps.AnonymousLogin),
		retention:      deps.NotActivatedRetention,
	}
}

// RegisterUser регистрирует неактивированного пользователя с ключом активации.
// Логин и e-mail, занятые неактивированными пользователями, освобождаются.
func (u *UserUseCaseImpl) RegisterUser(ctx context.Context, dto services.UserDTO, password string) (*entities.User, error) {
	login := strings.ToLower(dto.Login)
	email := strings.ToLower(dto.Email)

	log := logger.Log(ctx).With(zap.String("method", methodRegisterUser), zap.String("login", login))
	log.Debug(ctx, msgStartRegistration)

	if err := dto.ValidateRegistration(); err != nil {
		log.Debug(ctx, msgErrValidation, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxValidatingUser, err)
	}

	passwordHash, err := u.passwordSvc.Hash(ctx, password)
	if err != nil {
		log.Debug(ctx, msgErrHashPassword, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxHashingPassword, err)
	}

	activationKey, err := u.keySvc.GenerateActivationKey()
	if err != nil {
		log.Error(ctx, msgErrGenerateKey, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxGeneratingKey, err)
	}

	user := &entities.User{
		Login:         login,
		PasswordHash:  passwordHash,
		FirstName:     dto.FirstName,
		LastName:      dto.LastName,
		Email:         email,
		ImageURL:      dto.ImageURL,
		LangKey:       dto.LangKey,
		Activated:     false,
		ActivationKey: &activationKey,
	}

	evicted := []string{login}
	var created *entities.User

	err = u.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := findOptional(ctx, u.userRepo.FindByLogin, login)
		if err != nil {
			log.Error(ctx, msgErrFindUser, zap.Error(err))
			return fmt.Errorf("%s: %w", errCtxCheckingLogin, err)
		}
		if existing != nil {
			if existing.Activated {
				log.Debug(ctx, msgLoginUsed)
				return fmt.Errorf("%s: %w", errCtxCheckingLogin, services.ErrLoginAlreadyUsed)
			}
			log.Info(ctx, msgReclaimingLogin, zap.Int64("reclaimed_id", existing.ID))
			if err := u.deleteWithAuthorities(ctx, existing.ID); err != nil {
				return err
			}
		}

		existing, err = findOptional(ctx, u.userRepo.FindByEmail, email)
		if err != nil {
			log.Error(ctx, msgErrFindUser, zap.Error(err))
			return fmt.Errorf("%s: %w", errCtxCheckingEmail, err)
		}
		if existing != nil {
			if existing.Activated {
				log.Debug(ctx, msgEmailUsed)
				return fmt.Errorf("%s: %w", errCtxCheckingEmail, services.ErrEmailAlreadyUsed)
			}
			log.Info(ctx, msgReclaimingEmail, zap.Int64("reclaimed_id", existing.ID))
			if err := u.deleteWithAuthorities(ctx, existing.ID); err != nil {
				return err
			}
			evicted = append(evicted, existing.Login)
		}

		authorities, err := u.resolveAuthorities(ctx, []string{entities.RoleUser})
		if err != nil {
			return err
		}
		user.Authorities = authorities

		created, err = u.insertUser(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.evict(ctx, evicted...)
	u.metrics.UserRegistered()

	log.Info(ctx, msgUserRegistered, zap.Int64("id", created.ID))
	return created, nil
}

// CreateUser создает активированного пользователя от имени администратора.
// Пароль генерируется случайно, ключ сброса выдается сразу.
func (u *UserUseCaseImpl) CreateUser(ctx context.Context, dto services.UserDTO) (*entities.User, error) {
	login := strings.ToLower(dto.Login)
	log := logger.Log(ctx).With(zap.String("method", methodCreateUser), zap.String("login", login))

	if err := dto.Validate(); err != nil {
		log.Debug(ctx, msgErrValidation, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxValidatingUser, err)
	}

	password, err := u.keySvc.GeneratePassword()
	if err != nil {
		log.Error(ctx, msgErrGenerateKey, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxGeneratingKey, err)
	}

	passwordHash, err := u.passwordSvc.Hash(ctx, password)
	if err != nil {
		log.Error(ctx, msgErrHashPassword, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxHashingPassword, err)
	}

	resetKey, err := u.keySvc.GenerateResetKey()
	if err != nil {
		log.Error(ctx, msgErrGenerateKey, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxGeneratingKey, err)
	}

	langKey := dto.LangKey
	if langKey == "" {
		langKey = services.DefaultLanguage
	}

	resetDate := u.clock.Now()
	user := &entities.User{
		Login:        login,
		PasswordHash: passwordHash,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Email:        strings.ToLower(dto.Email),
		ImageURL:     dto.ImageURL,
		LangKey:      langKey,
		Activated:    true,
		ResetKey:     &resetKey,
		ResetDate:    &resetDate,
	}

	var created *entities.User
	err = u.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		authorities, err := u.resolveAuthorities(ctx, dto.Authorities)
		if err != nil {
			return err
		}
		user.Authorities = authorities

		created, err = u.insertUser(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.evict(ctx, login)
	u.metrics.UserCreated()

	log.Info(ctx, msgUserCreated, zap.Int64("id", created.ID), zap.String("created_by", created.CreatedBy))
	return created, nil
}

// ActivateRegistration активирует пользователя по ключу. Ключ расходуется однократно.
func (u *UserUseCaseImpl) ActivateRegistration(ctx context.Context, key string) (*entities.User, error) {
	log := logger.Log(ctx).With(zap.String("method", methodActivateRegistration))

	if key == "" {
		log.Debug(ctx, msgActivationKeyNotFound)
		return nil, nil
	}

	user, err := findOptional(ctx, u.userRepo.FindByActivationKey, key)
	if err != nil {
		log.Error(ctx, msgErrFindUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	if user == nil {
		log.Debug(ctx, msgActivationKeyNotFound)
		return nil, nil
	}

	user.Activated = true
	user.ActivationKey = nil

	updated, err := u.consumeKey(ctx, user, repositories.KeyGuard{ActivationKey: key})
	if err != nil || updated == nil {
		return nil, err
	}

	u.evict(ctx, updated.Login)
	u.metrics.UserActivated()

	log.Info(ctx, msgUserActivated, zap.String("login", updated.Login))
	return updated, nil
}

// RequestPasswordReset выдает ключ сброса пароля активированному пользователю.
func (u *UserUseCaseImpl) RequestPasswordReset(ctx context.Context, email string) (*entities.User, error) {
	log := logger.Log(ctx).With(zap.String("method", methodRequestPasswordReset))

	if email == "" {
		log.Debug(ctx, msgResetNotAllowed)
		return nil, nil
	}

	user, err := findOptional(ctx, u.userRepo.FindByEmail, strings.ToLower(email))
	if err != nil {
		log.Error(ctx, msgErrFindUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	if user == nil || !user.Activated {
		log.Debug(ctx, msgResetNotAllowed)
		return nil, nil
	}

	resetKey, err := u.keySvc.GenerateResetKey()
	if err != nil {
		log.Error(ctx, msgErrGenerateKey, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxGeneratingKey, err)
	}

	now := u.clock.Now()
	user.ResetKey = &resetKey
	user.ResetDate = &now

	updated, err := u.saveUser(ctx, user)
	if err != nil || updated == nil {
		return nil, err
	}

	u.evict(ctx, updated.Login)
	u.metrics.PasswordResetRequested()

	log.Info(ctx, msgResetRequested, zap.String("login", updated.Login))
	return updated, nil
}

// CompletePasswordReset устанавливает новый пароль по ключу сброса.
// Неизвестный и просроченный ключи неразличимы: результат пустой.
func (u *UserUseCaseImpl) CompletePasswordReset(ctx context.Context, newPassword, key string) (*entities.User, error) {
	log := logger.Log(ctx).With(zap.String("method", methodCompletePasswordReset))

	if key == "" {
		log.Debug(ctx, msgResetKeyNotFound)
		return nil, nil
	}

	user, err := findOptional(ctx, u.userRepo.FindByResetKey, key)
	if err != nil {
		log.Error(ctx, msgErrFindUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	if user == nil || !u.resetKeyValid(user) {
		log.Debug(ctx, msgResetKeyNotFound)
		return nil, nil
	}

	passwordHash, err := u.passwordSvc.Hash(ctx, newPassword)
	if err != nil {
		log.Debug(ctx, msgErrHashPassword, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxHashingPassword, err)
	}

	user.PasswordHash = passwordHash
	user.ResetKey = nil
	user.ResetDate = nil

	updated, err := u.consumeKey(ctx, user, repositories.KeyGuard{ResetKey: key})
	if err != nil || updated == nil {
		return nil, err
	}

	u.evict(ctx, updated.Login)
	u.metrics.PasswordResetCompleted()

	log.Info(ctx, msgPasswordReset, zap.String("login", updated.Login))
	return updated, nil
}

// ChangePassword меняет пароль текущего пользователя после проверки текущего пароля.
func (u *UserUseCaseImpl) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	log := logger.Log(ctx).With(zap.String("method", methodChangePassword))

	user, err := u.currentUser(ctx)
	if err != nil || user == nil {
		return err
	}
	log = log.With(zap.String("login", user.Login))

	matches, err := u.passwordSvc.Verify(ctx, currentPassword, user.PasswordHash)
	if err != nil {
		log.Error(ctx, msgErrVerifyPassword, zap.Error(err))
		return fmt.Errorf("%s: %w", errCtxVerifyingPassword, err)
	}
	if !matches {
		log.Debug(ctx, msgInvalidCurrentPassword)
		return fmt.Errorf("%s: %w", errCtxVerifyingPassword, services.ErrInvalidPassword)
	}

	passwordHash, err := u.passwordSvc.Hash(ctx, newPassword)
	if err != nil {
		log.Debug(ctx, msgErrHashPassword, zap.Error(err))
		return fmt.Errorf("%s: %w", errCtxHashingPassword, err)
	}
	user.PasswordHash = passwordHash

	updated, err := u.saveUser(ctx, user)
	if err != nil || updated == nil {
		return err
	}

	u.evict(ctx, updated.Login)
	u.metrics.PasswordChanged()

	log.Info(ctx, msgPasswordChanged)
	return nil
}

// UpdateCurrentUser обновляет отображаемые атрибуты текущего пользователя.
// Пустой email оставляет прежнее значение.
func (u *UserUseCaseImpl) UpdateCurrentUser(ctx context.Context, firstName, lastName, email, langKey, imageURL string) error {
	log := logger.Log(ctx).With(zap.String("method", methodUpdateCurrentUser))

	user, err := u.currentUser(ctx)
	if err != nil || user == nil {
		return err
	}
	log = log.With(zap.String("login", user.Login))

	user.FirstName = firstName
	user.LastName = lastName
	if email != "" {
		user.Email = strings.ToLower(email)
	}
	user.LangKey = langKey
	user.ImageURL = imageURL

	if err := services.NewUserDTO(user).Validate(); err != nil {
		log.Debug(ctx, msgErrValidation, zap.Error(err))
		return fmt.Errorf("%s: %w", errCtxValidatingUser, err)
	}

	updated, err := u.saveUser(ctx, user)
	if err != nil || updated == nil {
		return err
	}

	u.evict(ctx, updated.Login)

	log.Info(ctx, msgUserUpdated)
	return nil
}

// UpdateUser обновляет пользователя по ID и полностью заменяет набор его ролей.
func (u *UserUseCaseImpl) UpdateUser(ctx context.Context, dto services.UserDTO) (*services.UserDTO, error) {
	log := logger.Log(ctx).With(zap.String("method", methodUpdateUser), zap.Int64("id", dto.ID))

	if err := dto.Validate(); err != nil {
		log.Debug(ctx, msgErrValidation, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxValidatingUser, err)
	}

	var (
		updated  *entities.User
		oldLogin string
	)

	err := u.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := findOptional(ctx, u.userRepo.FindByID, dto.ID)
		if err != nil {
			log.Error(ctx, msgErrFindUser, zap.Error(err))
			return fmt.Errorf("%s: %w", errCtxFindingUser, err)
		}
		if user == nil {
			return nil
		}
		oldLogin = user.Login

		user.Login = strings.ToLower(dto.Login)
		user.FirstName = dto.FirstName
		user.LastName = dto.LastName
		if dto.Email != "" {
			user.Email = strings.ToLower(dto.Email)
		}
		user.ImageURL = dto.ImageURL
		user.Activated = dto.Activated
		user.LangKey = dto.LangKey

		authorities, err := u.resolveAuthorities(ctx, dto.Authorities)
		if err != nil {
			return err
		}

		updated, err = u.saveUser(ctx, user)
		if err != nil || updated == nil {
			return err
		}

		if err := u.userRepo.DeleteUserAuthorities(ctx, updated.ID); err != nil {
			log.Error(ctx, msgErrUpdateUser, zap.Error(err))
			return fmt.Errorf("%s: %w", errCtxUpdatingUser, err)
		}
		for _, name := range authorities {
			if err := u.userRepo.SaveUserAuthority(ctx, updated.ID, name); err != nil {
				log.Error(ctx, msgErrUpdateUser, zap.Error(err))
				return fmt.Errorf("%s: %w", errCtxUpdatingUser, err)
			}
		}
		updated.Authorities = authorities
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		log.Debug(ctx, msgUserVanished)
		return nil, nil
	}

	u.evict(ctx, oldLogin, updated.Login)

	log.Info(ctx, msgUserUpdated, zap.String("login", updated.Login))
	return services.NewUserDTO(updated), nil
}

// DeleteUserByLogin удаляет пользователя по логину. Отсутствие пользователя ошибкой не считается.
func (u *UserUseCaseImpl) DeleteUserByLogin(ctx context.Context, login string) error {
	login = strings.ToLower(login)
	log := logger.Log(ctx).With(zap.String("method", methodDeleteUserByLogin), zap.String("login", login))

	return u.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := findOptional(ctx, u.userRepo.FindByLogin, login)
		if err != nil {
			log.Error(ctx, msgErrFindUser, zap.Error(err))
			return fmt.Errorf("%s: %w", errCtxFindingUser, err)
		}
		if user == nil {
			log.Debug(ctx, msgUserVanished)
			return nil
		}
		return u.DeleteUser(ctx, user)
	})
}

// DeleteUser удаляет роли пользователя, затем его строку.
// Кэш очищается только после фиксации внешней транзакции.
// Для несохраненного пользователя ничего не делает.
func (u *UserUseCaseImpl) DeleteUser(ctx context.Context, user *entities.User) error {
	log := logger.Log(ctx).With(zap.String("method", methodDeleteUser))

	if !user.IsPersisted() {
		log.Debug(ctx, msgUserNotPersisted)
		return nil
	}

	return u.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := u.deleteWithAuthorities(ctx, user.ID); err != nil {
			return err
		}
		u.tx.AfterCommit(ctx, func(ctx context.Context) {
			u.evict(ctx, user.Login)
			u.metrics.UserDeleted()
			log.Info(ctx, msgUserDeleted, zap.Int64("id", user.ID), zap.String("login", user.Login))
		})
		return nil
	})
}

// RemoveNotActivatedUsers удаляет пользователей, не активированных за окно хранения.
// Каждый кандидат повторно проверяется под блокировкой строки.
func (u *UserUseCaseImpl) RemoveNotActivatedUsers(ctx context.Context) ([]*entities.User, error) {
	cutoff := u.clock.Now().Add(-u.retention)
	log := logger.Log(ctx).With(zap.String("method", methodRemoveNotActivatedUsers), zap.Time("cutoff", cutoff))

	candidates, err := u.userRepo.FindNotActivatedBefore(ctx, cutoff)
	if err != nil {
		log.Error(ctx, msgErrFindCandidates, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingCandidates, err)
	}
	log.Debug(ctx, msgCleanupCandidates, zap.Int("count", len(candidates)))

	removed := make([]*entities.User, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Activated {
			continue
		}

		deleted := false
		err := u.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			locked, err := u.userRepo.LockNotActivated(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !locked {
				return nil
			}
			if err := u.deleteWithAuthorities(ctx, candidate.ID); err != nil {
				return err
			}
			deleted = true
			return nil
		})
		if err != nil {
			log.Error(ctx, msgErrRemoveNotActived, zap.Int64("id", candidate.ID), zap.Error(err))
			u.metrics.NotActivatedUsersRemoved(len(removed))
			return removed, fmt.Errorf("%s: %w", errCtxRemovingCandidate, err)
		}
		if !deleted {
			log.Debug(ctx, msgCleanupSkipped, zap.Int64("id", candidate.ID))
			continue
		}

		u.evict(ctx, candidate.Login)
		removed = append(removed, candidate)
	}

	u.metrics.NotActivatedUsersRemoved(len(removed))
	log.Info(ctx, msgCleanupFinished, zap.Int("removed", len(removed)))
	return removed, nil
}

// insertUser проставляет поля аудита, сохраняет пользователя и его роли.
func (u *UserUseCaseImpl) insertUser(ctx context.Context, user *entities.User) (*entities.User, error) {
	log := logger.Log(ctx).With(zap.String("login", user.Login))

	actor := u.currentPrincipal(ctx)
	now := u.clock.Now()
	user.CreatedBy = actor
	user.CreatedDate = now
	user.LastModifiedBy = actor
	user.LastModifiedDate = &now

	created, err := u.userRepo.Create(ctx, user)
	if err != nil {
		log.Debug(ctx, msgErrCreateUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxCreatingUser, err)
	}

	for _, name := range user.Authorities {
		if err := u.userRepo.SaveUserAuthority(ctx, created.ID, name); err != nil {
			log.Error(ctx, msgErrCreateUser, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", errCtxCreatingUser, err)
		}
	}
	created.Authorities = append([]string{}, user.Authorities...)

	return created, nil
}

// saveUser проставляет поля изменения и сохраняет пользователя.
// Строка, удаленная конкурентно, дает пустой результат без ошибки.
func (u *UserUseCaseImpl) saveUser(ctx context.Context, user *entities.User) (*entities.User, error) {
	return u.storeUser(ctx, user, u.userRepo.Update)
}

// consumeKey сохраняет пользователя, только если одноразовый ключ из guard еще не израсходован.
// Проигравший конкурентный вызов получает пустой результат.
func (u *UserUseCaseImpl) consumeKey(ctx context.Context, user *entities.User, guard repositories.KeyGuard) (*entities.User, error) {
	return u.storeUser(ctx, user, func(ctx context.Context, user *entities.User) (*entities.User, error) {
		return u.userRepo.UpdateConsumingKey(ctx, user, guard)
	})
}

func (u *UserUseCaseImpl) storeUser(
	ctx context.Context,
	user *entities.User,
	update func(context.Context, *entities.User) (*entities.User, error),
) (*entities.User, error) {
	log := logger.Log(ctx).With(zap.String("login", user.Login))

	now := u.clock.Now()
	user.LastModifiedBy = u.currentPrincipal(ctx)
	user.LastModifiedDate = &now

	updated, err := update(ctx, user)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			log.Debug(ctx, msgUserVanished, zap.Int64("id", user.ID))
			return nil, nil
		}
		log.Debug(ctx, msgErrUpdateUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxUpdatingUser, err)
	}

	return updated, nil
}

// deleteWithAuthorities удаляет членство в ролях до строки пользователя.
func (u *UserUseCaseImpl) deleteWithAuthorities(ctx context.Context, id int64) error {
	log := logger.Log(ctx).With(zap.Int64("id", id))

	if err := u.userRepo.DeleteUserAuthorities(ctx, id); err != nil {
		log.Error(ctx, msgErrDeleteUser, zap.Error(err))
		return fmt.Errorf("%s: %w", errCtxDeletingUser, err)
	}
	if err := u.userRepo.Delete(ctx, id); err != nil {
		log.Error(ctx, msgErrDeleteUser, zap.Error(err))
		return fmt.Errorf("%s: %w", errCtxDeletingUser, err)
	}
	return nil
}

// resolveAuthorities оставляет только существующие роли, без повторов.
func (u *UserUseCaseImpl) resolveAuthorities(ctx context.Context, names []string) ([]string, error) {
	log := logger.Log(ctx)

	resolved := make([]string, 0, len(names))
	for _, name := range names {
		authority, err := u.authorityRepo.FindByName(ctx, name)
		if errors.Is(err, entities.ErrAuthorityNotFound) {
			log.Debug(ctx, msgAuthoritySkipped, zap.String("authority", name))
			continue
		}
		if err != nil {
			log.Error(ctx, msgErrFindAuthority, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", errCtxResolvingAuthority, err)
		}

		if !slices.Contains(resolved, authority.Name) {
			resolved = append(resolved, authority.Name)
		}
	}
	return resolved, nil
}

// currentUser загружает пользователя текущего принципала. Без принципала результат пустой.
func (u *UserUseCaseImpl) currentUser(ctx context.Context) (*entities.User, error) {
	login, ok := u.principal.CurrentLogin(ctx)
	if !ok {
		logger.Log(ctx).Debug(ctx, msgNoPrincipal)
		return nil, nil
	}

	user, err := findOptional(ctx, u.userRepo.FindByLogin, login)
	if err != nil {
		logger.Log(ctx).Error(ctx, msgErrFindUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxFindingUser, err)
	}
	return user, nil
}

// currentPrincipal возвращает логин текущего принципала или системную учетную запись.
func (u *UserUseCaseImpl) currentPrincipal(ctx context.Context) string {
	if login, ok := u.principal.CurrentLogin(ctx); ok && login != "" {
		return login
	}
	return services.SystemAccount
}

func (u *UserUseCaseImpl) resetKeyValid(user *entities.User) bool {
	if user.ResetDate == nil {
		return false
	}
	return user.ResetDate.After(u.clock.Now().Add(-services.ResetKeyValidity))
}

// evict сбрасывает закэшированные представления пользователей. Ошибки кэша не прерывают операцию.
func (u *UserUseCaseImpl) evict(ctx context.Context, logins ...string) {
	if err := u.cache.Evict(ctx, logins...); err != nil {
		logger.Log(ctx).Warn(ctx, msgCacheEvictFailed, zap.Strings("logins", logins), zap.Error(err))
	}
}

// findOptional переводит ErrUserNotFound в пустой результат.
func findOptional[K any](ctx context.Context, find func(context.Context, K) (*entities.User, error), key K) (*entities.User, error) {
	user, err := find(ctx, key)
	if errors.Is(err, entities.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
