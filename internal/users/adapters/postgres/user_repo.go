package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
	"gousers/internal/users/ports/repositories"
	"gousers/pkg/logger"
)

// Константы для сообщений об ошибках.
const (
	errQueryUser            = "error querying user"
	errQueryUsers           = "error querying users"
	errQueryUserAuthorities = "error querying user authorities"
	errCountUsers           = "error counting users"
	errCreateUser           = "error creating user"
	errUpdateUser           = "error updating user"
	errDeleteUser           = "error deleting user"
	errLockUser             = "error locking user"
	errSaveUserAuthority    = "error saving user authority"
	errDeleteUserAuthority  = "error deleting user authority"

	logUserNotFound = "user not found"

	uniqueViolation      = "23505"
	loginUniqueIndex     = "ux_user_login"
	emailUniqueIndex     = "ux_user_email"
	repositoryAttr       = "repository"
	repositoryUserLogTag = "user"
)

const userColumns = `u.id, u.login, u.password_hash,
        COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.email, ''),
        COALESCE(u.image_url, ''), u.activated, COALESCE(u.lang_key, ''),
        u.activation_key, u.reset_key, u.reset_date,
        u.created_by, u.created_date, COALESCE(u.last_modified_by, ''), u.last_modified_date`

type scanner interface {
	Scan(dest ...any) error
}

func userFields(u *entities.User) []any {
	return []any{
		&u.ID, &u.Login, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Email,
		&u.ImageURL, &u.Activated, &u.LangKey,
		&u.ActivationKey, &u.ResetKey, &u.ResetDate,
		&u.CreatedBy, &u.CreatedDate, &u.LastModifiedBy, &u.LastModifiedDate,
	}
}

func scanUser(row scanner) (*entities.User, error) {
	var u entities.User
	if err := row.Scan(userFields(&u)...); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserRepository реализует repositories.UserRepository для Postgres.
type UserRepository struct {
	pool PgxPoolInterface
}

// NewUserRepository создает новый экземпляр репозитория пользователей.
func NewUserRepository(pool PgxPoolInterface) repositories.UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) log(ctx context.Context, method string) *logger.Logger {
	return logger.Log(ctx).With(zap.String(repositoryAttr, repositoryUserLogTag), zap.String("method", method))
}

func (r *UserRepository) findOne(ctx context.Context, method, where string, arg any) (*entities.User, error) {
	log := r.log(ctx, method)

	query := `SELECT ` + userColumns + ` FROM jhi_user u WHERE ` + where

	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug(ctx, logUserNotFound)
			return nil, entities.ErrUserNotFound
		}
		log.Error(ctx, errQueryUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryUser, err)
	}

	return user, nil
}

// FindByID находит пользователя по ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.findOne(ctx, "FindByID", `u.id = $1`, id)
}

// FindByLogin находит пользователя по логину.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*entities.User, error) {
	return r.findOne(ctx, "FindByLogin", `u.login = LOWER($1)`, login)
}

// FindByEmail находит пользователя по e-mail без учета регистра.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.findOne(ctx, "FindByEmail", `LOWER(u.email) = LOWER($1)`, email)
}

// FindByActivationKey находит пользователя по ключу активации.
func (r *UserRepository) FindByActivationKey(ctx context.Context, key string) (*entities.User, error) {
	return r.findOne(ctx, "FindByActivationKey", `u.activation_key = $1`, key)
}

// FindByResetKey находит пользователя по ключу сброса пароля.
func (r *UserRepository) FindByResetKey(ctx context.Context, key string) (*entities.User, error) {
	return r.findOne(ctx, "FindByResetKey", `u.reset_key = $1`, key)
}

// findWithAuthorities выполняет LEFT JOIN с ролями и сворачивает строки в одного пользователя.
func (r *UserRepository) findWithAuthorities(ctx context.Context, method, where string, arg any) (*entities.User, error) {
	log := r.log(ctx, method)

	query := `SELECT ` + userColumns + `, ua.authority_name
        FROM jhi_user u
        LEFT JOIN jhi_user_authority ua ON u.id = ua.user_id
        WHERE ` + where + `
        ORDER BY ua.authority_name`

	rows, err := conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		log.Error(ctx, errQueryUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryUser, err)
	}
	defer rows.Close()

	var user *entities.User
	for rows.Next() {
		var row entities.User
		var authority *string
		if err := rows.Scan(append(userFields(&row), &authority)...); err != nil {
			log.Error(ctx, errQueryUser, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", errQueryUser, err)
		}
		if user == nil {
			user = &row
			user.Authorities = []string{}
		}
		if authority != nil {
			user.AddAuthority(*authority)
		}
	}
	if err := rows.Err(); err != nil {
		log.Error(ctx, errQueryUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryUser, err)
	}

	if user == nil {
		log.Debug(ctx, logUserNotFound)
		return nil, entities.ErrUserNotFound
	}

	return user, nil
}

// FindWithAuthoritiesByLogin находит пользователя с ролями по логину.
func (r *UserRepository) FindWithAuthoritiesByLogin(ctx context.Context, login string) (*entities.User, error) {
	return r.findWithAuthorities(ctx, "FindWithAuthoritiesByLogin", `u.login = LOWER($1)`, login)
}

// FindWithAuthoritiesByID находит пользователя с ролями по ID.
func (r *UserRepository) FindWithAuthoritiesByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.findWithAuthorities(ctx, "FindWithAuthoritiesByID", `u.id = $1`, id)
}

// FindWithAuthoritiesByEmail находит пользователя с ролями по e-mail.
func (r *UserRepository) FindWithAuthoritiesByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.findWithAuthorities(ctx, "FindWithAuthoritiesByEmail", `LOWER(u.email) = LOWER($1)`, email)
}

func (r *UserRepository) findMany(ctx context.Context, log *logger.Logger, query string, args ...any) ([]*entities.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		log.Error(ctx, errQueryUsers, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryUsers, err)
	}
	defer rows.Close()

	users := make([]*entities.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			log.Error(ctx, errQueryUsers, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", errQueryUsers, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		log.Error(ctx, errQueryUsers, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryUsers, err)
	}

	return users, nil
}

// attachAuthorities загружает роли для набора пользователей одним запросом.
func (r *UserRepository) attachAuthorities(ctx context.Context, log *logger.Logger, users []*entities.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(users))
	byID := make(map[int64]*entities.User, len(users))
	for _, u := range users {
		u.Authorities = []string{}
		ids = append(ids, u.ID)
		byID[u.ID] = u
	}

	query := `
        SELECT user_id, authority_name
        FROM jhi_user_authority
        WHERE user_id = ANY($1)
        ORDER BY user_id, authority_name
    `

	rows, err := conn(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		log.Error(ctx, errQueryUserAuthorities, zap.Error(err))
		return fmt.Errorf("%s: %w", errQueryUserAuthorities, err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var name string
		if err := rows.Scan(&userID, &name); err != nil {
			log.Error(ctx, errQueryUserAuthorities, zap.Error(err))
			return fmt.Errorf("%s: %w", errQueryUserAuthorities, err)
		}
		if u, ok := byID[userID]; ok {
			u.AddAuthority(name)
		}
	}
	if err := rows.Err(); err != nil {
		log.Error(ctx, errQueryUserAuthorities, zap.Error(err))
		return fmt.Errorf("%s: %w", errQueryUserAuthorities, err)
	}

	return nil
}

// FindAllByLoginNot возвращает страницу пользователей, кроме указанного логина, вместе с ролями.
func (r *UserRepository) FindAllByLoginNot(ctx context.Context, page entities.Pageable, login string) ([]*entities.User, error) {
	log := r.log(ctx, "FindAllByLoginNot")

	query := `SELECT ` + userColumns + `
        FROM jhi_user u
        WHERE u.login <> $1
        ORDER BY u.id
        LIMIT $2 OFFSET $3`

	users, err := r.findMany(ctx, log, query, login, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}

	if err := r.attachAuthorities(ctx, log, users); err != nil {
		return nil, err
	}

	return users, nil
}

// CountByLoginNot считает пользователей, кроме указанного логина.
func (r *UserRepository) CountByLoginNot(ctx context.Context, login string) (int64, error) {
	log := r.log(ctx, "CountByLoginNot")

	var count int64
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM jhi_user WHERE login <> $1`, login).Scan(&count); err != nil {
		log.Error(ctx, errCountUsers, zap.Error(err))
		return 0, fmt.Errorf("%s: %w", errCountUsers, err)
	}

	return count, nil
}

// FindNotActivatedBefore возвращает кандидатов на удаление неактивированных учетных записей.
func (r *UserRepository) FindNotActivatedBefore(ctx context.Context, cutoff time.Time) ([]*entities.User, error) {
	log := r.log(ctx, "FindNotActivatedBefore")

	query := `SELECT ` + userColumns + `
        FROM jhi_user u
        WHERE u.activated = false
          AND u.activation_key IS NOT NULL
          AND u.created_date < $1
        ORDER BY u.id`

	return r.findMany(ctx, log, query, cutoff)
}

// LockNotActivated блокирует строку пользователя, если он все еще не активирован.
func (r *UserRepository) LockNotActivated(ctx context.Context, id int64) (bool, error) {
	log := r.log(ctx, "LockNotActivated")

	query := `
        SELECT id FROM jhi_user
        WHERE id = $1 AND activated = false AND activation_key IS NOT NULL
        FOR UPDATE
    `

	var lockedID int64
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		log.Error(ctx, errLockUser, zap.Error(err))
		return false, fmt.Errorf("%s: %w", errLockUser, err)
	}

	return true, nil
}

// Create сохраняет нового пользователя и возвращает его с назначенным ID.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) (*entities.User, error) {
	log := r.log(ctx, "Create")

	query := `
        INSERT INTO jhi_user (login, password_hash, first_name, last_name, email, image_url,
            activated, lang_key, activation_key, reset_key, reset_date,
            created_by, created_date, last_modified_by, last_modified_date)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
            $7, NULLIF($8, ''), $9, $10, $11,
            $12, $13, NULLIF($14, ''), $15)
        RETURNING id
    `

	created := *user
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		user.Login, user.PasswordHash, user.FirstName, user.LastName, user.Email, user.ImageURL,
		user.Activated, user.LangKey, user.ActivationKey, user.ResetKey, user.ResetDate,
		user.CreatedBy, user.CreatedDate, user.LastModifiedBy, user.LastModifiedDate,
	).Scan(&created.ID)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			log.Debug(ctx, errCreateUser, zap.Error(err))
			return nil, mapped
		}
		log.Error(ctx, errCreateUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCreateUser, err)
	}

	return &created, nil
}

const queryUpdateUser = `
        UPDATE jhi_user
        SET login = $2, password_hash = $3, first_name = NULLIF($4, ''), last_name = NULLIF($5, ''),
            email = NULLIF($6, ''), image_url = NULLIF($7, ''), activated = $8, lang_key = NULLIF($9, ''),
            activation_key = $10, reset_key = $11, reset_date = $12,
            last_modified_by = NULLIF($13, ''), last_modified_date = $14
        WHERE id = $1`

const keyGuardCondition = `
          AND ($15::text = '' OR activation_key = $15)
          AND ($16::text = '' OR reset_key = $16)`

func userUpdateArgs(user *entities.User) []any {
	return []any{
		user.ID, user.Login, user.PasswordHash, user.FirstName, user.LastName,
		user.Email, user.ImageURL, user.Activated, user.LangKey,
		user.ActivationKey, user.ResetKey, user.ResetDate,
		user.LastModifiedBy, user.LastModifiedDate,
	}
}

// Update сохраняет изменения пользователя. Если строки уже нет, возвращает entities.ErrUserNotFound.
func (r *UserRepository) Update(ctx context.Context, user *entities.User) (*entities.User, error) {
	return r.update(ctx, "Update", user, queryUpdateUser, userUpdateArgs(user))
}

// UpdateConsumingKey сохраняет изменения, только если ключи строки все еще равны guard.
// Из двух конкурентных вызовов с одним ключом успешен только первый.
func (r *UserRepository) UpdateConsumingKey(ctx context.Context, user *entities.User, guard repositories.KeyGuard) (*entities.User, error) {
	args := append(userUpdateArgs(user), guard.ActivationKey, guard.ResetKey)
	return r.update(ctx, "UpdateConsumingKey", user, queryUpdateUser+keyGuardCondition, args)
}

func (r *UserRepository) update(ctx context.Context, method string, user *entities.User, query string, args []any) (*entities.User, error) {
	log := r.log(ctx, method)

	result, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			log.Debug(ctx, errUpdateUser, zap.Error(err))
			return nil, mapped
		}
		log.Error(ctx, errUpdateUser, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errUpdateUser, err)
	}

	if result.RowsAffected() == 0 {
		log.Debug(ctx, logUserNotFound, zap.Int64("id", user.ID))
		return nil, entities.ErrUserNotFound
	}

	updated := *user
	return &updated, nil
}

// Delete удаляет строку пользователя.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	log := r.log(ctx, "Delete")

	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM jhi_user WHERE id = $1`, id)
	if err != nil {
		log.Error(ctx, errDeleteUser, zap.Error(err))
		return fmt.Errorf("%s: %w", errDeleteUser, err)
	}

	if result.RowsAffected() == 0 {
		log.Debug(ctx, logUserNotFound, zap.Int64("id", id))
	}

	return nil
}

// SaveUserAuthority добавляет пользователю роль. Повторное добавление игнорируется.
func (r *UserRepository) SaveUserAuthority(ctx context.Context, userID int64, authority string) error {
	log := r.log(ctx, "SaveUserAuthority")

	query := `
        INSERT INTO jhi_user_authority (user_id, authority_name)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `

	if _, err := conn(ctx, r.pool).Exec(ctx, query, userID, authority); err != nil {
		log.Error(ctx, errSaveUserAuthority, zap.Error(err))
		return fmt.Errorf("%s: %w", errSaveUserAuthority, err)
	}

	return nil
}

// DeleteUserAuthority удаляет у пользователя одну роль.
func (r *UserRepository) DeleteUserAuthority(ctx context.Context, userID int64, authority string) error {
	log := r.log(ctx, "DeleteUserAuthority")

	query := `DELETE FROM jhi_user_authority WHERE user_id = $1 AND authority_name = $2`
	if _, err := conn(ctx, r.pool).Exec(ctx, query, userID, authority); err != nil {
		log.Error(ctx, errDeleteUserAuthority, zap.Error(err))
		return fmt.Errorf("%s: %w", errDeleteUserAuthority, err)
	}

	return nil
}

// DeleteUserAuthorities удаляет все роли пользователя.
func (r *UserRepository) DeleteUserAuthorities(ctx context.Context, userID int64) error {
	log := r.log(ctx, "DeleteUserAuthorities")

	if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM jhi_user_authority WHERE user_id = $1`, userID); err != nil {
		log.Error(ctx, errDeleteUserAuthority, zap.Error(err))
		return fmt.Errorf("%s: %w", errDeleteUserAuthority, err)
	}

	return nil
}

// mapUniqueViolation переводит нарушение уникальности логина или e-mail в доменную ошибку.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case loginUniqueIndex:
		return services.ErrLoginAlreadyUsed
	case emailUniqueIndex:
		return services.ErrEmailAlreadyUsed
	default:
		return nil
	}
}
