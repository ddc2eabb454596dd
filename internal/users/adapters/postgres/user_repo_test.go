package postgres_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gousers/internal/users/adapters/postgres"
	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
	"gousers/internal/users/ports/repositories"
)

func TestUserRepository_FindByLogin(t *testing.T) {
	ctx := testContext(t)
	expected := testUser()

	t.Run("Успешное получение пользователя по логину", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM jhi_user u WHERE u.login").
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(expected)...))

		user, err := postgres.NewUserRepository(mock).FindByLogin(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, expected, user)
		require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
	})

	t.Run("Пользователь не найден", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM jhi_user u WHERE u.login").
			WithArgs("nobody").
			WillReturnError(pgx.ErrNoRows)

		user, err := postgres.NewUserRepository(mock).FindByLogin(ctx, "nobody")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)
		require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		mock := newMock(t)
		dbErr := errors.New("connection reset")
		mock.ExpectQuery("FROM jhi_user u WHERE u.login").
			WithArgs("alice").
			WillReturnError(dbErr)

		user, err := postgres.NewUserRepository(mock).FindByLogin(ctx, "alice")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, entities.ErrUserNotFound)
	})
}

func TestUserRepository_PointLookups(t *testing.T) {
	ctx := testContext(t)
	expected := testUser()

	t.Run("FindByEmail ignores case", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`WHERE LOWER\(u.email\) = LOWER\(\$1\)`).
			WithArgs("ALICE@example.com").
			WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(expected)...))

		user, err := postgres.NewUserRepository(mock).FindByEmail(ctx, "ALICE@example.com")

		require.NoError(t, err)
		assert.Equal(t, expected.Email, user.Email)
	})

	t.Run("FindByID", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("WHERE u.id").
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(expected)...))

		user, err := postgres.NewUserRepository(mock).FindByID(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
	})

	t.Run("FindByActivationKey", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("WHERE u.activation_key").
			WithArgs("activation-key").
			WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(expected)...))

		user, err := postgres.NewUserRepository(mock).FindByActivationKey(ctx, "activation-key")

		require.NoError(t, err)
		require.NotNil(t, user.ActivationKey)
		assert.Equal(t, "activation-key", *user.ActivationKey)
	})

	t.Run("FindByResetKey", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("WHERE u.reset_key").
			WithArgs("reset-key").
			WillReturnError(pgx.ErrNoRows)

		user, err := postgres.NewUserRepository(mock).FindByResetKey(ctx, "reset-key")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)
	})
}

func TestUserRepository_FindWithAuthorities(t *testing.T) {
	ctx := testContext(t)
	expected := testUser()
	columns := append(append([]string{}, userColumnNames...), "authority_name")

	t.Run("Несколько ролей сворачиваются в одного пользователя", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(columns).
			AddRow(append(userRow(expected), strPtr(entities.RoleAdmin))...).
			AddRow(append(userRow(expected), strPtr(entities.RoleUser))...)
		mock.ExpectQuery("LEFT JOIN jhi_user_authority").
			WithArgs("alice").
			WillReturnRows(rows)

		user, err := postgres.NewUserRepository(mock).FindWithAuthoritiesByLogin(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, []string{entities.RoleAdmin, entities.RoleUser}, user.Authorities)
		require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
	})

	t.Run("Пользователь без ролей возвращается один раз", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(columns).AddRow(append(userRow(expected), (*string)(nil))...)
		mock.ExpectQuery("LEFT JOIN jhi_user_authority").
			WithArgs(int64(1)).
			WillReturnRows(rows)

		user, err := postgres.NewUserRepository(mock).FindWithAuthoritiesByID(ctx, 1)

		require.NoError(t, err)
		assert.Empty(t, user.Authorities)
		assert.NotNil(t, user.Authorities)
	})

	t.Run("Нет строк", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("LEFT JOIN jhi_user_authority").
			WithArgs("a@x.com").
			WillReturnRows(pgxmock.NewRows(columns))

		user, err := postgres.NewUserRepository(mock).FindWithAuthoritiesByEmail(ctx, "a@x.com")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)
	})
}

func TestUserRepository_FindAllByLoginNot(t *testing.T) {
	ctx := testContext(t)
	first := testUser()
	second := testUser()
	second.ID = 2
	second.Login = "bob"
	second.Email = "bob@example.com"

	mock := newMock(t)
	mock.ExpectQuery("WHERE u.login <>").
		WithArgs("anonymoususer", 10, 20).
		WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(first)...).AddRow(userRow(second)...))
	mock.ExpectQuery("FROM jhi_user_authority").
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "authority_name"}).
			AddRow(int64(1), entities.RoleAdmin).
			AddRow(int64(1), entities.RoleUser).
			AddRow(int64(2), entities.RoleUser))

	users, err := postgres.NewUserRepository(mock).FindAllByLoginNot(ctx, entities.Pageable{Page: 2, Size: 10}, "anonymoususer")

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []string{entities.RoleAdmin, entities.RoleUser}, users[0].Authorities)
	assert.Equal(t, []string{entities.RoleUser}, users[1].Authorities)
	require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
}

func TestUserRepository_CountByLoginNot(t *testing.T) {
	ctx := testContext(t)
	mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("anonymoususer").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := postgres.NewUserRepository(mock).CountByLoginNot(ctx, "anonymoususer")

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestUserRepository_NotActivated(t *testing.T) {
	ctx := testContext(t)

	t.Run("FindNotActivatedBefore", func(t *testing.T) {
		cutoff := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
		mock := newMock(t)
		mock.ExpectQuery("u.activated = false").
			WithArgs(cutoff).
			WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow(testUser())...))

		users, err := postgres.NewUserRepository(mock).FindNotActivatedBefore(ctx, cutoff)

		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("LockNotActivated locks candidate", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

		locked, err := postgres.NewUserRepository(mock).LockNotActivated(ctx, 1)

		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("LockNotActivated skips activated user", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnError(pgx.ErrNoRows)

		locked, err := postgres.NewUserRepository(mock).LockNotActivated(ctx, 1)

		require.NoError(t, err)
		assert.False(t, locked)
	})
}

func TestUserRepository_Create(t *testing.T) {
	ctx := testContext(t)

	t.Run("Успешное создание", func(t *testing.T) {
		mock := newMock(t)
		user := testUser()
		user.ID = 0
		mock.ExpectQuery("INSERT INTO jhi_user").
			WithArgs(anyArgs(15)...).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		created, err := postgres.NewUserRepository(mock).Create(ctx, user)

		require.NoError(t, err)
		assert.Equal(t, int64(42), created.ID)
		assert.Equal(t, int64(0), user.ID, "input must not be mutated")
		assert.Equal(t, user.Login, created.Login)
	})

	t.Run("Конфликт e-mail", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("INSERT INTO jhi_user").
			WithArgs(anyArgs(15)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_user_email"})

		created, err := postgres.NewUserRepository(mock).Create(ctx, testUser())

		assert.Nil(t, created)
		assert.ErrorIs(t, err, services.ErrEmailAlreadyUsed)
	})

	t.Run("Конфликт логина", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("INSERT INTO jhi_user").
			WithArgs(anyArgs(15)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_user_login"})

		_, err := postgres.NewUserRepository(mock).Create(ctx, testUser())

		assert.ErrorIs(t, err, services.ErrLoginAlreadyUsed)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := testContext(t)

	t.Run("Успешное обновление", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE jhi_user").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		updated, err := postgres.NewUserRepository(mock).Update(ctx, testUser())

		require.NoError(t, err)
		assert.Equal(t, "alice", updated.Login)
	})

	t.Run("Строка удалена конкурентно", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE jhi_user").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		updated, err := postgres.NewUserRepository(mock).Update(ctx, testUser())

		assert.Nil(t, updated)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)
	})
}

func TestUserRepository_UpdateConsumingKey(t *testing.T) {
	ctx := testContext(t)

	t.Run("Ключ еще не израсходован", func(t *testing.T) {
		mock := newMock(t)
		user := testUser()
		user.Activated = true
		user.ActivationKey = nil
		mock.ExpectExec(`(?s)UPDATE jhi_user.*WHERE id = \$1\s+AND \(\$15::text = '' OR activation_key = \$15\)`).
			WithArgs(append(anyArgs(14), "activation-key", "")...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		updated, err := postgres.NewUserRepository(mock).
			UpdateConsumingKey(ctx, user, repositories.KeyGuard{ActivationKey: "activation-key"})

		require.NoError(t, err)
		assert.True(t, updated.Activated)
		require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
	})

	t.Run("Ключ израсходован конкурентным вызовом", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE jhi_user").
			WithArgs(append(anyArgs(14), "", "reset-key")...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		updated, err := postgres.NewUserRepository(mock).
			UpdateConsumingKey(ctx, testUser(), repositories.KeyGuard{ResetKey: "reset-key"})

		assert.Nil(t, updated)
		assert.ErrorIs(t, err, entities.ErrUserNotFound)
		require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
	})
}

func TestUserRepository_DeleteAndAuthorities(t *testing.T) {
	ctx := testContext(t)

	t.Run("Удаление отсутствующей строки не ошибка", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("DELETE FROM jhi_user WHERE id").
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, postgres.NewUserRepository(mock).Delete(ctx, 5))
	})

	t.Run("Ошибка удаления", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("DELETE FROM jhi_user WHERE id").
			WithArgs(int64(5)).
			WillReturnError(errors.New("fk violation"))

		assert.Error(t, postgres.NewUserRepository(mock).Delete(ctx, 5))
	})

	t.Run("Операции с ролями", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("INSERT INTO jhi_user_authority").
			WithArgs(int64(1), entities.RoleUser).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("DELETE FROM jhi_user_authority WHERE user_id = \\$1 AND authority_name").
			WithArgs(int64(1), entities.RoleUser).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec("DELETE FROM jhi_user_authority WHERE user_id").
			WithArgs(int64(1)).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.SaveUserAuthority(ctx, 1, entities.RoleUser))
		require.NoError(t, repo.DeleteUserAuthority(ctx, 1, entities.RoleUser))
		require.NoError(t, repo.DeleteUserAuthorities(ctx, 1))
		require.NoError(t, mock.ExpectationsWereMet(), msgExpectationsMet)
	})
}
