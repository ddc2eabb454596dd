package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"gousers/internal/users/domain/entities"
	"gousers/pkg/logger"
)

const (
	msgExpectationsMet = "all pgxmock expectations should be met"
)

var userColumnNames = []string{
	"id", "login", "password_hash", "first_name", "last_name", "email",
	"image_url", "activated", "lang_key", "activation_key", "reset_key", "reset_date",
	"created_by", "created_date", "last_modified_by", "last_modified_date",
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	testLogger, err := logger.NewLogger(logger.Development, "debug")
	require.NoError(t, err)
	return logger.NewContext(context.Background(), testLogger)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string {
	return &s
}

func testUser() *entities.User {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &entities.User{
		ID:            1,
		Login:         "alice",
		PasswordHash:  "$2a$10$hash",
		FirstName:     "Alice",
		LastName:      "Liddell",
		Email:         "alice@example.com",
		LangKey:       "en",
		ActivationKey: strPtr("activation-key"),
		CreatedBy:     "system",
		CreatedDate:   created,
	}
}

func userRow(u *entities.User) []any {
	return []any{
		u.ID, u.Login, u.PasswordHash, u.FirstName, u.LastName, u.Email,
		u.ImageURL, u.Activated, u.LangKey, u.ActivationKey, u.ResetKey, u.ResetDate,
		u.CreatedBy, u.CreatedDate, u.LastModifiedBy, u.LastModifiedDate,
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
