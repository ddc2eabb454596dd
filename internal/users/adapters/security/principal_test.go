package security_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"gousers/internal/users/adapters/security"
)

func TestContextPrincipal(t *testing.T) {
	provider := security.NewContextPrincipal()

	t.Run("no principal", func(t *testing.T) {
		login, ok := provider.CurrentLogin(context.Background())
		assert.False(t, ok)
		assert.Empty(t, login)
	})

	t.Run("principal is lowercased", func(t *testing.T) {
		ctx := security.WithPrincipal(context.Background(), "Admin")

		login, ok := provider.CurrentLogin(ctx)
		assert.True(t, ok)
		assert.Equal(t, "admin", login)
	})

	t.Run("empty principal is treated as none", func(t *testing.T) {
		_, ok := security.CurrentLogin(security.WithPrincipal(context.Background(), ""))
		assert.False(t, ok)
	})
}
