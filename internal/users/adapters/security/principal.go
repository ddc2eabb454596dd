// Package security предоставляет доступ к текущему пользователю запроса через context.
package security

import (
	"context"
	"strings"

	svc "gousers/internal/users/ports/services"
)

type principalKey struct{}

// WithPrincipal возвращает контекст с логином аутентифицированного пользователя.
func WithPrincipal(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, principalKey{}, strings.ToLower(login))
}

// CurrentLogin извлекает логин из контекста.
func CurrentLogin(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	login, ok := ctx.Value(principalKey{}).(string)
	return login, ok && login != ""
}

// ContextPrincipal реализует PrincipalProvider поверх context.
type ContextPrincipal struct{}

// NewContextPrincipal создает новый провайдер принципала.
func NewContextPrincipal() svc.PrincipalProvider {
	return ContextPrincipal{}
}

// CurrentLogin возвращает логин текущего пользователя.
func (ContextPrincipal) CurrentLogin(ctx context.Context) (string, bool) {
	return CurrentLogin(ctx)
}
