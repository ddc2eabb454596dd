package services

import "context"

// PrincipalProvider возвращает логин текущего пользователя запроса.
type PrincipalProvider interface {
	CurrentLogin(ctx context.Context) (string, bool)
}
