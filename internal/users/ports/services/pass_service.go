// Package services определяет порты внешних сервисов: пароли, ключи, принципал, метрики.
package services

import "context"

// PasswordService хэширует и проверяет пароли.
type PasswordService interface {
	Hash(ctx context.Context, password string) (string, error)

	Verify(ctx context.Context, password, hash string) (bool, error)
}
