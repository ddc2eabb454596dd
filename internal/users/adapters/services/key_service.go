package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"gousers/internal/users/domain/services"
	svc "gousers/internal/users/ports/services"
)

// ServiceKeys генерирует ключи активации и пароли на основе KSUID, ключи сброса - на основе UUIDv4.
type ServiceKeys struct{}

// NewKeys создает новый генератор ключей.
func NewKeys() svc.KeyService {
	return &ServiceKeys{}
}

// GenerateActivationKey возвращает 27-символьный случайный ключ.
func (s *ServiceKeys) GenerateActivationKey() (string, error) {
	return randomKSUID()
}

// GenerateResetKey возвращает случайный UUID.
func (s *ServiceKeys) GenerateResetKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("%w: %w", services.ErrKeyGenerationFailed, err)
	}
	return id.String(), nil
}

// GeneratePassword возвращает случайный пароль для учетных записей, созданных администратором.
func (s *ServiceKeys) GeneratePassword() (string, error) {
	return randomKSUID()
}

func randomKSUID() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("%w: %w", services.ErrKeyGenerationFailed, err)
	}
	return id.String(), nil
}
