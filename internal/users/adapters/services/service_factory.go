// Package services содержит реализации портов хэширования паролей и генерации ключей.
package services

import (
	"gousers/internal/users/ports/services"
)

// ServiceFactory создает сервисы работы с паролями и ключами.
type ServiceFactory struct {
	passwordService services.PasswordService
	keyService      services.KeyService
}

// NewServiceFactory создает новую фабрику сервисов.
func NewServiceFactory(bcryptCost int) *ServiceFactory {
	return &ServiceFactory{
		passwordService: NewBcrypt(bcryptCost),
		keyService:      NewKeys(),
	}
}

// PasswordService возвращает сервис для работы с паролями.
func (f *ServiceFactory) PasswordService() services.PasswordService {
	return f.passwordService
}

// KeyService возвращает генератор ключей.
func (f *ServiceFactory) KeyService() services.KeyService {
	return f.keyService
}
