// Package services содержит доменные ошибки, константы и DTO сервиса учетных записей.
package services

import (
	"errors"
	"time"
)

// Ошибки жизненного цикла пользователя.
var (
	ErrLoginAlreadyUsed  = errors.New("login name already used")
	ErrEmailAlreadyUsed  = errors.New("email is already in use")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrInvalidUser       = errors.New("invalid user")
	ErrInvalidAuditEvent = errors.New("invalid audit event")
)

// Служебные учетные записи и значения по умолчанию.
const (
	SystemAccount   = "system"
	AnonymousUser   = "anonymoususer"
	DefaultLanguage = "en"
)

// Временные окна жизненного цикла.
const (
	ResetKeyValidity      = 24 * time.Hour
	NotActivatedRetention = 3 * 24 * time.Hour
	AuditEventsRetention  = 30 * 24 * time.Hour
)
