// Package entities содержит сущности домена учетных записей.
package entities

import (
	"errors"
	"time"
)

// Ошибки домена пользователя.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAuthorityNotFound = errors.New("authority not found")
)

// User представляет учетную запись пользователя.
// ID == 0 означает, что пользователь еще не сохранен.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	FirstName    string
	LastName     string
	Email        string
	ImageURL     string
	LangKey      string
	Activated    bool

	ActivationKey *string
	ResetKey      *string
	ResetDate     *time.Time

	Authorities []string

	CreatedBy        string
	CreatedDate      time.Time
	LastModifiedBy   string
	LastModifiedDate *time.Time
}

// IsPersisted сообщает, назначен ли пользователю идентификатор хранилищем.
func (u *User) IsPersisted() bool {
	return u != nil && u.ID != 0
}

// HasAuthority проверяет наличие роли у пользователя.
func (u *User) HasAuthority(name string) bool {
	for _, a := range u.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// AddAuthority добавляет роль, если ее еще нет.
func (u *User) AddAuthority(name string) {
	if !u.HasAuthority(name) {
		u.Authorities = append(u.Authorities, name)
	}
}

// WithoutCredentials возвращает копию без хэша пароля и одноразовых ключей.
func (u *User) WithoutCredentials() *User {
	clone := *u
	clone.PasswordHash = ""
	clone.ActivationKey = nil
	clone.ResetKey = nil
	clone.ResetDate = nil
	clone.Authorities = append([]string{}, u.Authorities...)
	return &clone
}
