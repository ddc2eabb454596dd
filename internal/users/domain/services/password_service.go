package services

import "errors"

// Ошибки работы с паролями.
var (
	ErrHashingFailed         = errors.New("failed to hash password")
	ErrInvalidPasswordLength = errors.New("password length is out of range")
	ErrKeyGenerationFailed   = errors.New("failed to generate random key")
)

// Ограничения длины пароля. bcrypt учитывает не более 72 байт.
const (
	MinPasswordLength = 4
	MaxPasswordLength = 72
)
