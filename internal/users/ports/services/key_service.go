package services

// KeyService генерирует случайные строки для ключей и паролей.
type KeyService interface {
	GenerateActivationKey() (string, error)

	GenerateResetKey() (string, error)

	GeneratePassword() (string, error)
}
