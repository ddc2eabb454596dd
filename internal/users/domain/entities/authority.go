package entities

// Встроенные роли.
const (
	RoleAdmin     = "ROLE_ADMIN"
	RoleUser      = "ROLE_USER"
	RoleAnonymous = "ROLE_ANONYMOUS"
)

// Authority - именованная роль. Набор ролей фиксирован и задается миграциями.
type Authority struct {
	Name string
}
