package postgres

import (
	"gousers/internal/users/ports/repositories"
)

// RepositoryFactory создает все необходимые репозитории для работы с PostgreSQL.
type RepositoryFactory struct {
	userRepo      repositories.UserRepository
	authorityRepo repositories.AuthorityRepository
	auditRepo     repositories.AuditEventRepository
	transactor    repositories.Transactor
}

// NewRepositoryFactory создает новую фабрику репозиториев.
func NewRepositoryFactory(pool PgxPoolInterface) *RepositoryFactory {
	return &RepositoryFactory{
		userRepo:      NewUserRepository(pool),
		authorityRepo: NewAuthorityRepository(pool),
		auditRepo:     NewAuditEventRepository(pool),
		transactor:    NewTransactor(pool),
	}
}

// UserRepository возвращает репозиторий пользователей.
func (f *RepositoryFactory) UserRepository() repositories.UserRepository {
	return f.userRepo
}

// AuthorityRepository возвращает репозиторий ролей.
func (f *RepositoryFactory) AuthorityRepository() repositories.AuthorityRepository {
	return f.authorityRepo
}

// AuditEventRepository возвращает репозиторий аудита.
func (f *RepositoryFactory) AuditEventRepository() repositories.AuditEventRepository {
	return f.auditRepo
}

// Transactor возвращает границу транзакций.
func (f *RepositoryFactory) Transactor() repositories.Transactor {
	return f.transactor
}
