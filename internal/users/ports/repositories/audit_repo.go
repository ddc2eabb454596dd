package repositories

import (
	"context"
	"time"

	"gousers/internal/users/domain/entities"
)

// AuditEventRepository - журнал событий аудита. Границы диапазонов строгие.
type AuditEventRepository interface {
	Save(ctx context.Context, event *entities.AuditEvent) (*entities.AuditEvent, error)

	FindByPrincipal(ctx context.Context, principal string) ([]*entities.AuditEvent, error)

	FindAllBetween(ctx context.Context, from, to time.Time, page entities.Pageable) ([]*entities.AuditEvent, error)

	FindBefore(ctx context.Context, before time.Time) ([]*entities.AuditEvent, error)

	FindAll(ctx context.Context, page entities.Pageable) ([]*entities.AuditEvent, error)

	CountBetween(ctx context.Context, from, to time.Time) (int64, error)

	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
