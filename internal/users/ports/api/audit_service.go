package api

import (
	"context"
	"time"

	"gousers/internal/users/domain/entities"
)

// AuditUseCase определяет операции над журналом аудита.
type AuditUseCase interface {
	FindAll(ctx context.Context, page entities.Pageable) ([]*entities.AuditEvent, error)

	FindByDates(ctx context.Context, from, to time.Time, page entities.Pageable) ([]*entities.AuditEvent, error)

	CountByDates(ctx context.Context, from, to time.Time) (int64, error)

	FindByPrincipal(ctx context.Context, principal string) ([]*entities.AuditEvent, error)

	Add(ctx context.Context, event *entities.AuditEvent) (*entities.AuditEvent, error)

	RemoveOldAuditEvents(ctx context.Context) (int64, error)
}
