package app

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/domain/services"
	"gousers/internal/users/ports/api"
	"gousers/internal/users/ports/repositories"
	svc "gousers/internal/users/ports/services"
	"gousers/pkg/logger"
)

const (
	methodAddAuditEvent        = "AddAuditEvent"
	methodFindAuditEvents      = "FindAuditEvents"
	methodRemoveOldAuditEvents = "RemoveOldAuditEvents"

	msgAuditEventSaved    = "audit event saved"
	msgAuditEventsRemoved = "old audit events removed"

	msgErrSaveAuditEvent    = "failed to save audit event"
	msgErrQueryAuditEvents  = "failed to query audit events"
	msgErrRemoveAuditEvents = "failed to remove old audit events"

	errCtxValidatingAuditEvent = "validating audit event"
	errCtxSavingAuditEvent     = "saving audit event"
	errCtxQueryingAuditEvents  = "querying audit events"
	errCtxRemovingAuditEvents  = "removing old audit events"
)

// AuditUseCaseImpl реализует интерфейс AuditUseCase.
type AuditUseCaseImpl struct {
	auditRepo repositories.AuditEventRepository
	metrics   svc.MetricsRecorder
	clock     clockwork.Clock
	retention time.Duration
}

// NewAuditUseCase создает сервис журнала аудита. retention <= 0 означает окно по умолчанию.
func NewAuditUseCase(
	auditRepo repositories.AuditEventRepository,
	metrics svc.MetricsRecorder,
	clock clockwork.Clock,
	retention time.Duration,
) api.AuditUseCase {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = services.AuditEventsRetention
	}
	return &AuditUseCaseImpl{
		auditRepo: auditRepo,
		metrics:   metrics,
		clock:     clock,
		retention: retention,
	}
}

// FindAll возвращает страницу всех событий.
func (a *AuditUseCaseImpl) FindAll(ctx context.Context, page entities.Pageable) ([]*entities.AuditEvent, error) {
	events, err := a.auditRepo.FindAll(ctx, page)
	return a.queried(ctx, events, err)
}

// FindByDates возвращает страницу событий строго между from и to.
func (a *AuditUseCaseImpl) FindByDates(ctx context.Context, from, to time.Time, page entities.Pageable) ([]*entities.AuditEvent, error) {
	events, err := a.auditRepo.FindAllBetween(ctx, from, to, page)
	return a.queried(ctx, events, err)
}

// CountByDates считает события строго между from и to.
func (a *AuditUseCaseImpl) CountByDates(ctx context.Context, from, to time.Time) (int64, error) {
	count, err := a.auditRepo.CountBetween(ctx, from, to)
	if err != nil {
		logger.Log(ctx).Error(ctx, msgErrQueryAuditEvents, zap.String("method", methodFindAuditEvents), zap.Error(err))
		return 0, fmt.Errorf("%s: %w", errCtxQueryingAuditEvents, err)
	}
	return count, nil
}

// FindByPrincipal возвращает события принципала.
func (a *AuditUseCaseImpl) FindByPrincipal(ctx context.Context, principal string) ([]*entities.AuditEvent, error) {
	events, err := a.auditRepo.FindByPrincipal(ctx, principal)
	return a.queried(ctx, events, err)
}

// Add проверяет и сохраняет событие. Пустая дата заменяется текущим временем.
func (a *AuditUseCaseImpl) Add(ctx context.Context, event *entities.AuditEvent) (*entities.AuditEvent, error) {
	log := logger.Log(ctx).With(zap.String("method", methodAddAuditEvent))

	if err := validateAuditEvent(event); err != nil {
		log.Debug(ctx, errCtxValidatingAuditEvent, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxValidatingAuditEvent, err)
	}

	toSave := *event
	if toSave.EventDate.IsZero() {
		toSave.EventDate = a.clock.Now()
	}

	saved, err := a.auditRepo.Save(ctx, &toSave)
	if err != nil {
		log.Error(ctx, msgErrSaveAuditEvent, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxSavingAuditEvent, err)
	}

	log.Debug(ctx, msgAuditEventSaved, zap.Int64("id", saved.ID), zap.String("type", saved.EventType))
	return saved, nil
}

// RemoveOldAuditEvents удаляет события старше окна хранения.
func (a *AuditUseCaseImpl) RemoveOldAuditEvents(ctx context.Context) (int64, error) {
	before := a.clock.Now().Add(-a.retention)
	log := logger.Log(ctx).With(zap.String("method", methodRemoveOldAuditEvents), zap.Time("before", before))

	removed, err := a.auditRepo.DeleteBefore(ctx, before)
	if err != nil {
		log.Error(ctx, msgErrRemoveAuditEvents, zap.Error(err))
		return 0, fmt.Errorf("%s: %w", errCtxRemovingAuditEvents, err)
	}

	a.metrics.AuditEventsRemoved(removed)
	log.Info(ctx, msgAuditEventsRemoved, zap.Int64("removed", removed))
	return removed, nil
}

func (a *AuditUseCaseImpl) queried(ctx context.Context, events []*entities.AuditEvent, err error) ([]*entities.AuditEvent, error) {
	if err != nil {
		logger.Log(ctx).Error(ctx, msgErrQueryAuditEvents, zap.String("method", methodFindAuditEvents), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errCtxQueryingAuditEvents, err)
	}
	return events, nil
}

func validateAuditEvent(event *entities.AuditEvent) error {
	if event == nil {
		return services.ErrInvalidAuditEvent
	}
	err := validation.Errors{
		"principal":  validation.Validate(event.Principal, validation.Required, validation.Length(1, 50)),
		"event_type": validation.Validate(event.EventType, validation.Required, validation.Length(1, 255)),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %w", services.ErrInvalidAuditEvent, err)
	}
	return nil
}
