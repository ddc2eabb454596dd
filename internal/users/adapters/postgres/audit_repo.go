package postgres

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"gousers/internal/users/domain/entities"
	"gousers/internal/users/ports/repositories"
	"gousers/pkg/logger"
)

const (
	errSaveAuditEvent    = "error saving audit event"
	errQueryAuditEvents  = "error querying audit events"
	errQueryAuditData    = "error querying audit event data"
	errCountAuditEvents  = "error counting audit events"
	errDeleteAuditEvents = "error deleting audit events"
)

const auditColumns = `e.event_id, e.principal, e.event_date, COALESCE(e.event_type, '')`

// AuditEventRepository реализует repositories.AuditEventRepository для Postgres.
// Границы диапазонов дат строгие.
type AuditEventRepository struct {
	pool PgxPoolInterface
}

// NewAuditEventRepository создает новый экземпляр репозитория аудита.
func NewAuditEventRepository(pool PgxPoolInterface) repositories.AuditEventRepository {
	return &AuditEventRepository{pool: pool}
}

func (r *AuditEventRepository) log(ctx context.Context, method string) *logger.Logger {
	return logger.Log(ctx).With(zap.String(repositoryAttr, "audit"), zap.String("method", method))
}

// Save сохраняет событие вместе с данными в одной транзакции.
func (r *AuditEventRepository) Save(ctx context.Context, event *entities.AuditEvent) (*entities.AuditEvent, error) {
	log := r.log(ctx, "Save")

	saved := *event
	err := inTransaction(ctx, r.pool, func(ctx context.Context) error {
		q := conn(ctx, r.pool)

		query := `
            INSERT INTO jhi_persistent_audit_event (principal, event_date, event_type)
            VALUES ($1, $2, NULLIF($3, ''))
            RETURNING event_id
        `
		if err := q.QueryRow(ctx, query, event.Principal, event.EventDate, event.EventType).Scan(&saved.ID); err != nil {
			return err
		}

		for _, name := range slices.Sorted(maps.Keys(event.Data)) {
			if _, err := q.Exec(ctx,
				`INSERT INTO jhi_persistent_audit_evt_data (event_id, name, value) VALUES ($1, $2, $3)`,
				saved.ID, name, event.Data[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error(ctx, errSaveAuditEvent, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errSaveAuditEvent, err)
	}

	return &saved, nil
}

func (r *AuditEventRepository) findMany(ctx context.Context, log *logger.Logger, query string, args ...any) ([]*entities.AuditEvent, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		log.Error(ctx, errQueryAuditEvents, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryAuditEvents, err)
	}
	defer rows.Close()

	events := make([]*entities.AuditEvent, 0)
	for rows.Next() {
		var e entities.AuditEvent
		if err := rows.Scan(&e.ID, &e.Principal, &e.EventDate, &e.EventType); err != nil {
			log.Error(ctx, errQueryAuditEvents, zap.Error(err))
			return nil, fmt.Errorf("%s: %w", errQueryAuditEvents, err)
		}
		e.Data = map[string]string{}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		log.Error(ctx, errQueryAuditEvents, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", errQueryAuditEvents, err)
	}

	if err := r.attachData(ctx, log, events); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *AuditEventRepository) attachData(ctx context.Context, log *logger.Logger, events []*entities.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(events))
	byID := make(map[int64]*entities.AuditEvent, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT event_id, name, COALESCE(value, '') FROM jhi_persistent_audit_evt_data WHERE event_id = ANY($1)`, ids)
	if err != nil {
		log.Error(ctx, errQueryAuditData, zap.Error(err))
		return fmt.Errorf("%s: %w", errQueryAuditData, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name, value string
		if err := rows.Scan(&id, &name, &value); err != nil {
			log.Error(ctx, errQueryAuditData, zap.Error(err))
			return fmt.Errorf("%s: %w", errQueryAuditData, err)
		}
		if e, ok := byID[id]; ok {
			e.Data[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		log.Error(ctx, errQueryAuditData, zap.Error(err))
		return fmt.Errorf("%s: %w", errQueryAuditData, err)
	}

	return nil
}

// FindByPrincipal возвращает события пользователя.
func (r *AuditEventRepository) FindByPrincipal(ctx context.Context, principal string) ([]*entities.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
        FROM jhi_persistent_audit_event e
        WHERE e.principal = $1
        ORDER BY e.event_date DESC, e.event_id DESC`

	return r.findMany(ctx, r.log(ctx, "FindByPrincipal"), query, principal)
}

// FindAllBetween возвращает страницу событий строго между from и to.
func (r *AuditEventRepository) FindAllBetween(ctx context.Context, from, to time.Time, page entities.Pageable) ([]*entities.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
        FROM jhi_persistent_audit_event e
        WHERE e.event_date > $1 AND e.event_date < $2
        ORDER BY e.event_date DESC, e.event_id DESC
        LIMIT $3 OFFSET $4`

	return r.findMany(ctx, r.log(ctx, "FindAllBetween"), query, from, to, page.Limit(), page.Offset())
}

// FindBefore возвращает события строго раньше before.
func (r *AuditEventRepository) FindBefore(ctx context.Context, before time.Time) ([]*entities.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
        FROM jhi_persistent_audit_event e
        WHERE e.event_date < $1
        ORDER BY e.event_date, e.event_id`

	return r.findMany(ctx, r.log(ctx, "FindBefore"), query, before)
}

// FindAll возвращает страницу всех событий.
func (r *AuditEventRepository) FindAll(ctx context.Context, page entities.Pageable) ([]*entities.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
        FROM jhi_persistent_audit_event e
        ORDER BY e.event_date DESC, e.event_id DESC
        LIMIT $1 OFFSET $2`

	return r.findMany(ctx, r.log(ctx, "FindAll"), query, page.Limit(), page.Offset())
}

// CountBetween считает события строго между from и to.
func (r *AuditEventRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	log := r.log(ctx, "CountBetween")

	query := `
        SELECT COUNT(DISTINCT e.event_id)
        FROM jhi_persistent_audit_event e
        WHERE e.event_date > $1 AND e.event_date < $2
    `

	var count int64
	if err := conn(ctx, r.pool).QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		log.Error(ctx, errCountAuditEvents, zap.Error(err))
		return 0, fmt.Errorf("%s: %w", errCountAuditEvents, err)
	}

	return count, nil
}

// DeleteBefore удаляет события строго раньше before вместе с их данными.
func (r *AuditEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	log := r.log(ctx, "DeleteBefore")

	var deleted int64
	err := inTransaction(ctx, r.pool, func(ctx context.Context) error {
		q := conn(ctx, r.pool)

		if _, err := q.Exec(ctx, `
            DELETE FROM jhi_persistent_audit_evt_data
            WHERE event_id IN (SELECT event_id FROM jhi_persistent_audit_event WHERE event_date < $1)`,
			before); err != nil {
			return err
		}

		result, err := q.Exec(ctx, `DELETE FROM jhi_persistent_audit_event WHERE event_date < $1`, before)
		if err != nil {
			return err
		}
		deleted = result.RowsAffected()
		return nil
	})
	if err != nil {
		log.Error(ctx, errDeleteAuditEvents, zap.Error(err))
		return 0, fmt.Errorf("%s: %w", errDeleteAuditEvents, err)
	}

	return deleted, nil
}
