// Package postgres реализует хранилища сервиса учетных записей поверх pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"gousers/internal/users/ports/repositories"
	"gousers/pkg/logger"
)

// PgxPoolInterface - подмножество pgxpool.Pool, используемое репозиториями.
type PgxPoolInterface interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type querier interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Константы для сообщений об ошибках транзакций.
const (
	ErrBeginTx    = "failed to begin transaction"
	ErrCommitTx   = "failed to commit transaction"
	ErrRollbackTx = "failed to rollback transaction"
)

type txKey struct{}

// txState - открытая транзакция и действия, отложенные до ее фиксации.
type txState struct {
	tx          pgx.Tx
	afterCommit []func(ctx context.Context)
}

func stateFrom(ctx context.Context) (*txState, bool) {
	state, ok := ctx.Value(txKey{}).(*txState)
	return state, ok
}

// conn возвращает транзакцию из контекста, если она есть, иначе пул.
func conn(ctx context.Context, pool PgxPoolInterface) querier {
	if state, ok := stateFrom(ctx); ok {
		return state.tx
	}
	return pool
}

// inTransaction выполняет fn в транзакции. Если в контексте уже есть транзакция, fn к ней присоединяется.
func inTransaction(ctx context.Context, pool PgxPoolInterface, fn func(ctx context.Context) error) (err error) {
	if _, ok := stateFrom(ctx); ok {
		return fn(ctx)
	}

	log := logger.Log(ctx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Error(ctx, ErrBeginTx, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrBeginTx, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	state := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error(ctx, ErrRollbackTx, zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error(ctx, ErrCommitTx, zap.Error(err))
		return fmt.Errorf("%s: %w", ErrCommitTx, err)
	}

	for _, hook := range state.afterCommit {
		hook(ctx)
	}

	return nil
}

// Transactor реализует repositories.Transactor для Postgres.
type Transactor struct {
	pool PgxPoolInterface
}

// NewTransactor создает новый Transactor.
func NewTransactor(pool PgxPoolInterface) repositories.Transactor {
	return &Transactor{pool: pool}
}

// WithinTransaction выполняет fn в транзакции.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return inTransaction(ctx, t.pool, fn)
}

// AfterCommit откладывает fn до фиксации внешней транзакции. При откате fn не вызывается.
// Вне транзакции fn выполняется сразу.
func (t *Transactor) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if state, ok := stateFrom(ctx); ok {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn(ctx)
}
