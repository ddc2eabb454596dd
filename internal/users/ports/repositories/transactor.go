package repositories

import "context"

// Transactor выполняет fn в одной транзакции хранилища.
// Вложенные вызовы присоединяются к внешней транзакции.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit выполняет fn после фиксации внешней транзакции, а вне транзакции сразу.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}
