package postgresql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/database"
)

type txContextKey struct{}

// TxBeginner starts transactions. *database.DB satisfies it. A nil beginner
// runs the function without a transaction; service tests backed by in-memory
// repositories rely on that.
type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// WithTransaction executes fn inside a database transaction. The context passed
// to fn carries the transaction, so repository calls made with it run on the
// same transaction via GetQuerier. Nested calls reuse the outer transaction.
func WithTransaction(ctx context.Context, db TxBeginner, fn func(ctx context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	if _, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback failed during panic recovery", "error", rbErr)
			}
			panic(p)
		}
	}()

	txCtx := context.WithValue(ctx, txContextKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetQuerier returns the context's transaction when present, the base querier
// otherwise. Repositories call this so the same method works standalone and
// inside WithTransaction.
func GetQuerier(ctx context.Context, base database.Querier) database.Querier {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return base
}
