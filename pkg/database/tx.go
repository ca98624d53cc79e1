package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxRunner executes a function within a database transaction. The transaction
// is committed when fn returns nil and rolled back otherwise; exactly one of
// the two happens on every exit path, including panics.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error
}

// SQLTxRunner implements TxRunner on a sqlx connection pool.
type SQLTxRunner struct {
	db *sqlx.DB
}

// NewTxRunner wraps db in a TxRunner.
func NewTxRunner(db *sqlx.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

// WithinTx begins a transaction, runs fn and commits or rolls back.
func (r *SQLTxRunner) WithinTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
