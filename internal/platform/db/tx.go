package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepeatableRead aborts a conflicting transaction with SQLSTATE 40001
// instead of blocking; deadlocks surface as 40P01. Both resolve on a clean
// re-run, so WithTx retries fn a bounded number of times. fn must therefore
// be safe to re-execute from the top.
const maxTxAttempts = 3

// WithTx executes fn within a transaction at the RepeatableRead isolation
// level, retrying serialization conflicts. The transaction is rolled back
// when fn returns an error or panics.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return withRetry(func() error {
		return runTx(ctx, pool, fn)
	})
}

func withRetry(run func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = run()
		if err == nil || !SerializationFailure(err) {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// SerializationFailure reports whether err is a conflict that clears on
// re-running the transaction.
func SerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
