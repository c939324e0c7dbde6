package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/go-storefront/internal/retry"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
	}
}

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// WithRetry reruns the whole transaction on serialization failures, deadlocks
// and lock timeouts. Permanent errors are returned after the first attempt.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	policy := retry.Policy{
		MaxRetries:     opts.MaxRetries,
		InitialBackoff: 50 * time.Millisecond,
	}

	return retry.Do(ctx, policy, IsRetryable, func(ctx context.Context) error {
		return WithTransaction(ctx, db, opts, fn)
	})
}
