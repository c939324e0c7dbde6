package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
)

type PostgresMirror struct {
	db *sql.DB
}

func NewPostgresMirror(db *sql.DB) *PostgresMirror {
	return &PostgresMirror{db: db}
}

func (m *PostgresMirror) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte

	query := `
		SELECT value
		FROM mirror_entries
		WHERE scope = $1 AND key = $2`

	err := m.db.QueryRowContext(ctx, query, scope, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mirror entry: %w", err)
	}

	return value, nil
}

func (m *PostgresMirror) Put(ctx context.Context, scope, key string, value []byte) error {
	_, err := m.db.ExecContext(ctx, upsertEntry, scope, key, string(value))
	if err != nil {
		return fmt.Errorf("put mirror entry: %w", err)
	}
	return nil
}

func (m *PostgresMirror) Delete(ctx context.Context, scope, key string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM mirror_entries WHERE scope = $1 AND key = $2`,
		scope, key)
	if err != nil {
		return fmt.Errorf("delete mirror entry: %w", err)
	}
	return nil
}

func (m *PostgresMirror) Take(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte

	err := m.db.QueryRowContext(ctx,
		`DELETE FROM mirror_entries
		 WHERE scope = $1 AND key = $2
		 RETURNING value`,
		scope, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("take mirror entry: %w", err)
	}

	return value, nil
}

func (m *PostgresMirror) Mutate(ctx context.Context, scope, key string, fn func(current []byte) ([]byte, error)) error {
	return database.WithRetry(ctx, m.db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var current []byte
		err := tx.QueryRowContext(ctx,
			`SELECT value
			 FROM mirror_entries
			 WHERE scope = $1 AND key = $2
			 FOR UPDATE`,
			scope, key).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock mirror entry: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next == nil {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM mirror_entries WHERE scope = $1 AND key = $2`,
				scope, key); err != nil {
				return fmt.Errorf("delete mirror entry: %w", err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, upsertEntry, scope, key, string(next)); err != nil {
			return fmt.Errorf("put mirror entry: %w", err)
		}
		return nil
	})
}

const upsertEntry = `
	INSERT INTO mirror_entries (scope, key, value, updated_at)
	VALUES ($1, $2, $3::jsonb, NOW())
	ON CONFLICT (scope, key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
