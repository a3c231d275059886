package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
)

const stateSchema = `CREATE TABLE IF NOT EXISTS edupage_state (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

type stateRow struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresStateRepository persists snapshot values in the edupage_state table.
type PostgresStateRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresStateRepository constructs the repository.
func NewPostgresStateRepository(db *sqlx.DB) *PostgresStateRepository {
	return &PostgresStateRepository{db: db, now: time.Now}
}

// EnsureSchema creates the state table when missing.
func (r *PostgresStateRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, stateSchema); err != nil {
		return fmt.Errorf("create edupage_state: %w", err)
	}
	return nil
}

// Get fetches the value stored under key.
func (r *PostgresStateRepository) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT key, value, updated_at FROM edupage_state WHERE key = $1`
	var row stateRow
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrStateMiss
		}
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}
	return row.Value, nil
}

// Set inserts or replaces the value stored under key.
func (r *PostgresStateRepository) Set(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO edupage_state (key, value, updated_at)
VALUES (:key, :value, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	row := stateRow{Key: key, Value: value, UpdatedAt: r.now().UTC()}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert state %s: %w", key, err)
	}
	return nil
}

// Close closes the database handle.
func (r *PostgresStateRepository) Close() error {
	return r.db.Close()
}
