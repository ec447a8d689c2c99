package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"icegrid/internal/sentinel"
	"icegrid/internal/system/models"
)

// PostgresStore persists system configuration entries in PostgreSQL.
//
// Error Contract:
//   - sentinel.ErrNotFound when no row matches
//   - wrapped driver errors otherwise
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed system store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const configColumns = `id, key, value, description, category, is_encrypted, updated_at, updated_by`

// Set inserts or overwrites the entry for a key.
func (s *PostgresStore) Set(ctx context.Context, entry *models.ConfigEntry) error {
	query := `
		INSERT INTO system_config (` + configColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = EXCLUDED.description,
		    category = EXCLUDED.category,
		    is_encrypted = EXCLUDED.is_encrypted,
		    updated_at = EXCLUDED.updated_at,
		    updated_by = EXCLUDED.updated_by
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Key, entry.Value, entry.Description, entry.Category,
		entry.Encrypted, entry.UpdatedAt, entry.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("set config entry: %w", err)
	}
	return nil
}

// FindByKey retrieves one entry.
func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*models.ConfigEntry, error) {
	query := `SELECT ` + configColumns + ` FROM system_config WHERE key = $1`
	entry, err := scanConfig(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find config entry: %w", err)
	}
	return entry, nil
}

// List returns entries, optionally filtered by category, ordered by key.
func (s *PostgresStore) List(ctx context.Context, category string) ([]*models.ConfigEntry, error) {
	query := `SELECT ` + configColumns + ` FROM system_config`
	args := []any{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list config entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ConfigEntry
	for rows.Next() {
		entry, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config entries: %w", err)
	}
	return entries, nil
}

// Delete removes an entry by key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM system_config WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete config entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete config entry rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CountConnectedSSP counts rinks currently reporting through their SSP link.
func (s *PostgresStore) CountConnectedSSP(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ice_rinks WHERE ssp_status = 'connected'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count connected rinks: %w", err)
	}
	return n, nil
}

type configRow interface {
	Scan(dest ...any) error
}

func scanConfig(row configRow) (*models.ConfigEntry, error) {
	var entry models.ConfigEntry
	var updatedBy uuid.NullUUID
	if err := row.Scan(
		&entry.ID, &entry.Key, &entry.Value, &entry.Description, &entry.Category,
		&entry.Encrypted, &entry.UpdatedAt, &updatedBy,
	); err != nil {
		return nil, err
	}
	if updatedBy.Valid {
		id := updatedBy.UUID
		entry.UpdatedBy = &id
	}
	return &entry, nil
}
