package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"icegrid/internal/measurement/models"
	"icegrid/internal/sentinel"
)

// PostgresStore persists measurements in PostgreSQL. Measurements are
// append-only; the store exposes no update or delete.
//
// Error Contract:
//   - sentinel.ErrNotFound when Latest finds no sample
//   - wrapped driver errors otherwise
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed measurement store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const measurementColumns = `id, ice_rink_id, timestamp, ice_temperature, chiller_power, chiller_status,
	ambient_temperature, humidity, energy_consumption, data_source, quality_score, created_at`

// Insert appends one sample.
func (s *PostgresStore) Insert(ctx context.Context, m *models.Measurement) error {
	query := `
		INSERT INTO measurements (` + measurementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query, insertArgs(m)...)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// InsertBatch appends a batch of samples in one transaction. Either all rows
// land or none do.
func (s *PostgresStore) InsertBatch(ctx context.Context, ms []*models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO measurements (` + measurementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx, insertArgs(m)...); err != nil {
			return fmt.Errorf("insert measurement batch row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

// ListForRink returns a page of samples for one rink, newest first,
// optionally bounded by a time range, plus the total matching count.
func (s *PostgresStore) ListForRink(ctx context.Context, rinkID uuid.UUID, tr models.TimeRange, limit, offset int) ([]*models.Measurement, int64, error) {
	where, args := rangeFilter(rinkID, tr)

	var total int64
	countQuery := `SELECT COUNT(*) FROM measurements ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count measurements: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM measurements %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		measurementColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var out []*models.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate measurements: %w", err)
	}
	return out, total, nil
}

// LatestForRink returns the newest sample for a rink.
func (s *PostgresStore) LatestForRink(ctx context.Context, rinkID uuid.UUID) (*models.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements
		WHERE ice_rink_id = $1 ORDER BY timestamp DESC LIMIT 1`
	m, err := scanMeasurement(s.db.QueryRowContext(ctx, query, rinkID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest measurement: %w", err)
	}
	return m, nil
}

// StreamForRink walks every sample in the range oldest first, calling fn per
// row. Used by the CSV export so the result set never sits in memory whole.
func (s *PostgresStore) StreamForRink(ctx context.Context, rinkID uuid.UUID, tr models.TimeRange, fn func(*models.Measurement) error) error {
	where, args := rangeFilter(rinkID, tr)
	query := `SELECT ` + measurementColumns + ` FROM measurements ` + where + ` ORDER BY timestamp ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stream measurements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return fmt.Errorf("scan measurement: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate measurements: %w", err)
	}
	return nil
}

func rangeFilter(rinkID uuid.UUID, tr models.TimeRange) (string, []any) {
	clauses := []string{"ice_rink_id = $1"}
	args := []any{rinkID}
	if !tr.Start.IsZero() {
		args = append(args, tr.Start)
		clauses = append(clauses, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !tr.End.IsZero() {
		args = append(args, tr.End)
		clauses = append(clauses, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func insertArgs(m *models.Measurement) []any {
	return []any{
		m.ID,
		m.IceRinkID,
		m.Timestamp,
		m.IceTemperature,
		m.ChillerPower,
		m.ChillerStatus,
		m.AmbientTemperature,
		m.Humidity,
		m.EnergyConsumption,
		string(m.DataSource),
		m.QualityScore,
		m.CreatedAt,
	}
}

type measurementRow interface {
	Scan(dest ...any) error
}

func scanMeasurement(row measurementRow) (*models.Measurement, error) {
	var m models.Measurement
	var source string
	if err := row.Scan(
		&m.ID,
		&m.IceRinkID,
		&m.Timestamp,
		&m.IceTemperature,
		&m.ChillerPower,
		&m.ChillerStatus,
		&m.AmbientTemperature,
		&m.Humidity,
		&m.EnergyConsumption,
		&source,
		&m.QualityScore,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.DataSource = models.Source(source)
	return &m, nil
}
