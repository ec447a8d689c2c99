package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"icegrid/internal/rink/models"
	"icegrid/internal/sentinel"
)

// PostgresStore persists ice rinks in PostgreSQL.
//
// Error Contract:
//   - sentinel.ErrNotFound when no row matches
//   - wrapped driver errors otherwise
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ice rink store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const rinkColumns = `id, organization_id, name, location, latitude, longitude, dimensions, type,
	chiller_type, max_power_consumption, ssp_endpoint, ssp_api_key, ssp_status,
	last_communication, status, created_at, updated_at, created_by`

// Create inserts a new rink row.
func (s *PostgresStore) Create(ctx context.Context, rink *models.IceRink) error {
	query := `
		INSERT INTO ice_rinks (` + rinkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		rink.ID,
		rink.OrganizationID,
		rink.Name,
		rink.Location,
		rink.Latitude,
		rink.Longitude,
		[]byte(rink.Dimensions),
		rink.Type,
		rink.ChillerType,
		rink.MaxPowerConsumption,
		rink.SSPEndpoint,
		rink.SSPAPIKey,
		string(rink.SSPStatus),
		rink.LastCommunication,
		string(rink.Status),
		rink.CreatedAt,
		rink.UpdatedAt,
		rink.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create ice rink: %w", err)
	}
	return nil
}

// FindByID retrieves a rink by UUID.
func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.IceRink, error) {
	query := `SELECT ` + rinkColumns + ` FROM ice_rinks WHERE id = $1`
	rink, err := scanRink(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ice rink by id: %w", err)
	}
	return rink, nil
}

// List returns a page of rinks plus the total, optionally filtered to one
// organization. Clients are always filtered; staff may pass nil.
func (s *PostgresStore) List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]*models.IceRink, int64, error) {
	var (
		total int64
		rows  *sql.Rows
		err   error
	)
	if orgID != nil {
		if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ice_rinks WHERE organization_id = $1`, *orgID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count ice rinks: %w", err)
		}
		query := `SELECT ` + rinkColumns + ` FROM ice_rinks WHERE organization_id = $1 ORDER BY name LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, *orgID, limit, offset)
	} else {
		if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ice_rinks`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count ice rinks: %w", err)
		}
		query := `SELECT ` + rinkColumns + ` FROM ice_rinks ORDER BY name LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list ice rinks: %w", err)
	}
	defer rows.Close()

	var rinks []*models.IceRink
	for rows.Next() {
		rink, err := scanRink(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ice rink: %w", err)
		}
		rinks = append(rinks, rink)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ice rinks: %w", err)
	}
	return rinks, total, nil
}

// ListActiveWithCoordinates returns every active rink that has geographic
// coordinates, for the weather polling loop.
func (s *PostgresStore) ListActiveWithCoordinates(ctx context.Context) ([]*models.IceRink, error) {
	query := `SELECT ` + rinkColumns + ` FROM ice_rinks
		WHERE status = 'active' AND latitude IS NOT NULL AND longitude IS NOT NULL`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rinks with coordinates: %w", err)
	}
	defer rows.Close()

	var rinks []*models.IceRink
	for rows.Next() {
		rink, err := scanRink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ice rink: %w", err)
		}
		rinks = append(rinks, rink)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ice rinks: %w", err)
	}
	return rinks, nil
}

// Update rewrites the mutable columns. The organization reference is
// immutable and deliberately absent.
func (s *PostgresStore) Update(ctx context.Context, rink *models.IceRink) error {
	query := `
		UPDATE ice_rinks
		SET name = $2, location = $3, latitude = $4, longitude = $5, dimensions = $6,
		    type = $7, chiller_type = $8, max_power_consumption = $9,
		    ssp_endpoint = $10, ssp_api_key = $11, status = $12, updated_at = $13
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		rink.ID,
		rink.Name,
		rink.Location,
		rink.Latitude,
		rink.Longitude,
		[]byte(rink.Dimensions),
		rink.Type,
		rink.ChillerType,
		rink.MaxPowerConsumption,
		rink.SSPEndpoint,
		rink.SSPAPIKey,
		string(rink.Status),
		rink.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ice rink: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ice rink rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// MarkCommunication records a successful data exchange with the on-site
// control system.
func (s *PostgresStore) MarkCommunication(ctx context.Context, id uuid.UUID, status models.SSPStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ice_rinks SET ssp_status = $2, last_communication = $3 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("mark communication: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark communication rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rinkRow interface {
	Scan(dest ...any) error
}

func scanRink(row rinkRow) (*models.IceRink, error) {
	var rink models.IceRink
	var sspStatus, status string
	var dimensions []byte
	var lastComm sql.NullTime
	if err := row.Scan(
		&rink.ID,
		&rink.OrganizationID,
		&rink.Name,
		&rink.Location,
		&rink.Latitude,
		&rink.Longitude,
		&dimensions,
		&rink.Type,
		&rink.ChillerType,
		&rink.MaxPowerConsumption,
		&rink.SSPEndpoint,
		&rink.SSPAPIKey,
		&sspStatus,
		&lastComm,
		&status,
		&rink.CreatedAt,
		&rink.UpdatedAt,
		&rink.CreatedBy,
	); err != nil {
		return nil, err
	}
	rink.Dimensions = dimensions
	rink.SSPStatus = models.SSPStatus(sspStatus)
	rink.Status = models.Status(status)
	if lastComm.Valid {
		t := lastComm.Time
		rink.LastCommunication = &t
	}
	return &rink, nil
}
