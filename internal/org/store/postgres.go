package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"icegrid/internal/org/models"
	"icegrid/internal/sentinel"
)

// PostgresStore persists organizations in PostgreSQL.
//
// Error Contract:
//   - sentinel.ErrNotFound when no row matches
//   - sentinel.ErrConflict on unique name violation
//   - wrapped driver errors otherwise
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed organization store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, name, type, address, contact_person, contact_email, contact_phone, tax_id, status, created_at, updated_at`

// Create inserts a new organization. The name is unique case-insensitively.
func (s *PostgresStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + orgColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		string(org.Type),
		org.Address,
		org.ContactPerson,
		org.ContactEmail,
		org.ContactPhone,
		org.TaxID,
		string(org.Status),
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization name must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// FindByID retrieves an organization by its UUID.
func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrg(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization by id: %w", err)
	}
	return org, nil
}

// List returns a page of organizations ordered by name, plus the total count.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*models.Organization, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}

	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate organizations: %w", err)
	}
	return orgs, total, nil
}

// Update rewrites the mutable columns of an existing organization.
func (s *PostgresStore) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, type = $3, address = $4, contact_person = $5,
		    contact_email = $6, contact_phone = $7, tax_id = $8,
		    status = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		string(org.Type),
		org.Address,
		org.ContactPerson,
		org.ContactEmail,
		org.ContactPhone,
		org.TaxID,
		string(org.Status),
		org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization name must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update organization: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update organization rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type orgRow interface {
	Scan(dest ...any) error
}

func scanOrg(row orgRow) (*models.Organization, error) {
	var org models.Organization
	var orgType, status string
	if err := row.Scan(
		&org.ID,
		&org.Name,
		&orgType,
		&org.Address,
		&org.ContactPerson,
		&org.ContactEmail,
		&org.ContactPhone,
		&org.TaxID,
		&status,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	org.Type = models.Type(orgType)
	org.Status = models.Status(status)
	return &org, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
