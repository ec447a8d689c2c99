package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"icegrid/internal/sentinel"
	"icegrid/internal/ticket/models"
)

// Filter narrows a ticket listing. Nil fields are not applied.
type Filter struct {
	OrganizationID *uuid.UUID
	IceRinkID      *uuid.UUID
	Status         *models.Status
	Priority       *models.Priority
}

// PostgresStore persists service tickets and their comments in PostgreSQL.
//
// Error Contract:
//   - sentinel.ErrNotFound when no row matches
//   - sentinel.ErrConflict on duplicate ticket number
//   - wrapped driver errors otherwise
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ticket store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ticketColumns = `id, ticket_number, ice_rink_id, organization_id, created_by, assigned_to,
	priority, status, category, title, description, source, created_at, updated_at`

// Create inserts a new ticket.
func (s *PostgresStore) Create(ctx context.Context, t *models.Ticket) error {
	query := `
		INSERT INTO service_tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.Number,
		t.IceRinkID,
		t.OrganizationID,
		t.CreatedBy,
		t.AssignedTo,
		string(t.Priority),
		string(t.Status),
		t.Category,
		t.Title,
		t.Description,
		string(t.Source),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ticket number collision: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// FindByID retrieves a ticket by UUID.
func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM service_tickets WHERE id = $1`
	t, err := scanTicket(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ticket by id: %w", err)
	}
	return t, nil
}

// List returns a filtered page of tickets, newest first, plus the total.
func (s *PostgresStore) List(ctx context.Context, f Filter, limit, offset int) ([]*models.Ticket, int64, error) {
	where, args := buildFilter(f)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_tickets `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM service_tickets %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		ticketColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, total, nil
}

// Update rewrites the mutable ticket columns.
func (s *PostgresStore) Update(ctx context.Context, t *models.Ticket) error {
	query := `
		UPDATE service_tickets
		SET assigned_to = $2, priority = $3, status = $4, category = $5,
		    title = $6, description = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.AssignedTo,
		string(t.Priority),
		string(t.Status),
		t.Category,
		t.Title,
		t.Description,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ticket rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// AddComment appends a comment to a ticket.
func (s *PostgresStore) AddComment(ctx context.Context, c *models.Comment) error {
	query := `
		INSERT INTO ticket_comments (id, ticket_id, user_id, comment, is_internal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.TicketID, c.UserID, c.Comment, c.Internal, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add ticket comment: %w", err)
	}
	return nil
}

// ListComments returns the comments of one ticket, oldest first. Internal
// comments are excluded unless includeInternal is set.
func (s *PostgresStore) ListComments(ctx context.Context, ticketID uuid.UUID, includeInternal bool) ([]*models.Comment, error) {
	query := `SELECT id, ticket_id, user_id, comment, is_internal, created_at
		FROM ticket_comments WHERE ticket_id = $1`
	if !includeInternal {
		query += ` AND is_internal = FALSE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.UserID, &c.Comment, &c.Internal, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket comment: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket comments: %w", err)
	}
	return comments, nil
}

func buildFilter(f Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.OrganizationID != nil {
		add("organization_id = $%d", *f.OrganizationID)
	}
	if f.IceRinkID != nil {
		add("ice_rink_id = $%d", *f.IceRinkID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Priority != nil {
		add("priority = $%d", string(*f.Priority))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

type ticketRow interface {
	Scan(dest ...any) error
}

func scanTicket(row ticketRow) (*models.Ticket, error) {
	var t models.Ticket
	var priority, status, source string
	var createdBy, assignedTo uuid.NullUUID
	if err := row.Scan(
		&t.ID,
		&t.Number,
		&t.IceRinkID,
		&t.OrganizationID,
		&createdBy,
		&assignedTo,
		&priority,
		&status,
		&t.Category,
		&t.Title,
		&t.Description,
		&source,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Priority = models.Priority(priority)
	t.Status = models.Status(status)
	t.Source = models.Source(source)
	if createdBy.Valid {
		id := createdBy.UUID
		t.CreatedBy = &id
	}
	if assignedTo.Valid {
		id := assignedTo.UUID
		t.AssignedTo = &id
	}
	return &t, nil
}
