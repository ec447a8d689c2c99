package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"icegrid/internal/auth/models"
	"icegrid/internal/sentinel"
)

// PostgresStore persists sessions in the user_sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, device, created_at, expires_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.Device, session.CreatedAt, session.ExpiresAt, session.Revoked,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, device, created_at, expires_at, revoked
		 FROM user_sessions WHERE id = $1`, sessionID,
	)
	var session models.Session
	err := row.Scan(&session.ID, &session.UserID, &session.Device,
		&session.CreatedAt, &session.ExpiresAt, &session.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, device, created_at, expires_at, revoked
		 FROM user_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.Device,
			&session.CreatedAt, &session.ExpiresAt, &session.Revoked); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// Revoke flips the revoked flag if the session exists and is still active.
// Idempotent by design: the WHERE clause makes the already-revoked and
// not-found cases no-ops, reported through the bool.
func (s *PostgresStore) Revoke(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`, sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) RevokeByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= $1`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(affected), nil
}
