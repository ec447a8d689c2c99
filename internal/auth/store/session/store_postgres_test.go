package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icegrid/internal/sentinel"
)

func TestPostgresStoreFindByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	sessionID := uuid.New()
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id, device, created_at, expires_at, revoked`).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device", "created_at", "expires_at", "revoked"}).
			AddRow(sessionID, userID, "chrome on mac", now, now.Add(time.Hour), false))

	session, err := store.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, session.ID)
	assert.Equal(t, userID, session.UserID)
	assert.True(t, session.ActiveAt(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	sessionID := uuid.New()

	mock.ExpectQuery(`SELECT id, user_id, device, created_at, expires_at, revoked`).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device", "created_at", "expires_at", "revoked"}))

	_, err = store.FindByID(context.Background(), sessionID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRevokeReportsChange(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	sessionID := uuid.New()

	mock.ExpectExec(`UPDATE user_sessions SET revoked = TRUE`).
		WithArgs(sessionID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := store.Revoke(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, changed)

	// Already revoked: zero rows affected, still no error.
	mock.ExpectExec(`UPDATE user_sessions SET revoked = TRUE`).
		WithArgs(sessionID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err = store.Revoke(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM user_sessions WHERE expires_at`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := store.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
