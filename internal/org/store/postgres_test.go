package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icegrid/internal/org/models"
	"icegrid/internal/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func orgRows(org *models.Organization) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "type", "address", "contact_person", "contact_email",
		"contact_phone", "tax_id", "status", "created_at", "updated_at",
	}).AddRow(
		org.ID, org.Name, string(org.Type), org.Address, org.ContactPerson,
		org.ContactEmail, org.ContactPhone, org.TaxID, string(org.Status),
		org.CreatedAt, org.UpdatedAt,
	)
}

func testOrg() *models.Organization {
	now := time.Now().UTC()
	return &models.Organization{
		ID:            uuid.New(),
		Name:          "Arena Nord",
		Type:          models.TypeClient,
		ContactEmail:  "facilities@arenanord.example",
		ContactPerson: "J. Berg",
		Status:        models.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgresStoreFindByID(t *testing.T) {
	store, mock := newMockStore(t)
	org := testOrg()

	mock.ExpectQuery(`SELECT id, name, type, address, contact_person`).
		WithArgs(org.ID).
		WillReturnRows(orgRows(org))

	got, err := store.FindByID(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.Name, got.Name)
	assert.Equal(t, models.TypeClient, got.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreFindByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, name, type, address, contact_person`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateDuplicateName(t *testing.T) {
	store, mock := newMockStore(t)
	org := testOrg()

	mock.ExpectExec(`INSERT INTO organizations`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_name_key"})

	err := store.Create(context.Background(), org)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)
	org := testOrg()

	mock.ExpectExec(`UPDATE organizations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), org)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListReturnsPageAndTotal(t *testing.T) {
	store, mock := newMockStore(t)
	first := testOrg()
	second := testOrg()
	second.Name = "Arena Syd"

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT id, name, type, address, contact_person`).
		WithArgs(2, 0).
		WillReturnRows(orgRows(first).AddRow(
			second.ID, second.Name, string(second.Type), second.Address,
			second.ContactPerson, second.ContactEmail, second.ContactPhone,
			second.TaxID, string(second.Status), second.CreatedAt, second.UpdatedAt,
		))

	orgs, total, err := store.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Arena Syd", orgs[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
