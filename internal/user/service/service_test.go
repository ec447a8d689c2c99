package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/sentinel"
	"icegrid/internal/user/models"
	dErrors "icegrid/pkg/domain-errors"
)

// stubStore is an in-memory Store for exercising the service logic.
type stubStore struct {
	users     map[uuid.UUID]*models.User
	createErr error
}

func newStubStore() *stubStore {
	return &stubStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *stubStore) Create(_ context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.users[user.ID] = user
	return nil
}

func (s *stubStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *stubStore) List(_ context.Context, _ *uuid.UUID, _, _ int) ([]*models.User, int64, error) {
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (s *stubStore) Update(_ context.Context, user *models.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *stubStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string, _ time.Time) error {
	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.PasswordHash = hash
	return nil
}

func newService(store Store) *Service {
	return New(store, bcrypt.MinCost, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateHashesPassword(t *testing.T) {
	store := newStubStore()
	svc := newService(store)

	user, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "plaintext-password",
		FirstName:      "Alice",
		LastName:       "Nilsson",
		Role:           authmodels.RoleOperator,
	})
	require.NoError(t, err)

	assert.NotEqual(t, "plaintext-password", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("plaintext-password")))
	assert.Equal(t, models.StatusActive, user.Status)

	stored := store.users[user.ID]
	require.NotNil(t, stored)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc := newService(newStubStore())

	_, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "bob",
		Email:          "bob@example.com",
		Password:       "plaintext-password",
		Role:           authmodels.Role("superuser"),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCreateMapsConflict(t *testing.T) {
	store := newStubStore()
	store.createErr = sentinel.ErrConflict
	svc := newService(store)

	_, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "plaintext-password",
		Role:           authmodels.RoleClient,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCreateMapsStoreFault(t *testing.T) {
	store := newStubStore()
	store.createErr = errors.New("connection reset")
	svc := newService(store)

	_, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "plaintext-password",
		Role:           authmodels.RoleClient,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestUpdateKeepsOrganization(t *testing.T) {
	store := newStubStore()
	svc := newService(store)

	created, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "plaintext-password",
		Role:           authmodels.RoleClient,
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{
		Email:     "new@example.com",
		FirstName: "Alice",
		LastName:  "Larsson",
		Role:      authmodels.RoleOperator,
		Status:    models.StatusActive,
	})
	require.NoError(t, err)

	assert.Equal(t, created.OrganizationID, updated.OrganizationID)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, authmodels.RoleOperator, updated.Role)
}

func TestChangePasswordReplacesHash(t *testing.T) {
	store := newStubStore()
	svc := newService(store)

	created, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "old-password",
		Role:           authmodels.RoleClient,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(context.Background(), created.ID, "new-password"))

	stored := store.users[created.ID]
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("old-password")))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-password")))
}

func TestDeactivate(t *testing.T) {
	store := newStubStore()
	svc := newService(store)

	created, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: uuid.New(),
		Username:       "alice",
		Email:          "alice@example.com",
		Password:       "plaintext-password",
		Role:           authmodels.RoleClient,
	})
	require.NoError(t, err)

	user, err := svc.Deactivate(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, user.Status)
	assert.False(t, user.Active())
}

func TestDeactivateUnknownUser(t *testing.T) {
	svc := newService(newStubStore())

	_, err := svc.Deactivate(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
