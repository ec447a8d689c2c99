package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/sentinel"
	"icegrid/internal/user/models"
	dErrors "icegrid/pkg/domain-errors"
)

// Store defines the persistence operations the account service needs.
type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]*models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error
}

// Service implements account management. Password hashing happens here so
// plaintext never reaches a store.
type Service struct {
	store      Store
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

func New(store Store, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateInput carries a new account. Password arrives in plaintext exactly
// once, here.
type CreateInput struct {
	OrganizationID uuid.UUID
	Username       string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Role           authmodels.Role
}

// Create provisions an account with a freshly hashed password.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	if !in.Role.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := s.now().UTC()
	user := &models.User{
		ID:             uuid.New(),
		OrganizationID: in.OrganizationID,
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   string(hash),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           in.Role,
		Status:         models.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID.String(),
		"organization_id", user.OrganizationID.String(),
		"role", string(user.Role),
	)
	return user, nil
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

// List returns a page of accounts, optionally scoped to one organization.
func (s *Service) List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	users, total, err := s.store.List(ctx, orgID, limit, offset)
	if err != nil {
		return nil, 0, mapStoreError(err)
	}
	return users, total, nil
}

// UpdateInput carries the mutable profile fields. The organization reference
// is absent on purpose; accounts never move between tenants.
type UpdateInput struct {
	Email     string
	FirstName string
	LastName  string
	Role      authmodels.Role
	Status    models.Status
}

// Update rewrites the profile fields of an existing account.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.User, error) {
	if !in.Role.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid role")
	}
	if in.Status != models.StatusActive && in.Status != models.StatusInactive {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status")
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}

	user.Email = in.Email
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Role = in.Role
	user.Status = in.Status
	user.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

// ChangePassword rehashes and stores a new password for the account.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	if err := s.store.UpdatePassword(ctx, id, string(hash), s.now().UTC()); err != nil {
		return mapStoreError(err)
	}
	s.logger.InfoContext(ctx, "user password changed", "user_id", id.String())
	return nil
}

// Deactivate marks the account inactive. Existing sessions are revoked by
// the caller through the auth service; the next token check also fails once
// the account is inactive.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	user.Status = models.StatusInactive
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.InfoContext(ctx, "user deactivated", "user_id", id.String())
	return user, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "username or email already in use")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
}
