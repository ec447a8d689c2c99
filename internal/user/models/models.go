package models

import (
	"time"

	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
)

// Status is the lifecycle state of a user account. Deactivation is the
// supported removal path; rows are never deleted by the auth flow.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User is an account belonging to exactly one organization. The organization
// reference is immutable once assigned; reassignment is an out-of-band admin
// operation, never part of normal updates.
type User struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Username       string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Role           authmodels.Role
	Status         Status
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Status == StatusActive
}
