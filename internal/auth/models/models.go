package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role carried by users and tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleClient   Role = "client"
)

// Valid reports whether the role is one of the enumerated set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleClient:
		return true
	}
	return false
}

// Session is one authenticated login. Its id doubles as the jti claim of the
// token pair minted for it, and it outlives the access token so a single
// session backs every refresh. Revoked flips true exactly once and never back.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// ActiveAt reports whether the session can still back a request at the given
// instant: it must not be revoked and must not have passed its expiry.
func (s *Session) ActiveAt(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// Principal is the verified caller identity produced by the authorization
// gate. Handlers must only read it from the request context.
type Principal struct {
	UserID         uuid.UUID
	Role           Role
	OrganizationID uuid.UUID
	SessionID      uuid.UUID
}

// CanAccessOrg enforces tenant isolation: admin and operator see every
// organization, a client only its own.
func (p Principal) CanAccessOrg(orgID uuid.UUID) bool {
	switch p.Role {
	case RoleAdmin, RoleOperator:
		return true
	default:
		return p.OrganizationID != uuid.Nil && p.OrganizationID == orgID
	}
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
