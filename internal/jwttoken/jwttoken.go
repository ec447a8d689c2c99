// Package jwttoken is the token codec: it turns a typed claim set into a
// signed HS256 string and back. Decode failures are distinguishable so the
// auth service can react to expiry differently from tampering, even though
// the HTTP layer collapses them into one generic 401.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrTokenExpired means the signature checked out but exp is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed means a structurally broken token or one missing a
	// required claim (sub, type, jti).
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid covers bad signatures and wrong signing algorithms.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the full typed claim set carried by every icegrid token. The
// session identifier rides in the registered jti claim; an access token and
// its paired refresh token always share it.
type Claims struct {
	Role           string    `json:"role"`
	OrganizationID string    `json:"organization_id,omitempty"`
	TokenType      TokenType `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SessionID parses the jti claim binding this token to a server-side session.
func (c *Claims) SessionID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

// Codec encodes and decodes tokens with a fixed key and per-type lifetimes.
// It is pure over its configuration: no I/O, safe for concurrent use.
type Codec struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// New constructs a Codec.
func New(signingKey string, accessTTL, refreshTTL time.Duration, opts ...Option) *Codec {
	c := &Codec{
		signingKey: []byte(signingKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Encode mints a signed token of the given type bound to sessionID.
func (c *Codec) Encode(tokenType TokenType, userID uuid.UUID, role, organizationID string, sessionID uuid.UUID) (string, error) {
	ttl := c.accessTTL
	if tokenType == TypeRefresh {
		ttl = c.refreshTTL
	}
	now := c.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:           role,
		OrganizationID: organizationID,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(c.signingKey)
}

// Decode verifies signature, algorithm and expiry, then checks the required
// claims are present. Failure modes map to the package sentinel errors.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims, err := c.parse(tokenString, false)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// DecodeSkipExpiry verifies signature and algorithm but tolerates an expired
// token. Used only on logout, where an expired access token must still yield
// its session id so the session can be revoked.
func (c *Codec) DecodeSkipExpiry(tokenString string) (*Claims, error) {
	return c.parse(tokenString, true)
}

func (c *Codec) parse(tokenString string, skipExpiry bool) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}

	claims := new(Claims)
	opts := []jwt.ParserOption{jwt.WithTimeFunc(c.now)}
	if skipExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrTokenInvalid
		}
		return c.signingKey, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != TypeAccess && claims.TokenType != TypeRefresh {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
