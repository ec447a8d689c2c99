package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/auth/device"
	"icegrid/internal/jwttoken"
	"icegrid/internal/sentinel"
)

// dummyHash is a valid bcrypt digest compared against when the username does
// not resolve, so the unknown-user path costs the same as a wrong password.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Login verifies credentials, creates exactly one session and mints the
// access/refresh pair bound to it. Unknown username, wrong password and
// inactive account all collapse into the same error.
func (s *Service) Login(ctx context.Context, username, password, userAgent string) (*authmodels.TokenPair, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Equalize timing with the wrong-password path.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.logAuthFailure(ctx, "unknown_username", false)
			s.incrementAuthFailures()
			return nil, errInvalidCredentials()
		}
		s.logAuthFailure(ctx, "user_lookup_failed", true, "error", err)
		return nil, errStoreUnavailable(err, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logAuthFailure(ctx, "password_mismatch", false, "user_id", user.ID.String())
		s.incrementAuthFailures()
		return nil, errInvalidCredentials()
	}

	if !user.Active() {
		s.logAuthFailure(ctx, "user_inactive", false, "user_id", user.ID.String())
		s.incrementAuthFailures()
		return nil, errInvalidCredentials()
	}

	now := s.now()
	session := &authmodels.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Device:    device.Label(userAgent),
		CreatedAt: now,
		// The session backs every refresh of this login, so it lives as long
		// as the refresh token.
		ExpiresAt: now.Add(s.codec.RefreshTTL()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logAuthFailure(ctx, "session_create_failed", true, "user_id", user.ID.String(), "error", err)
		return nil, errStoreUnavailable(err, "failed to create session")
	}

	orgID := user.OrganizationID.String()
	accessToken, err := s.codec.Encode(jwttoken.TypeAccess, user.ID, string(user.Role), orgID, session.ID)
	if err != nil {
		return nil, errStoreUnavailable(err, "failed to mint access token")
	}
	refreshToken, err := s.codec.Encode(jwttoken.TypeRefresh, user.ID, string(user.Role), orgID, session.ID)
	if err != nil {
		return nil, errStoreUnavailable(err, "failed to mint refresh token")
	}

	// Best-effort: a failed last-login stamp must not fail the login.
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login",
			"user_id", user.ID.String(),
			"error", err,
		)
	}

	s.logAudit(ctx, "user_logged_in",
		"user_id", user.ID.String(),
		"session_id", session.ID.String(),
		"device", session.Device,
	)
	s.incrementLogins()
	s.incrementTokenRequests()

	return &authmodels.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.codec.AccessTTL(),
	}, nil
}
