package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/jwttoken"
	"icegrid/internal/sentinel"
	usermodels "icegrid/internal/user/models"
)

// AuthenticateToken is the backend of the authorization gate: it verifies an
// access token and confirms its session is still alive before yielding a
// Principal. Claims alone never authorize a request; without the session
// check, logout would be cosmetic.
func (s *Service) AuthenticateToken(ctx context.Context, accessToken string) (*authmodels.Principal, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		s.logAuthFailure(ctx, decodeFailureReason(err), false)
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	// A refresh token must never authorize a resource request.
	if claims.TokenType != jwttoken.TypeAccess {
		s.logAuthFailure(ctx, "token_type_mismatch", false, "type", string(claims.TokenType))
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	userID, err := claims.UserID()
	if err != nil {
		s.logAuthFailure(ctx, "invalid_subject_claim", false)
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		s.logAuthFailure(ctx, "invalid_session_claim", false)
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logAuthFailure(ctx, "session_not_found", false, "session_id", sessionID.String())
			s.incrementAuthFailures()
			return nil, errInvalidToken()
		}
		s.logAuthFailure(ctx, "session_lookup_failed", true, "session_id", sessionID.String(), "error", err)
		return nil, errStoreUnavailable(err, "failed to look up session")
	}
	if !session.ActiveAt(s.now()) {
		s.logAuthFailure(ctx, "session_revoked_or_expired", false, "session_id", sessionID.String())
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	role := authmodels.Role(claims.Role)
	if !role.Valid() {
		s.logAuthFailure(ctx, "invalid_role_claim", false, "role", claims.Role)
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	orgID := uuid.Nil
	if claims.OrganizationID != "" {
		orgID, err = uuid.Parse(claims.OrganizationID)
		if err != nil {
			s.logAuthFailure(ctx, "invalid_organization_claim", false)
			s.incrementAuthFailures()
			return nil, errInvalidToken()
		}
	}

	return &authmodels.Principal{
		UserID:         userID,
		Role:           role,
		OrganizationID: orgID,
		SessionID:      sessionID,
	}, nil
}

// ListSessions returns all sessions (active and not) belonging to the user,
// so the owner can review device logins.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]*authmodels.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, errStoreUnavailable(err, "failed to list sessions")
	}
	return sessions, nil
}

// CurrentUser loads the account record behind an authenticated principal.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*usermodels.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errInvalidToken()
		}
		return nil, errStoreUnavailable(err, "failed to load user")
	}
	return user, nil
}
