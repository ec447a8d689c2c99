package service

import (
	"context"
	"errors"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/jwttoken"
	"icegrid/internal/sentinel"
)

// Refresh exchanges a live refresh token for a new access token bound to the
// SAME session, so revoking the session invalidates every access token ever
// derived from it. The session's expiry stays fixed at login time; when it
// passes, the whole login ends regardless of refresh activity. The refresh
// token is returned unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*authmodels.TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		s.logAuthFailure(ctx, decodeFailureReason(err), false)
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	// An access token must never pass where a refresh token is expected.
	if claims.TokenType != jwttoken.TypeRefresh {
		s.logAuthFailure(ctx, "token_type_mismatch", false, "type", string(claims.TokenType))
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

	// Re-read the user so a deactivated account stops refreshing and a role
	// change reaches the next access token.
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logAuthFailure(ctx, "user_not_found", false, "user_id", session.UserID.String())
			s.incrementAuthFailures()
			return nil, errInvalidToken()
		}
		s.logAuthFailure(ctx, "user_lookup_failed", true, "user_id", session.UserID.String(), "error", err)
		return nil, errStoreUnavailable(err, "failed to look up user")
	}
	if !user.Active() {
		s.logAuthFailure(ctx, "user_inactive", false, "user_id", user.ID.String())
		s.incrementAuthFailures()
		return nil, errInvalidToken()
	}

	accessToken, err := s.codec.Encode(jwttoken.TypeAccess, user.ID, string(user.Role), user.OrganizationID.String(), session.ID)
	if err != nil {
		return nil, errStoreUnavailable(err, "failed to mint access token")
	}

	s.logAudit(ctx, "token_refreshed",
		"user_id", user.ID.String(),
		"session_id", session.ID.String(),
	)
	s.incrementTokenRequests()

	return &authmodels.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.codec.AccessTTL(),
	}, nil
}

func decodeFailureReason(err error) string {
	switch {
	case errors.Is(err, jwttoken.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, jwttoken.ErrTokenMalformed):
		return "token_malformed"
	default:
		return "token_invalid"
	}
}
