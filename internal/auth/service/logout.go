package service

import (
	"context"

	"github.com/google/uuid"
)

// Logout revokes the session named by the access token. Idempotent from the
// caller's perspective: a malformed, expired or foreign token leaves nothing
// to protect and is not an error. Only a store fault propagates, so the
// client can retry a revocation that may not have landed.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.codec.DecodeSkipExpiry(accessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "logout with undecodable token", "reason", decodeFailureReason(err))
		return nil
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		return nil
	}

	changed, err := s.sessions.Revoke(ctx, sessionID)
	if err != nil {
		s.logAuthFailure(ctx, "session_revoke_failed", true, "session_id", sessionID.String(), "error", err)
		return errStoreUnavailable(err, "failed to revoke session")
	}

	if changed {
		s.logAudit(ctx, "session_revoked",
			"session_id", sessionID.String(),
			"user_id", claims.Subject,
		)
		s.decrementActiveSessions(1)
	}
	return nil
}

// LogoutAll revokes every active session of the user, ending all device
// logins at once. Returns the number of sessions revoked.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	revoked, err := s.sessions.RevokeByUser(ctx, userID)
	if err != nil {
		s.logAuthFailure(ctx, "logout_all_failed", true, "user_id", userID.String(), "error", err)
		return 0, errStoreUnavailable(err, "failed to revoke sessions")
	}

	if revoked > 0 {
		s.logAudit(ctx, "all_sessions_revoked",
			"user_id", userID.String(),
			"revoked_count", revoked,
		)
		s.decrementActiveSessions(revoked)
	}
	return revoked, nil
}
