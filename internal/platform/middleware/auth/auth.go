package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/platform/middleware"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
)

// Authenticator verifies an access token end to end, including the liveness
// of the session it was issued under.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, accessToken string) (*authmodels.Principal, error)
}

type principalKey struct{}

// WithPrincipal stores an authenticated principal in the context.
func WithPrincipal(ctx context.Context, p *authmodels.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*authmodels.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*authmodels.Principal)
	return p, ok
}

// RequireAuth returns middleware that admits only requests carrying a live
// access token. The rejection body never reveals whether the token was
// malformed, expired, or tied to a revoked session.
func RequireAuth(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing bearer token",
					"request_id", middleware.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid authorization header"))
				return
			}

			principal, err := authn.AuthenticateToken(ctx, token)
			if err != nil {
				// Store faults surface as 503 so clients retry instead of
				// re-authenticating. Everything else is a generic 401.
				if dErrors.HasCode(err, dErrors.CodeUnavailable) {
					shared.WriteError(w, err)
					return
				}
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRole returns middleware that admits only principals holding one of
// the given roles. It must run after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...authmodels.Role) func(http.Handler) http.Handler {
	allowed := make(map[authmodels.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := PrincipalFromContext(ctx)
			if !ok {
				shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				logger.WarnContext(ctx, "forbidden access - insufficient role",
					"request_id", middleware.GetRequestID(ctx),
					"user_id", principal.UserID.String(),
					"role", string(principal.Role),
					"path", r.URL.Path,
				)
				shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
