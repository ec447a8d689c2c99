package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "icegrid/internal/auth/models"
	dErrors "icegrid/pkg/domain-errors"
)

type stubAuthenticator struct {
	principal *authmodels.Principal
	err       error
	gotToken  string
}

func (s *stubAuthenticator) AuthenticateToken(_ context.Context, token string) (*authmodels.Principal, error) {
	s.gotToken = token
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(t *testing.T, wantPrincipal *authmodels.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok, "principal must be in context")
		assert.Equal(t, wantPrincipal, p)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAdmitsValidToken(t *testing.T) {
	principal := &authmodels.Principal{
		UserID:    uuid.New(),
		Role:      authmodels.RoleOperator,
		SessionID: uuid.New(),
	}
	authn := &stubAuthenticator{principal: principal}

	handler := RequireAuth(authn, testLogger())(okHandler(t, principal))

	req := httptest.NewRequest(http.MethodGet, "/api/rinks", nil)
	req.Header.Set("Authorization", "Bearer some-access-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "some-access-token", authn.gotToken)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	handler := RequireAuth(&stubAuthenticator{}, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	for _, header := range []string{"", "Bearer ", "Basic dXNlcjpwYXNz", "some-access-token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/rinks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.JSONEq(t, `{"success":false,"error":"unauthorized","error_description":"missing or invalid authorization header"}`, rec.Body.String())
	}
}

func TestRequireAuthRejectionIsGeneric(t *testing.T) {
	// Whatever the internal reason, the body is the same.
	authn := &stubAuthenticator{err: dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")}
	handler := RequireAuth(authn, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rinks", nil)
	req.Header.Set("Authorization", "Bearer expired-or-revoked")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"unauthorized","error_description":"invalid or expired token"}`, rec.Body.String())
}

func TestRequireAuthSurfacesStoreFault(t *testing.T) {
	authn := &stubAuthenticator{err: dErrors.New(dErrors.CodeUnavailable, "failed to look up session")}
	handler := RequireAuth(authn, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rinks", nil)
	req.Header.Set("Authorization", "Bearer fine-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       authmodels.Role
		allowed    []authmodels.Role
		wantStatus int
	}{
		{"admin allowed", authmodels.RoleAdmin, []authmodels.Role{authmodels.RoleAdmin}, http.StatusOK},
		{"operator allowed among several", authmodels.RoleOperator, []authmodels.Role{authmodels.RoleAdmin, authmodels.RoleOperator}, http.StatusOK},
		{"client forbidden", authmodels.RoleClient, []authmodels.Role{authmodels.RoleAdmin, authmodels.RoleOperator}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(testLogger(), tt.allowed...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			principal := &authmodels.Principal{UserID: uuid.New(), Role: tt.role}
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req = req.WithContext(WithPrincipal(req.Context(), principal))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireRoleWithoutPrincipal(t *testing.T) {
	handler := RequireRole(testLogger(), authmodels.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
