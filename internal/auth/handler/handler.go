package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/platform/middleware"
	authmw "icegrid/internal/platform/middleware/auth"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	usermodels "icegrid/internal/user/models"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Service defines the interface for authentication operations.
type Service interface {
	Login(ctx context.Context, username, password, userAgent string) (*authmodels.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*authmodels.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*authmodels.Session, error)
	CurrentUser(ctx context.Context, userID uuid.UUID) (*usermodels.User, error)
}

// Handler handles the authentication endpoints: login, refresh, logout,
// session listing, and the current-user probe.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

// New creates a new auth Handler with the given service and logger.
func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// RegisterLogin registers the login route. It is kept apart from the other
// public routes so the router can throttle credential guessing without
// slowing down token refresh.
func (h *Handler) RegisterLogin(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// Register registers the remaining public auth routes. Logout stays outside
// the auth gate on purpose: it reads the presented token itself and must
// succeed even when that token is expired or its session already revoked.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/logout", h.HandleLogout)
}

// RegisterProtected registers the routes that require an authenticated
// principal. The parent router applies the auth middleware.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/auth/logout-all", h.HandleLogoutAll)
	r.Get("/auth/sessions", h.HandleListSessions)
	r.Get("/auth/me", h.HandleMe)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"required,min=1,max=200"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newTokenPairResponse(pair *authmodels.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
	}
}

// HandleLogin implements POST /auth/login.
//
// Input: { "username": "...", "password": "..." }
// Output: { "access_token": "...", "refresh_token": "...", "token_type": "bearer", "expires_in": 1800 }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req loginRequest
	if err := json.Decode(r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}

	strutil.TrimStrings(&req.Username)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	pair, err := h.auth.Login(ctx, req.Username, req.Password, r.UserAgent())
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteData(w, http.StatusOK, newTokenPairResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// HandleRefresh implements POST /auth/refresh.
// Exchanges a valid refresh token for a fresh access token; the refresh
// token itself is returned unchanged.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	pair, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteData(w, http.StatusOK, newTokenPairResponse(pair))
}

// HandleLogout implements POST /auth/logout.
// Revokes the session behind the presented access token. Succeeds even if
// the token is already expired, so clients can always log out.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid authorization header"))
		return
	}

	if err := h.auth.Logout(ctx, token); err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleLogoutAll implements POST /auth/logout-all.
// Revokes every session of the authenticated user.
func (h *Handler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	revoked, err := h.auth.LogoutAll(ctx, principal.UserID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteData(w, http.StatusOK, map[string]int{"revoked_sessions": revoked})
}

type sessionResponse struct {
	ID        uuid.UUID `json:"id"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	Current   bool      `json:"current"`
}

// HandleListSessions implements GET /auth/sessions.
// Lists the authenticated user's sessions, flagging the one backing this
// request.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	sessions, err := h.auth.ListSessions(ctx, principal.UserID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:        s.ID,
			Device:    s.Device,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			Revoked:   s.Revoked,
			Current:   s.ID == principal.SessionID,
		})
	}

	shared.WriteData(w, http.StatusOK, out)
}

type meResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// HandleMe implements GET /auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	user, err := h.auth.CurrentUser(ctx, principal.UserID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteData(w, http.StatusOK, meResponse{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Username:       user.Username,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Role:           string(user.Role),
		Status:         string(user.Status),
		LastLoginAt:    user.LastLoginAt,
	})
}
