package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	"icegrid/internal/user/models"
	"icegrid/internal/user/service"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Service defines the account operations the handler needs.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]*models.User, int64, error)
	Update(ctx context.Context, id uuid.UUID, in service.UpdateInput) (*models.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, newPassword string) error
	Deactivate(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Handler serves the account management endpoints.
type Handler struct {
	users  Service
	logger *slog.Logger
}

func New(users Service, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// RegisterAdmin registers the account management routes. They are all
// admin-only; non-admins read their own account through GET /auth/me.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/users", h.HandleList)
	r.Get("/users/{user_id}", h.HandleGet)
	r.Post("/users", h.HandleCreate)
	r.Put("/users/{user_id}", h.HandleUpdate)
	r.Put("/users/{user_id}/password", h.HandleChangePassword)
	r.Delete("/users/{user_id}", h.HandleDeactivate)
}

type createUserRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	Username       string `json:"username" validate:"required,notblank,min=3,max=100"`
	Email          string `json:"email" validate:"required,email,max=255"`
	Password       string `json:"password" validate:"required,min=8,max=200"`
	FirstName      string `json:"first_name" validate:"required,notblank,max=100"`
	LastName       string `json:"last_name" validate:"required,notblank,max=100"`
	Role           string `json:"role" validate:"required,oneof=admin operator client"`
}

type updateUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Role      string `json:"role" validate:"required,oneof=admin operator client"`
	Status    string `json:"status" validate:"required,oneof=active inactive"`
}

type changePasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=200"`
}

type userResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           string(u.Role),
		Status:         string(u.Status),
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// HandleList implements GET /users. An organization_id query parameter
// narrows the listing to one tenant.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize := shared.ParsePagination(r)

	var orgID *uuid.UUID
	if raw := r.URL.Query().Get("organization_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization_id filter"))
			return
		}
		orgID = &id
	}

	users, total, err := h.users.List(ctx, orgID, pageSize, (page-1)*pageSize)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	shared.WriteList(w, out, shared.NewPagination(page, pageSize, total))
}

// HandleGet implements GET /users/{user_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newUserResponse(user))
}

// HandleCreate implements POST /users.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Username, &req.Email, &req.FirstName, &req.LastName)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization id"))
		return
	}

	user, err := h.users.Create(ctx, service.CreateInput{
		OrganizationID: orgID,
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           authmodels.Role(req.Role),
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusCreated, newUserResponse(user))
}

// HandleUpdate implements PUT /users/{user_id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	var req updateUserRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Email, &req.FirstName, &req.LastName)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), id, service.UpdateInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      authmodels.Role(req.Role),
		Status:    models.Status(req.Status),
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newUserResponse(user))
}

// HandleChangePassword implements PUT /users/{user_id}/password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	var req changePasswordRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, req.Password); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// HandleDeactivate implements DELETE /users/{user_id}.
// Accounts are deactivated, never removed, so audit history stays intact.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	user, err := h.users.Deactivate(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newUserResponse(user))
}
