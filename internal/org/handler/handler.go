package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"icegrid/internal/org/models"
	authmw "icegrid/internal/platform/middleware/auth"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Store defines the persistence operations the handler needs.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, limit, offset int) ([]*models.Organization, int64, error)
	Update(ctx context.Context, org *models.Organization) error
}

// Handler serves the organization CRUD endpoints.
type Handler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger, now: time.Now}
}

// Register registers the routes every authenticated caller may hit. The
// single-organization read enforces tenant isolation itself, so clients can
// still fetch their own organization.
func (h *Handler) Register(r chi.Router) {
	r.Get("/organizations/{org_id}", h.HandleGet)
}

// RegisterStaff registers the cross-tenant listing for admins and operators.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Get("/organizations", h.HandleList)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/organizations", h.HandleCreate)
	r.Put("/organizations/{org_id}", h.HandleUpdate)
}

type organizationRequest struct {
	Name          string `json:"name" validate:"required,notblank,max=255"`
	Type          string `json:"type" validate:"omitempty,oneof=client partner"`
	Address       string `json:"address" validate:"max=1000"`
	ContactPerson string `json:"contact_person" validate:"max=255"`
	ContactEmail  string `json:"contact_email" validate:"omitempty,email,max=255"`
	ContactPhone  string `json:"contact_phone" validate:"max=20"`
	TaxID         string `json:"tax_id" validate:"max=20"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
}

type organizationResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Address       string    `json:"address,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	ContactPhone  string    `json:"contact_phone,omitempty"`
	TaxID         string    `json:"tax_id,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newOrganizationResponse(org *models.Organization) organizationResponse {
	return organizationResponse{
		ID:            org.ID,
		Name:          org.Name,
		Type:          string(org.Type),
		Address:       org.Address,
		ContactPerson: org.ContactPerson,
		ContactEmail:  org.ContactEmail,
		ContactPhone:  org.ContactPhone,
		TaxID:         org.TaxID,
		Status:        string(org.Status),
		CreatedAt:     org.CreatedAt,
		UpdatedAt:     org.UpdatedAt,
	}
}

// HandleList implements GET /organizations for staff roles.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize := shared.ParsePagination(r)

	orgs, total, err := h.store.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "organization"))
		return
	}

	out := make([]organizationResponse, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, newOrganizationResponse(org))
	}
	shared.WriteList(w, out, shared.NewPagination(page, pageSize, total))
}

// HandleGet implements GET /organizations/{org_id}.
// Clients may only fetch their own organization.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization id"))
		return
	}

	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}
	if !principal.CanAccessOrg(orgID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
		return
	}

	org, err := h.store.FindByID(ctx, orgID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "organization"))
		return
	}
	shared.WriteData(w, http.StatusOK, newOrganizationResponse(org))
}

// HandleCreate implements POST /organizations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req organizationRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Name, &req.ContactPerson, &req.ContactEmail, &req.ContactPhone, &req.TaxID)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	now := h.now().UTC()
	org := &models.Organization{
		ID:            uuid.New(),
		Name:          req.Name,
		Type:          models.TypeClient,
		Address:       req.Address,
		ContactPerson: req.ContactPerson,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		TaxID:         req.TaxID,
		Status:        models.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Type != "" {
		org.Type = models.Type(req.Type)
	}
	if req.Status != "" {
		org.Status = models.Status(req.Status)
	}

	if err := h.store.Create(ctx, org); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "organization"))
		return
	}

	h.logger.InfoContext(ctx, "organization created",
		"organization_id", org.ID.String(),
		"name", org.Name,
	)
	shared.WriteData(w, http.StatusCreated, newOrganizationResponse(org))
}

// HandleUpdate implements PUT /organizations/{org_id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization id"))
		return
	}

	var req organizationRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Name, &req.ContactPerson, &req.ContactEmail, &req.ContactPhone, &req.TaxID)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	org, err := h.store.FindByID(ctx, orgID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "organization"))
		return
	}

	org.Name = req.Name
	if req.Type != "" {
		org.Type = models.Type(req.Type)
	}
	org.Address = req.Address
	org.ContactPerson = req.ContactPerson
	org.ContactEmail = req.ContactEmail
	org.ContactPhone = req.ContactPhone
	org.TaxID = req.TaxID
	if req.Status != "" {
		org.Status = models.Status(req.Status)
	}
	org.UpdatedAt = h.now().UTC()

	if err := h.store.Update(ctx, org); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "organization"))
		return
	}
	shared.WriteData(w, http.StatusOK, newOrganizationResponse(org))
}
