package handler

import (
	"context"
	gojson "encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	authmw "icegrid/internal/platform/middleware/auth"
	"icegrid/internal/rink/models"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Store defines the persistence operations the handler needs.
type Store interface {
	Create(ctx context.Context, rink *models.IceRink) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.IceRink, error)
	List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]*models.IceRink, int64, error)
	Update(ctx context.Context, rink *models.IceRink) error
}

// Handler serves the ice rink CRUD endpoints. Reads are tenant-scoped:
// clients only ever see rinks of their own organization.
type Handler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger, now: time.Now}
}

// Register registers routes for all authenticated roles.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ice-rinks", h.HandleList)
	r.Get("/ice-rinks/{rink_id}", h.HandleGet)
}

// RegisterStaff registers the mutating routes for admins and operators.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Post("/ice-rinks", h.HandleCreate)
	r.Put("/ice-rinks/{rink_id}", h.HandleUpdate)
}

type rinkRequest struct {
	OrganizationID      string           `json:"organization_id" validate:"required,uuid"`
	Name                string           `json:"name" validate:"required,notblank,max=255"`
	Location            string           `json:"location" validate:"required,notblank,max=500"`
	Latitude            *float64         `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude           *float64         `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Dimensions          gojson.RawMessage `json:"dimensions"`
	Type                string           `json:"type" validate:"omitempty,max=50"`
	ChillerType         string           `json:"chiller_type" validate:"required,notblank,max=100"`
	MaxPowerConsumption float64          `json:"max_power_consumption" validate:"required,gt=0"`
	SSPEndpoint         string           `json:"ssp_endpoint" validate:"omitempty,url,max=500"`
	SSPAPIKey           string           `json:"ssp_api_key" validate:"max=255"`
	Status              string           `json:"status" validate:"omitempty,oneof=active maintenance inactive"`
}

type rinkResponse struct {
	ID                  uuid.UUID         `json:"id"`
	OrganizationID      uuid.UUID         `json:"organization_id"`
	Name                string            `json:"name"`
	Location            string            `json:"location"`
	Latitude            *float64          `json:"latitude,omitempty"`
	Longitude           *float64          `json:"longitude,omitempty"`
	Dimensions          gojson.RawMessage `json:"dimensions"`
	Type                string            `json:"type"`
	ChillerType         string            `json:"chiller_type"`
	MaxPowerConsumption float64           `json:"max_power_consumption"`
	SSPEndpoint         string            `json:"ssp_endpoint,omitempty"`
	SSPStatus           string            `json:"ssp_status"`
	LastCommunication   *time.Time        `json:"last_communication,omitempty"`
	Status              string            `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// newRinkResponse builds the wire shape. The SSP API key never leaves the
// server.
func newRinkResponse(rink *models.IceRink) rinkResponse {
	dims := rink.Dimensions
	if len(dims) == 0 {
		dims = gojson.RawMessage(`{}`)
	}
	return rinkResponse{
		ID:                  rink.ID,
		OrganizationID:      rink.OrganizationID,
		Name:                rink.Name,
		Location:            rink.Location,
		Latitude:            rink.Latitude,
		Longitude:           rink.Longitude,
		Dimensions:          dims,
		Type:                rink.Type,
		ChillerType:         rink.ChillerType,
		MaxPowerConsumption: rink.MaxPowerConsumption,
		SSPEndpoint:         rink.SSPEndpoint,
		SSPStatus:           string(rink.SSPStatus),
		LastCommunication:   rink.LastCommunication,
		Status:              string(rink.Status),
		CreatedAt:           rink.CreatedAt,
		UpdatedAt:           rink.UpdatedAt,
	}
}

// HandleList implements GET /ice-rinks. Clients are forced onto their own
// organization regardless of query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}
	page, pageSize := shared.ParsePagination(r)

	var orgID *uuid.UUID
	if principal.Role == authmodels.RoleClient {
		org := principal.OrganizationID
		orgID = &org
	} else if raw := r.URL.Query().Get("organization_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization_id filter"))
			return
		}
		orgID = &id
	}

	rinks, total, err := h.store.List(ctx, orgID, pageSize, (page-1)*pageSize)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}

	out := make([]rinkResponse, 0, len(rinks))
	for _, rink := range rinks {
		out = append(out, newRinkResponse(rink))
	}
	shared.WriteList(w, out, shared.NewPagination(page, pageSize, total))
}

// HandleGet implements GET /ice-rinks/{rink_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rinkID, err := uuid.Parse(chi.URLParam(r, "rink_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ice rink id"))
		return
	}
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	rink, err := h.store.FindByID(ctx, rinkID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}
	if !principal.CanAccessOrg(rink.OrganizationID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
		return
	}
	shared.WriteData(w, http.StatusOK, newRinkResponse(rink))
}

// HandleCreate implements POST /ice-rinks.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	var req rinkRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Name, &req.Location, &req.ChillerType)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization id"))
		return
	}

	now := h.now().UTC()
	rink := &models.IceRink{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		Name:                req.Name,
		Location:            req.Location,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		Dimensions:          gojson.RawMessage(req.Dimensions),
		Type:                "standard",
		ChillerType:         req.ChillerType,
		MaxPowerConsumption: req.MaxPowerConsumption,
		SSPEndpoint:         req.SSPEndpoint,
		SSPAPIKey:           req.SSPAPIKey,
		SSPStatus:           models.SSPDisconnected,
		Status:              models.StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
		CreatedBy:           principal.UserID,
	}
	if len(rink.Dimensions) == 0 {
		rink.Dimensions = gojson.RawMessage(`{}`)
	}
	if req.Type != "" {
		rink.Type = req.Type
	}
	if req.Status != "" {
		rink.Status = models.Status(req.Status)
	}

	if err := h.store.Create(ctx, rink); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}

	h.logger.InfoContext(ctx, "ice rink created",
		"rink_id", rink.ID.String(),
		"organization_id", rink.OrganizationID.String(),
	)
	shared.WriteData(w, http.StatusCreated, newRinkResponse(rink))
}

// HandleUpdate implements PUT /ice-rinks/{rink_id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rinkID, err := uuid.Parse(chi.URLParam(r, "rink_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ice rink id"))
		return
	}

	var req rinkRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Name, &req.Location, &req.ChillerType)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	rink, err := h.store.FindByID(ctx, rinkID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}

	// The organization reference stays as created, whatever the body says.
	rink.Name = req.Name
	rink.Location = req.Location
	rink.Latitude = req.Latitude
	rink.Longitude = req.Longitude
	if len(req.Dimensions) > 0 {
		rink.Dimensions = gojson.RawMessage(req.Dimensions)
	}
	if req.Type != "" {
		rink.Type = req.Type
	}
	rink.ChillerType = req.ChillerType
	rink.MaxPowerConsumption = req.MaxPowerConsumption
	rink.SSPEndpoint = req.SSPEndpoint
	if req.SSPAPIKey != "" {
		rink.SSPAPIKey = req.SSPAPIKey
	}
	if req.Status != "" {
		rink.Status = models.Status(req.Status)
	}
	rink.UpdatedAt = h.now().UTC()

	if err := h.store.Update(ctx, rink); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}
	shared.WriteData(w, http.StatusOK, newRinkResponse(rink))
}
