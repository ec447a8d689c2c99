package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	authmw "icegrid/internal/platform/middleware/auth"
	"icegrid/internal/ticket/models"
	"icegrid/internal/ticket/service"
	"icegrid/internal/ticket/store"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Service defines the ticket operations the handler needs.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*models.Ticket, error)
	Get(ctx context.Context, principal *authmodels.Principal, id uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, principal *authmodels.Principal, f store.Filter, limit, offset int) ([]*models.Ticket, int64, error)
	Update(ctx context.Context, principal *authmodels.Principal, id uuid.UUID, in service.UpdateInput) (*models.Ticket, error)
	Transition(ctx context.Context, principal *authmodels.Principal, id uuid.UUID, next models.Status) (*models.Ticket, error)
	Assign(ctx context.Context, principal *authmodels.Principal, id, assignee uuid.UUID) (*models.Ticket, error)
	AddComment(ctx context.Context, principal *authmodels.Principal, ticketID uuid.UUID, text string, internal bool) (*models.Comment, error)
	ListComments(ctx context.Context, principal *authmodels.Principal, ticketID uuid.UUID) ([]*models.Comment, error)
}

// Handler serves the service ticket endpoints.
type Handler struct {
	tickets Service
	logger  *slog.Logger
}

func New(tickets Service, logger *slog.Logger) *Handler {
	return &Handler{tickets: tickets, logger: logger}
}

// Register registers the ticket routes for all authenticated roles.
// Per-operation scoping happens inside the service.
func (h *Handler) Register(r chi.Router) {
	r.Get("/service-tickets", h.HandleList)
	r.Post("/service-tickets", h.HandleCreate)
	r.Get("/service-tickets/{ticket_id}", h.HandleGet)
	r.Get("/service-tickets/{ticket_id}/comments", h.HandleListComments)
	r.Post("/service-tickets/{ticket_id}/comments", h.HandleAddComment)
}

// RegisterStaff registers the routes reserved for admins and operators.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Put("/service-tickets/{ticket_id}", h.HandleUpdate)
	r.Put("/service-tickets/{ticket_id}/status", h.HandleTransition)
	r.Put("/service-tickets/{ticket_id}/assign", h.HandleAssign)
}

type createTicketRequest struct {
	IceRinkID      string `json:"ice_rink_id" validate:"required,uuid"`
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	Priority       string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Category       string `json:"category" validate:"required,notblank,max=100"`
	Title          string `json:"title" validate:"required,notblank,max=255"`
	Description    string `json:"description" validate:"required,notblank"`
}

type updateTicketRequest struct {
	Priority    string `json:"priority" validate:"required,oneof=low medium high critical"`
	Category    string `json:"category" validate:"required,notblank,max=100"`
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"required,notblank"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=new in_progress resolved closed"`
}

type assignRequest struct {
	AssignedTo string `json:"assigned_to" validate:"required,uuid"`
}

type commentRequest struct {
	Comment  string `json:"comment" validate:"required,notblank"`
	Internal bool   `json:"is_internal"`
}

type ticketResponse struct {
	ID             uuid.UUID  `json:"id"`
	Number         string     `json:"ticket_number"`
	IceRinkID      uuid.UUID  `json:"ice_rink_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	AssignedTo     *uuid.UUID `json:"assigned_to,omitempty"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Source         string     `json:"source"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newTicketResponse(t *models.Ticket) ticketResponse {
	return ticketResponse{
		ID:             t.ID,
		Number:         t.Number,
		IceRinkID:      t.IceRinkID,
		OrganizationID: t.OrganizationID,
		CreatedBy:      t.CreatedBy,
		AssignedTo:     t.AssignedTo,
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		Category:       t.Category,
		Title:          t.Title,
		Description:    t.Description,
		Source:         string(t.Source),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

type commentResponse struct {
	ID        uuid.UUID `json:"id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	UserID    uuid.UUID `json:"user_id"`
	Comment   string    `json:"comment"`
	Internal  bool      `json:"is_internal"`
	CreatedAt time.Time `json:"created_at"`
}

func principalOr401(w http.ResponseWriter, r *http.Request) (*authmodels.Principal, bool) {
	principal, ok := authmw.PrincipalFromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return nil, false
	}
	return principal, true
}

func ticketID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "ticket_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ticket id"))
		return uuid.Nil, false
	}
	return id, true
}

// HandleList implements GET /service-tickets with optional rink, status and
// priority filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	page, pageSize := shared.ParsePagination(r)

	var f store.Filter
	q := r.URL.Query()
	if raw := q.Get("ice_rink_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ice_rink_id filter"))
			return
		}
		f.IceRinkID = &id
	}
	if raw := q.Get("status"); raw != "" {
		st := models.Status(raw)
		if !st.Valid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid status filter"))
			return
		}
		f.Status = &st
	}
	if raw := q.Get("priority"); raw != "" {
		p := models.Priority(raw)
		if !p.Valid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid priority filter"))
			return
		}
		f.Priority = &p
	}

	tickets, total, err := h.tickets.List(r.Context(), principal, f, pageSize, (page-1)*pageSize)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, newTicketResponse(t))
	}
	shared.WriteList(w, out, shared.NewPagination(page, pageSize, total))
}

// HandleCreate implements POST /service-tickets.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	var req createTicketRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Category, &req.Title)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	rinkID, err := uuid.Parse(req.IceRinkID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ice rink id"))
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization id"))
		return
	}
	if !principal.CanAccessOrg(orgID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
		return
	}

	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.Priority(req.Priority)
	}

	t, err := h.tickets.Create(r.Context(), service.CreateInput{
		IceRinkID:      rinkID,
		OrganizationID: orgID,
		CreatedBy:      principal.UserID,
		Priority:       priority,
		Category:       req.Category,
		Title:          req.Title,
		Description:    req.Description,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusCreated, newTicketResponse(t))
}

// HandleGet implements GET /service-tickets/{ticket_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	t, err := h.tickets.Get(r.Context(), principal, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newTicketResponse(t))
}

// HandleUpdate implements PUT /service-tickets/{ticket_id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	var req updateTicketRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Category, &req.Title)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	t, err := h.tickets.Update(r.Context(), principal, id, service.UpdateInput{
		Priority:    models.Priority(req.Priority),
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newTicketResponse(t))
}

// HandleTransition implements PUT /service-tickets/{ticket_id}/status.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	t, err := h.tickets.Transition(r.Context(), principal, id, models.Status(req.Status))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newTicketResponse(t))
}

// HandleAssign implements PUT /service-tickets/{ticket_id}/assign.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}
	assignee, err := uuid.Parse(req.AssignedTo)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid assignee id"))
		return
	}

	t, err := h.tickets.Assign(r.Context(), principal, id, assignee)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusOK, newTicketResponse(t))
}

// HandleAddComment implements POST /service-tickets/{ticket_id}/comments.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	c, err := h.tickets.AddComment(r.Context(), principal, id, req.Comment, req.Internal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteData(w, http.StatusCreated, commentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		UserID:    c.UserID,
		Comment:   c.Comment,
		Internal:  c.Internal,
		CreatedAt: c.CreatedAt,
	})
}

// HandleListComments implements GET /service-tickets/{ticket_id}/comments.
func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	comments, err := h.tickets.ListComments(r.Context(), principal, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentResponse{
			ID:        c.ID,
			TicketID:  c.TicketID,
			UserID:    c.UserID,
			Comment:   c.Comment,
			Internal:  c.Internal,
			CreatedAt: c.CreatedAt,
		})
	}
	shared.WriteData(w, http.StatusOK, out)
}
