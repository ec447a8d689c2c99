package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/platform/metrics"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/sentinel"
	"icegrid/internal/ticket/models"
	"icegrid/internal/ticket/store"
	dErrors "icegrid/pkg/domain-errors"
)

// Store defines the persistence operations the ticket service needs.
type Store interface {
	Create(ctx context.Context, t *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, f store.Filter, limit, offset int) ([]*models.Ticket, int64, error)
	Update(ctx context.Context, t *models.Ticket) error
	AddComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, ticketID uuid.UUID, includeInternal bool) ([]*models.Comment, error)
}

// Service implements the maintenance ticket workflow: numbering, status
// transitions, tenant scoping and comments.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(store Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// nextNumber mints a sortable, collision-resistant ticket number.
func (s *Service) nextNumber() string {
	return "TKT-" + ulid.Make().String()
}

// CreateInput carries a new manually opened ticket.
type CreateInput struct {
	IceRinkID      uuid.UUID
	OrganizationID uuid.UUID
	CreatedBy      uuid.UUID
	Priority       models.Priority
	Category       string
	Title          string
	Description    string
}

// Create opens a ticket in the new state.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Ticket, error) {
	if !in.Priority.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid priority")
	}

	now := s.now().UTC()
	createdBy := in.CreatedBy
	t := &models.Ticket{
		ID:             uuid.New(),
		Number:         s.nextNumber(),
		IceRinkID:      in.IceRinkID,
		OrganizationID: in.OrganizationID,
		CreatedBy:      &createdBy,
		Priority:       in.Priority,
		Status:         models.StatusNew,
		Category:       in.Category,
		Title:          in.Title,
		Description:    in.Description,
		Source:         models.SourceManual,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, mapStoreError(err)
	}

	s.countCreated(t.Priority)
	s.logger.InfoContext(ctx, "ticket created",
		"ticket_number", t.Number,
		"rink_id", t.IceRinkID.String(),
		"priority", string(t.Priority),
	)
	return t, nil
}

// CreateFromAlarm opens a ticket for a control-system alarm. Critical
// alarms escalate to high priority; nobody is recorded as creator.
func (s *Service) CreateFromAlarm(ctx context.Context, rink *rinkmodels.IceRink, alarm models.Alarm) (*models.Ticket, error) {
	priority := models.PriorityMedium
	if alarm.Severity == "critical" {
		priority = models.PriorityHigh
	}

	now := s.now().UTC()
	t := &models.Ticket{
		ID:             uuid.New(),
		Number:         s.nextNumber(),
		IceRinkID:      rink.ID,
		OrganizationID: rink.OrganizationID,
		Priority:       priority,
		Status:         models.StatusNew,
		Category:       "ssp_alarm",
		Title:          "SSP Alarm: " + alarm.Type,
		Description:    alarm.Message,
		Source:         models.SourceSSP,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, mapStoreError(err)
	}

	s.countCreated(t.Priority)
	s.logger.WarnContext(ctx, "ticket opened from ssp alarm",
		"ticket_number", t.Number,
		"rink_id", rink.ID.String(),
		"alarm_type", alarm.Type,
		"severity", alarm.Severity,
	)
	return t, nil
}

// Get loads one ticket, enforcing tenant scope for the caller.
func (s *Service) Get(ctx context.Context, principal *authmodels.Principal, id uuid.UUID) (*models.Ticket, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !principal.CanAccessOrg(t.OrganizationID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	return t, nil
}

// List returns a filtered page of tickets. Client principals are always
// pinned to their own organization.
func (s *Service) List(ctx context.Context, principal *authmodels.Principal, f store.Filter, limit, offset int) ([]*models.Ticket, int64, error) {
	if principal.Role == authmodels.RoleClient {
		org := principal.OrganizationID
		f.OrganizationID = &org
	}
	tickets, total, err := s.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, mapStoreError(err)
	}
	return tickets, total, nil
}

// UpdateInput carries the editable ticket fields.
type UpdateInput struct {
	Priority    models.Priority
	Category    string
	Title       string
	Description string
}

// Update rewrites the descriptive fields of a ticket. Status moves through
// Transition, not here.
func (s *Service) Update(ctx context.Context, principal *authmodels.Principal, id uuid.UUID, in UpdateInput) (*models.Ticket, error) {
	if !in.Priority.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid priority")
	}
	t, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	t.Priority = in.Priority
	t.Category = in.Category
	t.Title = in.Title
	t.Description = in.Description
	t.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, t); err != nil {
		return nil, mapStoreError(err)
	}
	return t, nil
}

// Transition moves a ticket to the next workflow state.
func (s *Service) Transition(ctx context.Context, principal *authmodels.Principal, id uuid.UUID, next models.Status) (*models.Ticket, error) {
	if !next.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	t, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(next) {
		return nil, dErrors.New(dErrors.CodeConflict,
			"cannot move ticket from "+string(t.Status)+" to "+string(next))
	}

	t.Status = next
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.InfoContext(ctx, "ticket status changed",
		"ticket_number", t.Number,
		"status", string(next),
	)
	return t, nil
}

// Assign hands the ticket to a user.
func (s *Service) Assign(ctx context.Context, principal *authmodels.Principal, id, assignee uuid.UUID) (*models.Ticket, error) {
	t, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	t.AssignedTo = &assignee
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, mapStoreError(err)
	}
	return t, nil
}

// AddComment appends a comment. Client roles can neither write nor read
// internal comments.
func (s *Service) AddComment(ctx context.Context, principal *authmodels.Principal, ticketID uuid.UUID, text string, internal bool) (*models.Comment, error) {
	if internal && principal.Role == authmodels.RoleClient {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	if _, err := s.Get(ctx, principal, ticketID); err != nil {
		return nil, err
	}

	c := &models.Comment{
		ID:        uuid.New(),
		TicketID:  ticketID,
		UserID:    principal.UserID,
		Comment:   text,
		Internal:  internal,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddComment(ctx, c); err != nil {
		return nil, mapStoreError(err)
	}
	return c, nil
}

// ListComments returns the visible comments of a ticket for the caller.
func (s *Service) ListComments(ctx context.Context, principal *authmodels.Principal, ticketID uuid.UUID) ([]*models.Comment, error) {
	if _, err := s.Get(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	includeInternal := principal.Role != authmodels.RoleClient
	comments, err := s.store.ListComments(ctx, ticketID, includeInternal)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return comments, nil
}

func (s *Service) countCreated(p models.Priority) {
	if s.metrics == nil {
		return
	}
	s.metrics.TicketsCreated.WithLabelValues(string(p)).Inc()
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "ticket not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "ticket number already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
}
