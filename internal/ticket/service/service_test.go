package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "icegrid/internal/auth/models"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/sentinel"
	"icegrid/internal/ticket/models"
	"icegrid/internal/ticket/store"
	dErrors "icegrid/pkg/domain-errors"
)

type stubStore struct {
	tickets  map[uuid.UUID]*models.Ticket
	comments []*models.Comment
}

func newStubStore() *stubStore {
	return &stubStore{tickets: make(map[uuid.UUID]*models.Ticket)}
}

func (s *stubStore) Create(_ context.Context, t *models.Ticket) error {
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *stubStore) FindByID(_ context.Context, id uuid.UUID) (*models.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *stubStore) List(_ context.Context, f store.Filter, _, _ int) ([]*models.Ticket, int64, error) {
	var out []*models.Ticket
	for _, t := range s.tickets {
		if f.OrganizationID != nil && t.OrganizationID != *f.OrganizationID {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (s *stubStore) Update(_ context.Context, t *models.Ticket) error {
	if _, ok := s.tickets[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *stubStore) AddComment(_ context.Context, c *models.Comment) error {
	s.comments = append(s.comments, c)
	return nil
}

func (s *stubStore) ListComments(_ context.Context, ticketID uuid.UUID, includeInternal bool) ([]*models.Comment, error) {
	var out []*models.Comment
	for _, c := range s.comments {
		if c.TicketID != ticketID {
			continue
		}
		if c.Internal && !includeInternal {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func newTestService(st Store) *Service {
	return New(st, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func staffPrincipal() *authmodels.Principal {
	return &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleOperator}
}

func clientPrincipal(orgID uuid.UUID) *authmodels.Principal {
	return &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleClient, OrganizationID: orgID}
}

func createTicket(t *testing.T, svc *Service) *models.Ticket {
	t.Helper()
	ticket, err := svc.Create(context.Background(), CreateInput{
		IceRinkID:      uuid.New(),
		OrganizationID: uuid.New(),
		CreatedBy:      uuid.New(),
		Priority:       models.PriorityMedium,
		Category:       "refrigeration",
		Title:          "Chiller vibration",
		Description:    "Compressor hums above 60 dB",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateAssignsNumberAndState(t *testing.T) {
	svc := newTestService(newStubStore())
	ticket := createTicket(t, svc)

	assert.True(t, strings.HasPrefix(ticket.Number, "TKT-"), "number %q", ticket.Number)
	assert.Equal(t, models.StatusNew, ticket.Status)
	assert.Equal(t, models.SourceManual, ticket.Source)
	require.NotNil(t, ticket.CreatedBy)
}

func TestTicketNumbersAreUnique(t *testing.T) {
	svc := newTestService(newStubStore())
	seen := map[string]bool{}
	for range 50 {
		ticket := createTicket(t, svc)
		require.False(t, seen[ticket.Number], "duplicate number %s", ticket.Number)
		seen[ticket.Number] = true
	}
}

func TestTransitionFollowsWorkflow(t *testing.T) {
	svc := newTestService(newStubStore())
	ticket := createTicket(t, svc)
	principal := staffPrincipal()
	ctx := context.Background()

	ticket, err := svc.Transition(ctx, principal, ticket.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, ticket.Status)

	ticket, err = svc.Transition(ctx, principal, ticket.ID, models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, ticket.Status)

	ticket, err = svc.Transition(ctx, principal, ticket.ID, models.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, ticket.Status)
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	svc := newTestService(newStubStore())
	ticket := createTicket(t, svc)

	_, err := svc.Transition(context.Background(), staffPrincipal(), ticket.ID, models.StatusResolved)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestClosedIsTerminal(t *testing.T) {
	svc := newTestService(newStubStore())
	ticket := createTicket(t, svc)
	principal := staffPrincipal()
	ctx := context.Background()

	_, err := svc.Transition(ctx, principal, ticket.ID, models.StatusClosed)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, principal, ticket.ID, models.StatusInProgress)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestClientCannotSeeForeignTicket(t *testing.T) {
	svc := newTestService(newStubStore())
	ticket := createTicket(t, svc)

	_, err := svc.Get(context.Background(), clientPrincipal(uuid.New()), ticket.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestClientListIsPinnedToOwnOrg(t *testing.T) {
	st := newStubStore()
	svc := newTestService(st)
	mine := createTicket(t, svc)
	createTicket(t, svc)

	client := clientPrincipal(mine.OrganizationID)
	tickets, total, err := svc.List(context.Background(), client, store.Filter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tickets, 1)
	assert.Equal(t, mine.ID, tickets[0].ID)
}

func TestCreateFromAlarmEscalatesCritical(t *testing.T) {
	svc := newTestService(newStubStore())
	rink := &rinkmodels.IceRink{ID: uuid.New(), OrganizationID: uuid.New()}

	ticket, err := svc.CreateFromAlarm(context.Background(), rink, models.Alarm{
		Type:      "compressor_failure",
		Severity:  "critical",
		Message:   "Compressor 2 offline",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.PriorityHigh, ticket.Priority)
	assert.Equal(t, models.SourceSSP, ticket.Source)
	assert.Nil(t, ticket.CreatedBy)
	assert.Equal(t, "SSP Alarm: compressor_failure", ticket.Title)
}

func TestInternalCommentsHiddenFromClients(t *testing.T) {
	st := newStubStore()
	svc := newTestService(st)
	ticket := createTicket(t, svc)
	staff := staffPrincipal()
	client := clientPrincipal(ticket.OrganizationID)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, staff, ticket.ID, "ordered replacement part", true)
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, staff, ticket.ID, "technician scheduled for Monday", false)
	require.NoError(t, err)

	visible, err := svc.ListComments(ctx, client, ticket.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.False(t, visible[0].Internal)

	all, err := svc.ListComments(ctx, staff, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestClientCannotWriteInternalComment(t *testing.T) {
	svc := newTestService(newStubStore())
	ticket := createTicket(t, svc)

	_, err := svc.AddComment(context.Background(), clientPrincipal(ticket.OrganizationID), ticket.ID, "note", true)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
