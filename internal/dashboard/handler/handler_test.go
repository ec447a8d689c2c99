package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "icegrid/internal/auth/models"
	measmodels "icegrid/internal/measurement/models"
	authmw "icegrid/internal/platform/middleware/auth"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/sentinel"
	ticketmodels "icegrid/internal/ticket/models"
	ticketstore "icegrid/internal/ticket/store"
)

type stubRinkStore struct {
	rinks []*rinkmodels.IceRink

	gotOrgID *uuid.UUID
}

func (s *stubRinkStore) List(_ context.Context, orgID *uuid.UUID, _, _ int) ([]*rinkmodels.IceRink, int64, error) {
	s.gotOrgID = orgID
	if orgID == nil {
		return s.rinks, int64(len(s.rinks)), nil
	}
	var out []*rinkmodels.IceRink
	for _, r := range s.rinks {
		if r.OrganizationID == *orgID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

type stubTicketStore struct {
	tickets []*ticketmodels.Ticket
}

func (s *stubTicketStore) List(_ context.Context, f ticketstore.Filter, _, _ int) ([]*ticketmodels.Ticket, int64, error) {
	var out []*ticketmodels.Ticket
	for _, t := range s.tickets {
		if f.OrganizationID != nil && t.OrganizationID != *f.OrganizationID {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

type stubMeasurementStore struct {
	latest  map[uuid.UUID]*measmodels.Measurement
	history map[uuid.UUID][]*measmodels.Measurement
}

func (s *stubMeasurementStore) LatestForRink(_ context.Context, rinkID uuid.UUID) (*measmodels.Measurement, error) {
	m, ok := s.latest[rinkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m, nil
}

func (s *stubMeasurementStore) StreamForRink(_ context.Context, rinkID uuid.UUID, tr measmodels.TimeRange, fn func(*measmodels.Measurement) error) error {
	for _, m := range s.history[rinkID] {
		if !tr.Start.IsZero() && m.Timestamp.Before(tr.Start) {
			continue
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func newTestRouter(h *Handler, principal *authmodels.Principal) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(authmw.WithPrincipal(req.Context(), principal)))
			})
		})
		h.Register(r)
	})
	return r
}

func get(t *testing.T, router http.Handler, path string) (int, json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env.Data
}

func testFleet(orgA, orgB uuid.UUID) (*stubRinkStore, *stubMeasurementStore) {
	rinkA := &rinkmodels.IceRink{
		ID: uuid.New(), OrganizationID: orgA, Name: "Arena Nord",
		Status: rinkmodels.StatusActive, SSPStatus: rinkmodels.SSPConnected,
	}
	rinkB := &rinkmodels.IceRink{
		ID: uuid.New(), OrganizationID: orgB, Name: "Arena Syd",
		Status: rinkmodels.StatusInactive, SSPStatus: rinkmodels.SSPDisconnected,
	}
	now := time.Now()
	measurements := &stubMeasurementStore{
		latest: map[uuid.UUID]*measmodels.Measurement{
			rinkA.ID: {IceRinkID: rinkA.ID, IceTemperature: -5, Timestamp: now},
		},
		history: map[uuid.UUID][]*measmodels.Measurement{
			rinkA.ID: {
				{IceRinkID: rinkA.ID, EnergyConsumption: 10, Timestamp: now.Add(-time.Hour)},
				{IceRinkID: rinkA.ID, EnergyConsumption: 15, Timestamp: now.Add(-30 * 24 * time.Hour)},
			},
		},
	}
	return &stubRinkStore{rinks: []*rinkmodels.IceRink{rinkA, rinkB}}, measurements
}

func TestKPIAggregatesFleetAndTickets(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	rinks, measurements := testFleet(orgA, orgB)
	tickets := &stubTicketStore{tickets: []*ticketmodels.Ticket{
		{OrganizationID: orgA, Status: ticketmodels.StatusNew, Priority: ticketmodels.PriorityCritical},
		{OrganizationID: orgA, Status: ticketmodels.StatusClosed, Priority: ticketmodels.PriorityCritical},
		{OrganizationID: orgB, Status: ticketmodels.StatusInProgress, Priority: ticketmodels.PriorityLow},
	}}

	h := New(rinks, tickets, measurements, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestRouter(h, &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleAdmin})

	status, data := get(t, router, "/api/dashboard/kpi")
	require.Equal(t, http.StatusOK, status)

	var got kpiResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got.TotalIceRinks)
	assert.Equal(t, 1, got.ActiveIceRinks)
	assert.Equal(t, 1, got.ConnectedIceRinks)
	assert.Equal(t, 2, got.ActiveTickets)
	assert.Equal(t, 1, got.CriticalTickets, "closed critical tickets do not count")
	require.NotNil(t, got.AvgIceTemperature)
	assert.InDelta(t, -5, *got.AvgIceTemperature, 0.001)
	require.NotNil(t, got.TotalEnergyConsumption)
	assert.InDelta(t, 10, *got.TotalEnergyConsumption, 0.001, "default window is seven days")
}

func TestKPITimeRangeWidensEnergyWindow(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	rinks, measurements := testFleet(orgA, orgB)
	h := New(rinks, &stubTicketStore{}, measurements, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestRouter(h, &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleAdmin})

	status, data := get(t, router, "/api/dashboard/kpi?time_range=90d")
	require.Equal(t, http.StatusOK, status)

	var got kpiResponse
	require.NoError(t, json.Unmarshal(data, &got))
	require.NotNil(t, got.TotalEnergyConsumption)
	assert.InDelta(t, 25, *got.TotalEnergyConsumption, 0.001)
}

func TestKPIRejectsUnknownTimeRange(t *testing.T) {
	rinks, measurements := testFleet(uuid.New(), uuid.New())
	h := New(rinks, &stubTicketStore{}, measurements, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestRouter(h, &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleAdmin})

	status, _ := get(t, router, "/api/dashboard/kpi?time_range=365d")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestKPIClientIsPinnedToOwnOrg(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	rinks, measurements := testFleet(orgA, orgB)
	h := New(rinks, &stubTicketStore{}, measurements, slog.New(slog.NewTextHandler(io.Discard, nil)))

	principal := &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleClient, OrganizationID: orgA}
	router := newTestRouter(h, principal)

	// The query string must not let a client widen the scope to another
	// organization.
	status, data := get(t, router, "/api/dashboard/kpi?organization_id="+orgB.String())
	require.Equal(t, http.StatusOK, status)

	var got kpiResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 1, got.TotalIceRinks)
	require.NotNil(t, rinks.gotOrgID)
	assert.Equal(t, orgA, *rinks.gotOrgID)
}

func TestMapReturnsFleetWithLatestTemperature(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	rinks, measurements := testFleet(orgA, orgB)
	h := New(rinks, &stubTicketStore{}, measurements, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestRouter(h, &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleOperator})

	status, data := get(t, router, "/api/dashboard/map")
	require.Equal(t, http.StatusOK, status)

	var got []mapRinkResponse
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)

	byName := map[string]mapRinkResponse{got[0].Name: got[0], got[1].Name: got[1]}
	nord := byName["Arena Nord"]
	require.NotNil(t, nord.CurrentTemperature)
	assert.InDelta(t, -5, *nord.CurrentTemperature, 0.001)
	assert.Nil(t, byName["Arena Syd"].CurrentTemperature, "rink without telemetry has no temperature")
}

func TestMapStatusFilter(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	rinks, measurements := testFleet(orgA, orgB)
	h := New(rinks, &stubTicketStore{}, measurements, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := newTestRouter(h, &authmodels.Principal{UserID: uuid.New(), Role: authmodels.RoleAdmin})

	status, data := get(t, router, "/api/dashboard/map?status=active")
	require.Equal(t, http.StatusOK, status)

	var got []mapRinkResponse
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Arena Nord", got[0].Name)

	status, _ = get(t, router, "/api/dashboard/map?status=melted")
	assert.Equal(t, http.StatusBadRequest, status)
}
