package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	measmodels "icegrid/internal/measurement/models"
	authmw "icegrid/internal/platform/middleware/auth"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/sentinel"
	ticketmodels "icegrid/internal/ticket/models"
	ticketstore "icegrid/internal/ticket/store"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
)

// rinkPageSize bounds the fleet scan behind the KPI and map views.
const rinkPageSize = 1000

// RinkStore lists the rink fleet, optionally scoped to one organization.
type RinkStore interface {
	List(ctx context.Context, orgID *uuid.UUID, limit, offset int) ([]*rinkmodels.IceRink, int64, error)
}

// TicketStore counts service tickets for the KPI view.
type TicketStore interface {
	List(ctx context.Context, f ticketstore.Filter, limit, offset int) ([]*ticketmodels.Ticket, int64, error)
}

// MeasurementStore reads per-rink telemetry for the KPI and map views.
type MeasurementStore interface {
	LatestForRink(ctx context.Context, rinkID uuid.UUID) (*measmodels.Measurement, error)
	StreamForRink(ctx context.Context, rinkID uuid.UUID, tr measmodels.TimeRange, fn func(*measmodels.Measurement) error) error
}

// Handler serves the aggregated dashboard views. Every role may call it;
// clients are pinned to their own organization regardless of the query
// string.
type Handler struct {
	rinks        RinkStore
	tickets      TicketStore
	measurements MeasurementStore
	logger       *slog.Logger
	now          func() time.Time
}

func New(rinks RinkStore, tickets TicketStore, measurements MeasurementStore, logger *slog.Logger) *Handler {
	return &Handler{
		rinks:        rinks,
		tickets:      tickets,
		measurements: measurements,
		logger:       logger,
		now:          time.Now,
	}
}

// Register registers the dashboard routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard/kpi", h.HandleKPI)
	r.Get("/dashboard/map", h.HandleMap)
}

// orgScope resolves the organization filter for the request: clients always
// get their own organization, staff may narrow with ?organization_id.
func orgScope(r *http.Request, principal *authmodels.Principal) (*uuid.UUID, error) {
	if principal.Role == authmodels.RoleClient {
		id := principal.OrganizationID
		return &id, nil
	}
	raw := r.URL.Query().Get("organization_id")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid organization_id filter")
	}
	return &id, nil
}

var timeRanges = map[string]time.Duration{
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

type kpiResponse struct {
	TotalIceRinks          int      `json:"total_ice_rinks"`
	ActiveIceRinks         int      `json:"active_ice_rinks"`
	ConnectedIceRinks      int      `json:"connected_ice_rinks"`
	ActiveTickets          int      `json:"active_tickets"`
	CriticalTickets        int      `json:"critical_tickets"`
	AvgIceTemperature      *float64 `json:"avg_ice_temperature"`
	TotalEnergyConsumption *float64 `json:"total_energy_consumption"`
	EnergySavings          float64  `json:"energy_savings"`
	SavingsPercentage      float64  `json:"savings_percentage"`
}

// HandleKPI implements GET /dashboard/kpi. The time_range query parameter
// (1d|7d|30d|90d, default 7d) bounds the energy consumption sum.
func (h *Handler) HandleKPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}
	orgID, err := orgScope(r, principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	window, ok := timeRanges[valueOr(r.URL.Query().Get("time_range"), "7d")]
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "time_range must be one of 1d, 7d, 30d, 90d"))
		return
	}

	rinks, total, err := h.rinks.List(ctx, orgID, rinkPageSize, 0)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}

	out := kpiResponse{TotalIceRinks: int(total)}
	for _, rink := range rinks {
		if rink.Status == rinkmodels.StatusActive {
			out.ActiveIceRinks++
		}
		if rink.SSPStatus == rinkmodels.SSPConnected {
			out.ConnectedIceRinks++
		}
	}

	tickets, _, err := h.tickets.List(ctx, ticketstore.Filter{OrganizationID: orgID}, rinkPageSize, 0)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ticket"))
		return
	}
	for _, t := range tickets {
		if t.Status == ticketmodels.StatusNew || t.Status == ticketmodels.StatusInProgress {
			out.ActiveTickets++
		}
		if t.Priority == ticketmodels.PriorityCritical && t.Status != ticketmodels.StatusClosed {
			out.CriticalTickets++
		}
	}

	var tempSum float64
	var tempCount int
	var energySum float64
	var haveEnergy bool
	since := h.now().Add(-window)
	for _, rink := range rinks {
		latest, err := h.measurements.LatestForRink(ctx, rink.ID)
		switch {
		case err == nil:
			tempSum += latest.IceTemperature
			tempCount++
		case !errors.Is(err, sentinel.ErrNotFound):
			shared.WriteError(w, shared.MapStoreError(err, "measurement"))
			return
		}

		err = h.measurements.StreamForRink(ctx, rink.ID, measmodels.TimeRange{Start: since}, func(m *measmodels.Measurement) error {
			energySum += m.EnergyConsumption
			haveEnergy = true
			return nil
		})
		if err != nil {
			shared.WriteError(w, shared.MapStoreError(err, "measurement"))
			return
		}
	}
	if tempCount > 0 {
		avg := tempSum / float64(tempCount)
		out.AvgIceTemperature = &avg
	}
	if haveEnergy {
		out.TotalEnergyConsumption = &energySum
	}

	shared.WriteData(w, http.StatusOK, out)
}

type mapRinkResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Latitude           *float64  `json:"latitude"`
	Longitude          *float64  `json:"longitude"`
	Status             string    `json:"status"`
	SSPStatus          string    `json:"ssp_status"`
	CurrentTemperature *float64  `json:"current_temperature"`
}

// HandleMap implements GET /dashboard/map: the rink fleet with coordinates
// and the most recent ice temperature, for the map overlay. A status query
// parameter narrows the fleet by lifecycle state.
func (h *Handler) HandleMap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}
	orgID, err := orgScope(r, principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var statusFilter rinkmodels.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		statusFilter = rinkmodels.Status(raw)
		if !statusFilter.Valid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid status filter"))
			return
		}
	}

	rinks, _, err := h.rinks.List(ctx, orgID, rinkPageSize, 0)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}

	out := make([]mapRinkResponse, 0, len(rinks))
	for _, rink := range rinks {
		if statusFilter != "" && rink.Status != statusFilter {
			continue
		}
		entry := mapRinkResponse{
			ID:        rink.ID,
			Name:      rink.Name,
			Latitude:  rink.Latitude,
			Longitude: rink.Longitude,
			Status:    string(rink.Status),
			SSPStatus: string(rink.SSPStatus),
		}
		latest, err := h.measurements.LatestForRink(ctx, rink.ID)
		switch {
		case err == nil:
			entry.CurrentTemperature = &latest.IceTemperature
		case !errors.Is(err, sentinel.ErrNotFound):
			shared.WriteError(w, shared.MapStoreError(err, "measurement"))
			return
		}
		out = append(out, entry)
	}

	shared.WriteData(w, http.StatusOK, out)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
