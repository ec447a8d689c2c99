package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"icegrid/internal/measurement/models"
	rinkmodels "icegrid/internal/rink/models"
	ticketmodels "icegrid/internal/ticket/models"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/validation"
)

// SSPRinkStore is the rink access the machine-to-machine ingest needs.
type SSPRinkStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*rinkmodels.IceRink, error)
	MarkCommunication(ctx context.Context, id uuid.UUID, status rinkmodels.SSPStatus, at time.Time) error
}

// AlarmSink opens service tickets from control-system alarms.
type AlarmSink interface {
	CreateFromAlarm(ctx context.Context, rink *rinkmodels.IceRink, alarm ticketmodels.Alarm) (*ticketmodels.Ticket, error)
}

// SSPHandler serves the machine-to-machine ingest endpoints. Callers
// authenticate with the per-rink API key, not a user token.
type SSPHandler struct {
	store   Store
	rinks   SSPRinkStore
	tickets AlarmSink
	handler *Handler
	now     func() time.Time
}

func NewSSP(store Store, rinks SSPRinkStore, tickets AlarmSink, h *Handler) *SSPHandler {
	return &SSPHandler{store: store, rinks: rinks, tickets: tickets, handler: h, now: time.Now}
}

// Register registers the SSP routes. No auth middleware applies here; the
// API key check inside each handler is the only gate.
func (h *SSPHandler) Register(r chi.Router) {
	r.Post("/ssp/data", h.HandleData)
	r.Post("/ssp/alarms", h.HandleAlarm)
}

type sspDataRequest struct {
	IceRinkID    string             `json:"ice_rink_id" validate:"required,uuid"`
	Timestamp    time.Time          `json:"timestamp" validate:"required"`
	Measurements measurementRequest `json:"measurements" validate:"required"`
}

type sspAlarmRequest struct {
	IceRinkID string    `json:"ice_rink_id" validate:"required,uuid"`
	AlarmType string    `json:"alarm_type" validate:"required,notblank,max=100"`
	Severity  string    `json:"severity" validate:"required,oneof=info warning critical"`
	Message   string    `json:"message" validate:"required,notblank"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// authorizeRink resolves the rink and verifies the presented API key against
// the stored one in constant time.
func (h *SSPHandler) authorizeRink(w http.ResponseWriter, r *http.Request, rawID string) (*rinkmodels.IceRink, bool) {
	rinkID, err := uuid.Parse(rawID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ice rink id"))
		return nil, false
	}
	rink, err := h.rinks.FindByID(r.Context(), rinkID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return nil, false
	}
	key := r.Header.Get("X-SSP-API-Key")
	if rink.SSPAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(rink.SSPAPIKey)) != 1 {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid SSP API key"))
		return nil, false
	}
	return rink, true
}

// HandleData implements POST /ssp/data.
func (h *SSPHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sspDataRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	rink, ok := h.authorizeRink(w, r, req.IceRinkID)
	if !ok {
		return
	}

	sample := req.Measurements
	sample.Timestamp = req.Timestamp
	m := h.handler.buildMeasurement(rink.ID, sample, models.SourceSSP)
	if err := h.store.Insert(ctx, m); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "measurement"))
		return
	}
	h.handler.countIngested(models.SourceSSP, 1)

	// Best effort; a failed stamp must not fail the ingest.
	if err := h.rinks.MarkCommunication(ctx, rink.ID, rinkmodels.SSPConnected, h.now().UTC()); err != nil {
		h.handler.logger.WarnContext(ctx, "failed to stamp ssp communication",
			"rink_id", rink.ID.String(),
			"error", err,
		)
	}

	shared.WriteData(w, http.StatusCreated, map[string]any{
		"data_received": true,
		"timestamp":     h.now().UTC(),
	})
}

// HandleAlarm implements POST /ssp/alarms. Critical alarms open high
// priority tickets.
func (h *SSPHandler) HandleAlarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sspAlarmRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	rink, ok := h.authorizeRink(w, r, req.IceRinkID)
	if !ok {
		return
	}

	ticket, err := h.tickets.CreateFromAlarm(ctx, rink, ticketmodels.Alarm{
		Type:      req.AlarmType,
		Severity:  req.Severity,
		Message:   req.Message,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteData(w, http.StatusCreated, map[string]any{
		"ticket_created": true,
		"ticket_number":  ticket.Number,
	})
}
