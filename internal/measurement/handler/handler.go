package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"icegrid/internal/measurement/models"
	"icegrid/internal/platform/metrics"
	authmw "icegrid/internal/platform/middleware/auth"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/validation"
)

// Store defines the persistence operations the handler needs.
type Store interface {
	Insert(ctx context.Context, m *models.Measurement) error
	InsertBatch(ctx context.Context, ms []*models.Measurement) error
	ListForRink(ctx context.Context, rinkID uuid.UUID, tr models.TimeRange, limit, offset int) ([]*models.Measurement, int64, error)
	LatestForRink(ctx context.Context, rinkID uuid.UUID) (*models.Measurement, error)
	StreamForRink(ctx context.Context, rinkID uuid.UUID, tr models.TimeRange, fn func(*models.Measurement) error) error
}

// RinkStore resolves rinks for tenant checks.
type RinkStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*rinkmodels.IceRink, error)
}

// Handler serves the telemetry endpoints nested under a rink.
type Handler struct {
	store   Store
	rinks   RinkStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(store Store, rinks RinkStore, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{store: store, rinks: rinks, logger: logger, metrics: m, now: time.Now}
}

// Register registers the read routes for all authenticated roles.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ice-rinks/{rink_id}/measurements", h.HandleList)
	r.Get("/ice-rinks/{rink_id}/measurements/latest", h.HandleLatest)
	r.Get("/ice-rinks/{rink_id}/measurements/export", h.HandleExportCSV)
}

// RegisterStaff registers the ingest routes for admins and operators.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Post("/ice-rinks/{rink_id}/measurements", h.HandleIngest)
	r.Post("/ice-rinks/{rink_id}/measurements/batch", h.HandleIngestBatch)
}

type measurementRequest struct {
	Timestamp          time.Time `json:"timestamp" validate:"required"`
	IceTemperature     float64   `json:"ice_temperature" validate:"gte=-50,lte=50"`
	ChillerPower       float64   `json:"chiller_power" validate:"gte=0"`
	ChillerStatus      string    `json:"chiller_status" validate:"required,notblank,max=50"`
	AmbientTemperature *float64  `json:"ambient_temperature" validate:"omitempty,gte=-80,lte=80"`
	Humidity           *float64  `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	EnergyConsumption  float64   `json:"energy_consumption" validate:"gte=0"`
	QualityScore       *float64  `json:"quality_score" validate:"omitempty,gte=0,lte=1"`
}

type batchRequest struct {
	Measurements []measurementRequest `json:"measurements" validate:"required,min=1,max=1000,dive"`
}

type measurementResponse struct {
	ID                 uuid.UUID `json:"id"`
	IceRinkID          uuid.UUID `json:"ice_rink_id"`
	Timestamp          time.Time `json:"timestamp"`
	IceTemperature     float64   `json:"ice_temperature"`
	ChillerPower       float64   `json:"chiller_power"`
	ChillerStatus      string    `json:"chiller_status"`
	AmbientTemperature *float64  `json:"ambient_temperature,omitempty"`
	Humidity           *float64  `json:"humidity,omitempty"`
	EnergyConsumption  float64   `json:"energy_consumption"`
	DataSource         string    `json:"data_source"`
	QualityScore       float64   `json:"quality_score"`
	CreatedAt          time.Time `json:"created_at"`
}

func newMeasurementResponse(m *models.Measurement) measurementResponse {
	return measurementResponse{
		ID:                 m.ID,
		IceRinkID:          m.IceRinkID,
		Timestamp:          m.Timestamp,
		IceTemperature:     m.IceTemperature,
		ChillerPower:       m.ChillerPower,
		ChillerStatus:      m.ChillerStatus,
		AmbientTemperature: m.AmbientTemperature,
		Humidity:           m.Humidity,
		EnergyConsumption:  m.EnergyConsumption,
		DataSource:         string(m.DataSource),
		QualityScore:       m.QualityScore,
		CreatedAt:          m.CreatedAt,
	}
}

// resolveRink loads the rink and enforces tenant scoping for the caller.
func (h *Handler) resolveRink(w http.ResponseWriter, r *http.Request) (*rinkmodels.IceRink, bool) {
	ctx := r.Context()
	rinkID, err := uuid.Parse(chi.URLParam(r, "rink_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ice rink id"))
		return nil, false
	}
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return nil, false
	}
	rink, err := h.rinks.FindByID(ctx, rinkID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return nil, false
	}
	if !principal.CanAccessOrg(rink.OrganizationID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
		return nil, false
	}
	return rink, true
}

// parseTimeRange reads optional start/end RFC 3339 query parameters.
func parseTimeRange(r *http.Request) (models.TimeRange, error) {
	var tr models.TimeRange
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return tr, fmt.Errorf("invalid start: %w", err)
		}
		tr.Start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return tr, fmt.Errorf("invalid end: %w", err)
		}
		tr.End = t
	}
	return tr, nil
}

// HandleList implements GET /ice-rinks/{rink_id}/measurements.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	rink, ok := h.resolveRink(w, r)
	if !ok {
		return
	}
	tr, err := parseTimeRange(r)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "start and end must be RFC 3339 timestamps"))
		return
	}
	page, pageSize := shared.ParsePagination(r)

	ms, total, err := h.store.ListForRink(r.Context(), rink.ID, tr, pageSize, (page-1)*pageSize)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "measurement"))
		return
	}

	out := make([]measurementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, newMeasurementResponse(m))
	}
	shared.WriteList(w, out, shared.NewPagination(page, pageSize, total))
}

// HandleLatest implements GET /ice-rinks/{rink_id}/measurements/latest.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	rink, ok := h.resolveRink(w, r)
	if !ok {
		return
	}

	m, err := h.store.LatestForRink(r.Context(), rink.ID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "measurement"))
		return
	}
	shared.WriteData(w, http.StatusOK, newMeasurementResponse(m))
}

var csvHeader = []string{
	"timestamp", "ice_temperature", "chiller_power", "chiller_status",
	"ambient_temperature", "humidity", "energy_consumption", "data_source", "quality_score",
}

// HandleExportCSV implements GET /ice-rinks/{rink_id}/measurements/export.
// Streams the range as CSV, oldest first.
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	rink, ok := h.resolveRink(w, r)
	if !ok {
		return
	}
	tr, err := parseTimeRange(r)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "start and end must be RFC 3339 timestamps"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="measurements-%s.csv"`, rink.ID))

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return
	}
	err = h.store.StreamForRink(r.Context(), rink.ID, tr, func(m *models.Measurement) error {
		return cw.Write([]string{
			m.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(m.IceTemperature),
			formatFloat(m.ChillerPower),
			m.ChillerStatus,
			formatOptFloat(m.AmbientTemperature),
			formatOptFloat(m.Humidity),
			formatFloat(m.EnergyConsumption),
			string(m.DataSource),
			formatFloat(m.QualityScore),
		})
	})
	if err != nil {
		// Headers are gone; all we can do is log and cut the stream short.
		h.logger.ErrorContext(r.Context(), "csv export aborted",
			"rink_id", rink.ID.String(),
			"error", err,
		)
		return
	}
	cw.Flush()
}

// HandleIngest implements POST /ice-rinks/{rink_id}/measurements.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	rink, ok := h.resolveRink(w, r)
	if !ok {
		return
	}

	var req measurementRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	m := h.buildMeasurement(rink.ID, req, models.SourceManual)
	if err := h.store.Insert(r.Context(), m); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "measurement"))
		return
	}
	h.countIngested(models.SourceManual, 1)
	shared.WriteData(w, http.StatusCreated, newMeasurementResponse(m))
}

// HandleIngestBatch implements POST /ice-rinks/{rink_id}/measurements/batch.
// The batch is atomic: either every sample lands or none.
func (h *Handler) HandleIngestBatch(w http.ResponseWriter, r *http.Request) {
	rink, ok := h.resolveRink(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	ms := make([]*models.Measurement, 0, len(req.Measurements))
	for _, item := range req.Measurements {
		ms = append(ms, h.buildMeasurement(rink.ID, item, models.SourceManual))
	}
	if err := h.store.InsertBatch(r.Context(), ms); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "measurement"))
		return
	}
	h.countIngested(models.SourceManual, len(ms))
	shared.WriteData(w, http.StatusCreated, map[string]int{"inserted": len(ms)})
}

func (h *Handler) buildMeasurement(rinkID uuid.UUID, req measurementRequest, source models.Source) *models.Measurement {
	quality := 1.0
	if req.QualityScore != nil {
		quality = *req.QualityScore
	}
	return &models.Measurement{
		ID:                 uuid.New(),
		IceRinkID:          rinkID,
		Timestamp:          req.Timestamp.UTC(),
		IceTemperature:     req.IceTemperature,
		ChillerPower:       req.ChillerPower,
		ChillerStatus:      req.ChillerStatus,
		AmbientTemperature: req.AmbientTemperature,
		Humidity:           req.Humidity,
		EnergyConsumption:  req.EnergyConsumption,
		DataSource:         source,
		QualityScore:       quality,
		CreatedAt:          h.now().UTC(),
	}
}

func (h *Handler) countIngested(source models.Source, n int) {
	if h.metrics == nil {
		return
	}
	h.metrics.MeasurementsIngested.WithLabelValues(string(source)).Add(float64(n))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
