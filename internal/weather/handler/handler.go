package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "icegrid/internal/platform/middleware/auth"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	"icegrid/internal/weather/models"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Store defines the persistence operations the handler needs.
type Store interface {
	CreateProvider(ctx context.Context, p *models.Provider) error
	FindProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	ListProviders(ctx context.Context, limit, offset int) ([]*models.Provider, int64, error)
	UpdateProvider(ctx context.Context, p *models.Provider) error
	ListForecastsForRink(ctx context.Context, rinkID uuid.UUID, from time.Time, limit int) ([]*models.Forecast, error)
}

// RinkStore resolves rinks for the tenant check on forecast reads.
type RinkStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*rinkmodels.IceRink, error)
}

// Handler serves weather provider administration and per-rink forecast
// reads. Provider credentials never appear in responses.
type Handler struct {
	store  Store
	rinks  RinkStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, rinks RinkStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, rinks: rinks, logger: logger, now: time.Now}
}

// Register registers the forecast read route for all authenticated roles.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ice-rinks/{rink_id}/weather-forecasts", h.HandleForecasts)
}

// RegisterAdmin registers provider management, admin only.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/weather-providers", h.HandleListProviders)
	r.Post("/weather-providers", h.HandleCreateProvider)
	r.Get("/weather-providers/{provider_id}", h.HandleGetProvider)
	r.Put("/weather-providers/{provider_id}", h.HandleUpdateProvider)
}

type providerRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	APIEndpoint string `json:"api_endpoint" validate:"required,url,max=500"`
	APIKey      string `json:"api_key" validate:"max=255"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
	RateLimit   int    `json:"rate_limit" validate:"omitempty,gte=0"`
}

type providerResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	APIEndpoint string     `json:"api_endpoint"`
	Status      string     `json:"status"`
	RateLimit   int        `json:"rate_limit"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func newProviderResponse(p *models.Provider) providerResponse {
	return providerResponse{
		ID:          p.ID,
		Name:        p.Name,
		APIEndpoint: p.APIEndpoint,
		Status:      string(p.Status),
		RateLimit:   p.RateLimit,
		LastUsed:    p.LastUsed,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type forecastResponse struct {
	ID                       uuid.UUID  `json:"id"`
	IceRinkID                uuid.UUID  `json:"ice_rink_id"`
	ProviderID               *uuid.UUID `json:"weather_provider_id,omitempty"`
	ForecastTime             time.Time  `json:"forecast_time"`
	TemperatureMin           float64    `json:"temperature_min"`
	TemperatureMax           float64    `json:"temperature_max"`
	Humidity                 *float64   `json:"humidity,omitempty"`
	SolarRadiation           *float64   `json:"solar_radiation,omitempty"`
	WindSpeed                *float64   `json:"wind_speed,omitempty"`
	PrecipitationProbability *float64   `json:"precipitation_probability,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
}

// HandleForecasts implements GET /ice-rinks/{rink_id}/weather-forecasts.
func (h *Handler) HandleForecasts(w http.ResponseWriter, r *http.Request) {
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

	rink, err := h.rinks.FindByID(ctx, rinkID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "ice rink"))
		return
	}
	if !principal.CanAccessOrg(rink.OrganizationID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient permissions"))
		return
	}

	limit := 14
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 30 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "days must be between 1 and 30"))
			return
		}
		limit = n
	}

	// Forecasts from the start of today, so the current day is included.
	from := h.now().UTC().Truncate(24 * time.Hour)
	forecasts, err := h.store.ListForecastsForRink(ctx, rinkID, from, limit)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "weather forecast"))
		return
	}

	out := make([]forecastResponse, 0, len(forecasts))
	for _, f := range forecasts {
		out = append(out, forecastResponse{
			ID:                       f.ID,
			IceRinkID:                f.IceRinkID,
			ProviderID:               f.ProviderID,
			ForecastTime:             f.ForecastTime,
			TemperatureMin:           f.TemperatureMin,
			TemperatureMax:           f.TemperatureMax,
			Humidity:                 f.Humidity,
			SolarRadiation:           f.SolarRadiation,
			WindSpeed:                f.WindSpeed,
			PrecipitationProbability: f.PrecipitationProbability,
			CreatedAt:                f.CreatedAt,
		})
	}
	shared.WriteData(w, http.StatusOK, out)
}

// HandleListProviders implements GET /weather-providers.
func (h *Handler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize := shared.ParsePagination(r)

	providers, total, err := h.store.ListProviders(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "weather provider"))
		return
	}

	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, newProviderResponse(p))
	}
	shared.WriteList(w, out, shared.NewPagination(page, pageSize, total))
}

// HandleCreateProvider implements POST /weather-providers.
func (h *Handler) HandleCreateProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req providerRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Name, &req.APIEndpoint)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	now := h.now().UTC()
	provider := &models.Provider{
		ID:          uuid.New(),
		Name:        req.Name,
		APIEndpoint: req.APIEndpoint,
		APIKey:      req.APIKey,
		Status:      models.ProviderActive,
		RateLimit:   req.RateLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Status != "" {
		provider.Status = models.ProviderStatus(req.Status)
	}

	if err := h.store.CreateProvider(ctx, provider); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "weather provider"))
		return
	}

	h.logger.InfoContext(ctx, "weather provider created",
		"provider_id", provider.ID.String(),
		"name", provider.Name,
	)
	shared.WriteData(w, http.StatusCreated, newProviderResponse(provider))
}

// HandleGetProvider implements GET /weather-providers/{provider_id}.
func (h *Handler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providerID, err := uuid.Parse(chi.URLParam(r, "provider_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid provider id"))
		return
	}
	provider, err := h.store.FindProviderByID(ctx, providerID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "weather provider"))
		return
	}
	shared.WriteData(w, http.StatusOK, newProviderResponse(provider))
}

// HandleUpdateProvider implements PUT /weather-providers/{provider_id}.
func (h *Handler) HandleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providerID, err := uuid.Parse(chi.URLParam(r, "provider_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid provider id"))
		return
	}

	var req providerRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Name, &req.APIEndpoint)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	provider, err := h.store.FindProviderByID(ctx, providerID)
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "weather provider"))
		return
	}

	provider.Name = req.Name
	provider.APIEndpoint = req.APIEndpoint
	if req.APIKey != "" {
		provider.APIKey = req.APIKey
	}
	if req.Status != "" {
		provider.Status = models.ProviderStatus(req.Status)
	}
	provider.RateLimit = req.RateLimit
	provider.UpdatedAt = h.now().UTC()

	if err := h.store.UpdateProvider(ctx, provider); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "weather provider"))
		return
	}
	shared.WriteData(w, http.StatusOK, newProviderResponse(provider))
}
