package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "icegrid/internal/platform/middleware/auth"
	"icegrid/internal/system/models"
	"icegrid/internal/transport/http/json"
	"icegrid/internal/transport/http/shared"
	dErrors "icegrid/pkg/domain-errors"
	"icegrid/pkg/strutil"
	"icegrid/pkg/validation"
)

// Store defines the persistence operations the handler needs.
type Store interface {
	Set(ctx context.Context, entry *models.ConfigEntry) error
	FindByKey(ctx context.Context, key string) (*models.ConfigEntry, error)
	List(ctx context.Context, category string) ([]*models.ConfigEntry, error)
	Delete(ctx context.Context, key string) error
	CountConnectedSSP(ctx context.Context) (int, error)
}

// Handler serves the operational status endpoint and the runtime
// configuration table.
type Handler struct {
	store     Store
	db        *sql.DB
	logger    *slog.Logger
	startTime time.Time
	now       func() time.Time
}

func New(store Store, db *sql.DB, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// RegisterStaff registers the status endpoint for admins and operators.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Get("/system/status", h.HandleStatus)
}

// RegisterAdmin registers configuration management, admin only.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/system/config", h.HandleListConfig)
	r.Put("/system/config/{key}", h.HandleSetConfig)
	r.Delete("/system/config/{key}", h.HandleDeleteConfig)
}

type statusResponse struct {
	SystemStatus   string `json:"system_status"`
	DatabaseStatus string `json:"database_status"`
	SSPConnections int    `json:"ssp_connections"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Timestamp      string `json:"timestamp"`
}

// HandleStatus implements GET /system/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := statusResponse{
		SystemStatus:   "operational",
		DatabaseStatus: "ok",
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		Timestamp:      h.now().UTC().Format(time.RFC3339),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(pingCtx); err != nil {
		h.logger.ErrorContext(ctx, "database ping failed", "error", err)
		resp.SystemStatus = "degraded"
		resp.DatabaseStatus = "error"
		shared.WriteData(w, http.StatusOK, resp)
		return
	}

	if n, err := h.store.CountConnectedSSP(ctx); err == nil {
		resp.SSPConnections = n
	} else {
		h.logger.WarnContext(ctx, "counting connected rinks failed", "error", err)
	}
	shared.WriteData(w, http.StatusOK, resp)
}

type configRequest struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"required,notblank,max=100"`
	Encrypted   bool   `json:"is_encrypted"`
}

type configResponse struct {
	ID          uuid.UUID  `json:"id"`
	Key         string     `json:"key"`
	Value       string     `json:"value"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Encrypted   bool       `json:"is_encrypted"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UpdatedBy   *uuid.UUID `json:"updated_by,omitempty"`
}

// newConfigResponse redacts encrypted values.
func newConfigResponse(entry *models.ConfigEntry) configResponse {
	value := entry.Value
	if entry.Encrypted {
		value = "********"
	}
	return configResponse{
		ID:          entry.ID,
		Key:         entry.Key,
		Value:       value,
		Description: entry.Description,
		Category:    entry.Category,
		Encrypted:   entry.Encrypted,
		UpdatedAt:   entry.UpdatedAt,
		UpdatedBy:   entry.UpdatedBy,
	}
}

// HandleListConfig implements GET /system/config.
func (h *Handler) HandleListConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.store.List(ctx, r.URL.Query().Get("category"))
	if err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "config entry"))
		return
	}

	out := make([]configResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newConfigResponse(entry))
	}
	shared.WriteData(w, http.StatusOK, out)
}

// HandleSetConfig implements PUT /system/config/{key}. The write is an
// upsert; the entry keeps its id across overwrites when one exists.
func (h *Handler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := chi.URLParam(r, "key")
	if key == "" || len(key) > 255 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid config key"))
		return
	}
	principal, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	var req configRequest
	if err := json.Decode(r, &req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	strutil.TrimStrings(&req.Description, &req.Category)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	entry := &models.ConfigEntry{
		ID:          uuid.New(),
		Key:         key,
		Value:       req.Value,
		Description: req.Description,
		Category:    req.Category,
		Encrypted:   req.Encrypted,
		UpdatedAt:   h.now().UTC(),
		UpdatedBy:   &principal.UserID,
	}
	if existing, err := h.store.FindByKey(ctx, key); err == nil {
		entry.ID = existing.ID
	}

	if err := h.store.Set(ctx, entry); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "config entry"))
		return
	}

	h.logger.InfoContext(ctx, "config entry updated",
		"key", key,
		"category", entry.Category,
		"updated_by", principal.UserID.String(),
	)
	shared.WriteData(w, http.StatusOK, newConfigResponse(entry))
}

// HandleDeleteConfig implements DELETE /system/config/{key}.
func (h *Handler) HandleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := chi.URLParam(r, "key")
	if err := h.store.Delete(ctx, key); err != nil {
		shared.WriteError(w, shared.MapStoreError(err, "config entry"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
