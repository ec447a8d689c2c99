// Package service implements the authentication core: credential
// verification, session lifecycle, token issuance and the token check backing
// the authorization gate. All durable state lives behind the store
// interfaces; the service itself holds only immutable configuration.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/jwttoken"
	"icegrid/internal/platform/metrics"
	"icegrid/internal/platform/middleware"
	usermodels "icegrid/internal/user/models"
)

// UserStore defines the persistence interface for user data consumed by the
// auth core. It never writes user rows except the best-effort last-login
// stamp; account mutation belongs to the user CRUD layer.
// Error Contract: Find methods return sentinel.ErrNotFound (wrapped) when the
// entity doesn't exist.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*usermodels.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*usermodels.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SessionStore defines the persistence interface for session data.
// Error Contract: FindByID returns sentinel.ErrNotFound (wrapped) when the
// session doesn't exist; Revoke is idempotent and reports state change.
type SessionStore interface {
	Create(ctx context.Context, session *authmodels.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*authmodels.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*authmodels.Session, error)
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// TokenCodec encodes and decodes the signed token pair.
type TokenCodec interface {
	Encode(tokenType jwttoken.TokenType, userID uuid.UUID, role, organizationID string, sessionID uuid.UUID) (string, error)
	Decode(tokenString string) (*jwttoken.Claims, error)
	DecodeSkipExpiry(tokenString string) (*jwttoken.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Service is the authenticator. Safe for concurrent use; every field is set
// at construction and read-only afterwards.
type Service struct {
	users    UserStore
	sessions SessionStore
	codec    TokenCodec
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs the authenticator.
func New(users UserStore, sessions SessionStore, codec TokenCodec, opts ...Option) *Service {
	svc := &Service{
		users:    users,
		sessions: sessions,
		codec:    codec,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logAuthFailure(ctx context.Context, reason string, isError bool, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", "auth_failed", "reason", reason, "log_type", "standard")
	if isError {
		s.logger.ErrorContext(ctx, "auth_failed", args...)
		return
	}
	s.logger.WarnContext(ctx, "auth_failed", args...)
}

func (s *Service) incrementLogins() {
	if s.metrics != nil {
		s.metrics.Logins.Inc()
		s.metrics.ActiveSessions.Inc()
	}
}

func (s *Service) incrementTokenRequests() {
	if s.metrics != nil {
		s.metrics.TokenRequests.Inc()
	}
}

func (s *Service) incrementAuthFailures() {
	if s.metrics != nil {
		s.metrics.AuthFailures.Inc()
	}
}

func (s *Service) decrementActiveSessions(n int) {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Sub(float64(n))
	}
}
