package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionStore exposes cleanup for expired sessions.
type SessionStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Cleanup periodically removes sessions whose expiry has passed. Revoked
// sessions are kept until expiry so revocation stays observable.
type Cleanup struct {
	sessions SessionStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures Cleanup.
type Option func(*Cleanup)

// WithInterval overrides the cleanup interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(c *Cleanup) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithLogger overrides the logger used for cleanup errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleanup) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cleanup) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Cleanup with the required store and options applied.
func New(sessions SessionStore, opts ...Option) (*Cleanup, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sessions store is required")
	}
	c := &Cleanup{
		sessions: sessions,
		interval: 15 * time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (c *Cleanup) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.RunOnce(ctx); err != nil {
				c.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass and returns how many sessions
// were deleted.
func (c *Cleanup) RunOnce(ctx context.Context) (int, error) {
	deleted, err := c.sessions.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if deleted > 0 {
		c.logger.InfoContext(ctx, "expired sessions removed", "count", deleted)
	}
	return deleted, nil
}
