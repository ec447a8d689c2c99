package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"icegrid/internal/platform/metrics"
	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/weather/client"
	"icegrid/internal/weather/models"
)

// RinkStore lists the rinks the poller should fetch forecasts for.
type RinkStore interface {
	ListActiveWithCoordinates(ctx context.Context) ([]*rinkmodels.IceRink, error)
}

// ForecastStore persists polled forecasts and provider bookkeeping.
type ForecastStore interface {
	ListActiveProviders(ctx context.Context) ([]*models.Provider, error)
	UpsertForecast(ctx context.Context, f *models.Forecast) error
	MarkProviderUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Fetcher retrieves forecasts for a coordinate pair.
type Fetcher interface {
	Fetch(ctx context.Context, latitude, longitude float64) ([]client.DailyForecast, error)
}

// PollResult summarizes one polling run.
type PollResult struct {
	RinksPolled     int
	ForecastsStored int
	Failures        int
}

// Poller periodically fetches forecasts for every active rink with
// coordinates, from every active provider.
type Poller struct {
	rinks       RinkStore
	store       ForecastStore
	fetcher     Fetcher
	metrics     *metrics.Metrics
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Poller.
type Option func(*Poller)

// WithInterval overrides the polling interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithConcurrency bounds how many rinks are fetched in parallel.
func WithConcurrency(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger overrides the logger used for poll errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New constructs a Poller with required collaborators and options applied.
func New(rinks RinkStore, store ForecastStore, fetcher Fetcher, m *metrics.Metrics, opts ...Option) (*Poller, error) {
	if rinks == nil || store == nil || fetcher == nil {
		return nil, fmt.Errorf("rinks, store, and fetcher are required")
	}
	p := &Poller{
		rinks:       rinks,
		store:       store,
		fetcher:     fetcher,
		metrics:     m,
		interval:    time.Hour,
		concurrency: 4,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Start runs the poller periodically until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "weather poll failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single polling pass. Each rink is fetched from every
// active provider; per-rink failures are aggregated rather than aborting
// the pass.
func (p *Poller) RunOnce(ctx context.Context) (PollResult, error) {
	providers, err := p.store.ListActiveProviders(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("list active providers: %w", err)
	}
	if len(providers) == 0 {
		return PollResult{}, nil
	}

	rinks, err := p.rinks.ListActiveWithCoordinates(ctx)
	if err != nil {
		return PollResult{}, fmt.Errorf("list rinks for polling: %w", err)
	}

	var res PollResult
	res.RinksPolled = len(rinks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	type outcome struct {
		stored int
		err    error
	}
	outcomes := make(chan outcome, len(rinks)*len(providers))

	for _, rink := range rinks {
		for _, provider := range providers {
			g.Go(func() error {
				stored, err := p.pollRink(gctx, rink, provider)
				outcomes <- outcome{stored: stored, err: err}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	close(outcomes)

	var errs []error
	for o := range outcomes {
		res.ForecastsStored += o.stored
		if o.err != nil {
			res.Failures++
			errs = append(errs, o.err)
		}
	}
	now := p.now()
	for _, provider := range providers {
		if err := p.store.MarkProviderUsed(ctx, provider.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("mark provider %s used: %w", provider.Name, err))
		}
	}
	return res, errors.Join(errs...)
}

func (p *Poller) pollRink(ctx context.Context, rink *rinkmodels.IceRink, provider *models.Provider) (int, error) {
	if !rink.HasCoordinates() {
		return 0, nil
	}
	if p.metrics != nil {
		p.metrics.WeatherFetches.WithLabelValues(provider.Name).Inc()
	}

	days, err := p.fetcher.Fetch(ctx, *rink.Latitude, *rink.Longitude)
	if err != nil {
		if p.metrics != nil {
			p.metrics.WeatherFetchErrors.Inc()
		}
		return 0, fmt.Errorf("fetch forecast for rink %s via %s: %w", rink.Name, provider.Name, err)
	}

	now := p.now()
	stored := 0
	for _, day := range days {
		providerID := provider.ID
		f := &models.Forecast{
			ID:                       uuid.New(),
			IceRinkID:                rink.ID,
			ProviderID:               &providerID,
			ForecastTime:             day.Date,
			TemperatureMin:           day.TemperatureMin,
			TemperatureMax:           day.TemperatureMax,
			Humidity:                 day.Humidity,
			SolarRadiation:           day.SolarRadiation,
			WindSpeed:                day.WindSpeed,
			PrecipitationProbability: day.PrecipitationProbability,
			CreatedAt:                now,
		}
		if err := p.store.UpsertForecast(ctx, f); err != nil {
			if p.metrics != nil {
				p.metrics.WeatherFetchErrors.Inc()
			}
			return stored, fmt.Errorf("store forecast for rink %s: %w", rink.Name, err)
		}
		stored++
	}
	return stored, nil
}
