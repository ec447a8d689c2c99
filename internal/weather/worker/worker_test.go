package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rinkmodels "icegrid/internal/rink/models"
	"icegrid/internal/weather/client"
	"icegrid/internal/weather/models"
)

type stubRinkStore struct {
	rinks []*rinkmodels.IceRink
	err   error
}

func (s *stubRinkStore) ListActiveWithCoordinates(ctx context.Context) ([]*rinkmodels.IceRink, error) {
	return s.rinks, s.err
}

type stubForecastStore struct {
	mu        sync.Mutex
	providers []*models.Provider
	forecasts []*models.Forecast
	used      map[uuid.UUID]time.Time
	upsertErr error
}

func (s *stubForecastStore) ListActiveProviders(ctx context.Context) ([]*models.Provider, error) {
	return s.providers, nil
}

func (s *stubForecastStore) UpsertForecast(ctx context.Context, f *models.Forecast) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts = append(s.forecasts, f)
	return nil
}

func (s *stubForecastStore) MarkProviderUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used == nil {
		s.used = make(map[uuid.UUID]time.Time)
	}
	s.used[id] = at
	return nil
}

func coord(v float64) *float64 { return &v }

func testRink(name string) *rinkmodels.IceRink {
	return &rinkmodels.IceRink{
		ID:        uuid.New(),
		Name:      name,
		Latitude:  coord(60.17),
		Longitude: coord(24.94),
		Status:    rinkmodels.StatusActive,
	}
}

func testProvider(name string) *models.Provider {
	return &models.Provider{
		ID:     uuid.New(),
		Name:   name,
		Status: models.ProviderActive,
	}
}

func forecastPayload(days int) string {
	times := ""
	mins := ""
	maxs := ""
	for i := range days {
		if i > 0 {
			times += ","
			mins += ","
			maxs += ","
		}
		times += fmt.Sprintf("%q", time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
		mins += fmt.Sprintf("%.1f", -8.0+float64(i))
		maxs += fmt.Sprintf("%.1f", -1.0+float64(i))
	}
	return fmt.Sprintf(`{"daily":{"time":[%s],"temperature_2m_min":[%s],"temperature_2m_max":[%s],"relative_humidity_2m_mean":null}}`, times, mins, maxs)
}

func TestRunOnceStoresForecastsPerRinkAndProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("latitude"))
		fmt.Fprint(w, forecastPayload(3))
	}))
	defer srv.Close()

	rinks := &stubRinkStore{rinks: []*rinkmodels.IceRink{testRink("north"), testRink("south")}}
	store := &stubForecastStore{providers: []*models.Provider{testProvider("open-meteo")}}

	p, err := New(rinks, store, client.New(srv.URL), nil)
	require.NoError(t, err)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.RinksPolled)
	assert.Equal(t, 6, res.ForecastsStored)
	assert.Zero(t, res.Failures)
	assert.Len(t, store.forecasts, 6)
	assert.Len(t, store.used, 1, "provider should be stamped once per pass")

	for _, f := range store.forecasts {
		require.NotNil(t, f.ProviderID)
		assert.Equal(t, store.providers[0].ID, *f.ProviderID)
		assert.Less(t, f.TemperatureMin, f.TemperatureMax)
	}
}

func TestRunOnceAggregatesFetchFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	rinks := &stubRinkStore{rinks: []*rinkmodels.IceRink{testRink("north")}}
	store := &stubForecastStore{providers: []*models.Provider{testProvider("open-meteo")}}

	p, err := New(rinks, store, client.New(srv.URL), nil)
	require.NoError(t, err)

	res, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, res.Failures)
	assert.Empty(t, store.forecasts)
}

func TestRunOnceSkipsWhenNoActiveProviders(t *testing.T) {
	rinks := &stubRinkStore{rinks: []*rinkmodels.IceRink{testRink("north")}}
	store := &stubForecastStore{}

	p, err := New(rinks, store, client.New("http://unreachable.invalid"), nil)
	require.NoError(t, err)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.RinksPolled)
	assert.Empty(t, store.forecasts)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	rinks := &stubRinkStore{}
	store := &stubForecastStore{}

	p, err := New(rinks, store, client.New("http://unreachable.invalid"), nil,
		WithInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = p.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, &stubForecastStore{}, client.New("http://x"), nil)
	require.Error(t, err)
}
