package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"icegrid/internal/sentinel"
	"icegrid/internal/weather/models"
)

// PostgresStore persists weather providers and forecasts in PostgreSQL.
//
// Error Contract:
//   - sentinel.ErrNotFound when no row matches
//   - sentinel.ErrConflict on unique provider name violation
//   - wrapped driver errors otherwise
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed weather store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const providerColumns = `id, name, api_endpoint, api_key, status, rate_limit, last_used, created_at, updated_at`

// CreateProvider inserts a new provider.
func (s *PostgresStore) CreateProvider(ctx context.Context, p *models.Provider) error {
	query := `
		INSERT INTO weather_providers (` + providerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.APIEndpoint, p.APIKey, string(p.Status), p.RateLimit, p.LastUsed, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider name must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create weather provider: %w", err)
	}
	return nil
}

// FindProviderByID retrieves one provider.
func (s *PostgresStore) FindProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM weather_providers WHERE id = $1`
	p, err := scanProvider(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find weather provider: %w", err)
	}
	return p, nil
}

// ListProviders returns a page of providers plus the total.
func (s *PostgresStore) ListProviders(ctx context.Context, limit, offset int) ([]*models.Provider, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather_providers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count weather providers: %w", err)
	}

	query := `SELECT ` + providerColumns + ` FROM weather_providers ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list weather providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan weather provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate weather providers: %w", err)
	}
	return providers, total, nil
}

// ListActiveProviders returns every provider the poller may use.
func (s *PostgresStore) ListActiveProviders(ctx context.Context) ([]*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM weather_providers WHERE status = 'active' ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active weather providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weather provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather providers: %w", err)
	}
	return providers, nil
}

// UpdateProvider rewrites the mutable provider columns.
func (s *PostgresStore) UpdateProvider(ctx context.Context, p *models.Provider) error {
	query := `
		UPDATE weather_providers
		SET name = $2, api_endpoint = $3, api_key = $4, status = $5, rate_limit = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.APIEndpoint, p.APIKey, string(p.Status), p.RateLimit, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider name must be unique: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update weather provider: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update weather provider rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// MarkProviderUsed stamps the last successful poll.
func (s *PostgresStore) MarkProviderUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE weather_providers SET last_used = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark provider used: %w", err)
	}
	return nil
}

// UpsertForecast inserts or overwrites the forecast for a (rink, provider,
// time) triple. Fresh polls win over stale rows.
func (s *PostgresStore) UpsertForecast(ctx context.Context, f *models.Forecast) error {
	query := `
		INSERT INTO weather_forecasts (id, ice_rink_id, weather_provider_id, forecast_time,
			temperature_min, temperature_max, humidity, solar_radiation, wind_speed,
			precipitation_probability, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (ice_rink_id, weather_provider_id, forecast_time) DO UPDATE
		SET temperature_min = EXCLUDED.temperature_min,
		    temperature_max = EXCLUDED.temperature_max,
		    humidity = EXCLUDED.humidity,
		    solar_radiation = EXCLUDED.solar_radiation,
		    wind_speed = EXCLUDED.wind_speed,
		    precipitation_probability = EXCLUDED.precipitation_probability
	`
	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.IceRinkID, f.ProviderID, f.ForecastTime,
		f.TemperatureMin, f.TemperatureMax, f.Humidity, f.SolarRadiation, f.WindSpeed,
		f.PrecipitationProbability, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}

// ListForecastsForRink returns forecasts for a rink from now onwards,
// soonest first.
func (s *PostgresStore) ListForecastsForRink(ctx context.Context, rinkID uuid.UUID, from time.Time, limit int) ([]*models.Forecast, error) {
	query := `
		SELECT id, ice_rink_id, weather_provider_id, forecast_time, temperature_min,
		       temperature_max, humidity, solar_radiation, wind_speed,
		       precipitation_probability, created_at
		FROM weather_forecasts
		WHERE ice_rink_id = $1 AND forecast_time >= $2
		ORDER BY forecast_time ASC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, rinkID, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	defer rows.Close()

	var forecasts []*models.Forecast
	for rows.Next() {
		var f models.Forecast
		var providerID uuid.NullUUID
		if err := rows.Scan(
			&f.ID, &f.IceRinkID, &providerID, &f.ForecastTime, &f.TemperatureMin,
			&f.TemperatureMax, &f.Humidity, &f.SolarRadiation, &f.WindSpeed,
			&f.PrecipitationProbability, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		if providerID.Valid {
			id := providerID.UUID
			f.ProviderID = &id
		}
		forecasts = append(forecasts, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecasts: %w", err)
	}
	return forecasts, nil
}

type providerRow interface {
	Scan(dest ...any) error
}

func scanProvider(row providerRow) (*models.Provider, error) {
	var p models.Provider
	var status string
	var lastUsed sql.NullTime
	if err := row.Scan(
		&p.ID, &p.Name, &p.APIEndpoint, &p.APIKey, &status, &p.RateLimit, &lastUsed, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = models.ProviderStatus(status)
	if lastUsed.Valid {
		t := lastUsed.Time
		p.LastUsed = &t
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
