package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderStatus is the lifecycle state of a weather data source.
type ProviderStatus string

const (
	ProviderActive   ProviderStatus = "active"
	ProviderInactive ProviderStatus = "inactive"
)

// Provider is an external forecast API the poller can query.
type Provider struct {
	ID          uuid.UUID
	Name        string
	APIEndpoint string
	APIKey      string
	Status      ProviderStatus
	RateLimit   int
	LastUsed    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Provider) Active() bool {
	return p.Status == ProviderActive
}

// Forecast is one forecast point for a rink. The (rink, provider, time)
// triple is unique; repeated polls overwrite in place.
type Forecast struct {
	ID                       uuid.UUID
	IceRinkID                uuid.UUID
	ProviderID               *uuid.UUID
	ForecastTime             time.Time
	TemperatureMin           float64
	TemperatureMax           float64
	Humidity                 *float64
	SolarRadiation           *float64
	WindSpeed                *float64
	PrecipitationProbability *float64
	CreatedAt                time.Time
}
