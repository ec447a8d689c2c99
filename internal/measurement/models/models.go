package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies where a measurement came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceSSP    Source = "ssp"
)

// Measurement is one telemetry sample from a rink's refrigeration plant.
// Rows are append-only; there is no update path.
type Measurement struct {
	ID                 uuid.UUID
	IceRinkID          uuid.UUID
	Timestamp          time.Time
	IceTemperature     float64
	ChillerPower       float64
	ChillerStatus      string
	AmbientTemperature *float64
	Humidity           *float64
	EnergyConsumption  float64
	DataSource         Source
	QualityScore       float64
	CreatedAt          time.Time
}

// TimeRange bounds a measurement query. Zero values mean unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}
