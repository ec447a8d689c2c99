package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an ice rink.
type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusInactive:
		return true
	}
	return false
}

// SSPStatus tracks the on-site control system link.
type SSPStatus string

const (
	SSPConnected    SSPStatus = "connected"
	SSPDisconnected SSPStatus = "disconnected"
	SSPError        SSPStatus = "error"
)

// IceRink is a monitored facility. It belongs to exactly one organization;
// the reference never changes after creation.
type IceRink struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	Name                string
	Location            string
	Latitude            *float64
	Longitude           *float64
	Dimensions          json.RawMessage
	Type                string
	ChillerType         string
	MaxPowerConsumption float64
	SSPEndpoint         string
	SSPAPIKey           string
	SSPStatus           SSPStatus
	LastCommunication   *time.Time
	Status              Status
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CreatedBy           uuid.UUID
}

// HasCoordinates reports whether the rink can be matched to a weather grid
// point.
func (r *IceRink) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
