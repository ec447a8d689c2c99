package models

import (
	"time"

	"github.com/google/uuid"
)

// ConfigEntry is one runtime configuration key. Encrypted entries hold
// secrets; their values are redacted on the way out.
type ConfigEntry struct {
	ID          uuid.UUID
	Key         string
	Value       string
	Description string
	Category    string
	Encrypted   bool
	UpdatedAt   time.Time
	UpdatedBy   *uuid.UUID
}

// Status is an operational snapshot of the platform.
type Status struct {
	SystemStatus   string
	DatabaseStatus string
	SSPConnections int
	UptimeSeconds  int64
}
