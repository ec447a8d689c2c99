package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an organization.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Type distinguishes paying client organizations from service partners.
type Type string

const (
	TypeClient  Type = "client"
	TypePartner Type = "partner"
)

func (t Type) Valid() bool {
	return t == TypeClient || t == TypePartner
}

// Organization is a tenant. Every user and ice rink belongs to exactly one.
type Organization struct {
	ID            uuid.UUID
	Name          string
	Type          Type
	Address       string
	ContactPerson string
	ContactEmail  string
	ContactPhone  string
	TaxID         string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o *Organization) Active() bool {
	return o.Status == StatusActive
}
