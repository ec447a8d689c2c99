package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the workflow state of a service ticket.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// transitions encodes the allowed workflow moves. Reopening a resolved
// ticket is allowed; closed is terminal.
var transitions = map[Status][]Status{
	StatusNew:        {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed, StatusInProgress},
	StatusClosed:     {},
}

// CanTransitionTo reports whether the workflow permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Priority orders the maintenance queue.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Source records who opened the ticket.
type Source string

const (
	SourceManual Source = "manual"
	SourceSSP    Source = "ssp"
)

// Ticket is a maintenance request tied to one rink and its organization.
type Ticket struct {
	ID             uuid.UUID
	Number         string
	IceRinkID      uuid.UUID
	OrganizationID uuid.UUID
	CreatedBy      *uuid.UUID
	AssignedTo     *uuid.UUID
	Priority       Priority
	Status         Status
	Category       string
	Title          string
	Description    string
	Source         Source
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Comment is a note on a ticket. Internal comments are hidden from client
// roles.
type Comment struct {
	ID        uuid.UUID
	TicketID  uuid.UUID
	UserID    uuid.UUID
	Comment   string
	Internal  bool
	CreatedAt time.Time
}

// Alarm is a control-system alert that opens a ticket automatically.
type Alarm struct {
	Type      string
	Severity  string
	Message   string
	Timestamp time.Time
}
