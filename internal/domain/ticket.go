package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// TicketPriority enumerates SLA urgency. The values are ordered from low to critical.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// TicketPriorities lists every known priority in ascending urgency.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

// Rank returns the position of the priority in TicketPriorities, or -1 when unknown.
func (p TicketPriority) Rank() int {
	for i, candidate := range TicketPriorities {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	return p.Rank() >= 0
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                       string
	ExternalKey              string
	RequesterEmail           string
	AssigneeID               *string
	Title                    string
	Description              string
	Status                   TicketStatus
	Priority                 TicketPriority
	CreatedAt                time.Time
	UpdatedAt                time.Time
	FirstRespondedAt         *time.Time
	ResolvedAt               *time.Time
	ResponseBreachNotified   bool
	ResolutionBreachNotified bool
}

// SlaState projects the fields the SLA engine needs.
func (t *Ticket) SlaState() TicketSlaState {
	return TicketSlaState{
		TicketID:                 t.ID,
		Priority:                 t.Priority,
		CreatedAt:                t.CreatedAt,
		FirstRespondedAt:         t.FirstRespondedAt,
		ResolvedAt:               t.ResolvedAt,
		ResponseBreachNotified:   t.ResponseBreachNotified,
		ResolutionBreachNotified: t.ResolutionBreachNotified,
	}
}
