package events

import (
	"time"

	"github.com/luiscanel/service-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketResponded       EventType = "ticket_responded"
	EventTicketResolved        EventType = "ticket_resolved"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventSlaBreached           EventType = "sla_breached"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.MessageAuthorType `json:"type"`
	StaffID *string                  `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string                `json:"external_key"`
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
}

// TicketRespondedPayload payload.
type TicketRespondedPayload struct {
	MessageID   string    `json:"message_id"`
	RespondedAt time.Time `json:"responded_at"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	ResolvedAt time.Time        `json:"resolved_at"`
	SlaStatus  domain.SlaStatus `json:"sla_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// SlaBreachedPayload payload.
type SlaBreachedPayload struct {
	Phase           domain.SlaPhase       `json:"phase"`
	Priority        domain.TicketPriority `json:"priority"`
	PolicyID        string                `json:"policy_id"`
	EscalationEmail *string               `json:"escalation_email,omitempty"`
	Deadline        time.Time             `json:"deadline"`
	DetectedAt      time.Time             `json:"detected_at"`
}
