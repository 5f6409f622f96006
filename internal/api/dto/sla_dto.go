package dto

import (
	"time"

	"github.com/luiscanel/service-desk/internal/domain"
)

// SlaPolicyRequest is the create payload for a policy.
type SlaPolicyRequest struct {
	Name                string                `json:"name"`
	Description         string                `json:"description"`
	Priority            domain.TicketPriority `json:"priority"`
	ResponseTimeHours   float64               `json:"response_time_hours"`
	ResolutionTimeHours float64               `json:"resolution_time_hours"`
	IsActive            *bool                 `json:"is_active"`
	NotifyOnBreach      *bool                 `json:"notify_on_breach"`
	EscalationEmail     *string               `json:"escalation_email"`
}

// SlaPolicyUpdateRequest is the partial update payload; omitted fields keep their value.
type SlaPolicyUpdateRequest struct {
	Name                *string                `json:"name"`
	Description         *string                `json:"description"`
	Priority            *domain.TicketPriority `json:"priority"`
	ResponseTimeHours   *float64               `json:"response_time_hours"`
	ResolutionTimeHours *float64               `json:"resolution_time_hours"`
	IsActive            *bool                  `json:"is_active"`
	NotifyOnBreach      *bool                  `json:"notify_on_breach"`
	EscalationEmail     *string                `json:"escalation_email"`
}

// SlaPolicyResponse renders a policy.
type SlaPolicyResponse struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Description         string                `json:"description"`
	Priority            domain.TicketPriority `json:"priority"`
	ResponseTimeHours   float64               `json:"response_time_hours"`
	ResolutionTimeHours float64               `json:"resolution_time_hours"`
	IsActive            bool                  `json:"is_active"`
	NotifyOnBreach      bool                  `json:"notify_on_breach"`
	EscalationEmail     *string               `json:"escalation_email"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// SlaStatusResponse reports a ticket's standing. Remaining is in seconds,
// negative once overdue, and null when no policy applies.
type SlaStatusResponse struct {
	TicketID   string           `json:"ticket_id"`
	Priority   string           `json:"priority"`
	Status     domain.SlaStatus `json:"status"`
	Phase      *domain.SlaPhase `json:"phase"`
	Deadline   *time.Time       `json:"deadline"`
	Remaining  *float64         `json:"remaining"`
	Percentage float64          `json:"percentage"`
	PolicyID   *string          `json:"policy_id"`
	Resolved   bool             `json:"resolved"`

	ResponseBreachNotified   bool `json:"response_breach_notified"`
	ResolutionBreachNotified bool `json:"resolution_breach_notified"`
}

// SlaDeadlinesResponse lists both deadlines of a ticket.
type SlaDeadlinesResponse struct {
	TicketID           string     `json:"ticket_id"`
	PolicyID           *string    `json:"policy_id"`
	CreatedAt          time.Time  `json:"created_at"`
	FirstRespondedAt   *time.Time `json:"first_responded_at"`
	ResolvedAt         *time.Time `json:"resolved_at"`
	ResponseDeadline   *time.Time `json:"response_deadline"`
	ResolutionDeadline *time.Time `json:"resolution_deadline"`
	ResponseBreached   bool       `json:"response_breached"`
	ResolutionBreached bool       `json:"resolution_breached"`
}

// SlaTicketEntry is one ticket in a monitor listing.
type SlaTicketEntry struct {
	TicketID    string                `json:"ticket_id"`
	ExternalKey string                `json:"external_key"`
	Title       string                `json:"title"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.SlaStatus      `json:"status"`
	Phase       domain.SlaPhase       `json:"phase"`
	Deadline    time.Time             `json:"deadline"`
	Remaining   float64               `json:"remaining"`
	Percentage  float64               `json:"percentage"`
}
