package dto

import (
	"time"

	"github.com/luiscanel/service-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterEmail string                `json:"requester_email"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	AssigneeID     *string               `json:"assignee_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID               string                `json:"id"`
	ExternalKey      string                `json:"external_key"`
	RequesterEmail   string                `json:"requester_email"`
	AssigneeID       *string               `json:"assignee_id"`
	Title            string                `json:"title"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	FirstRespondedAt *time.Time            `json:"first_responded_at"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description              string                  `json:"description"`
	ResponseBreachNotified   bool                    `json:"response_breach_notified"`
	ResolutionBreachNotified bool                    `json:"resolution_breach_notified"`
	Messages                 []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string                   `json:"body"`
	MessageType domain.TicketMessageType `json:"message_type,omitempty"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            string                   `json:"id"`
	ChangeType    domain.TicketChangeType  `json:"change_type"`
	ChangedByType domain.MessageAuthorType `json:"changed_by_type"`
	ChangedByID   *string                  `json:"changed_by_id"`
	OldValue      map[string]any           `json:"old_value"`
	NewValue      map[string]any           `json:"new_value"`
	CreatedAt     time.Time                `json:"created_at"`
}
