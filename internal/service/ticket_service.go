package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/events"
	"github.com/luiscanel/service-desk/internal/repository"
	"github.com/luiscanel/service-desk/internal/sla"
	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle events the SLA clock depends on.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	catalog    *sla.Catalog
	engine     *sla.Engine
	dispatcher events.Dispatcher
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	HistoryRepo repository.TicketHistoryRepository
	Catalog     *sla.Catalog
	Engine      *sla.Engine
	Dispatcher  events.Dispatcher
	Clock       func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterEmail string
	Title          string
	Description    string
	Priority       domain.TicketPriority
	AssigneeID     *string
}

// NewTicketService constructs service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	engine := deps.Engine
	if engine == nil {
		engine = sla.NewEngine(sla.DefaultWarningPercent)
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		catalog:    deps.Catalog,
		engine:     engine,
		dispatcher: deps.Dispatcher,
		now:        clock,
	}
}

// CreateTicket opens a ticket on behalf of a requester. The SLA clock starts at
// the stored creation time.
func (s *TicketService) CreateTicket(ctx context.Context, staff *domain.StaffMember, input TicketCreateInput) (*domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	ticket := &domain.Ticket{
		ExternalKey:    generateTicketKey(),
		RequesterEmail: strings.TrimSpace(input.RequesterEmail),
		AssigneeID:     input.AssigneeID,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Status:         domain.TicketStatusOpen,
		Priority:       input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if !ticket.Priority.Valid() {
		return nil, unknownPriority(ticket.Priority)
	}

	details := map[string]any{}
	if ticket.Title == "" {
		details["title"] = "required"
	}
	if _, err := mail.ParseAddress(ticket.RequesterEmail); err != nil {
		details["requester_email"] = "invalid address"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    staffActor(staff.ID),
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Priority:    ticket.Priority,
			Title:       ticket.Title,
		},
	})
	return ticket, nil
}

// GetTicket returns a ticket and its thread.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// AddStaffReply stores a staff message. The first public reply stops the
// response clock; internal notes never do.
func (s *TicketService) AddStaffReply(ctx context.Context, staff *domain.StaffMember, ticketID string, messageType domain.TicketMessageType, body string) (*domain.TicketMessage, *domain.Ticket, error) {
	if staff == nil {
		return nil, nil, apperrors.NewUnauthorized("staff required")
	}
	if messageType == "" {
		messageType = domain.MessageTypePublicReply
	}
	if messageType != domain.MessageTypePublicReply && messageType != domain.MessageTypeInternalNote {
		return nil, nil, apperrors.NewValidationError("invalid message type", map[string]any{"message_type": messageType})
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil, apperrors.NewValidationError("message body required", map[string]any{"body": "required"})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.ResolvedAt != nil {
		return nil, nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticket.ID})
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorType:  domain.AuthorTypeStaff,
		AuthorID:    &staff.ID,
		MessageType: messageType,
		Body:        body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if messageType != domain.MessageTypePublicReply || ticket.FirstRespondedAt != nil {
		return msg, ticket, nil
	}

	respondedAt := msg.CreatedAt
	if respondedAt.Before(ticket.CreatedAt) {
		respondedAt = ticket.CreatedAt
	}
	won, err := s.tickets.MarkResponded(ctx, ticket.ID, respondedAt)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if !won {
		// A concurrent reply or resolve got there first; the stored ticket wins.
		current, err := s.loadTicket(ctx, ticket.ID)
		if err != nil {
			return nil, nil, err
		}
		return msg, current, nil
	}
	oldStatus := ticket.Status
	ticket.FirstRespondedAt = &respondedAt
	if ticket.Status == domain.TicketStatusOpen {
		ticket.Status = domain.TicketStatusInProgress
	}
	if err := s.recordHistory(ctx, &staff.ID, ticket.ID, domain.ChangeTypeResponse,
		nil, map[string]any{"first_responded_at": respondedAt, "message_id": msg.ID}); err != nil {
		return nil, nil, err
	}
	if oldStatus != ticket.Status {
		if err := s.recordStatusChange(ctx, &staff.ID, ticket.ID, oldStatus, ticket.Status); err != nil {
			return nil, nil, err
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResponded,
		TicketID: ticket.ID,
		Actor:    staffActor(staff.ID),
		Payload: events.TicketRespondedPayload{
			MessageID:   msg.ID,
			RespondedAt: respondedAt,
		},
	})
	return msg, ticket, nil
}

// ResolveTicket stops both SLA clocks. Resolving twice is a conflict.
func (s *TicketService) ResolveTicket(ctx context.Context, staff *domain.StaffMember, ticketID string) (*domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ResolvedAt != nil {
		return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticket.ID})
	}

	resolvedAt := s.now().UTC()
	if resolvedAt.Before(ticket.CreatedAt) {
		resolvedAt = ticket.CreatedAt
	}
	won, err := s.tickets.MarkResolved(ctx, ticket.ID, resolvedAt)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticket.ID})
	}
	oldStatus := ticket.Status
	ticket.ResolvedAt = &resolvedAt
	ticket.Status = domain.TicketStatusResolved
	if err := s.recordStatusChange(ctx, &staff.ID, ticket.ID, oldStatus, ticket.Status); err != nil {
		return nil, err
	}

	status := domain.SlaStatusNoSLA
	if s.catalog != nil {
		if policy, err := s.catalog.ResolveActivePolicy(ticket.Priority); err == nil {
			status = s.engine.Evaluate(ticket.SlaState(), policy, resolvedAt).Status
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		Actor:    staffActor(staff.ID),
		Payload: events.TicketResolvedPayload{
			ResolvedAt: resolvedAt,
			SlaStatus:  status,
		},
	})
	return ticket, nil
}

// UpdatePriority changes ticket priority. Deadlines follow the new priority's
// policy on the next evaluation; breach flags already set stay set.
func (s *TicketService) UpdatePriority(ctx context.Context, staff *domain.StaffMember, ticketID string, newPriority domain.TicketPriority) (*domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if !newPriority.Valid() {
		return nil, unknownPriority(newPriority)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ResolvedAt != nil {
		return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticket.ID})
	}
	oldPriority := ticket.Priority
	if oldPriority == newPriority {
		return ticket, nil
	}
	won, err := s.tickets.UpdatePriority(ctx, ticket.ID, newPriority)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		return nil, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticket.ID})
	}
	ticket.Priority = newPriority
	if err := s.recordHistory(ctx, &staff.ID, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority}, map[string]any{"priority": newPriority}); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticket.ID,
		Actor:    staffActor(staff.ID),
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
	return ticket, nil
}

// ListHistory returns audit entries for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func staffActor(staffID string) events.Actor {
	return events.Actor{
		Type:    domain.AuthorTypeStaff,
		StaffID: &staffID,
	}
}

func (s *TicketService) recordStatusChange(ctx context.Context, actorID *string, ticketID string, oldStatus, newStatus domain.TicketStatus) error {
	return s.recordHistory(ctx, actorID, ticketID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus}, map[string]any{"status": newStatus})
}

func (s *TicketService) recordHistory(ctx context.Context, actorID *string, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: domain.AuthorTypeStaff,
		ChangedByID:   actorID,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	return apperrors.MapError(s.history.Create(ctx, entry))
}

func unknownPriority(priority domain.TicketPriority) error {
	return apperrors.MapError(&sla.UnknownPriorityError{Priority: priority})
}
