package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/luiscanel/service-desk/internal/api/dto"
	"github.com/luiscanel/service-desk/internal/auth"
	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/service"
	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

// TicketsHandler manages staff ticket endpoints and per-ticket SLA views.
type TicketsHandler struct {
	service *service.TicketService
	monitor *service.SlaMonitorService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, monitor *service.SlaMonitorService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, monitor: monitor}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), staff, service.TicketCreateInput{
		RequesterEmail: req.RequesterEmail,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	ticket, msgs, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, msgs)})
}

// AddReply POST /tickets/:id/replies.
func (h *TicketsHandler) AddReply(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	msg, _, err := h.service.AddStaffReply(c.UserContext(), staff, id, req.MessageType, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(*msg)})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	ticket, err := h.service.ResolveTicket(c.UserContext(), staff, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdatePriority PATCH /tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	ticket, err := h.service.UpdatePriority(c.UserContext(), staff, id, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), id, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            e.ID,
			ChangeType:    e.ChangeType,
			ChangedByType: e.ChangedByType,
			ChangedByID:   e.ChangedByID,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SlaStatus GET /tickets/:id/sla-status.
func (h *TicketsHandler) SlaStatus(c *fiber.Ctx) error {
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	report, err := h.monitor.GetSlaStatus(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaStatusResponse(report)})
}

// SlaDeadlines GET /tickets/:id/sla-deadlines.
func (h *TicketsHandler) SlaDeadlines(c *fiber.Ctx) error {
	id, err := resourceID(c, "ticket")
	if err != nil {
		return err
	}
	report, err := h.monitor.Deadlines(c.UserContext(), id)
	if err != nil {
		return err
	}
	resp := dto.SlaDeadlinesResponse{
		TicketID:           report.Ticket.ID,
		CreatedAt:          report.Ticket.CreatedAt,
		FirstRespondedAt:   report.Ticket.FirstRespondedAt,
		ResolvedAt:         report.Ticket.ResolvedAt,
		ResponseBreached:   report.Evaluation.ResponseBreached,
		ResolutionBreached: report.Evaluation.ResolutionBreached,
	}
	if report.Policy != nil {
		resp.PolicyID = &report.Policy.ID
		resp.ResponseDeadline = timePtr(report.Evaluation.ResponseDeadline)
		resp.ResolutionDeadline = timePtr(report.Evaluation.ResolutionDeadline)
	}
	return c.JSON(fiber.Map{"data": resp})
}

func currentStaff(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Staff, nil
}

func slaStatusResponse(report *service.TicketSlaReport) dto.SlaStatusResponse {
	eval := report.Evaluation
	resp := dto.SlaStatusResponse{
		TicketID:                 report.Ticket.ID,
		Priority:                 string(report.Ticket.Priority),
		Status:                   eval.Status,
		Percentage:               eval.Percentage,
		Resolved:                 eval.Resolved,
		ResponseBreachNotified:   report.Ticket.ResponseBreachNotified,
		ResolutionBreachNotified: report.Ticket.ResolutionBreachNotified,
	}
	if report.Policy == nil {
		return resp
	}
	phase := eval.Phase
	resp.Phase = &phase
	resp.Deadline = timePtr(eval.Deadline)
	resp.PolicyID = &report.Policy.ID
	if eval.Remaining != nil {
		seconds := eval.Remaining.Seconds()
		resp.Remaining = &seconds
	}
	return resp
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:               ticket.ID,
		ExternalKey:      ticket.ExternalKey,
		RequesterEmail:   ticket.RequesterEmail,
		AssigneeID:       ticket.AssigneeID,
		Title:            ticket.Title,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
		FirstRespondedAt: ticket.FirstRespondedAt,
		ResolvedAt:       ticket.ResolvedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, msgs []domain.TicketMessage) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketSummary:            ticketSummary(ticket),
		Description:              ticket.Description,
		ResponseBreachNotified:   ticket.ResponseBreachNotified,
		ResolutionBreachNotified: ticket.ResolutionBreachNotified,
		Messages:                 make([]dto.TicketMessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageResponse(m))
	}
	return resp
}

func messageResponse(m domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          m.ID,
		MessageType: m.MessageType,
		AuthorType:  m.AuthorType,
		AuthorID:    m.AuthorID,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
