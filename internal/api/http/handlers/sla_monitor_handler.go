package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/luiscanel/service-desk/internal/api/dto"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/service"
)

// QueueLengther reports how many notification jobs are waiting.
type QueueLengther interface {
	Len(ctx context.Context) (int64, error)
}

// SlaMonitorHandler exposes SLA dashboards.
type SlaMonitorHandler struct {
	monitor *service.SlaMonitorService
	metrics *observability.Metrics
	queue   QueueLengther
}

// NewSlaMonitorHandler constructs handler. queue may be nil.
func NewSlaMonitorHandler(monitor *service.SlaMonitorService, metrics *observability.Metrics, queue QueueLengther) *SlaMonitorHandler {
	return &SlaMonitorHandler{monitor: monitor, metrics: metrics, queue: queue}
}

// Stats GET /sla/monitor/stats.
func (h *SlaMonitorHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.monitor.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// NearBreach GET /sla/monitor/near-breach.
func (h *SlaMonitorHandler) NearBreach(c *fiber.Ctx) error {
	reports, err := h.monitor.NearBreach(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketEntries(reports)})
}

// Breached GET /sla/monitor/breached.
func (h *SlaMonitorHandler) Breached(c *fiber.Ctx) error {
	reports, err := h.monitor.Breached(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketEntries(reports)})
}

// Metrics GET /sla/monitor/metrics.
func (h *SlaMonitorHandler) Metrics(c *fiber.Ctx) error {
	data := fiber.Map{
		"warning_percent": h.monitor.WarningPercent(),
		"counters":        h.metrics.Snapshot(),
	}
	if h.queue != nil {
		if depth, err := h.queue.Len(c.UserContext()); err == nil {
			data["notification_queue_depth"] = depth
		} else {
			data["notification_queue_error"] = err.Error()
		}
	}
	return c.JSON(fiber.Map{"data": data})
}

func ticketEntries(reports []service.TicketSlaReport) []dto.SlaTicketEntry {
	entries := make([]dto.SlaTicketEntry, 0, len(reports))
	for _, r := range reports {
		entry := dto.SlaTicketEntry{
			TicketID:    r.Ticket.ID,
			ExternalKey: r.Ticket.ExternalKey,
			Title:       r.Ticket.Title,
			Priority:    r.Ticket.Priority,
			Status:      r.Evaluation.Status,
			Phase:       r.Evaluation.Phase,
			Deadline:    r.Evaluation.Deadline,
			Percentage:  r.Evaluation.Percentage,
		}
		if r.Evaluation.Remaining != nil {
			entry.Remaining = r.Evaluation.Remaining.Seconds()
		}
		entries = append(entries, entry)
	}
	return entries
}
