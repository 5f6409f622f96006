package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luiscanel/service-desk/internal/config"
	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/events"
	"github.com/luiscanel/service-desk/internal/repository"
)

// JobQueue accepts delivery jobs for the mail worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job any) error
}

// BreachEmailJob is the queued escalation e-mail for one breach.
type BreachEmailJob struct {
	Type      string          `json:"type"`
	Phase     domain.SlaPhase `json:"phase"`
	TicketID  string          `json:"ticket_id"`
	TicketKey string          `json:"ticket_key"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Subject   string          `json:"subject"`
	Deadline  time.Time       `json:"deadline"`
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	queue      JobQueue
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators for notification delivery.
type NotificationDependencies struct {
	Dispatcher  events.Dispatcher
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Queue       JobQueue
	Logger      *zap.Logger
	Config      config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		queue:      deps.Queue,
		logger:     logger,
		cfg:        deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketResponded, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventSlaBreached, n.handleSlaBreached)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// handleSlaBreached records the breach on the ticket history and queues the
// escalation e-mail. Each step is attempted even if an earlier one failed.
func (n *NotificationService) handleSlaBreached(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlaBreachedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Warn("sla breached",
		zap.String("ticket_id", event.TicketID),
		zap.String("phase", string(payload.Phase)),
		zap.String("priority", string(payload.Priority)),
		zap.Time("deadline", payload.Deadline))

	var failed []string
	if err := n.recordBreach(ctx, event.TicketID, payload); err != nil {
		n.logger.Error("record sla breach failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		failed = append(failed, "history")
	}
	if err := n.enqueueBreachEmail(ctx, event.TicketID, payload); err != nil {
		n.logger.Error("enqueue breach email failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		failed = append(failed, "email")
	}
	n.sendWebhookNotificationStub(ctx, event)

	if len(failed) > 0 {
		return fmt.Errorf("sla breach delivery incomplete: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (n *NotificationService) recordBreach(ctx context.Context, ticketID string, payload events.SlaBreachedPayload) error {
	if n.history == nil {
		return nil
	}
	return n.history.Create(ctx, &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: domain.AuthorTypeSystem,
		ChangeType:    domain.ChangeTypeSlaBreach,
		NewValue: map[string]any{
			"phase":       payload.Phase,
			"policy_id":   payload.PolicyID,
			"deadline":    payload.Deadline,
			"detected_at": payload.DetectedAt,
		},
	})
}

func (n *NotificationService) enqueueBreachEmail(ctx context.Context, ticketID string, payload events.SlaBreachedPayload) error {
	if n.queue == nil || payload.EscalationEmail == nil || strings.TrimSpace(*payload.EscalationEmail) == "" {
		return nil
	}
	key := ticketID
	if n.tickets != nil {
		ticket, err := n.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("load ticket: %w", err)
		}
		key = ticket.ExternalKey
	}
	job := BreachEmailJob{
		Type:      "sla_breach",
		Phase:     payload.Phase,
		TicketID:  ticketID,
		TicketKey: key,
		From:      n.cfg.EmailFrom,
		To:        strings.TrimSpace(*payload.EscalationEmail),
		Subject:   breachSubject(key, payload.Phase),
		Deadline:  payload.Deadline,
	}
	return n.queue.Enqueue(ctx, job)
}

func breachSubject(ticketKey string, phase domain.SlaPhase) string {
	return fmt.Sprintf("[SLA breach] %s missed its %s deadline", ticketKey, phase)
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
