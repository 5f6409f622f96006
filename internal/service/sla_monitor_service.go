package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/events"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/repository"
	"github.com/luiscanel/service-desk/internal/sla"
	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

const (
	defaultMonitorBatchSize = 200
	defaultNearBreachWindow = 2 * time.Hour
)

// SlaMonitorService evaluates tickets against the catalog and raises breaches.
type SlaMonitorService struct {
	tickets    repository.TicketRepository
	catalog    *sla.Catalog
	engine     *sla.Engine
	notifier   *sla.Notifier
	metrics    *observability.Metrics
	logger     *zap.Logger
	nearWindow time.Duration
	batchSize  int
	now        func() time.Time
}

// SlaMonitorDependencies bundles collaborators for the monitor.
type SlaMonitorDependencies struct {
	TicketRepo       repository.TicketRepository
	Catalog          *sla.Catalog
	Engine           *sla.Engine
	Notifier         *sla.Notifier
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	NearBreachWindow time.Duration
	BatchSize        int
	Clock            func() time.Time
}

// TicketSlaReport is the evaluation of one ticket.
type TicketSlaReport struct {
	Ticket     domain.Ticket
	Policy     *domain.SlaPolicy
	Evaluation sla.Evaluation
	Breaches   []sla.Breach
}

// PriorityStats aggregates evaluations for one priority.
type PriorityStats struct {
	Total    int `json:"total"`
	OK       int `json:"ok"`
	Warning  int `json:"warning"`
	Breached int `json:"breached"`
	NoSLA    int `json:"no_sla"`
}

// SlaStats summarises SLA standing across open tickets.
type SlaStats struct {
	PriorityStats
	ComplianceRate float64                                 `json:"compliance_rate"`
	ByPriority     map[domain.TicketPriority]PriorityStats `json:"by_priority"`
	EvaluatedAt    time.Time                               `json:"evaluated_at"`
}

// NewSlaMonitorService constructs the monitor.
func NewSlaMonitorService(deps SlaMonitorDependencies) *SlaMonitorService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = sla.NewEngine(sla.DefaultWarningPercent)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	window := deps.NearBreachWindow
	if window <= 0 {
		window = defaultNearBreachWindow
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultMonitorBatchSize
	}
	return &SlaMonitorService{
		tickets:    deps.TicketRepo,
		catalog:    deps.Catalog,
		engine:     engine,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger,
		nearWindow: window,
		batchSize:  batch,
		now:        clock,
	}
}

// GetSlaStatus evaluates one ticket and raises any breach it has not yet
// reported. A failure to record the breach is logged; the status is still returned.
func (s *SlaMonitorService) GetSlaStatus(ctx context.Context, ticketID string) (*TicketSlaReport, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	report, err := s.CheckTicket(ctx, ticket)
	if report == nil {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("breach check failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return report, nil
}

// Deadlines evaluates one ticket without raising breaches.
func (s *SlaMonitorService) Deadlines(ctx context.Context, ticketID string) (*TicketSlaReport, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ticket)
}

// CheckTicket evaluates a ticket and claims its breach notifications. A
// non-nil report comes back with a flag store error so callers can still use
// the evaluation.
func (s *SlaMonitorService) CheckTicket(ctx context.Context, ticket *domain.Ticket) (*TicketSlaReport, error) {
	report, err := s.evaluate(ticket)
	if err != nil {
		return nil, err
	}
	if s.notifier == nil {
		return report, nil
	}

	state := ticket.SlaState()
	breaches, err := s.notifier.CheckAndNotify(ctx, &state, report.Policy, report.Evaluation)
	report.Ticket.ResponseBreachNotified = state.ResponseBreachNotified
	report.Ticket.ResolutionBreachNotified = state.ResolutionBreachNotified
	report.Breaches = breaches
	for _, breach := range breaches {
		s.metrics.RecordBreach(string(breach.Phase))
	}
	if err != nil {
		return report, fmt.Errorf("check breaches for ticket %s: %w", ticket.ID, err)
	}
	return report, nil
}

// Stats aggregates the standing of every open ticket.
func (s *SlaMonitorService) Stats(ctx context.Context) (*SlaStats, error) {
	stats := &SlaStats{
		ByPriority:  make(map[domain.TicketPriority]PriorityStats, len(domain.TicketPriorities)),
		EvaluatedAt: s.now().UTC(),
	}
	for _, p := range domain.TicketPriorities {
		stats.ByPriority[p] = PriorityStats{}
	}
	err := s.forEachOpen(ctx, func(report *TicketSlaReport) {
		bucket := stats.ByPriority[report.Ticket.Priority]
		bucket.add(report.Evaluation.Status)
		stats.ByPriority[report.Ticket.Priority] = bucket
		stats.add(report.Evaluation.Status)
	})
	if err != nil {
		return nil, err
	}
	stats.ComplianceRate = complianceRate(stats.Total, stats.Breached)
	return stats, nil
}

// NearBreach lists open tickets whose active deadline falls within the
// configured window, soonest first.
func (s *SlaMonitorService) NearBreach(ctx context.Context) ([]TicketSlaReport, error) {
	var result []TicketSlaReport
	err := s.forEachOpen(ctx, func(report *TicketSlaReport) {
		remaining := report.Evaluation.Remaining
		if remaining == nil || *remaining <= 0 || *remaining > s.nearWindow {
			return
		}
		result = append(result, *report)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		return *result[i].Evaluation.Remaining < *result[j].Evaluation.Remaining
	})
	return result, nil
}

// Breached lists open tickets past their active deadline, most overdue first.
func (s *SlaMonitorService) Breached(ctx context.Context) ([]TicketSlaReport, error) {
	var result []TicketSlaReport
	err := s.forEachOpen(ctx, func(report *TicketSlaReport) {
		if report.Evaluation.Status == domain.SlaStatusBreached {
			result = append(result, *report)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Evaluation.Deadline.Before(result[j].Evaluation.Deadline)
	})
	return result, nil
}

// WarningPercent exposes the engine threshold.
func (s *SlaMonitorService) WarningPercent() float64 {
	return s.engine.WarningPercent()
}

func (s *SlaMonitorService) evaluate(ticket *domain.Ticket) (*TicketSlaReport, error) {
	policy, err := s.catalog.ResolveActivePolicy(ticket.Priority)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	eval := s.engine.Evaluate(ticket.SlaState(), policy, s.now().UTC())
	s.metrics.RecordEvaluation(string(eval.Status))
	return &TicketSlaReport{Ticket: *ticket, Policy: policy, Evaluation: eval}, nil
}

// forEachOpen walks open tickets page by page. Tickets with an unknown
// priority are logged and skipped.
func (s *SlaMonitorService) forEachOpen(ctx context.Context, fn func(*TicketSlaReport)) error {
	afterID := ""
	for {
		page, err := s.tickets.ListOpen(ctx, afterID, s.batchSize)
		if err != nil {
			return apperrors.MapError(err)
		}
		for i := range page {
			report, err := s.evaluate(&page[i])
			if err != nil {
				s.logger.Warn("skipping ticket", zap.String("ticket_id", page[i].ID), zap.Error(err))
				continue
			}
			fn(report)
		}
		if len(page) < s.batchSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}

func (s *SlaMonitorService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (p *PriorityStats) add(status domain.SlaStatus) {
	p.Total++
	switch status {
	case domain.SlaStatusOK:
		p.OK++
	case domain.SlaStatusWarning:
		p.Warning++
	case domain.SlaStatusBreached:
		p.Breached++
	default:
		p.NoSLA++
	}
}

func complianceRate(total, breached int) float64 {
	if total == 0 {
		return 100
	}
	return float64(total-breached) / float64(total) * 100
}

// BreachPublisher forwards claimed breaches to the event dispatcher.
type BreachPublisher struct {
	dispatcher events.Dispatcher
}

// NewBreachPublisher wraps a dispatcher as a breach sink.
func NewBreachPublisher(dispatcher events.Dispatcher) *BreachPublisher {
	return &BreachPublisher{dispatcher: dispatcher}
}

// BreachDetected publishes an sla_breached event.
func (p *BreachPublisher) BreachDetected(ctx context.Context, breach sla.Breach) error {
	if p.dispatcher == nil {
		return nil
	}
	return p.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSlaBreached,
		TicketID:  breach.TicketID,
		Actor:     events.Actor{Type: domain.AuthorTypeSystem},
		Timestamp: breach.DetectedAt,
		Payload: events.SlaBreachedPayload{
			Phase:           breach.Phase,
			Priority:        breach.Priority,
			PolicyID:        breach.PolicyID,
			EscalationEmail: breach.EscalationEmail,
			Deadline:        breach.Deadline,
			DetectedAt:      breach.DetectedAt,
		},
	})
}
