package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luiscanel/service-desk/internal/config"
	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/events"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/sla"
	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

type harness struct {
	clock     *fakeClock
	tickets   *fakeTicketRepo
	policies  *fakePolicyRepo
	messages  *fakeMessageRepo
	history   *fakeHistoryRepo
	queue     *fakeQueue
	publisher *fakePublisher
	recorder  *eventRecorder
	catalog   *sla.Catalog
	metrics   *observability.Metrics

	policySvc *SlaPolicyService
	ticketSvc *TicketService
	monitor   *SlaMonitorService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &fakeClock{now: t0}}
	h.tickets = newFakeTicketRepo(h.clock)
	h.policies = newFakePolicyRepo(h.clock)
	h.messages = &fakeMessageRepo{clock: h.clock}
	h.history = &fakeHistoryRepo{}
	h.queue = &fakeQueue{}
	h.publisher = &fakePublisher{}
	h.catalog = sla.NewCatalog()
	h.metrics = observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher(nil)
	h.recorder = recordAll(dispatcher)
	NewNotificationService(NotificationDependencies{
		Dispatcher:  dispatcher,
		TicketRepo:  h.tickets,
		HistoryRepo: h.history,
		Queue:       h.queue,
		Config:      config.NotificationConfig{EmailFrom: "sla@example.com"},
	}).RegisterHandlers()

	engine := sla.NewEngine(sla.DefaultWarningPercent)
	h.policySvc = NewSlaPolicyService(SlaPolicyDependencies{
		PolicyRepo: h.policies,
		Catalog:    h.catalog,
		Publisher:  h.publisher,
	})
	h.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo:  h.tickets,
		MessageRepo: h.messages,
		HistoryRepo: h.history,
		Catalog:     h.catalog,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Clock:       h.clock.Now,
	})
	h.monitor = NewSlaMonitorService(SlaMonitorDependencies{
		TicketRepo:       h.tickets,
		Catalog:          h.catalog,
		Engine:           engine,
		Notifier:         sla.NewNotifier(h.tickets, NewBreachPublisher(dispatcher), nil),
		Metrics:          h.metrics,
		NearBreachWindow: 3 * time.Hour,
		BatchSize:        2,
		Clock:            h.clock.Now,
	})

	if _, err := h.policySvc.EnsureDefaultPolicies(context.Background()); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	return h
}

func (h *harness) createTicket(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := h.ticketSvc.CreateTicket(context.Background(), agent, TicketCreateInput{
		RequesterEmail: "customer@example.com",
		Title:          "Printer on fire",
		Priority:       priority,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (h *harness) policyFor(t *testing.T, priority domain.TicketPriority) *domain.SlaPolicy {
	t.Helper()
	policy, err := h.catalog.ResolveActivePolicy(priority)
	if err != nil || policy == nil {
		t.Fatalf("no policy for %s: %v", priority, err)
	}
	return policy
}

func errorCode(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
