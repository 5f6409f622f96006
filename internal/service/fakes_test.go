package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/events"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	clock   *fakeClock
	seq     int
	tickets map[string]*domain.Ticket
	markErr error
	marks   int
}

func newFakeTicketRepo(clock *fakeClock) *fakeTicketRepo {
	return &fakeTicketRepo{clock: clock, tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%03d", r.seq)
	ticket.CreatedAt = r.clock.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) MarkResponded(_ context.Context, ticketID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticketID]
	if !ok || stored.FirstRespondedAt != nil || stored.ResolvedAt != nil {
		return false, nil
	}
	stored.FirstRespondedAt = &at
	if stored.Status == domain.TicketStatusOpen {
		stored.Status = domain.TicketStatusInProgress
	}
	stored.UpdatedAt = r.clock.Now()
	return true, nil
}

func (r *fakeTicketRepo) MarkResolved(_ context.Context, ticketID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticketID]
	if !ok || stored.ResolvedAt != nil {
		return false, nil
	}
	stored.ResolvedAt = &at
	stored.Status = domain.TicketStatusResolved
	stored.UpdatedAt = r.clock.Now()
	return true, nil
}

func (r *fakeTicketRepo) UpdatePriority(_ context.Context, ticketID string, priority domain.TicketPriority) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticketID]
	if !ok || stored.ResolvedAt != nil {
		return false, nil
	}
	stored.Priority = priority
	stored.UpdatedAt = r.clock.Now()
	return true, nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *stored
	return &cp, nil
}

func (r *fakeTicketRepo) ListOpen(_ context.Context, afterID string, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, t := range r.tickets {
		if t.ResolvedAt == nil && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	page := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		page = append(page, *r.tickets[id])
	}
	return page, nil
}

func (r *fakeTicketRepo) MarkBreachNotified(_ context.Context, ticketID string, phase domain.SlaPhase) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return false, r.markErr
	}
	stored, ok := r.tickets[ticketID]
	if !ok {
		return false, nil
	}
	flag := &stored.ResponseBreachNotified
	if phase == domain.SlaPhaseResolution {
		flag = &stored.ResolutionBreachNotified
	}
	if *flag {
		return false, nil
	}
	*flag = true
	r.marks++
	return true, nil
}

// put stores a ticket as-is, keeping its timestamps.
func (r *fakeTicketRepo) put(ticket domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = &ticket
}

type fakePolicyRepo struct {
	mu       sync.Mutex
	clock    *fakeClock
	seq      int
	policies map[string]domain.SlaPolicy
}

func newFakePolicyRepo(clock *fakeClock) *fakePolicyRepo {
	return &fakePolicyRepo{clock: clock, policies: map[string]domain.SlaPolicy{}}
}

func (r *fakePolicyRepo) Create(_ context.Context, policy *domain.SlaPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	policy.ID = fmt.Sprintf("policy-%03d", r.seq)
	policy.CreatedAt = r.clock.Now().Add(time.Duration(r.seq) * time.Millisecond)
	policy.UpdatedAt = policy.CreatedAt
	r.policies[policy.ID] = *policy
	return nil
}

func (r *fakePolicyRepo) Update(_ context.Context, policy *domain.SlaPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[policy.ID]; !ok {
		return pgx.ErrNoRows
	}
	policy.UpdatedAt = r.clock.Now()
	r.policies[policy.ID] = *policy
	return nil
}

func (r *fakePolicyRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.policies, id)
	return nil
}

func (r *fakePolicyRepo) GetByID(_ context.Context, id string) (*domain.SlaPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	policy, ok := r.policies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &policy, nil
}

func (r *fakePolicyRepo) List(_ context.Context) ([]domain.SlaPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SlaPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePolicyRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.policies), nil
}

type fakeMessageRepo struct {
	mu    sync.Mutex
	clock *fakeClock
	msgs  []domain.TicketMessage
	// afterCreate runs once the message is stored, outside the lock.
	afterCreate func()
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	msg.ID = fmt.Sprintf("msg-%03d", len(r.msgs)+1)
	msg.CreatedAt = r.clock.Now()
	r.msgs = append(r.msgs, *msg)
	hook := r.afterCreate
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range r.msgs {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
	err     error
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	entry.ID = fmt.Sprintf("hist-%03d", len(r.entries)+1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeHistoryRepo) ofType(changeType domain.TicketChangeType) []domain.TicketHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.ChangeType == changeType {
			out = append(out, e)
		}
	}
	return out
}

type fakeStaffRepo struct {
	mu    sync.Mutex
	staff map[string]*domain.StaffMember
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{staff: map[string]*domain.StaffMember{}}
}

func (r *fakeStaffRepo) Create(_ context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staff.ID = fmt.Sprintf("staff-%03d", len(r.staff)+1)
	cp := *staff
	r.staff[staff.ID] = &cp
	return nil
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStaffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.staff {
		if s.Email == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []any
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *fakePublisher) PublishPolicyChange(_ context.Context, policyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, policyID)
	return nil
}

// eventRecorder collects published events by subscribing to a real dispatcher.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func recordAll(d events.Dispatcher) *eventRecorder {
	rec := &eventRecorder{}
	for _, t := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketResponded,
		events.EventTicketResolved,
		events.EventTicketPriorityChanged,
		events.EventSlaBreached,
	} {
		d.Subscribe(t, rec.handle)
	}
	return rec
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

var agent = &domain.StaffMember{ID: "staff-agent", Role: domain.StaffRoleAgent, Active: true}
