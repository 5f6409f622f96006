package http

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/luiscanel/service-desk/internal/domain"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memTickets struct {
	mu    sync.Mutex
	clock *clock
	rows  map[string]domain.Ticket
}

func (r *memTickets) Create(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = r.clock.Now()
	t.UpdatedAt = t.CreatedAt
	r.rows[t.ID] = *t
	return nil
}

func (r *memTickets) MarkResponded(_ context.Context, id string, at time.Time) (bool, error) {
	return r.guarded(id, func(t *domain.Ticket) bool {
		if t.FirstRespondedAt != nil {
			return false
		}
		t.FirstRespondedAt = &at
		if t.Status == domain.TicketStatusOpen {
			t.Status = domain.TicketStatusInProgress
		}
		return true
	})
}

func (r *memTickets) MarkResolved(_ context.Context, id string, at time.Time) (bool, error) {
	return r.guarded(id, func(t *domain.Ticket) bool {
		t.ResolvedAt = &at
		t.Status = domain.TicketStatusResolved
		return true
	})
}

func (r *memTickets) UpdatePriority(_ context.Context, id string, priority domain.TicketPriority) (bool, error) {
	return r.guarded(id, func(t *domain.Ticket) bool {
		t.Priority = priority
		return true
	})
}

// guarded applies fn to an unresolved ticket.
func (r *memTickets) guarded(id string, fn func(*domain.Ticket) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.ResolvedAt != nil || !fn(&t) {
		return false, nil
	}
	t.UpdatedAt = r.clock.Now()
	r.rows[id] = t
	return true, nil
}

func (r *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *memTickets) ListOpen(_ context.Context, afterID string, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for id, t := range r.rows {
		if t.ResolvedAt == nil && id > afterID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTickets) MarkBreachNotified(_ context.Context, id string, phase domain.SlaPhase) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	flag := &t.ResponseBreachNotified
	if phase == domain.SlaPhaseResolution {
		flag = &t.ResolutionBreachNotified
	}
	if *flag {
		return false, nil
	}
	*flag = true
	r.rows[id] = t
	return true, nil
}

type memPolicies struct {
	mu    sync.Mutex
	clock *clock
	seq   int
	rows  map[string]domain.SlaPolicy
}

func (r *memPolicies) Create(_ context.Context, p *domain.SlaPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p.ID = uuid.NewString()
	p.CreatedAt = r.clock.Now().Add(time.Duration(r.seq) * time.Millisecond)
	p.UpdatedAt = p.CreatedAt
	r.rows[p.ID] = *p
	return nil
}

func (r *memPolicies) Update(_ context.Context, p *domain.SlaPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.rows[p.ID] = *p
	return nil
}

func (r *memPolicies) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *memPolicies) GetByID(_ context.Context, id string) (*domain.SlaPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r *memPolicies) List(_ context.Context) ([]domain.SlaPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SlaPolicy, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, p)
	}
	return out, nil
}

func (r *memPolicies) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

type memMessages struct {
	mu    sync.Mutex
	clock *clock
	rows  []domain.TicketMessage
}

func (r *memMessages) Create(_ context.Context, m *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = fmt.Sprintf("m-%03d", len(r.rows)+1)
	m.CreatedAt = r.clock.Now()
	r.rows = append(r.rows, *m)
	return nil
}

func (r *memMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range r.rows {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memStaff map[string]*domain.StaffMember

func (r memStaff) Create(_ context.Context, s *domain.StaffMember) error {
	r[s.ID] = s
	return nil
}

func (r memStaff) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	s, ok := r[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r memStaff) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	for _, s := range r {
		if s.Email == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type queueDepth int64

func (q queueDepth) Len(context.Context) (int64, error) { return int64(q), nil }
