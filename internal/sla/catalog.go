package sla

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luiscanel/service-desk/internal/domain"
)

// PolicyStore supplies the policies a Catalog is built from.
type PolicyStore interface {
	List(ctx context.Context) ([]domain.SlaPolicy, error)
}

// Catalog holds the SLA policies keyed by priority.
//
// Readers work on an immutable snapshot and never block; writers build a new
// snapshot and swap it in.
type Catalog struct {
	writeMu  sync.Mutex
	snapshot atomic.Pointer[catalogSnapshot]
}

type catalogSnapshot struct {
	byID   map[string]domain.SlaPolicy
	active map[domain.TicketPriority]domain.SlaPolicy
}

// NewCatalog returns a catalog seeded with the given policies.
func NewCatalog(policies ...domain.SlaPolicy) *Catalog {
	c := &Catalog{}
	c.Replace(policies)
	return c
}

// ResolveActivePolicy returns the active policy for priority, or nil when no
// policy applies. When several active policies share a priority the most
// recently created one wins.
func (c *Catalog) ResolveActivePolicy(priority domain.TicketPriority) (*domain.SlaPolicy, error) {
	if !priority.Valid() {
		return nil, &UnknownPriorityError{Priority: priority}
	}
	policy, ok := c.load().active[priority]
	if !ok {
		return nil, nil
	}
	return &policy, nil
}

// Get returns a policy by id regardless of its active flag.
func (c *Catalog) Get(id string) (*domain.SlaPolicy, bool) {
	policy, ok := c.load().byID[id]
	if !ok {
		return nil, false
	}
	return &policy, true
}

// Len returns the number of policies held.
func (c *Catalog) Len() int {
	return len(c.load().byID)
}

// Upsert inserts or replaces a policy.
func (c *Catalog) Upsert(policy domain.SlaPolicy) {
	c.mutate(func(byID map[string]domain.SlaPolicy) {
		byID[policy.ID] = policy
	})
}

// Remove drops a policy by id.
func (c *Catalog) Remove(id string) {
	c.mutate(func(byID map[string]domain.SlaPolicy) {
		delete(byID, id)
	})
}

// Replace swaps the whole catalog content.
func (c *Catalog) Replace(policies []domain.SlaPolicy) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	byID := make(map[string]domain.SlaPolicy, len(policies))
	for _, policy := range policies {
		byID[policy.ID] = policy
	}
	c.snapshot.Store(buildSnapshot(byID))
}

// Refresh reloads every policy from store.
func (c *Catalog) Refresh(ctx context.Context, store PolicyStore) error {
	policies, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("load sla policies: %w", err)
	}
	c.Replace(policies)
	return nil
}

func (c *Catalog) mutate(fn func(map[string]domain.SlaPolicy)) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	current := c.load()
	byID := make(map[string]domain.SlaPolicy, len(current.byID)+1)
	for id, policy := range current.byID {
		byID[id] = policy
	}
	fn(byID)
	c.snapshot.Store(buildSnapshot(byID))
}

func (c *Catalog) load() *catalogSnapshot {
	if snap := c.snapshot.Load(); snap != nil {
		return snap
	}
	return &catalogSnapshot{}
}

func buildSnapshot(byID map[string]domain.SlaPolicy) *catalogSnapshot {
	active := make(map[domain.TicketPriority]domain.SlaPolicy, len(domain.TicketPriorities))
	for _, policy := range byID {
		if !policy.IsActive || !policy.Priority.Valid() {
			continue
		}
		current, ok := active[policy.Priority]
		if !ok || newerPolicy(policy, current) {
			active[policy.Priority] = policy
		}
	}
	return &catalogSnapshot{byID: byID, active: active}
}

// newerPolicy orders by creation time, then by id so equal timestamps still
// resolve the same way on every instance.
func newerPolicy(a, b domain.SlaPolicy) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
