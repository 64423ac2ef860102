package payment

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

type registryEntry struct {
	controller *Controller
	owner      string
}

// Registry holds the live flows of every user. Flows are only visible to their owner.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{flows: make(map[string]registryEntry)}
}

// Start starts c with order and registers it under owner. An owner has at most one busy
// flow per kind and target, so a second submit cannot send a second prompt.
func (r *Registry) Start(ctx context.Context, owner string, c *Controller, order domain.PaymentOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inProgress(owner, order.Kind, order.TargetID, "") {
		return errInProgress()
	}
	if err := c.Start(ctx, order); err != nil {
		return err
	}
	r.flows[c.ID()] = registryEntry{controller: c, owner: owner}
	return nil
}

// Retry starts a new attempt of the flow id owned by owner, under the same rule as Start.
func (r *Registry) Retry(ctx context.Context, owner, id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.flows[id]
	if !ok || entry.owner != owner {
		return nil, domain.ErrFlowNotFound
	}
	if order := entry.controller.Snapshot().Order; order != nil && r.inProgress(owner, order.Kind, order.TargetID, id) {
		return nil, errInProgress()
	}
	if err := entry.controller.Retry(ctx); err != nil {
		return nil, err
	}
	return entry.controller, nil
}

// inProgress reports whether owner has a busy flow other than except for kind and target.
// Callers hold r.mu.
func (r *Registry) inProgress(owner string, kind domain.Kind, target, except string) bool {
	for id, entry := range r.flows {
		if id == except || entry.owner != owner {
			continue
		}
		snap := entry.controller.Snapshot()
		if snap.Busy && snap.Order != nil && snap.Order.Kind == kind && snap.Order.TargetID == target {
			return true
		}
	}
	return false
}

func errInProgress() error {
	return domain.NewPaymentError(domain.ErrInvalidTransition,
		"A payment for this request is already in progress", "FLOW_IN_PROGRESS")
}

// Get returns the flow id owned by owner.
func (r *Registry) Get(owner, id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.flows[id]
	if !ok || entry.owner != owner {
		return nil, domain.ErrFlowNotFound
	}
	return entry.controller, nil
}

// Remove stops and forgets the flow id owned by owner.
func (r *Registry) Remove(owner, id string) error {
	r.mu.Lock()
	entry, ok := r.flows[id]
	if !ok || entry.owner != owner {
		r.mu.Unlock()
		return domain.ErrFlowNotFound
	}
	delete(r.flows, id)
	r.mu.Unlock()

	entry.controller.Stop()
	return nil
}

// Len returns the number of registered flows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}

// Prune stops flows that are not busy and have not changed for longer than retention.
// It returns the number of flows removed.
func (r *Registry) Prune(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	r.mu.Lock()
	stale := lo.PickBy(r.flows, func(_ string, entry registryEntry) bool {
		snap := entry.controller.Snapshot()
		return !snap.Busy && snap.UpdatedAt.Before(cutoff)
	})
	for id := range stale {
		delete(r.flows, id)
	}
	r.mu.Unlock()

	for _, entry := range stale {
		entry.controller.Stop()
	}
	return len(stale)
}

// StopAll stops every flow and empties the registry.
func (r *Registry) StopAll() {
	r.mu.Lock()
	entries := lo.Values(r.flows)
	r.flows = make(map[string]registryEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.controller.Stop()
	}
}
