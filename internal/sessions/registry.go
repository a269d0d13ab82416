// Package sessions hands out one cart store per browser session.
package sessions

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/metrics"
)

type entry struct {
	store    *cart.Store
	lastSeen atomic.Int64
}

// Registry lazily creates a cart.Store per session ID, all backed by one slot
// and keyed "charm_catalog_cart:<session>". Idle stores are evicted by Sweep;
// their carts stay in the slot and are reloaded on the next request.
type Registry struct {
	slot    cart.Slot
	log     *slog.Logger
	metrics *metrics.Storefront
	now     func() time.Time

	mu     sync.RWMutex
	stores map[string]*entry
}

func NewRegistry(slot cart.Slot, log *slog.Logger, m *metrics.Storefront) *Registry {
	return &Registry{
		slot:    slot,
		log:     log,
		metrics: m,
		now:     time.Now,
		stores:  make(map[string]*entry),
	}
}

// Cart returns the store for sessionID, loading it from the slot on first use.
func (r *Registry) Cart(ctx context.Context, sessionID string) *cart.Store {
	r.mu.RLock()
	e, ok := r.stores[sessionID]
	r.mu.RUnlock()
	if ok {
		e.lastSeen.Store(r.now().UnixNano())
		return e.store
	}

	// The slot read can be slow (redis, mongo), so it happens outside the lock.
	// A store that loses the insert race is dropped unused.
	fresh := &entry{store: cart.NewStore(ctx, r.slot, r.log.With("session_id", sessionID),
		cart.WithKey(Key(sessionID)),
		cart.WithMetrics(r.metrics),
	)}
	fresh.lastSeen.Store(r.now().UnixNano())

	r.mu.Lock()
	if e, ok := r.stores[sessionID]; ok {
		r.mu.Unlock()
		e.lastSeen.Store(r.now().UnixNano())
		return e.store
	}
	r.stores[sessionID] = fresh
	n := len(r.stores)
	r.mu.Unlock()

	r.metrics.SetCartSessions(n)
	return fresh.store
}

// Sweep evicts stores not used for longer than idle and returns how many
// were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle).UnixNano()

	r.mu.Lock()
	evicted := 0
	for id, e := range r.stores {
		if e.lastSeen.Load() < cutoff {
			delete(r.stores, id)
			evicted++
		}
	}
	n := len(r.stores)
	r.mu.Unlock()

	r.metrics.SetCartSessions(n)
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := r.Sweep(idle); evicted > 0 {
				r.log.Debug("evicted idle session carts", "evicted", evicted, "active", r.Len())
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Key is the slot key for a session's cart.
func Key(sessionID string) string {
	return cart.StorageKey + ":" + sessionID
}
