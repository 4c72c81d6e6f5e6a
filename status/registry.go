package status

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-pay-server/payments"
)

// Registry keeps at most one live poller per owner and per transaction id.
// Starting a poller cancels whatever the owner was polling before.
type Registry struct {
	poller    *Poller
	retention time.Duration
	nowFunc   func() time.Time

	mu      sync.Mutex
	byOwner map[string]*entry
	byTx    map[string]*entry
}

type entry struct {
	owner  string
	txID   string
	handle *Handle
}

// DefaultRetention is how long a finished poller stays queryable.
const DefaultRetention = 8 * time.Hour

type RegistryOption func(*Registry)

// WithRetention sets how long finished pollers are kept after their last update.
func WithRetention(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.retention = d
	}
}

func WithRegistryNowFunc(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

func NewRegistry(poller *Poller, opts ...RegistryOption) *Registry {
	r := &Registry{
		poller:    poller,
		retention: DefaultRetention,
		nowFunc:   time.Now,
		byOwner:   make(map[string]*entry),
		byTx:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Start(ctx context.Context, owner string, result payments.TransactionResult, fetcher Fetcher, onUpdate func(Update)) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	if prev, ok := r.byOwner[owner]; ok {
		r.dropLocked(prev)
	}
	if prev, ok := r.byTx[result.TransactionID]; ok {
		r.dropLocked(prev)
	}

	e := &entry{owner: owner, txID: result.TransactionID}
	e.handle = r.poller.Start(ctx, result, fetcher, onUpdate)
	r.byOwner[owner] = e
	r.byTx[result.TransactionID] = e
	return e.handle
}

// Get returns the handle for txID when it belongs to owner.
func (r *Registry) Get(owner, txID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byTx[txID]
	if !ok || e.owner != owner {
		return nil, false
	}
	return e.handle, true
}

// Cancel stops owner's poller for txID. The handle stays queryable until the owner starts another.
func (r *Registry) Cancel(owner, txID string) bool {
	h, ok := r.Get(owner, txID)
	if !ok {
		return false
	}
	h.Cancel()
	return true
}

// Forget cancels and removes everything owner is polling.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byOwner[owner]; ok {
		r.dropLocked(e)
	}
}

// Prune removes finished pollers whose last update is older than the retention period.
// It returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked()
}

// RunPruner calls Prune every interval until ctx is done.
func (r *Registry) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Prune()
		}
	}
}

// Shutdown cancels every poller and waits for the loops to exit.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.byTx))
	for _, e := range r.byTx {
		e.handle.Cancel()
		handles = append(handles, e.handle)
	}
	r.byOwner = make(map[string]*entry)
	r.byTx = make(map[string]*entry)
	r.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byTx)
}

func (r *Registry) dropLocked(e *entry) {
	e.handle.Cancel()
	if r.byOwner[e.owner] == e {
		delete(r.byOwner, e.owner)
	}
	if r.byTx[e.txID] == e {
		delete(r.byTx, e.txID)
	}
}

func (r *Registry) pruneLocked() int {
	cutoff := r.nowFunc().Add(-r.retention)
	removed := 0
	for _, e := range r.byTx {
		select {
		case <-e.handle.Done():
		default:
			continue
		}
		if e.handle.Snapshot().UpdatedAt.After(cutoff) {
			continue
		}
		r.dropLocked(e)
		removed++
	}
	return removed
}
