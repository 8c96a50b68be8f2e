// Package txnreg implements the transaction handle registry and its
// per-scope quota: transactions are born on begin, consumed by commit or
// cancel, and force-cancelled on session or connection teardown. The quota
// check and the increment happen under one mutex, so a slot is never
// granted past the limit even under concurrent begins; a slot is released
// again if the caller backs out.
package txnreg

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Txn is an engine-opened transaction handle, opaque to this registry
// beyond its identity and how to commit/cancel it.
type Txn interface {
	Commit() error
	Cancel() error
}

// Handle is a registered transaction: its id, the session scope it was
// reserved against, and the underlying engine transaction.
type Handle struct {
	ID      uuid.UUID
	ScopeID string // session_id (stringified, "" for the connection's default session)
	Inner   Txn
}

// ErrQuotaExceeded is returned by Reserve when a scope is already at its
// transaction limit.
type ErrQuotaExceeded struct {
	ScopeID string
	Limit   int
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("scope %q has reached its transaction limit of %d", e.ScopeID, e.Limit)
}

// Registry tracks open transaction handles for one connection, plus a
// per-scope open-transaction counter used to enforce the quota.
type Registry struct {
	mu       sync.Mutex
	handles  map[uuid.UUID]*Handle
	counts   map[string]int64
	countsMu sync.Mutex
	limit    int
}

func NewRegistry(limitPerScope int) *Registry {
	return &Registry{
		handles: make(map[uuid.UUID]*Handle),
		counts:  make(map[string]int64),
		limit:   limitPerScope,
	}
}

// Reserve checks scope's open-transaction count against the limit and, if
// there is room, increments it, both under countsMu so concurrent callers
// cannot race past the limit; a limit of 0 grants no slots. Callers must
// call Release(scopeID) if they subsequently fail to open the underlying
// engine transaction, to avoid leaking the reservation.
func (r *Registry) Reserve(scopeID string) error {
	r.countsMu.Lock()
	defer r.countsMu.Unlock()
	next := r.counts[scopeID] + 1
	if next > int64(r.limit) {
		return &ErrQuotaExceeded{ScopeID: scopeID, Limit: r.limit}
	}
	r.counts[scopeID] = next
	return nil
}

// Release gives back a reservation without registering a handle (used when
// a reserved begin subsequently fails to open the underlying engine txn).
func (r *Registry) Release(scopeID string) {
	r.countsMu.Lock()
	defer r.countsMu.Unlock()
	if r.counts[scopeID] > 0 {
		r.counts[scopeID]--
	}
}

// Put registers a successfully-opened transaction under a previously
// reserved quota slot.
func (r *Registry) Put(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ID] = h
}

// Get looks up a transaction handle by id.
func (r *Registry) Get(id uuid.UUID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// Remove drops a handle and releases its quota slot, without touching the
// underlying engine transaction (the caller has already committed or
// cancelled it, or is force-tearing it down separately).
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	h, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	r.mu.Unlock()
	if ok {
		r.Release(h.ScopeID)
	}
}

// TeardownScope force-cancels and removes every transaction owned by
// scopeID, used when a session is reset or detached.
func (r *Registry) TeardownScope(scopeID string) {
	r.mu.Lock()
	var victims []*Handle
	for id, h := range r.handles {
		if h.ScopeID == scopeID {
			victims = append(victims, h)
			delete(r.handles, id)
		}
	}
	r.mu.Unlock()
	for _, h := range victims {
		_ = h.Inner.Cancel()
		r.Release(h.ScopeID)
	}
}

// TeardownAll force-cancels and removes every open transaction, whatever
// its scope.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	victims := make([]*Handle, 0, len(r.handles))
	for id, h := range r.handles {
		victims = append(victims, h)
		delete(r.handles, id)
	}
	r.mu.Unlock()
	for _, h := range victims {
		_ = h.Inner.Cancel()
		r.Release(h.ScopeID)
	}
}
