// Package livequery implements the process-wide live-query registry: a
// lookup from live-query id to the connection (and, if scoped, the
// session) that owns it. It holds indices only — connection and session
// structures never reference a live-query id directly — so teardown is a
// matter of scanning this one map, not walking a cyclic object graph.
package livequery

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is who owns a registered live query.
type Entry struct {
	ConnectionID uuid.UUID
	SessionID    *uuid.UUID // nil when the query was registered against the connection's default session
}

// Registry is safe for concurrent use by every connection's dispatcher
// goroutine and by the notification fan-out goroutine.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]Entry)}
}

func (r *Registry) Register(lqID uuid.UUID, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[lqID] = e
}

func (r *Registry) Lookup(lqID uuid.UUID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[lqID]
	return e, ok
}

// Kill removes a single live query, reporting whether it existed.
func (r *Registry) Kill(lqID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[lqID]; !ok {
		return false
	}
	delete(r.entries, lqID)
	return true
}

// KillForSession removes every live query registered under a given
// connection+session pair, used when a session is reset.
func (r *Registry) KillForSession(connID uuid.UUID, sessionID *uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var killed []uuid.UUID
	for id, e := range r.entries {
		if e.ConnectionID == connID && sameSession(e.SessionID, sessionID) {
			delete(r.entries, id)
			killed = append(killed, id)
		}
	}
	return killed
}

// KillForConnection removes every live query owned by a connection, used on
// connection teardown.
func (r *Registry) KillForConnection(connID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var killed []uuid.UUID
	for id, e := range r.entries {
		if e.ConnectionID == connID {
			delete(r.entries, id)
			killed = append(killed, id)
		}
	}
	return killed
}

func sameSession(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
