package rpcconn

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the process-wide connections map: read-mostly, written on
// accept and on teardown.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]*Connection)}
}

// Reserve returns an id usable for a new connection: the requested id if it
// is non-nil and not already registered, else a freshly generated one.
func (r *Registry) Reserve(requested *uuid.UUID) uuid.UUID {
	r.mu.RLock()
	if requested != nil {
		if _, taken := r.conns[*requested]; !taken {
			r.mu.RUnlock()
			return *requested
		}
	}
	r.mu.RUnlock()
	return uuid.New()
}

func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Shutdown signals every registered connection to stop accepting new
// frames, waits up to grace for their writers to drain and their Run calls
// to return, then force-cancels any stragglers.
func (r *Registry) Shutdown(grace time.Duration) {
	conns := r.snapshot()
	for _, c := range conns {
		c.Shutdown()
	}

	done := make(chan struct{})
	go func() {
		for _, c := range conns {
			c.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		for _, c := range conns {
			c.cancelImmediate()
		}
		<-done
	}
}
