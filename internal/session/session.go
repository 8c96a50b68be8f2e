// Package session implements per-logical-connection session state: the
// selected namespace/database, authentication level, bound variables, and
// realtime flag. A Session is created on first use, mutated only under its
// own write lock, and destroyed when the owning connection detaches or
// closes it.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/value"
)

// AuthLevel is the closed ladder of authentication states a session can be
// in, from anonymous guest access through record-, database- and
// namespace-scoped identities up to root.
type AuthLevel uint8

const (
	AuthNone AuthLevel = iota
	AuthRecord
	AuthDatabase
	AuthNamespace
	AuthRoot
)

func (l AuthLevel) String() string {
	switch l {
	case AuthNone:
		return "none"
	case AuthRecord:
		return "record"
	case AuthDatabase:
		return "database"
	case AuthNamespace:
		return "namespace"
	case AuthRoot:
		return "root"
	default:
		return "unknown"
	}
}

// Subject identifies who a session is authenticated as, opaque to this
// package beyond its level: the engine interprets namespace/database/record
// identity at signin/signup time.
type Subject struct {
	Level     AuthLevel
	Namespace string
	Database  string
	Record    *value.RecordID
}

// Session is per-connection, possibly per-attached-session, mutable state.
// All mutation goes through the methods below, which take the write lock;
// callers that only need to read should call Snapshot and work from the
// returned copy so the lock is never held across an engine call.
type Session struct {
	mu sync.RWMutex

	id        *uuid.UUID
	ns        *string
	db        *string
	auth      Subject
	variables map[string]value.Value
	realtime  bool
	expiredAt *time.Time
}

// New creates an anonymous, unauthenticated session.
func New(id *uuid.UUID) *Session {
	return &Session{
		id:        id,
		variables: make(map[string]value.Value),
	}
}

// Snapshot is an immutable copy of a Session's fields, safe to read without
// holding the session's lock.
type Snapshot struct {
	ID        *uuid.UUID
	NS        *string
	DB        *string
	Auth      Subject
	Variables map[string]value.Value
	Realtime  bool
	ExpiredAt *time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars := make(map[string]value.Value, len(s.variables))
	for k, v := range s.variables {
		vars[k] = v
	}
	return Snapshot{
		ID:        s.id,
		NS:        s.ns,
		DB:        s.db,
		Auth:      s.auth,
		Variables: vars,
		Realtime:  s.realtime,
		ExpiredAt: s.expiredAt,
	}
}

// Expired reports whether the session carries an expiry timestamp that has
// passed.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredAt != nil && now.After(*s.expiredAt)
}

// SetNamespace switches the session to ns; a nil ns unsets the namespace and
// the database with it. Leaving the namespace as-is is the caller's choice
// (the use method simply does not call this).
func (s *Session) SetNamespace(ns *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ns = ns
	if s.ns == nil {
		s.db = nil
	}
}

func (s *Session) SetDatabase(db *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
}

func (s *Session) SetAuth(subj Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = subj
}

func (s *Session) SetRealtime(rt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realtime = rt
}

func (s *Session) SetExpiredAt(t *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiredAt = t
}

// SetVariable removes the variable when val is None or Null, matching the
// RPC set method's "unset on none/null" rule.
func (s *Session) SetVariable(name string, val value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if val.IsNullish() {
		delete(s.variables, name)
		return
	}
	s.variables[name] = val
}

func (s *Session) UnsetVariable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.variables, name)
}

// Clear resets authentication and variables back to an anonymous session,
// per the invalidate method.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = Subject{}
	s.variables = make(map[string]value.Value)
	s.realtime = false
	s.expiredAt = nil
}

// ProtectedVariables cannot be set via the RPC set method; they are
// reserved for the engine's own use ($auth, $session, $token, $access).
var ProtectedVariables = map[string]bool{
	"auth":    true,
	"session": true,
	"token":   true,
	"access":  true,
}

func IsProtectedVariable(name string) bool {
	return ProtectedVariables[name]
}
