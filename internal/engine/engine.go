// Package engine declares the interfaces the dispatcher calls into but
// never implements: the query engine and the auth mutators it calls as
// black boxes. Their internals are a separate concern; this package exists
// only to pin the boundary the dispatcher is written against.
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/value"
)

// TransactionKind mirrors the engine's read/write transaction distinction.
type TransactionKind uint8

const (
	TransactionRead TransactionKind = iota
	TransactionWrite
)

// LockType mirrors the engine's optimistic/pessimistic locking choice.
type LockType uint8

const (
	LockOptimistic LockType = iota
	LockPessimistic
)

// QueryResult is one statement's outcome from a multi-statement query/text
// execution. Live and Kill mark live-query registrations and kill
// acknowledgements; the dispatcher passes results through without acting on
// either flag.
type QueryResult struct {
	Result value.Value
	Err    error
	Live   bool // true when this result is a live query registration (carries the new lqid in Result)
	Kill   bool // true when this result is a kill acknowledgement
}

// Txn is an open engine transaction, as handed back by Transaction and
// later consumed by txnreg.
type Txn interface {
	ID() uuid.UUID
	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// Engine is the query engine boundary the dispatcher is written against.
// None of its methods are implemented in this module; a real engine lives
// outside it and is wired in at the process's composition root.
type Engine interface {
	// Execute parses and runs freeform query text against sess, with vars
	// bound as query parameters. Used for arbitrary `query` calls and for
	// every CRUD shorthand, which builds a short parameterized statement
	// (e.g. "SELECT * FROM $what") rather than assembling an AST itself.
	Execute(ctx context.Context, sess session.Snapshot, text string, vars map[string]value.Value) ([]QueryResult, error)

	// Process runs a single pre-shaped operation against sess. ast is an
	// opaque, engine-defined representation. No dispatcher handler calls it:
	// insert_relation goes through Execute and run through Compute.
	Process(ctx context.Context, sess session.Snapshot, ast any, vars map[string]value.Value) ([]QueryResult, error)

	// ExecuteWithTransaction is Execute's with-transaction counterpart: txn
	// is an already-open handle (from a prior Transaction call) that the
	// statement runs inside instead of an implicit one-shot transaction.
	// Used whenever a request carries a txn field, so every statement that
	// request issues shares one transaction context.
	ExecuteWithTransaction(ctx context.Context, sess session.Snapshot, text string, vars map[string]value.Value, txn Txn) ([]QueryResult, error)

	// ProcessWithTransaction is Process's with-transaction counterpart.
	ProcessWithTransaction(ctx context.Context, sess session.Snapshot, ast any, vars map[string]value.Value, txn Txn) ([]QueryResult, error)

	// Transaction opens a new engine transaction of the given kind/lock.
	Transaction(ctx context.Context, kind TransactionKind, lock LockType) (Txn, error)

	// Compute evaluates a single expression (used by run for function
	// calls) against sess.
	Compute(ctx context.Context, sess session.Snapshot, expr string, vars map[string]value.Value) (value.Value, error)

	// AllowsQueryBySubject reports whether the given auth subject may issue
	// queries at all (guest-access capability gate).
	AllowsQueryBySubject(subj session.Subject) bool

	// EnsureNamespace/EnsureDatabase create the named catalog entry if
	// absent, used by the `use` method before switching a session into it.
	EnsureNamespace(ctx context.Context, ns string) error
	EnsureDatabase(ctx context.Context, ns, db string) error
}

// Auth bundles the authentication/authorization mutators called as
// black-box session mutators by signup/signin/authenticate/refresh/
// invalidate/revoke/reset.
type Auth interface {
	SignUp(ctx context.Context, sess *session.Session, params map[string]value.Value) (value.Value, error)
	SignIn(ctx context.Context, sess *session.Session, params map[string]value.Value) (value.Value, error)
	Authenticate(ctx context.Context, sess *session.Session, token string) error
	Refresh(ctx context.Context, sess *session.Session, token value.Value) (value.Value, error)
	Invalidate(ctx context.Context, sess *session.Session) error
	Revoke(ctx context.Context, sess *session.Session, token value.Value) error
	Reset(ctx context.Context, sess *session.Session) error
}

// GraphQL is the supplemented graphql method's black-box collaborator; it
// is gated by the Experimental("graphql") capability and, when the
// experimental feature isn't enabled for the running config, the
// dispatcher never calls it at all.
type GraphQL interface {
	Query(ctx context.Context, sess session.Snapshot, query string, variables map[string]value.Value) (value.Value, error)
}
