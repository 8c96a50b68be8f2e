// Package dispatch implements the method table every decoded Request is
// routed through: capability checks, session mutation, transaction and
// live-query bookkeeping, and the short parameterized query text each CRUD
// shorthand hands to the engine. The engine itself is never implemented
// here — every handler below ends at engine.Engine/engine.Auth, which are
// pure interfaces wired in by the process composition root.
package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/capabilities"
	"github.com/coredb/rpccore/internal/engine"
	"github.com/coredb/rpccore/internal/livequery"
	"github.com/coredb/rpccore/internal/rpc"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/txnreg"
	"github.com/coredb/rpccore/internal/value"
)

// Dispatcher routes parsed requests to their handler and enforces the
// capability gate common to every method.
type Dispatcher struct {
	Engine  engine.Engine
	Auth    engine.Auth
	GraphQL engine.GraphQL // nil when the experimental graphql feature isn't wired in

	Caps capabilities.Capabilities

	Txns      *txnreg.Registry
	LiveQuery *livequery.Registry
	ConnID    uuid.UUID

	// ListSessions returns the session ids currently attached to the owning
	// connection, for the read-only "sessions" introspection method. Set by
	// the connection that owns this dispatcher.
	ListSessions func() []uuid.UUID

	// AttachSession and DetachSession back the "attach"/"detach" methods.
	// They are set by the owning WebSocket connection, or by the transport's
	// shared HTTP dispatcher; when nil, attach/detach fail with an error.
	AttachSession func(id uuid.UUID) error
	DetachSession func(id uuid.UUID) error
}

// scopeID is the transaction/live-query scope key for a session: its id
// stringified, or "" for a connection's default (unattached) session.
func scopeID(sess *session.Session) string {
	snap := sess.Snapshot()
	if snap.ID == nil {
		return ""
	}
	return snap.ID.String()
}

// Handle routes req through the method table, returning the Response to send
// back. It never panics on a malformed request: every failure mode resolves
// to an rpcerr-classified *rpc.Response.
func (d *Dispatcher) Handle(ctx context.Context, sess *session.Session, req *rpc.Request) *rpc.Response {
	if req.Method == rpc.MethodUnknown {
		return rpc.Fail(req.ID, rpcerr.New(rpcerr.KindMethodNotFound, "unknown method"))
	}
	if !d.Caps.AllowsMethod(capabilities.MethodTarget{Method: req.Method}) {
		return rpc.Fail(req.ID, rpcerr.New(rpcerr.KindMethodNotAllowed, req.Method.String()))
	}

	result, err := d.dispatch(ctx, sess, req)
	if err != nil {
		return rpc.Fail(req.ID, toRPCErr(err))
	}
	resp := rpc.Ok(req.ID, result)
	if req.Method == rpc.MethodLive {
		resp.QueryType = rpc.QueryLive
	}
	if req.Method == rpc.MethodKill {
		resp.QueryType = rpc.QueryKill
	}
	return resp
}

func toRPCErr(err error) *rpcerr.Error {
	var rerr *rpcerr.Error
	if e, ok := err.(*rpcerr.Error); ok {
		rerr = e
	}
	if rerr != nil {
		return rerr
	}
	return rpcerr.Internal(err)
}

// methodFunc is one entry in methodTable: every method, across all seven
// families, is reached through this single signature rather than a growing
// switch.
type methodFunc func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error)

// methodTable is built once at package init and never mutated afterwards;
// Handle's only job beyond the capability gate is a map lookup.
var methodTable = map[rpc.Method]methodFunc{
	rpc.MethodPing:    func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return value.None(), nil },
	rpc.MethodVersion: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return value.String("rpccore-1.0.0"), nil },
	rpc.MethodInfo:    func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleInfo(ctx, sess) },
	rpc.MethodUse:     func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleUse(ctx, sess, req.Params) },
	rpc.MethodSet:     func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleSet(sess, req.Params) },
	rpc.MethodUnset:   func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleUnset(sess, req.Params) },

	rpc.MethodSignup:       func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleSignup(ctx, sess, req.Params) },
	rpc.MethodSignin:       func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleSignin(ctx, sess, req.Params) },
	rpc.MethodAuthenticate: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleAuthenticate(ctx, sess, req.Params) },
	rpc.MethodRefresh:      func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleRefresh(ctx, sess, req.Params) },
	rpc.MethodInvalidate:   func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleInvalidate(ctx, sess) },
	rpc.MethodRevoke:       func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleRevoke(ctx, sess, req.Params) },
	rpc.MethodReset:        func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleReset(ctx, sess) },

	rpc.MethodLive: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleLive(ctx, sess, req) },
	rpc.MethodKill: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleKill(sess, req.Params) },

	rpc.MethodSelect:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleSelect(ctx, sess, req.Txn, req.Params) },
	rpc.MethodInsert:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleInsert(ctx, sess, req.Txn, req.Params) },
	rpc.MethodInsertRelation: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleInsertRelation(ctx, sess, req.Txn, req.Params) },
	rpc.MethodCreate:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleCreate(ctx, sess, req.Txn, req.Params) },
	rpc.MethodUpsert:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleUpsert(ctx, sess, req.Txn, req.Params) },
	rpc.MethodUpdate:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleUpdate(ctx, sess, req.Txn, req.Params) },
	rpc.MethodMerge:          func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleMerge(ctx, sess, req.Txn, req.Params) },
	rpc.MethodPatch:          func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handlePatch(ctx, sess, req.Txn, req.Params) },
	rpc.MethodDelete:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleDelete(ctx, sess, req.Txn, req.Params) },
	rpc.MethodRelate:         func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleRelate(ctx, sess, req.Txn, req.Params) },

	rpc.MethodQuery: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleQuery(ctx, sess, req.Txn, req.Params) },
	rpc.MethodRun:   func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleRun(ctx, sess, req.Params) },

	rpc.MethodBegin:  func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleBegin(ctx, sess) },
	rpc.MethodCommit: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleCommit(ctx, sess, req.Params) },
	rpc.MethodCancel: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleCancel(ctx, sess, req.Params) },

	rpc.MethodGraphQL:  func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleGraphQL(ctx, sess, req.Params) },
	rpc.MethodSessions: func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleSessions() },
	rpc.MethodAttach:   func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleAttach(req.Params) },
	rpc.MethodDetach:   func(ctx context.Context, d *Dispatcher, sess *session.Session, req *rpc.Request) (value.Value, error) { return d.handleDetach(req.Params) },
}

func (d *Dispatcher) dispatch(ctx context.Context, sess *session.Session, req *rpc.Request) (value.Value, error) {
	fn, ok := methodTable[req.Method]
	if !ok {
		return value.None(), rpcerr.New(rpcerr.KindMethodNotFound, req.Method.String())
	}
	return fn(ctx, d, sess, req)
}

func (d *Dispatcher) handleInfo(ctx context.Context, sess *session.Session) (value.Value, error) {
	results, err := d.Engine.Execute(ctx, sess.Snapshot(), "SELECT * FROM $auth", nil)
	if err != nil {
		return value.None(), err
	}
	return firstResult(results)
}

func firstResult(results []engine.QueryResult) (value.Value, error) {
	if len(results) == 0 {
		return value.None(), nil
	}
	if results[0].Err != nil {
		return value.None(), rpcerr.Thrown(results[0].Err.Error())
	}
	return results[0].Result, nil
}

// handleSessions lists the session ids currently attached to the owning
// connection.
func (d *Dispatcher) handleSessions() (value.Value, error) {
	if d.ListSessions == nil {
		return value.Array(nil), nil
	}
	ids := d.ListSessions()
	out := make([]value.Value, len(ids))
	for i, id := range ids {
		out[i] = value.UUID(id)
	}
	return value.Array(out), nil
}

// handleAttach creates a new session under the client-supplied id, failing
// if that id is already attached to the connection.
func (d *Dispatcher) handleAttach(params []value.Value) (value.Value, error) {
	if d.AttachSession == nil {
		return value.None(), rpcerr.New(rpcerr.KindInvalidParams, "attach requires a persistent connection")
	}
	id, err := rpc.ParseUUIDish(paramAt(params, 0))
	if err != nil || id == nil {
		return value.None(), rpcerr.New(rpcerr.KindInvalidParams, "attach requires a uuid session id")
	}
	if err := d.AttachSession(*id); err != nil {
		return value.None(), rpcerr.New(rpcerr.KindSessionExists, err.Error())
	}
	return value.None(), nil
}

// handleDetach removes a session previously created by attach, running its
// live-query and transaction cleanup.
func (d *Dispatcher) handleDetach(params []value.Value) (value.Value, error) {
	if d.DetachSession == nil {
		return value.None(), rpcerr.New(rpcerr.KindInvalidParams, "detach requires a persistent connection")
	}
	id, err := rpc.ParseUUIDish(paramAt(params, 0))
	if err != nil || id == nil {
		return value.None(), rpcerr.New(rpcerr.KindInvalidParams, "detach requires a uuid session id")
	}
	if err := d.DetachSession(*id); err != nil {
		return value.None(), rpcerr.New(rpcerr.KindSessionNotFound, err.Error())
	}
	return value.None(), nil
}

func paramAt(params []value.Value, i int) value.Value {
	if i < 0 || i >= len(params) {
		return value.None()
	}
	return params[i]
}

