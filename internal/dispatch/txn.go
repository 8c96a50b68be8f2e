package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/engine"
	"github.com/coredb/rpccore/internal/rpc"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/txnreg"
	"github.com/coredb/rpccore/internal/value"
)

// txnAdapter satisfies txnreg.Txn (Commit/Cancel with no context) over an
// engine.Txn (which takes one): the registry's force-teardown paths run
// from connection/session cleanup, outside any single request's context, so
// they always use the context.Background() captured at begin time.
type txnAdapter struct {
	ctx   context.Context
	inner engine.Txn
}

func (a *txnAdapter) Commit() error { return a.inner.Commit(a.ctx) }
func (a *txnAdapter) Cancel() error { return a.inner.Cancel(a.ctx) }

func (d *Dispatcher) handleBegin(ctx context.Context, sess *session.Session) (value.Value, error) {
	scope := scopeID(sess)
	if err := d.Txns.Reserve(scope); err != nil {
		return value.None(), rpcerr.Wrap(rpcerr.KindTooManyTransactions, err.Error(), err)
	}
	txn, err := d.Engine.Transaction(ctx, engine.TransactionWrite, engine.LockOptimistic)
	if err != nil {
		d.Txns.Release(scope)
		return value.None(), err
	}
	d.Txns.Put(&txnreg.Handle{ID: txn.ID(), ScopeID: scope, Inner: &txnAdapter{ctx: context.Background(), inner: txn}})
	return value.UUID(txn.ID()), nil
}

// resolveTxn looks up id's open handle, scoped to sess, and hands back the
// underlying engine transaction it was opened with, for routing a
// with-transaction engine call through it.
func (d *Dispatcher) resolveTxn(sess *session.Session, id uuid.UUID) (engine.Txn, error) {
	h, ok := d.lookupOwnedTxn(sess, &id)
	if !ok {
		return nil, rpcerr.InvalidParams("Transaction not found")
	}
	adapter, ok := h.Inner.(*txnAdapter)
	if !ok {
		return nil, rpcerr.New(rpcerr.KindInternalError, "transaction handle has no underlying engine transaction")
	}
	return adapter.inner, nil
}

// commitCancelTxnID parses the transaction id commit/cancel operate on from
// params[0], matching the original's params_vec.pop() on a single-element
// array.
func commitCancelTxnID(params []value.Value) (uuid.UUID, error) {
	id, err := rpc.ParseUUIDish(paramAt(params, 0))
	if err != nil || id == nil {
		return uuid.UUID{}, rpcerr.InvalidParams("Expected transaction UUID")
	}
	return *id, nil
}

func (d *Dispatcher) handleCommit(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	txnID, err := commitCancelTxnID(params)
	if err != nil {
		return value.None(), err
	}
	h, ok := d.lookupOwnedTxn(sess, &txnID)
	if !ok {
		return value.None(), rpcerr.InvalidParams("Transaction not found")
	}
	if err := h.Inner.Commit(); err != nil {
		return value.None(), err
	}
	d.Txns.Remove(h.ID)
	return value.None(), nil
}

func (d *Dispatcher) handleCancel(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	txnID, err := commitCancelTxnID(params)
	if err != nil {
		return value.None(), err
	}
	h, ok := d.lookupOwnedTxn(sess, &txnID)
	if !ok {
		return value.None(), rpcerr.InvalidParams("Transaction not found")
	}
	if err := h.Inner.Cancel(); err != nil {
		return value.None(), err
	}
	d.Txns.Remove(h.ID)
	return value.None(), nil
}

func (d *Dispatcher) lookupOwnedTxn(sess *session.Session, txnID *uuid.UUID) (*txnreg.Handle, bool) {
	if txnID == nil {
		return nil, false
	}
	h, ok := d.Txns.Get(*txnID)
	if !ok || h.ScopeID != scopeID(sess) {
		return nil, false
	}
	return h, true
}
