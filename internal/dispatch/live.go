package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/livequery"
	"github.com/coredb/rpccore/internal/rpc"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/value"
)

func (d *Dispatcher) handleLive(ctx context.Context, sess *session.Session, req *rpc.Request) (value.Value, error) {
	if !d.Caps.LiveQueryNotifications {
		return value.None(), rpcerr.New(rpcerr.KindLqNotSupported, "live query notifications are disabled")
	}
	what, err := requireWhat(req.Params)
	if err != nil {
		return value.None(), err
	}
	diff, _ := paramAt(req.Params, 1).Bool()
	text := "LIVE SELECT * FROM $what"
	if diff {
		text = "LIVE SELECT DIFF FROM $what"
	}
	results, err := d.Engine.Execute(ctx, sess.Snapshot(), text, map[string]value.Value{"what": what})
	if err != nil {
		return value.None(), err
	}
	lqVal, err := firstResult(results)
	if err != nil {
		return value.None(), err
	}
	lqID, ok := lqVal.UUIDValue()
	if !ok {
		return value.None(), rpcerr.Internal(errLiveQueryIDShape)
	}
	d.LiveQuery.Register(lqID, livequery.Entry{ConnectionID: d.ConnID, SessionID: sess.Snapshot().ID})
	return lqVal, nil
}

func (d *Dispatcher) handleKill(sess *session.Session, params []value.Value) (value.Value, error) {
	lqID, ok := paramAt(params, 0).UUIDValue()
	if !ok {
		return value.None(), rpcerr.InvalidParams("kill requires a live query uuid")
	}
	entry, found := d.LiveQuery.Lookup(lqID)
	if !found {
		return value.None(), rpcerr.New(rpcerr.KindInvalidRequest, "no such live query")
	}
	if entry.ConnectionID != d.ConnID || !sameOwner(entry.SessionID, sess.Snapshot().ID) {
		return value.None(), rpcerr.New(rpcerr.KindInvalidRequest, "no such live query")
	}
	d.LiveQuery.Kill(lqID)
	return value.None(), nil
}

func sameOwner(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var errLiveQueryIDShape = errors.New("engine returned a non-uuid live query id")
