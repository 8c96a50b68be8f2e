package dispatch

import (
	"context"
	"time"

	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/value"
)

// stringOrNull shapes a *string session field for the wire: null when
// unset, the string otherwise.
func stringOrNull(s *string) value.Value {
	if s == nil {
		return value.Null()
	}
	return value.String(*s)
}

// useField resolves one positional use() argument into the three-way
// semantics the method needs: absent means leave the current selection
// alone, null means explicitly clear it, and a string switches to it.
type useField struct {
	change bool
	val    *string
}

func parseUseField(v value.Value) (useField, error) {
	if v.IsNone() {
		return useField{}, nil
	}
	if v.IsNull() {
		return useField{change: true}, nil
	}
	s, ok := v.String()
	if !ok {
		return useField{}, rpcerr.InvalidParams("expected a string or null")
	}
	return useField{change: true, val: &s}, nil
}

func (d *Dispatcher) handleUse(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	ns, err := parseUseField(paramAt(params, 0))
	if err != nil {
		return value.None(), err
	}
	db, err := parseUseField(paramAt(params, 1))
	if err != nil {
		return value.None(), err
	}
	if ns.change {
		if ns.val != nil {
			if err := d.Engine.EnsureNamespace(ctx, *ns.val); err != nil {
				return value.None(), err
			}
		}
		sess.SetNamespace(ns.val)
	}
	if db.change {
		if db.val != nil {
			snap := sess.Snapshot()
			if snap.NS == nil {
				return value.None(), rpcerr.New(rpcerr.KindInvalidRequest, "cannot select a database without a namespace")
			}
			if err := d.Engine.EnsureDatabase(ctx, *snap.NS, *db.val); err != nil {
				return value.None(), err
			}
		}
		sess.SetDatabase(db.val)
	}
	snap := sess.Snapshot()
	return value.Object(map[string]value.Value{
		"namespace": stringOrNull(snap.NS),
		"database":  stringOrNull(snap.DB),
	}), nil
}

func (d *Dispatcher) handleSet(sess *session.Session, params []value.Value) (value.Value, error) {
	if sess.Expired(time.Now()) {
		return value.None(), rpcerr.ExpiredSession()
	}
	name, ok := paramAt(params, 0).String()
	if !ok || name == "" {
		return value.None(), rpcerr.InvalidParams("set requires a variable name")
	}
	if session.IsProtectedVariable(name) {
		return value.None(), rpcerr.InvalidParams("%q is a reserved variable name", name)
	}
	sess.SetVariable(name, paramAt(params, 1))
	return value.None(), nil
}

func (d *Dispatcher) handleUnset(sess *session.Session, params []value.Value) (value.Value, error) {
	if sess.Expired(time.Now()) {
		return value.None(), rpcerr.ExpiredSession()
	}
	name, ok := paramAt(params, 0).String()
	if !ok || name == "" {
		return value.None(), rpcerr.InvalidParams("unset requires a variable name")
	}
	if session.IsProtectedVariable(name) {
		return value.None(), rpcerr.InvalidParams("%q is a reserved variable name", name)
	}
	sess.UnsetVariable(name)
	return value.None(), nil
}
