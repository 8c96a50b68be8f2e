package dispatch

import (
	"context"

	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/value"
)

func requireObjectParam(params []value.Value, i int, what string) (map[string]value.Value, error) {
	obj, ok := paramAt(params, i).ObjectValue()
	if !ok {
		return nil, rpcerr.InvalidParams("%s requires an object parameter", what)
	}
	return obj, nil
}

func (d *Dispatcher) handleSignup(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	fields, err := requireObjectParam(params, 0, "signup")
	if err != nil {
		return value.None(), err
	}
	return d.Auth.SignUp(ctx, sess, fields)
}

func (d *Dispatcher) handleSignin(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	fields, err := requireObjectParam(params, 0, "signin")
	if err != nil {
		return value.None(), err
	}
	return d.Auth.SignIn(ctx, sess, fields)
}

func (d *Dispatcher) handleAuthenticate(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	token, ok := paramAt(params, 0).String()
	if !ok || token == "" {
		return value.None(), rpcerr.InvalidParams("authenticate requires a token string")
	}
	if err := d.Auth.Authenticate(ctx, sess, token); err != nil {
		return value.None(), err
	}
	return value.None(), nil
}

func (d *Dispatcher) handleRefresh(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	token := paramAt(params, 0)
	if token.IsNullish() {
		return value.None(), rpcerr.InvalidParams("refresh requires a refresh token")
	}
	return d.Auth.Refresh(ctx, sess, token)
}

// handleInvalidate drops the session back to anonymous and tears down every
// transaction and live query it owned: an invalidated session can no longer
// be assumed to hold the access that opened them.
func (d *Dispatcher) handleInvalidate(ctx context.Context, sess *session.Session) (value.Value, error) {
	if err := d.Auth.Invalidate(ctx, sess); err != nil {
		return value.None(), err
	}
	scope := scopeID(sess)
	sessID := sess.Snapshot().ID
	sess.Clear()
	d.Txns.TeardownScope(scope)
	d.LiveQuery.KillForSession(d.ConnID, sessID)
	return value.None(), nil
}

func (d *Dispatcher) handleRevoke(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	token := paramAt(params, 0)
	if token.IsNullish() {
		return value.None(), rpcerr.InvalidParams("revoke requires a token or access name")
	}
	if err := d.Auth.Revoke(ctx, sess, token); err != nil {
		return value.None(), err
	}
	return value.None(), nil
}

func (d *Dispatcher) handleReset(ctx context.Context, sess *session.Session) (value.Value, error) {
	if err := d.Auth.Reset(ctx, sess); err != nil {
		return value.None(), err
	}
	scope := scopeID(sess)
	sessID := sess.Snapshot().ID
	sess.Clear()
	d.Txns.TeardownScope(scope)
	d.LiveQuery.KillForSession(d.ConnID, sessID)
	return value.None(), nil
}
