package dispatch

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/capabilities"
	"github.com/coredb/rpccore/internal/engine"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/value"
)

// execute runs text/vars against the engine, routing through the
// with-transaction variant whenever the request carries a txn field: every
// statement a request issues then shares that one already-open transaction
// instead of each opening its own implicit one.
func (d *Dispatcher) execute(ctx context.Context, sess *session.Session, txnID *uuid.UUID, text string, vars map[string]value.Value) ([]engine.QueryResult, error) {
	if txnID == nil {
		return d.Engine.Execute(ctx, sess.Snapshot(), text, vars)
	}
	txn, err := d.resolveTxn(sess, *txnID)
	if err != nil {
		return nil, err
	}
	return d.Engine.ExecuteWithTransaction(ctx, sess.Snapshot(), text, vars, txn)
}

// runShorthand executes text with $what (and, where present, $data) bound,
// then shapes the result per value.Singular(what): a singular target
// (object or non-range record id) unwraps to its single row, a plural
// target (table name or range) returns the array as-is.
func (d *Dispatcher) runShorthand(ctx context.Context, sess *session.Session, txnID *uuid.UUID, text string, what value.Value, vars map[string]value.Value) (value.Value, error) {
	bound := map[string]value.Value{"what": what}
	for k, v := range vars {
		bound[k] = v
	}
	results, err := d.execute(ctx, sess, txnID, text, bound)
	if err != nil {
		return value.None(), err
	}
	row, err := firstResult(results)
	if err != nil {
		return value.None(), err
	}
	if value.Singular(what) {
		arr, ok := row.ArrayValue()
		if ok && len(arr) > 0 {
			return arr[0], nil
		}
		if ok {
			return value.None(), nil
		}
	}
	return row, nil
}

func requireWhat(params []value.Value) (value.Value, error) {
	what := paramAt(params, 0)
	if what.IsNullish() {
		return value.None(), rpcerr.InvalidParams("missing target record/table")
	}
	return what, nil
}

func (d *Dispatcher) handleSelect(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	return d.runShorthand(ctx, sess, txnID, "SELECT * FROM $what", what, nil)
}

func (d *Dispatcher) handleCreate(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	data := paramAt(params, 1)
	return d.runShorthand(ctx, sess, txnID, "CREATE $what CONTENT $data", what, map[string]value.Value{"data": data})
}

func (d *Dispatcher) handleInsert(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	data := paramAt(params, 1)
	results, err := d.execute(ctx, sess, txnID, "INSERT INTO $what $data", map[string]value.Value{"what": what, "data": data})
	if err != nil {
		return value.None(), err
	}
	return firstResult(results)
}

func (d *Dispatcher) handleInsertRelation(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	data := paramAt(params, 1)
	results, err := d.execute(ctx, sess, txnID, "INSERT RELATION INTO $what $data", map[string]value.Value{"what": what, "data": data})
	if err != nil {
		return value.None(), err
	}
	return firstResult(results)
}

func (d *Dispatcher) handleUpsert(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	data := paramAt(params, 1)
	return d.runShorthand(ctx, sess, txnID, "UPSERT $what CONTENT $data", what, map[string]value.Value{"data": data})
}

func (d *Dispatcher) handleUpdate(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	data := paramAt(params, 1)
	return d.runShorthand(ctx, sess, txnID, "UPDATE $what CONTENT $data", what, map[string]value.Value{"data": data})
}

func (d *Dispatcher) handleMerge(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	data := paramAt(params, 1)
	return d.runShorthand(ctx, sess, txnID, "UPDATE $what MERGE $data", what, map[string]value.Value{"data": data})
}

func (d *Dispatcher) handlePatch(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	patch := paramAt(params, 1)
	diffParam := paramAt(params, 2)
	diff, _ := diffParam.Bool()
	text := "UPDATE $what PATCH $data"
	if diff {
		text += " RETURN DIFF"
	}
	return d.runShorthand(ctx, sess, txnID, text, what, map[string]value.Value{"data": patch})
}

func (d *Dispatcher) handleDelete(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	what, err := requireWhat(params)
	if err != nil {
		return value.None(), err
	}
	return d.runShorthand(ctx, sess, txnID, "DELETE $what RETURN BEFORE", what, nil)
}

func (d *Dispatcher) handleRelate(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	in := paramAt(params, 0)
	kind := paramAt(params, 1)
	out := paramAt(params, 2)
	data := paramAt(params, 3)
	if in.IsNullish() || kind.IsNullish() || out.IsNullish() {
		return value.None(), rpcerr.InvalidParams("relate requires in, kind, and out")
	}
	results, err := d.execute(ctx, sess, txnID, "RELATE $in -> $kind -> $out CONTENT $data",
		map[string]value.Value{"in": in, "kind": kind, "out": out, "data": data})
	if err != nil {
		return value.None(), err
	}
	return firstResult(results)
}

func (d *Dispatcher) handleQuery(ctx context.Context, sess *session.Session, txnID *uuid.UUID, params []value.Value) (value.Value, error) {
	if !d.Engine.AllowsQueryBySubject(sess.Snapshot().Auth) {
		return value.None(), rpcerr.New(rpcerr.KindMethodNotAllowed, "guest querying is disabled")
	}
	text, ok := paramAt(params, 0).String()
	if !ok || text == "" {
		return value.None(), rpcerr.InvalidParams("query requires query text")
	}
	vars, _ := paramAt(params, 1).ObjectValue()
	results, err := d.execute(ctx, sess, txnID, text, vars)
	if err != nil {
		return value.None(), err
	}
	rows := make([]value.Value, len(results))
	for i, r := range results {
		if r.Err != nil {
			rows[i] = value.Object(map[string]value.Value{"status": value.String("ERR"), "result": value.String(r.Err.Error())})
			continue
		}
		rows[i] = value.Object(map[string]value.Value{"status": value.String("OK"), "result": r.Result})
	}
	return value.Array(rows), nil
}

func (d *Dispatcher) handleRun(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	if !d.Engine.AllowsQueryBySubject(sess.Snapshot().Auth) {
		return value.None(), rpcerr.New(rpcerr.KindMethodNotAllowed, "guest querying is disabled")
	}
	name, ok := paramAt(params, 0).String()
	if !ok || name == "" {
		return value.None(), rpcerr.InvalidParams("run requires a function name")
	}
	target, err := capabilities.ParseFuncTarget(name)
	if err != nil {
		return value.None(), rpcerr.InvalidParams("%v", err)
	}
	if !d.Caps.AllowsFunc(target) {
		return value.None(), rpcerr.New(rpcerr.KindMethodNotAllowed, name)
	}
	if target.Family == "scripting" && !d.Caps.Scripting {
		return value.None(), rpcerr.New(rpcerr.KindMethodNotAllowed, "scripting is disabled")
	}
	version, hasVersion := paramAt(params, 1).String()
	if target.Family == "ml" && !hasVersion {
		return value.None(), rpcerr.InvalidParams("run requires a version for a model function")
	}
	if target.Family == "mod" || target.Family == "silo" {
		if !d.Caps.AllowsExperimental(capabilities.ExperimentalSurrealism) {
			return value.None(), rpcerr.InvalidParams("experimental capability %q is not enabled", capabilities.ExperimentalSurrealism)
		}
	}
	_ = version
	args, _ := paramAt(params, 2).ArrayValue()
	vars := map[string]value.Value{"args": value.Array(args)}
	return d.Engine.Compute(ctx, sess.Snapshot(), name+"("+joinArgPlaceholders(len(args))+")", vars)
}

func joinArgPlaceholders(n int) string {
	if n == 0 {
		return ""
	}
	out := "$args[0]"
	for i := 1; i < n; i++ {
		out += ", $args[" + strconv.Itoa(i) + "]"
	}
	return out
}
