package dispatch

import (
	"context"

	"github.com/coredb/rpccore/internal/capabilities"
	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/session"
	"github.com/coredb/rpccore/internal/value"
)

func (d *Dispatcher) handleGraphQL(ctx context.Context, sess *session.Session, params []value.Value) (value.Value, error) {
	if !d.Caps.AllowsExperimental(capabilities.ExperimentalGraphQL) {
		return value.None(), rpcerr.New(rpcerr.KindBadGqlConfig, "graphql is not enabled")
	}
	if d.GraphQL == nil {
		return value.None(), rpcerr.New(rpcerr.KindBadGqlConfig, "no graphql engine configured")
	}
	query, ok := paramAt(params, 0).String()
	if !ok || query == "" {
		return value.None(), rpcerr.InvalidParams("graphql requires a query string")
	}
	variables, _ := paramAt(params, 1).ObjectValue()
	return d.GraphQL.Query(ctx, sess.Snapshot(), query, variables)
}
