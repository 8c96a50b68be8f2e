package rpc

import (
	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/value"
)

// QueryType tags a response as the reply to a live or kill method call. It
// is never serialized; the live and kill handlers update the live-query
// registry themselves, and the dispatcher sets this tag afterwards.
type QueryType uint8

const (
	QueryOther QueryType = iota
	QueryLive
	QueryKill
)

// Response is the typed form of an outbound reply. Exactly one of Result or
// Err is set.
type Response struct {
	ID        *value.Value
	SessionID *uuid.UUID
	Result    value.Value
	Err       *rpcerr.Error
	QueryType QueryType
}

func Ok(id *value.Value, result value.Value) *Response {
	return &Response{ID: id, Result: result}
}

func Fail(id *value.Value, err *rpcerr.Error) *Response {
	return &Response{ID: id, Err: err}
}

// ToObject shapes the response back into a Value object ready for codec
// encoding.
func (r *Response) ToObject() value.Value {
	obj := map[string]value.Value{}
	if r.ID != nil {
		obj["id"] = *r.ID
	}
	if r.SessionID != nil {
		obj["session_id"] = value.UUID(*r.SessionID)
	}
	if r.Err != nil {
		obj["error"] = value.Object(map[string]value.Value{
			"kind":    value.String(r.Err.Kind.String()),
			"message": value.String(r.Err.Message),
		})
		return value.Object(obj)
	}
	obj["result"] = r.Result
	return value.Object(obj)
}
