// Package rpc implements the Request/Response model: parsing a decoded
// Value into a typed Request with per-field validation, and shaping a
// Response back into a Value for encoding.
package rpc

import (
	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/value"
)

// Field names recognized in the decoded request object. Unknown fields are
// ignored.
const (
	fieldID        = "id"
	fieldVersion   = "version"
	fieldSessionID = "session_id"
	fieldTxn       = "txn"
	fieldMethod    = "method"
	fieldParams    = "params"
)

// Request is the parsed, typed form of an inbound RPC call.
type Request struct {
	ID        *value.Value
	Version   *uint8
	SessionID *uuid.UUID
	Txn       *uuid.UUID
	Method    Method
	Params    []value.Value
}

// FromObject parses obj (which must be Kind Object) into a Request,
// reading each recognized field by name (obj itself is left unchanged). Any field present
// with a shape outside what's allowed below fails the whole parse with
// InvalidRequest.
func FromObject(obj value.Value) (*Request, error) {
	fields, ok := obj.ObjectValue()
	if !ok {
		return nil, rpcerr.New(rpcerr.KindInvalidRequest, "request must be an object")
	}

	id, err := parseID(fields[fieldID])
	if err != nil {
		return nil, err
	}

	version, err := parseVersion(fields[fieldVersion])
	if err != nil {
		return nil, err
	}

	sessionID, err := ParseUUIDish(fields[fieldSessionID])
	if err != nil {
		return nil, err
	}

	txn, err := ParseUUIDish(fields[fieldTxn])
	if err != nil {
		return nil, err
	}

	methodVal, present := fields[fieldMethod]
	if !present {
		return nil, rpcerr.New(rpcerr.KindInvalidRequest, "missing method")
	}
	methodName, ok := methodVal.String()
	if !ok {
		return nil, rpcerr.New(rpcerr.KindInvalidRequest, "method must be a string")
	}

	var params []value.Value
	if p, present := fields[fieldParams]; present {
		arr, ok := p.ArrayValue()
		if !ok {
			return nil, rpcerr.New(rpcerr.KindInvalidRequest, "params must be an array")
		}
		params = arr
	}

	return &Request{
		ID:        id,
		Version:   version,
		SessionID: sessionID,
		Txn:       txn,
		Method:    ParseMethod(methodName),
		Params:    params,
	}, nil
}

// parseID restricts id to {absent, null, uuid, number, string, datetime}.
func parseID(v value.Value) (*value.Value, error) {
	if v.IsNone() || v.IsNull() {
		return nil, nil
	}
	switch v.Kind() {
	case value.KindUUID, value.KindInt, value.KindUint, value.KindFloat, value.KindString, value.KindDatetime:
		cp := v
		return &cp, nil
	default:
		return nil, rpcerr.New(rpcerr.KindInvalidRequest, "invalid id shape")
	}
}

// parseVersion accepts only 1 or 2, or absence.
func parseVersion(v value.Value) (*uint8, error) {
	if v.IsNone() || v.IsNull() {
		return nil, nil
	}
	if n, ok := v.Int(); ok {
		if n == 1 || n == 2 {
			u := uint8(n)
			return &u, nil
		}
		return nil, rpcerr.New(rpcerr.KindInvalidRequest, "version must be 1 or 2")
	}
	if n, ok := v.Uint(); ok {
		if n == 1 || n == 2 {
			u := uint8(n)
			return &u, nil
		}
	}
	return nil, rpcerr.New(rpcerr.KindInvalidRequest, "version must be 1 or 2")
}

// ParseUUIDish accepts a canonical uuid.UUID Value or a uuid-shaped string,
// used for both session_id and txn.
func ParseUUIDish(v value.Value) (*uuid.UUID, error) {
	if v.IsNone() || v.IsNull() {
		return nil, nil
	}
	if id, ok := v.UUIDValue(); ok {
		return &id, nil
	}
	if s, ok := v.String(); ok {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, rpcerr.New(rpcerr.KindInvalidRequest, "invalid uuid string")
		}
		return &id, nil
	}
	return nil, rpcerr.New(rpcerr.KindInvalidRequest, "expected uuid or uuid-shaped string")
}
