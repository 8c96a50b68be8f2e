package rpc

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/value"
)

func TestFromObjectMinimal(t *testing.T) {
	obj := value.Object(map[string]value.Value{
		"method": value.String("ping"),
	})
	req, err := FromObject(obj)
	if err != nil {
		t.Fatalf("FromObject: %v", err)
	}
	if req.Method != MethodPing {
		t.Errorf("got method %v, want MethodPing", req.Method)
	}
	if req.ID != nil {
		t.Error("expected nil id when absent")
	}
}

func TestFromObjectUnknownFieldsIgnored(t *testing.T) {
	obj := value.Object(map[string]value.Value{
		"method": value.String("ping"),
		"extra":  value.String("ignored"),
	})
	if _, err := FromObject(obj); err != nil {
		t.Fatalf("unexpected error for unknown field: %v", err)
	}
}

func TestFromObjectUnknownMethodParsesAsUnknown(t *testing.T) {
	obj := value.Object(map[string]value.Value{"method": value.String("frobnicate")})
	req, err := FromObject(obj)
	if err != nil {
		t.Fatalf("FromObject: %v", err)
	}
	if req.Method != MethodUnknown {
		t.Errorf("got %v, want MethodUnknown", req.Method)
	}
}

func TestFromObjectMissingMethod(t *testing.T) {
	obj := value.Object(map[string]value.Value{})
	if _, err := FromObject(obj); err == nil {
		t.Fatal("expected an error for a missing method")
	}
}

func TestFromObjectNotAnObject(t *testing.T) {
	if _, err := FromObject(value.String("nope")); err == nil {
		t.Fatal("expected an error when the request is not an object")
	}
}

func TestFromObjectVersionValidation(t *testing.T) {
	base := map[string]value.Value{"method": value.String("ping")}

	ok := map[string]value.Value{"method": value.String("ping"), "version": value.Int(1)}
	if _, err := FromObject(value.Object(ok)); err != nil {
		t.Errorf("version 1 should be accepted: %v", err)
	}

	bad := map[string]value.Value{"method": value.String("ping"), "version": value.Int(3)}
	if _, err := FromObject(value.Object(bad)); err == nil {
		t.Error("version 3 should be rejected")
	}
	_ = base
}

func TestFromObjectSessionIDAcceptsUUIDString(t *testing.T) {
	id := uuid.New()
	obj := value.Object(map[string]value.Value{
		"method":     value.String("ping"),
		"session_id": value.String(id.String()),
	})
	req, err := FromObject(obj)
	if err != nil {
		t.Fatalf("FromObject: %v", err)
	}
	if req.SessionID == nil || *req.SessionID != id {
		t.Errorf("got %v, want %v", req.SessionID, id)
	}
}

func TestFromObjectInvalidSessionIDString(t *testing.T) {
	obj := value.Object(map[string]value.Value{
		"method":     value.String("ping"),
		"session_id": value.String("not-a-uuid"),
	})
	if _, err := FromObject(obj); err == nil {
		t.Fatal("expected an error for a malformed session_id string")
	}
}

func TestFromObjectParamsMustBeArray(t *testing.T) {
	obj := value.Object(map[string]value.Value{
		"method": value.String("ping"),
		"params": value.String("nope"),
	})
	if _, err := FromObject(obj); err == nil {
		t.Fatal("expected an error when params is not an array")
	}
}
