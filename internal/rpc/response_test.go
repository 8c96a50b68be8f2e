package rpc

import (
	"testing"

	"github.com/coredb/rpccore/internal/rpcerr"
	"github.com/coredb/rpccore/internal/value"
)

func TestOkResponseShape(t *testing.T) {
	id := value.Int(7)
	resp := Ok(&id, value.String("pong"))
	obj, ok := resp.ToObject().ObjectValue()
	if !ok {
		t.Fatal("expected an object")
	}
	if _, hasErr := obj["error"]; hasErr {
		t.Error("a successful response must not carry an error field")
	}
	result, ok := obj["result"].String()
	if !ok || result != "pong" {
		t.Errorf("unexpected result field: %#v", obj["result"])
	}
}

func TestFailResponseShape(t *testing.T) {
	id := value.Int(7)
	resp := Fail(&id, rpcerr.New(rpcerr.KindMethodNotFound, "no such method"))
	obj, ok := resp.ToObject().ObjectValue()
	if !ok {
		t.Fatal("expected an object")
	}
	if _, hasResult := obj["result"]; hasResult {
		t.Error("a failed response must not carry a result field")
	}
	errObj, ok := obj["error"].ObjectValue()
	if !ok {
		t.Fatal("expected an error object")
	}
	kind, _ := errObj["kind"].String()
	if kind != "MethodNotFound" {
		t.Errorf("got kind %q, want MethodNotFound", kind)
	}
}

func TestResponseOmitsAbsentID(t *testing.T) {
	resp := Ok(nil, value.Null())
	obj, _ := resp.ToObject().ObjectValue()
	if _, present := obj["id"]; present {
		t.Error("id should be omitted when absent")
	}
}
