package codec_test

import (
	"testing"

	"github.com/coredb/rpccore/internal/codec"
	"github.com/coredb/rpccore/internal/codec/cbor"
	"github.com/coredb/rpccore/internal/codec/json"
	"github.com/coredb/rpccore/internal/codec/msgpack"
)

func newRegistry() *codec.Registry {
	return codec.NewRegistry(json.New(), cbor.New(), msgpack.New())
}

func TestBySubProtocolDefaultsToJSON(t *testing.T) {
	r := newRegistry()
	c, err := r.BySubProtocol("")
	if err != nil {
		t.Fatalf("BySubProtocol: %v", err)
	}
	if c.Name() != "json" {
		t.Errorf("got %q, want json", c.Name())
	}
}

func TestBySubProtocolUnknown(t *testing.T) {
	r := newRegistry()
	if _, err := r.BySubProtocol("yaml"); err == nil {
		t.Fatal("expected an error for an unknown sub-protocol")
	}
}

func TestByContentType(t *testing.T) {
	r := newRegistry()
	c, err := r.ByContentType("application/cbor; charset=utf-8")
	if err != nil {
		t.Fatalf("ByContentType: %v", err)
	}
	if c.Name() != "cbor" {
		t.Errorf("got %q, want cbor", c.Name())
	}
}

func TestNegotiateExactBeatsWildcard(t *testing.T) {
	r := newRegistry()
	c, err := r.Negotiate("*/*;q=0.8, application/cbor;q=0.5")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if c.Name() != "cbor" {
		t.Errorf("got %q, want cbor (exact match outranks */* regardless of q)", c.Name())
	}
}

func TestNegotiateExcludesZeroQ(t *testing.T) {
	r := newRegistry()
	c, err := r.Negotiate("application/cbor;q=0, application/msgpack")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if c.Name() != "msgpack" {
		t.Errorf("got %q, want msgpack", c.Name())
	}
}

func TestNegotiateWildcardPrefersJSON(t *testing.T) {
	r := newRegistry()
	c, err := r.Negotiate("*/*")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if c.Name() != "json" {
		t.Errorf("got %q, want json", c.Name())
	}
}

func TestNegotiateNoAcceptableType(t *testing.T) {
	r := newRegistry()
	if _, err := r.Negotiate("application/xml"); err == nil {
		t.Fatal("expected an error when nothing matches")
	}
}
