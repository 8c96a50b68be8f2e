package msgpack

import (
	"testing"

	"github.com/coredb/rpccore/internal/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	in := value.Object(map[string]value.Value{
		"name": value.String("tobie"),
		"age":  value.Int(33),
		"tags": value.Array([]value.Value{value.String("a"), value.String("b")}),
	})
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !value.Equal(in, out) {
		t.Fatalf("round trip mismatch:\n  in:  %#v\n  out: %#v", in, out)
	}
}

func TestContentTypeAndName(t *testing.T) {
	c := New()
	if c.Name() != "msgpack" {
		t.Errorf("Name() = %q, want msgpack", c.Name())
	}
	if c.ContentType() != "application/msgpack" {
		t.Errorf("ContentType() = %q, want application/msgpack", c.ContentType())
	}
}
