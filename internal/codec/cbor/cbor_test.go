package cbor

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	in := value.Object(map[string]value.Value{
		"id":      value.UUID(uuid.New()),
		"created": value.Datetime(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)),
		"balance": value.Decimal("10.50"),
		"tags":    value.Array([]value.Value{value.Int(1), value.Int(2), value.Int(3)}),
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

func TestDecodeMalformed(t *testing.T) {
	c := New()
	if _, err := c.Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected an error decoding malformed CBOR")
	}
}
