package revision

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/coredb/rpccore/internal/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	in := value.Object(map[string]value.Value{
		"name":    value.String("tobie"),
		"balance": value.Decimal("99.99"),
		"active":  value.Bool(true),
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

func TestLegacyDecimalMigration(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(revisionLegacyDecimal)
	buf.WriteByte(byte(tagDecimal))
	binary.Write(&buf, binary.BigEndian, 12.5)

	c := New()
	out, err := c.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s, ok := out.DecimalString()
	if !ok || s != "12.5" {
		t.Fatalf("legacy decimal migration failed: got %q", s)
	}
}
