// Package json implements the self-describing JSON codec. Geometry is
// emitted in a GeoJSON-like shape; numbers are never NaN/Inf in output.
// The extension-point tagging convention (uuid, datetime, duration,
// decimal, record-id, range, regex, table, file, bytes) lives in
// internal/codec/wire and is shared with the CBOR and MessagePack codecs.
package json

import (
	"encoding/json"
	"fmt"

	"github.com/coredb/rpccore/internal/codec/wire"
	"github.com/coredb/rpccore/internal/value"
)

// Codec implements codec.Codec for JSON.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (*Codec) Name() string        { return "json" }
func (*Codec) ContentType() string { return "application/json" }

func (c *Codec) Decode(data []byte) (value.Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return value.Value{}, fmt.Errorf("json decode: %w", err)
	}
	return wire.FromAny(raw), nil
}

func (c *Codec) Encode(v value.Value) ([]byte, error) {
	out, err := wire.ToAny(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}
