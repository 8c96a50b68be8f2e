// Package msgpack implements the self-describing MessagePack codec on top
// of vmihailenco/msgpack/v5, mirroring the extension-point tagging
// convention (uuid, datetime, duration, decimal, record-id, range, regex,
// table, file, bytes) shared with the JSON and CBOR codecs via
// internal/codec/wire.
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/coredb/rpccore/internal/codec/wire"
	"github.com/coredb/rpccore/internal/value"
)

// Codec implements codec.Codec for MessagePack.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (*Codec) Name() string        { return "msgpack" }
func (*Codec) ContentType() string { return "application/msgpack" }

func (c *Codec) Decode(data []byte) (value.Value, error) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return value.Value{}, fmt.Errorf("msgpack decode: %w", err)
	}
	return wire.FromAny(raw), nil
}

func (c *Codec) Encode(v value.Value) ([]byte, error) {
	out, err := wire.ToAny(v)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(out)
}
