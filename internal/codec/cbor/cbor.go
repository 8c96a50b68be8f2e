// Package cbor implements the self-describing CBOR codec on top of
// fxamacker/cbor/v2. It shares its extension-point tagging convention
// (uuid, datetime, duration, decimal, record-id, range, regex, table,
// file, bytes) with the JSON and MessagePack codecs via internal/codec/wire,
// rather than registering CBOR tag numbers: the tagging scheme needs to
// round-trip identically across all three self-describing formats, and a
// shared map-based convention does that more simply than per-format tag
// number allocation.
package cbor

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/coredb/rpccore/internal/codec/wire"
	"github.com/coredb/rpccore/internal/value"
)

var (
	decMode cbor.DecMode
	encMode cbor.EncMode
)

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: building decode mode: %v", err))
	}
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: building encode mode: %v", err))
	}
}

// Codec implements codec.Codec for CBOR.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (*Codec) Name() string        { return "cbor" }
func (*Codec) ContentType() string { return "application/cbor" }

func (c *Codec) Decode(data []byte) (value.Value, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return value.Value{}, fmt.Errorf("cbor decode: %w", err)
	}
	return wire.FromAny(normalize(raw)), nil
}

func (c *Codec) Encode(v value.Value) ([]byte, error) {
	out, err := wire.ToAny(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(out)
}

// normalize folds the byte-string and integer variants CBOR decodes into
// (uint64 vs int64, []byte vs string) down to the set wire.FromAny expects.
func normalize(raw any) any {
	switch t := raw.(type) {
	case []byte:
		return t
	case uint64:
		if t <= 1<<63-1 {
			return int64(t)
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = normalize(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = normalize(v)
		}
		return out
	default:
		return t
	}
}
