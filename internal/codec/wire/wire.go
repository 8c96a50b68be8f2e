// Package wire implements the shared Value <-> plain-Go-value bridge used by
// the three self-describing codecs (JSON, CBOR, MessagePack). Each of those
// libraries already knows how to marshal maps/slices/scalars; this package
// carries the extension-point tagging convention (uuid, datetime, duration,
// decimal, record-id, range, regex, table, file, bytes) that lets a single
// Value model round-trip through any of them.
package wire

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/value"
)

const (
	TagUUID     = "$uuid"
	TagDatetime = "$datetime"
	TagDuration = "$duration"
	TagDecimal  = "$decimal"
	TagTable    = "$table"
	TagID       = "$id"
	TagRegex    = "$regex"
	TagFile     = "$file"
	TagBytes    = "$bytes"
	tagBegin    = "begin"
	tagEnd      = "end"
	tagBeginInc = "begin_inclusive"
	tagEndInc   = "end_inclusive"
)

// ToAny converts a Value into plain map[string]any/[]any/scalar form,
// ready for a generic Marshal call from any of the self-describing codec
// libraries. Floats are never NaN/Inf.
func ToAny(v value.Value) (any, error) {
	switch v.Kind() {
	case value.KindNone, value.KindNull:
		return nil, nil
	case value.KindBool:
		b, _ := v.Bool()
		return b, nil
	case value.KindInt:
		i, _ := v.Int()
		return i, nil
	case value.KindUint:
		u, _ := v.Uint()
		return u, nil
	case value.KindFloat:
		f, _ := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, nil
		}
		return f, nil
	case value.KindDecimal:
		s, _ := v.DecimalString()
		return map[string]any{TagDecimal: s}, nil
	case value.KindString:
		s, _ := v.String()
		return s, nil
	case value.KindBytes:
		b, _ := v.Bytes()
		return map[string]any{TagBytes: base64.StdEncoding.EncodeToString(b)}, nil
	case value.KindDatetime:
		t, _ := v.Time()
		return map[string]any{TagDatetime: t.UTC().Format(time.RFC3339Nano)}, nil
	case value.KindUUID:
		id, _ := v.UUIDValue()
		return map[string]any{TagUUID: id.String()}, nil
	case value.KindDuration:
		d, _ := v.DurationValue()
		return map[string]any{TagDuration: d.String()}, nil
	case value.KindArray:
		arr, _ := v.ArrayValue()
		out := make([]any, len(arr))
		for i, e := range arr {
			conv, err := ToAny(e)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case value.KindObject:
		obj, _ := v.ObjectValue()
		out := make(map[string]any, len(obj))
		for k, e := range obj {
			conv, err := ToAny(e)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case value.KindRecordID:
		if rid, ok := v.RecordIDValue(); ok {
			key, err := ToAny(rid.Key)
			if err != nil {
				return nil, err
			}
			return map[string]any{TagID: map[string]any{"table": rid.Table, "key": key}}, nil
		}
		if rng, ok := v.RangeValue(); ok {
			m := map[string]any{tagBeginInc: rng.BeginInclusive, tagEndInc: rng.EndInclusive}
			if rng.Begin != nil {
				b, err := ToAny(*rng.Begin)
				if err != nil {
					return nil, err
				}
				m[tagBegin] = b
			}
			if rng.End != nil {
				e, err := ToAny(*rng.End)
				if err != nil {
					return nil, err
				}
				m[tagEnd] = e
			}
			return m, nil
		}
		return nil, fmt.Errorf("malformed record id value")
	case value.KindGeometry:
		return value.GeoJSON(v), nil
	case value.KindRegex:
		s, _ := v.String()
		return map[string]any{TagRegex: s}, nil
	case value.KindTable:
		s, _ := v.String()
		return map[string]any{TagTable: s}, nil
	case value.KindFile:
		s, _ := v.String()
		return map[string]any{TagFile: s}, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}

// FromAny converts a plain decoded value (as produced by encoding/json,
// fxamacker/cbor, or vmihailenco/msgpack generic decoding) back into a
// Value, recognizing the same extension-point tags ToAny produces.
func FromAny(raw any) value.Value {
	switch t := raw.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case int64:
		return value.Int(t)
	case uint64:
		return value.Uint(t)
	case int:
		return value.Int(int64(t))
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return value.Int(int64(t))
		}
		return value.Float(t)
	case float32:
		return value.Float(float64(t))
	case string:
		return value.String(t)
	case []byte:
		return value.Bytes(t)
	case []any:
		out := make([]value.Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return value.Array(out)
	case map[string]any:
		return fromObject(t)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, v := range t {
			if ks, ok := k.(string); ok {
				m[ks] = v
			}
		}
		return fromObject(m)
	default:
		return value.None()
	}
}

func fromObject(m map[string]any) value.Value {
	if s, ok := m[TagUUID].(string); ok && len(m) == 1 {
		if id, err := uuid.Parse(s); err == nil {
			return value.UUID(id)
		}
	}
	if s, ok := m[TagDatetime].(string); ok && len(m) == 1 {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return value.Datetime(t)
		}
	}
	if s, ok := m[TagDuration].(string); ok && len(m) == 1 {
		if d, err := time.ParseDuration(s); err == nil {
			return value.Duration(d)
		}
	}
	if s, ok := m[TagDecimal].(string); ok && len(m) == 1 {
		return value.Decimal(s)
	}
	if s, ok := m[TagBytes].(string); ok && len(m) == 1 {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return value.Bytes(b)
		}
	}
	if s, ok := m[TagRegex].(string); ok && len(m) == 1 {
		return value.Regex(s)
	}
	if s, ok := m[TagTable].(string); ok && len(m) == 1 {
		return value.Table(s)
	}
	if s, ok := m[TagFile].(string); ok && len(m) == 1 {
		return value.File(s)
	}
	if idField, ok := m[TagID].(map[string]any); ok && len(m) == 1 {
		table, _ := idField["table"].(string)
		key := FromAny(idField["key"])
		return value.Record(table, key)
	}
	if _, hasBeginInc := m[tagBeginInc]; hasBeginInc {
		var begin, end *value.Value
		if b, ok := m[tagBegin]; ok {
			bv := FromAny(b)
			begin = &bv
		}
		if e, ok := m[tagEnd]; ok {
			ev := FromAny(e)
			end = &ev
		}
		beginInc, _ := m[tagBeginInc].(bool)
		endInc, _ := m[tagEndInc].(bool)
		return value.RangeKey(value.Range{Begin: begin, End: end, BeginInclusive: beginInc, EndInclusive: endInc})
	}

	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return value.Object(out)
}
