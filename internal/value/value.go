// Package value implements the tagged Value sum type shared by every codec
// and by the request/response model. It is the single currency all wire
// formats convert to and from; richer, engine-specific types are built from
// it one layer up, outside this module.
package value

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the tagged cases of Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt
	KindUint
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindDatetime
	KindUUID
	KindDuration
	KindArray
	KindObject
	KindRecordID
	KindGeometry
	KindRegex
	KindTable
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDatetime:
		return "datetime"
	case KindUUID:
		return "uuid"
	case KindDuration:
		return "duration"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRecordID:
		return "record_id"
	case KindGeometry:
		return "geometry"
	case KindRegex:
		return "regex"
	case KindTable:
		return "table"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// RecordID is a {table, key} pair. Key may itself be a string, number,
// object, or array Value, or a range-shaped object; see IsRange.
type RecordID struct {
	Table string
	Key   Value
}

// Range models a record-id key range: {begin?, end?, begin_inclusive,
// end_inclusive}.
type Range struct {
	Begin, End                     *Value
	BeginInclusive, EndInclusive   bool
}

// Geometry is left opaque to this layer; codecs carry it as GeoJSON-shaped
// data and the engine interprets it.
type Geometry struct {
	Type       string
	Coordinates Value
}

// Value is a closed tagged union over the data model every wire format and
// the request/response layer share.
type Value struct {
	kind Kind

	b    bool
	i    int64
	u    uint64
	f    float64
	dec  string // decimal stored as its canonical decimal-string form
	s    string // string, table name, regex source, file path
	byt  []byte
	t    time.Time
	id   uuid.UUID
	dur  time.Duration
	arr  []Value
	obj  map[string]Value
	rec  *RecordID
	rng  *Range
	geo  *Geometry
}

func (v Value) Kind() Kind { return v.kind }

func None() Value { return Value{kind: KindNone} }
func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Uint(u uint64) Value { return Value{kind: KindUint, u: u} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Decimal(canonical string) Value { return Value{kind: KindDecimal, dec: canonical} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, byt: b} }
func Datetime(t time.Time) Value { return Value{kind: KindDatetime, t: t} }
func UUID(id uuid.UUID) Value { return Value{kind: KindUUID, id: id} }
func Duration(d time.Duration) Value { return Value{kind: KindDuration, dur: d} }
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }
func Record(table string, key Value) Value {
	return Value{kind: KindRecordID, rec: &RecordID{Table: table, Key: key}}
}
func RangeKey(r Range) Value { return Value{kind: KindRecordID, rng: &r} }
func Geom(g Geometry) Value { return Value{kind: KindGeometry, geo: &g} }
func Regex(source string) Value { return Value{kind: KindRegex, s: source} }
func Table(name string) Value { return Value{kind: KindTable, s: name} }
func File(path string) Value { return Value{kind: KindFile, s: path} }

func (v Value) IsNone() bool { return v.kind == KindNone }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsNullish() bool { return v.kind == KindNone || v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Uint() (uint64, bool) {
	if v.kind != KindUint {
		return 0, false
	}
	return v.u, true
}

func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) String() (string, bool) {
	switch v.kind {
	case KindString, KindRegex, KindTable, KindFile:
		return v.s, true
	}
	return "", false
}

func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.byt, true
}

// DecimalString returns the canonical decimal-string representation held by
// a KindDecimal Value.
func (v Value) DecimalString() (string, bool) {
	if v.kind != KindDecimal {
		return "", false
	}
	return v.dec, true
}

// ObjectOrDecimalString returns the stored decimal string without checking
// the kind (empty for non-decimal values); the codecs use DecimalString.
func (v Value) ObjectOrDecimalString() string {
	return v.dec
}

// GeometryValue returns the underlying Geometry for a KindGeometry Value.
func (v Value) GeometryValue() (*Geometry, bool) {
	if v.kind != KindGeometry || v.geo == nil {
		return nil, false
	}
	return v.geo, true
}

// GeoJSON renders a KindGeometry Value in GeoJSON-like shape:
// {"type": ..., "coordinates": ...}. Callers must only pass KindGeometry
// values.
func GeoJSON(v Value) map[string]any {
	if v.geo == nil {
		return map[string]any{}
	}
	return map[string]any{
		"type":        v.geo.Type,
		"coordinates": geoCoordinatesToAny(v.geo.Coordinates),
	}
}

// geoCoordinatesToAny performs a minimal, codec-agnostic conversion of the
// coordinates Value into plain Go values (numbers/arrays), since geometry
// coordinates are always numeric arrays, never the extension-point shapes
// (uuid, datetime, ...) the rest of Value models.
func geoCoordinatesToAny(v Value) any {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = geoCoordinatesToAny(e)
		}
		return out
	default:
		return nil
	}
}

func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDatetime {
		return time.Time{}, false
	}
	return v.t, true
}

func (v Value) UUIDValue() (uuid.UUID, bool) {
	if v.kind != KindUUID {
		return uuid.UUID{}, false
	}
	return v.id, true
}

func (v Value) DurationValue() (time.Duration, bool) {
	if v.kind != KindDuration {
		return 0, false
	}
	return v.dur, true
}

func (v Value) ArrayValue() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) ObjectValue() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

func (v Value) RecordIDValue() (*RecordID, bool) {
	if v.kind != KindRecordID || v.rec == nil {
		return nil, false
	}
	return v.rec, true
}

func (v Value) RangeValue() (*Range, bool) {
	if v.kind != KindRecordID || v.rng == nil {
		return nil, false
	}
	return v.rng, true
}

// IsRange reports whether v is a record-id key shaped as a range, used by
// Singular to decide whether a record-id target names one row or many.
func (v Value) IsRange() bool {
	return v.kind == KindRecordID && v.rng != nil
}

// Singular reports whether a CRUD shorthand's target names exactly one row:
//   singular(object) = true
//   singular(record-id) = ¬is_range(record_id.key)
//   everything else = false
func Singular(v Value) bool {
	switch v.kind {
	case KindObject:
		return true
	case KindRecordID:
		if v.rec == nil {
			return false
		}
		return !v.rec.Key.IsRange()
	default:
		return false
	}
}

// Equal performs a deep, kind-aware equality check, used by tests and by
// request round-trip verification.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindUint:
		return a.u == b.u
	case KindFloat:
		return a.f == b.f
	case KindDecimal:
		return a.dec == b.dec
	case KindString, KindRegex, KindTable, KindFile:
		return a.s == b.s
	case KindBytes:
		return string(a.byt) == string(b.byt)
	case KindDatetime:
		return a.t.Equal(b.t)
	case KindUUID:
		return a.id == b.id
	case KindDuration:
		return a.dur == b.dur
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindRecordID:
		if (a.rec == nil) != (b.rec == nil) || (a.rng == nil) != (b.rng == nil) {
			return false
		}
		if a.rec != nil {
			return a.rec.Table == b.rec.Table && Equal(a.rec.Key, b.rec.Key)
		}
		if a.rng != nil {
			boundEqual := func(x, y *Value) bool {
				if x == nil || y == nil {
					return x == y
				}
				return Equal(*x, *y)
			}
			return a.rng.BeginInclusive == b.rng.BeginInclusive && a.rng.EndInclusive == b.rng.EndInclusive &&
				boundEqual(a.rng.Begin, b.rng.Begin) && boundEqual(a.rng.End, b.rng.End)
		}
		return true
	default:
		return false
	}
}

func (k Kind) GoString() string { return fmt.Sprintf("value.Kind(%s)", k.String()) }
