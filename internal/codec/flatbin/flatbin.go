// Package flatbin implements the flat-binary codec: a compact,
// schema-driven, non-self-describing layout built directly on
// encoding/binary. Unlike the JSON/CBOR/MessagePack codecs it has no
// generic library in the examples pack to lean on (there is no Go
// equivalent of a bincode-style positional binary encoder in the corpus),
// so the wire layout is bespoke and documented inline.
//
// Layout: one leading type-tag byte per Value, followed by a type-specific
// payload. Strings/bytes/arrays/objects are length-prefixed with a uvarint.
// All multi-byte integers are big-endian.
package flatbin

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/coredb/rpccore/internal/value"
)

type tag byte

const (
	tagNone tag = iota
	tagNull
	tagFalse
	tagTrue
	tagInt
	tagUint
	tagFloat
	tagDecimal
	tagString
	tagBytes
	tagDatetime
	tagUUID
	tagDuration
	tagArray
	tagObject
	tagRecordID
	tagRange
	tagGeometry
	tagRegex
	tagTable
	tagFile
)

// schemaVersion is bumped whenever the wire layout below changes shape.
const schemaVersion = 1

// Codec implements codec.Codec for the flat-binary format.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (*Codec) Name() string        { return "binary" }
func (*Codec) ContentType() string { return "application/x-surql-binary" }

func (c *Codec) Decode(data []byte) (value.Value, error) {
	r := bytes.NewReader(data)
	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return value.Value{}, fmt.Errorf("flatbin decode: %w", err)
	}
	if version != schemaVersion {
		return value.Value{}, fmt.Errorf("flatbin decode: unsupported schema version %d", version)
	}
	v, err := decodeValue(r)
	if err != nil {
		return value.Value{}, fmt.Errorf("flatbin decode: %w", err)
	}
	return v, nil
}

func (c *Codec) Encode(v value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint8(schemaVersion)); err != nil {
		return nil, err
	}
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(w *bytes.Buffer, v value.Value) error {
	switch v.Kind() {
	case value.KindNone:
		return w.WriteByte(byte(tagNone))
	case value.KindNull:
		return w.WriteByte(byte(tagNull))
	case value.KindBool:
		b, _ := v.Bool()
		if b {
			return w.WriteByte(byte(tagTrue))
		}
		return w.WriteByte(byte(tagFalse))
	case value.KindInt:
		i, _ := v.Int()
		w.WriteByte(byte(tagInt))
		return binary.Write(w, binary.BigEndian, i)
	case value.KindUint:
		u, _ := v.Uint()
		w.WriteByte(byte(tagUint))
		return binary.Write(w, binary.BigEndian, u)
	case value.KindFloat:
		f, _ := v.Float()
		w.WriteByte(byte(tagFloat))
		return binary.Write(w, binary.BigEndian, f)
	case value.KindDecimal:
		s, _ := v.DecimalString()
		w.WriteByte(byte(tagDecimal))
		return writeString(w, s)
	case value.KindString:
		s, _ := v.String()
		w.WriteByte(byte(tagString))
		return writeString(w, s)
	case value.KindBytes:
		b, _ := v.Bytes()
		w.WriteByte(byte(tagBytes))
		return writeBytes(w, b)
	case value.KindDatetime:
		t, _ := v.Time()
		w.WriteByte(byte(tagDatetime))
		return binary.Write(w, binary.BigEndian, t.UTC().UnixNano())
	case value.KindUUID:
		id, _ := v.UUIDValue()
		w.WriteByte(byte(tagUUID))
		_, err := w.Write(id[:])
		return err
	case value.KindDuration:
		d, _ := v.DurationValue()
		w.WriteByte(byte(tagDuration))
		return binary.Write(w, binary.BigEndian, int64(d))
	case value.KindArray:
		arr, _ := v.ArrayValue()
		w.WriteByte(byte(tagArray))
		writeUvarint(w, uint64(len(arr)))
		for _, e := range arr {
			if err := encodeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	case value.KindObject:
		obj, _ := v.ObjectValue()
		w.WriteByte(byte(tagObject))
		writeUvarint(w, uint64(len(obj)))
		for k, e := range obj {
			if err := writeString(w, k); err != nil {
				return err
			}
			if err := encodeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	case value.KindRecordID:
		if rid, ok := v.RecordIDValue(); ok {
			w.WriteByte(byte(tagRecordID))
			if err := writeString(w, rid.Table); err != nil {
				return err
			}
			return encodeValue(w, rid.Key)
		}
		if rng, ok := v.RangeValue(); ok {
			w.WriteByte(byte(tagRange))
			if err := writeOptBool(w, rng.BeginInclusive); err != nil {
				return err
			}
			if err := writeOptBool(w, rng.EndInclusive); err != nil {
				return err
			}
			if err := writeOptValue(w, rng.Begin); err != nil {
				return err
			}
			return writeOptValue(w, rng.End)
		}
		return fmt.Errorf("malformed record id value")
	case value.KindGeometry:
		geo, _ := v.GeometryValue()
		w.WriteByte(byte(tagGeometry))
		if err := writeString(w, geo.Type); err != nil {
			return err
		}
		return encodeValue(w, geo.Coordinates)
	case value.KindRegex:
		s, _ := v.String()
		w.WriteByte(byte(tagRegex))
		return writeString(w, s)
	case value.KindTable:
		s, _ := v.String()
		w.WriteByte(byte(tagTable))
		return writeString(w, s)
	case value.KindFile:
		s, _ := v.String()
		w.WriteByte(byte(tagFile))
		return writeString(w, s)
	default:
		return fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}

func decodeValue(r *bytes.Reader) (value.Value, error) {
	tb, err := r.ReadByte()
	if err != nil {
		return value.Value{}, err
	}
	switch tag(tb) {
	case tagNone:
		return value.None(), nil
	case tagNull:
		return value.Null(), nil
	case tagFalse:
		return value.Bool(false), nil
	case tagTrue:
		return value.Bool(true), nil
	case tagInt:
		var i int64
		if err := binary.Read(r, binary.BigEndian, &i); err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case tagUint:
		var u uint64
		if err := binary.Read(r, binary.BigEndian, &u); err != nil {
			return value.Value{}, err
		}
		return value.Uint(u), nil
	case tagFloat:
		var f float64
		if err := binary.Read(r, binary.BigEndian, &f); err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case tagDecimal:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Decimal(s), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case tagBytes:
		b, err := readBytes(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bytes(b), nil
	case tagDatetime:
		var nanos int64
		if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
			return value.Value{}, err
		}
		return value.Datetime(time.Unix(0, nanos).UTC()), nil
	case tagUUID:
		var raw [16]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return value.Value{}, err
		}
		id, err := uuid.FromBytes(raw[:])
		if err != nil {
			return value.Value{}, err
		}
		return value.UUID(id), nil
	case tagDuration:
		var d int64
		if err := binary.Read(r, binary.BigEndian, &d); err != nil {
			return value.Value{}, err
		}
		return value.Duration(time.Duration(d)), nil
	case tagArray:
		n, err := readUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		out := make([]value.Value, n)
		for i := range out {
			out[i], err = decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.Array(out), nil
	case tagObject:
		n, err := readUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		out := make(map[string]value.Value, n)
		for i := uint64(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return value.Value{}, err
			}
			ev, err := decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = ev
		}
		return value.Object(out), nil
	case tagRecordID:
		table, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		key, err := decodeValue(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Record(table, key), nil
	case tagRange:
		beginInc, err := readBool(r)
		if err != nil {
			return value.Value{}, err
		}
		endInc, err := readBool(r)
		if err != nil {
			return value.Value{}, err
		}
		begin, err := readOptValue(r)
		if err != nil {
			return value.Value{}, err
		}
		end, err := readOptValue(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.RangeKey(value.Range{Begin: begin, End: end, BeginInclusive: beginInc, EndInclusive: endInc}), nil
	case tagGeometry:
		typ, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		coords, err := decodeValue(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Geom(value.Geometry{Type: typ, Coordinates: coords}), nil
	case tagRegex:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Regex(s), nil
	case tagTable:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Table(s), nil
	case tagFile:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.File(s), nil
	default:
		return value.Value{}, fmt.Errorf("unknown tag byte %d", tb)
	}
}

func writeUvarint(w *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(tmp[:], n)
	w.Write(tmp[:l])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func writeString(w *bytes.Buffer, s string) error {
	writeUvarint(w, uint64(len(s)))
	_, err := w.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeBytes(w *bytes.Buffer, b []byte) error {
	writeUvarint(w, uint64(len(b)))
	_, err := w.Write(b)
	return err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeBool(w *bytes.Buffer, b bool) error {
	if b {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func writeOptBool(w *bytes.Buffer, b bool) error {
	return writeBool(w, b)
}

func writeOptValue(w *bytes.Buffer, v *value.Value) error {
	if v == nil {
		return w.WriteByte(0)
	}
	if err := w.WriteByte(1); err != nil {
		return err
	}
	return encodeValue(w, *v)
}

func readOptValue(r *bytes.Reader) (*value.Value, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
