// Package codec implements the codec layer: decode(codec, bytes) -> Value,
// encode(codec, Value) -> bytes, for each of the five supported wire
// formats, plus sub-protocol and Content-Type/Accept negotiation.
package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/coredb/rpccore/internal/value"
)

// Codec is a (decode, encode) pair for one wire format. The set of
// implementations is closed and small, so a tagged-variant registry is used
// rather than runtime plugin discovery.
type Codec interface {
	// Name is the WebSocket sub-protocol string (json, cbor, msgpack,
	// binary, revision).
	Name() string
	// ContentType is the canonical HTTP Content-Type for this codec.
	ContentType() string
	// Decode turns wire bytes into a Value. A failure is returned as a plain
	// error wrapping the underlying decoder's error; the connection and HTTP
	// layers report it as ParseError with that error's text as the message.
	Decode(data []byte) (value.Value, error)
	// Encode turns a well-formed Value into wire bytes. Encoding a
	// well-formed Value must never fail; callers treat an error here as a
	// programming bug, not a recoverable condition.
	Encode(v value.Value) ([]byte, error)
}

// Registry maps sub-protocol names and Content-Type strings to a Codec.
type Registry struct {
	byName        map[string]Codec
	byContentType map[string]Codec
}

func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{
		byName:        make(map[string]Codec, len(codecs)),
		byContentType: make(map[string]Codec, len(codecs)),
	}
	for _, c := range codecs {
		r.byName[c.Name()] = c
		r.byContentType[c.ContentType()] = c
	}
	return r
}

// BySubProtocol resolves a WebSocket sub-protocol string to a Codec,
// defaulting to JSON when sub is empty.
func (r *Registry) BySubProtocol(sub string) (Codec, error) {
	if sub == "" {
		sub = "json"
	}
	c, ok := r.byName[sub]
	if !ok {
		return nil, fmt.Errorf("unknown sub-protocol %q", sub)
	}
	return c, nil
}

// ByContentType resolves an exact Content-Type header to a Codec. The
// Content-Type <-> codec map is bijective.
func (r *Registry) ByContentType(contentType string) (Codec, error) {
	contentType = stripParams(contentType)
	c, ok := r.byContentType[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	return c, nil
}

// acceptEntry is one comma-separated member of an Accept header.
type acceptEntry struct {
	mediaType string
	q         float64
	order     int
}

// Negotiate picks a Codec for an Accept header value using the usual
// specificity rule: exact match > type/* > */*, ties broken by header
// order, entries with q=0 excluded.
func (r *Registry) Negotiate(accept string) (Codec, error) {
	if strings.TrimSpace(accept) == "" {
		return nil, fmt.Errorf("empty accept header")
	}
	var entries []acceptEntry
	for i, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, q := parseAcceptPart(part)
		if q == 0 {
			continue
		}
		entries = append(entries, acceptEntry{mediaType: mediaType, q: q, order: i})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no acceptable media type")
	}

	specificity := func(mt string) int {
		switch {
		case mt == "*/*":
			return 0
		case strings.HasSuffix(mt, "/*"):
			return 1
		default:
			return 2
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := specificity(entries[i].mediaType), specificity(entries[j].mediaType)
		if si != sj {
			return si > sj
		}
		return entries[i].order < entries[j].order
	})

	for _, e := range entries {
		if e.mediaType == "*/*" {
			// Any codec will do; prefer JSON as the universal default.
			if c, ok := r.byName["json"]; ok {
				return c, nil
			}
		}
		if strings.HasSuffix(e.mediaType, "/*") {
			prefix := strings.TrimSuffix(e.mediaType, "*")
			for ct, c := range r.byContentType {
				if strings.HasPrefix(ct, prefix) {
					return c, nil
				}
			}
			continue
		}
		if c, ok := r.byContentType[e.mediaType]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no acceptable media type")
}

func parseAcceptPart(part string) (mediaType string, q float64) {
	q = 1.0
	segs := strings.Split(part, ";")
	mediaType = strings.TrimSpace(segs[0])
	for _, seg := range segs[1:] {
		seg = strings.TrimSpace(seg)
		if strings.HasPrefix(seg, "q=") {
			if parsed, err := strconv.ParseFloat(strings.TrimPrefix(seg, "q="), 64); err == nil {
				q = parsed
			}
		}
	}
	return mediaType, q
}

func stripParams(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return strings.TrimSpace(contentType)
}
