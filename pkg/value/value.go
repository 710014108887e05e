// Package value converts Go values to the store's typed bin representation
// and back.
//
// Integers and strings travel as native bins. Anything else (floats, bools,
// byte slices, slices, maps, structs) is serialized into a msgpack envelope
// and stored as a blob behind a two-byte header. Decoding an envelope yields
// the generic form: int64/uint64 for integers, float64, bool, []byte, []any
// and map[string]any (or map[any]any when a map has non-string keys). Blobs
// without the header were written by another client and decode to []byte.
package value

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ratio1/aerospike_native_go/pkg/logger"
)

// Kind is the wire tag of a bin value.
type Kind uint8

// Tags share their numbering with the store's particle types.
const (
	KindNil     Kind = 0
	KindInteger Kind = 1
	KindString  Kind = 3
	KindBlob    Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged bin value as it travels to and from a driver.
type Value struct {
	Kind  Kind   `msgpack:"t"`
	Int   int64  `msgpack:"i,omitempty"`
	Str   string `msgpack:"s,omitempty"`
	Bytes []byte `msgpack:"b,omitempty"`
}

// Unknown is returned by Decode for a value whose tag is not recognised.
type Unknown struct {
	Tag Kind
}

func (u Unknown) String() string {
	return fmt.Sprintf("<unknown bin type %d>", uint8(u.Tag))
}

// IsUnknown reports whether a decoded value is the Unknown placeholder.
func IsUnknown(v any) bool {
	_, ok := v.(Unknown)
	return ok
}

var (
	// ErrUnsupportedValue is returned when a value has no envelope encoding.
	ErrUnsupportedValue = errors.New("value: unsupported value")
	// ErrMalformedEnvelope is returned when a blob cannot be decoded.
	ErrMalformedEnvelope = errors.New("value: malformed envelope")
)

// Nil returns the null bin value.
func Nil() Value { return Value{Kind: KindNil} }

// Int returns an integer bin value.
func Int(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// String returns a string bin value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Blob returns a blob bin value. b is either an envelope or raw bytes.
func Blob(b []byte) Value { return Value{Kind: KindBlob, Bytes: append([]byte(nil), b...)} }

// Raw returns a value with an arbitrary tag, used by drivers to pass through
// bins they cannot classify.
func Raw(tag Kind, b []byte) Value { return Value{Kind: tag, Bytes: append([]byte(nil), b...)} }

// Equal compares two wire values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindInteger:
		return v.Int == o.Int
	case KindString:
		return v.Str == o.Str
	default:
		return bytes.Equal(v.Bytes, o.Bytes)
	}
}

// Encode converts a Go value to its wire form.
func Encode(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Nil(), nil
	case Value:
		return v, nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return Int(int64(v)), nil
		}
	case uint64:
		if v <= math.MaxInt64 {
			return Int(int64(v)), nil
		}
	case string:
		return String(v), nil
	}
	data, err := MarshalEnvelope(x)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindBlob, Bytes: data}, nil
}

// Decode converts a wire value back to a Go value. Unrecognised tags decode
// to Unknown and are reported through the logger.
func Decode(v Value) (any, error) {
	switch v.Kind {
	case KindNil:
		return nil, nil
	case KindInteger:
		return v.Int, nil
	case KindString:
		return v.Str, nil
	case KindBlob:
		if !IsEnvelope(v.Bytes) {
			return append([]byte{}, v.Bytes...), nil
		}
		return UnmarshalEnvelope(v.Bytes)
	}
	logger.Warn("value: unknown bin type", "tag", uint8(v.Kind))
	return Unknown{Tag: v.Kind}, nil
}

// envelopeHeader prefixes every envelope. 0xc1 is never used by msgpack, so
// a raw msgpack or plain byte blob cannot start with it by accident.
var envelopeHeader = []byte{0xc1, 'v'}

// IsEnvelope reports whether a blob claims to be an envelope. A blob with a
// truncated header still counts so that it is reported as malformed.
func IsEnvelope(b []byte) bool {
	return len(b) > 0 && b[0] == envelopeHeader[0]
}

// MarshalEnvelope serializes x into the portable envelope format.
func MarshalEnvelope(x any) ([]byte, error) {
	data, err := msgpack.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("%w %T: %v", ErrUnsupportedValue, x, err)
	}
	return append(append(make([]byte, 0, len(envelopeHeader)+len(data)), envelopeHeader...), data...), nil
}

// UnmarshalEnvelope decodes an envelope produced by MarshalEnvelope. The
// payload must hold exactly one msgpack value.
func UnmarshalEnvelope(data []byte) (any, error) {
	if !bytes.HasPrefix(data, envelopeHeader) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedEnvelope)
	}
	payload := data[len(envelopeHeader):]
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}
	r := bytes.NewReader(payload)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(decodeMap)

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEnvelope, r.Len())
	}
	return out, nil
}

func decodeMap(d *msgpack.Decoder) (any, error) {
	m, err := d.DecodeUntypedMap()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		s, ok := k.(string)
		if !ok {
			return m, nil
		}
		out[s] = v
	}
	return out, nil
}
