package value_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

func TestScalarsUseNativeBins(t *testing.T) {
	cases := []struct {
		name string
		in   any
		kind value.Kind
		out  any
	}{
		{"nil", nil, value.KindNil, nil},
		{"int64", int64(-42), value.KindInteger, int64(-42)},
		{"int", 7, value.KindInteger, int64(7)},
		{"uint32", uint32(9), value.KindInteger, int64(9)},
		{"max int64", int64(math.MaxInt64), value.KindInteger, int64(math.MaxInt64)},
		{"string", "hello", value.KindString, "hello"},
		{"empty string", "", value.KindString, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire, err := value.Encode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, wire.Kind)

			got, err := value.Decode(wire)
			require.NoError(t, err)
			assert.Equal(t, tc.out, got)
		})
	}
}

func TestCompositeValuesUseEnvelope(t *testing.T) {
	in := map[string]any{
		"name":  "ada",
		"tags":  []any{"a", int64(2)},
		"score": 9.5,
		"ok":    true,
		"raw":   []byte{0x01, 0x02},
	}
	wire, err := value.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, value.KindBlob, wire.Kind)

	got, err := value.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestUint64OverflowUsesEnvelope(t *testing.T) {
	wire, err := value.Encode(uint64(math.MaxUint64))
	require.NoError(t, err)
	assert.Equal(t, value.KindBlob, wire.Kind)

	got, err := value.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)
}

func TestNonStringMapKeysSurvive(t *testing.T) {
	wire, err := value.Encode(map[int64]string{1: "one"})
	require.NoError(t, err)

	got, err := value.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, map[any]any{int64(1): "one"}, got)
}

func TestUnsupportedValue(t *testing.T) {
	_, err := value.Encode(make(chan int))
	require.Error(t, err)
	assert.True(t, errors.Is(err, value.ErrUnsupportedValue))
}

func TestUnknownTagDecodesToPlaceholder(t *testing.T) {
	got, err := value.Decode(value.Raw(value.Kind(23), []byte(`{"type":"Point"}`)))
	require.NoError(t, err)
	assert.True(t, value.IsUnknown(got))
	assert.Equal(t, value.Unknown{Tag: 23}, got)
}

func TestMalformedEnvelope(t *testing.T) {
	_, err := value.Decode(value.Blob([]byte{0xc1}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, value.ErrMalformedEnvelope))

	_, err = value.Decode(value.Blob([]byte{0xc1, 'v'}))
	assert.True(t, errors.Is(err, value.ErrMalformedEnvelope))

	_, err = value.UnmarshalEnvelope([]byte("hello"))
	assert.True(t, errors.Is(err, value.ErrMalformedEnvelope))
}

func TestTrailingBytesAreRejected(t *testing.T) {
	data, err := value.MarshalEnvelope([]any{1, "a"})
	require.NoError(t, err)
	got, err := value.UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "a"}, got)

	_, err = value.Decode(value.Blob(append(data, "trailing-garbage"...)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, value.ErrMalformedEnvelope))
}

func TestRawBlobsDecodeToBytes(t *testing.T) {
	got, err := value.Decode(value.Blob([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got, err = value.Decode(value.Blob(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got)

	wire, err := value.Encode([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, value.IsEnvelope(wire.Bytes))
	got, err = value.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestEqual(t *testing.T) {
	assert.True(t, value.Int(3).Equal(value.Int(3)))
	assert.False(t, value.Int(3).Equal(value.String("3")))
	assert.True(t, value.Blob([]byte{1}).Equal(value.Blob([]byte{1})))
	assert.True(t, value.Nil().Equal(value.Nil()))
}
