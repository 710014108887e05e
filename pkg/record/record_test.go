package record_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

func TestToWireEncodesEveryBin(t *testing.T) {
	bins, err := record.ToWire(map[string]any{"n": 42, "s": "hi", "l": []any{int64(1)}})
	require.NoError(t, err)

	assert.Equal(t, value.Int(42), bins["n"])
	assert.Equal(t, value.String("hi"), bins["s"])
	assert.Equal(t, value.KindBlob, bins["l"].Kind)
}

func TestToWireRejectsEmptyAndBadNames(t *testing.T) {
	_, err := record.ToWire(map[string]any{})
	assert.True(t, errors.Is(err, record.ErrEmptyBins))

	_, err = record.ToWire(map[string]any{"": 1})
	assert.True(t, errors.Is(err, record.ErrInvalidArgument))

	_, err = record.ToWire(map[string]any{strings.Repeat("b", 16): 1})
	assert.True(t, errors.Is(err, record.ErrInvalidArgument))

	_, err = record.ToWire(map[string]any{"ch": make(chan int)})
	assert.True(t, errors.Is(err, value.ErrUnsupportedValue))
}

func TestFromWireUsesFallbackKey(t *testing.T) {
	k, err := key.New("test", "demo", "k1")
	require.NoError(t, err)

	rec := record.FromWire(&record.Wire{
		Bins:       record.Bins{"n": value.Int(42), "s": value.String("hi")},
		Generation: 1,
		TTL:        3600,
	}, k)

	require.True(t, rec.Found())
	assert.Same(t, k, rec.Key)
	assert.Equal(t, map[string]any{"n": int64(42), "s": "hi"}, rec.Bins)
	assert.EqualValues(t, 1, rec.Generation)
	assert.EqualValues(t, 3600, rec.TTL)
	assert.Equal(t, []string{"n", "s"}, rec.BinNames())
}

func TestFromWirePrefersEmbeddedKey(t *testing.T) {
	embedded, err := key.New("test", "demo", "embedded")
	require.NoError(t, err)
	fallback, err := key.New("test", "demo", "fallback")
	require.NoError(t, err)

	rec := record.FromWire(&record.Wire{Key: embedded, Bins: record.Bins{}}, fallback)
	assert.Same(t, embedded, rec.Key)
}

func TestFromWireOmitsUnknownBins(t *testing.T) {
	rec := record.FromWire(&record.Wire{Bins: record.Bins{
		"geo":  value.Raw(23, []byte(`{}`)),
		"bad":  value.Blob([]byte{0xc1}),
		"name": value.String("ok"),
	}}, nil)

	assert.Equal(t, map[string]any{"name": "ok"}, rec.Bins)
	v, ok := rec.Bin("name")
	assert.True(t, ok)
	assert.Equal(t, "ok", v)
}

func TestAbsentMarker(t *testing.T) {
	k, err := key.New("test", "demo", 1)
	require.NoError(t, err)

	marker := record.Absent(k)
	assert.False(t, marker.Found())
	assert.Same(t, k, marker.Key)
	assert.Nil(t, marker.Bins)

	var nilRec *record.Record
	assert.False(t, nilRec.Found())
}
