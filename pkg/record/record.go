// Package record assembles outbound bin payloads and rebuilds Records from
// driver responses.
package record

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

const (
	// MaxBinNameLength is the longest bin name the store accepts.
	MaxBinNameLength = 15
	// TTLNever is the TTL reported for records that never expire.
	TTLNever = math.MaxUint32
)

var (
	// ErrEmptyBins is returned when a write carries no bins.
	ErrEmptyBins = errors.New("record: no bins to write")
	// ErrInvalidArgument is returned for malformed bin names or values.
	ErrInvalidArgument = errors.New("record: invalid argument")
)

// Bins maps bin names to wire values.
type Bins map[string]value.Value

// Wire is a record as exchanged with a driver.
type Wire struct {
	Key        *key.Key
	Bins       Bins
	Generation uint32
	TTL        uint32
}

// Record is a fetched record. Generation and TTL are maintained by the store.
type Record struct {
	Key        *key.Key
	Bins       map[string]any
	Generation uint32
	TTL        uint32

	absent bool
}

// Absent returns the marker delivered for a key that does not exist.
func Absent(k *key.Key) *Record {
	return &Record{Key: k, absent: true}
}

// Found reports whether the record exists. It is false for the Absent marker.
func (r *Record) Found() bool {
	return r != nil && !r.absent
}

// Bin returns a single bin value.
func (r *Record) Bin(name string) (any, bool) {
	if r == nil || r.Bins == nil {
		return nil, false
	}
	v, ok := r.Bins[name]
	return v, ok
}

// BinNames returns the bin names in sorted order.
func (r *Record) BinNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Bins))
	for name := range r.Bins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateBinName checks a bin name against store limits.
func ValidateBinName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: bin name is required", ErrInvalidArgument)
	}
	if len(name) > MaxBinNameLength {
		return fmt.Errorf("%w: bin name %q exceeds %d bytes", ErrInvalidArgument, name, MaxBinNameLength)
	}
	return nil
}

// ToWire encodes every bin through the value codec.
func ToWire(bins map[string]any) (Bins, error) {
	if len(bins) == 0 {
		return nil, ErrEmptyBins
	}
	out := make(Bins, len(bins))
	for name, v := range bins {
		if err := ValidateBinName(name); err != nil {
			return nil, err
		}
		wv, err := value.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("record: bin %q: %w", name, err)
		}
		out[name] = wv
	}
	return out, nil
}

// FromWire rebuilds a Record. The key embedded in w wins over fallback. Bins
// that cannot be decoded are logged and left out.
func FromWire(w *Wire, fallback *key.Key) *Record {
	if w == nil {
		return nil
	}
	k := w.Key
	if k == nil {
		k = fallback
	}
	rec := &Record{
		Key:        k,
		Bins:       make(map[string]any, len(w.Bins)),
		Generation: w.Generation,
		TTL:        w.TTL,
	}
	for name, wv := range w.Bins {
		v, err := value.Decode(wv)
		if err != nil {
			logger.Error("record: dropping undecodable bin", "key", k, "bin", name, "error", err)
			continue
		}
		if value.IsUnknown(v) {
			logger.Warn("record: dropping bin of unknown type", "key", k, "bin", name, "tag", uint8(wv.Kind))
			continue
		}
		rec.Bins[name] = v
	}
	return rec
}

// Clone returns a deep copy of the wire bins.
func (b Bins) Clone() Bins {
	if b == nil {
		return nil
	}
	out := make(Bins, len(b))
	for name, v := range b {
		if v.Bytes != nil {
			v.Bytes = append([]byte(nil), v.Bytes...)
		}
		out[name] = v
	}
	return out
}
