package asclient

import (
	"fmt"
	"sort"

	as "github.com/aerospike/aerospike-client-go/v7"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

// kindOpaque tags native values the binding has no representation for.
const kindOpaque value.Kind = 0xff

// toNative converts a wire value to the object the client writes.
func toNative(v value.Value) any {
	switch v.Kind {
	case value.KindNil:
		return nil
	case value.KindInteger:
		return v.Int
	case value.KindString:
		return v.Str
	}
	return append([]byte(nil), v.Bytes...)
}

// fromNative converts a bin read by the client. Integers and strings stay
// native; floats, booleans, lists and maps written by other clients are
// carried as envelopes so they decode to the same generic form.
func fromNative(x any) value.Value {
	switch t := x.(type) {
	case nil:
		return value.Nil()
	case int:
		return value.Int(int64(t))
	case int64:
		return value.Int(t)
	case int32:
		return value.Int(int64(t))
	case string:
		return value.String(t)
	case []byte:
		return value.Blob(t)
	case float64, float32, bool, []any, map[any]any, map[string]any:
		v, err := value.Encode(t)
		if err == nil {
			return v
		}
		logger.Warn("asclient: bin could not be enveloped", "type", fmt.Sprintf("%T", t), "error", err)
	case as.Value:
		return value.Raw(value.Kind(t.GetType()), nil)
	}
	return value.Raw(kindOpaque, nil)
}

// toBins converts wire bins to client bins in name order.
func toBins(bins record.Bins) []*as.Bin {
	names := make([]string, 0, len(bins))
	for name := range bins {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*as.Bin, 0, len(names))
	for _, name := range names {
		out = append(out, as.NewBin(name, toNative(bins[name])))
	}
	return out
}

// fromRecord builds a wire record. The response key wins over fallback.
func fromRecord(rec *as.Record, fallback *key.Key, noBins bool) *record.Wire {
	if rec == nil {
		return nil
	}
	w := &record.Wire{
		Key:        fromKey(rec.Key),
		Bins:       record.Bins{},
		Generation: rec.Generation,
		TTL:        rec.Expiration,
	}
	if w.Key == nil {
		w.Key = fallback
	}
	if noBins {
		return w
	}
	for name, x := range rec.Bins {
		w.Bins[name] = fromNative(x)
	}
	return w
}
