package mock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

const (
	recordsRoot = "records"
	indexesRoot = "indexes"
	udfsRoot    = "udfs"

	// noSet stands in for the empty set name in datastore paths.
	noSet = "~"
)

type storedRecord struct {
	Namespace  string       `msgpack:"ns"`
	Set        string       `msgpack:"set"`
	Digest     []byte       `msgpack:"digest"`
	UserKey    *value.Value `msgpack:"user_key,omitempty"`
	Bins       record.Bins  `msgpack:"bins"`
	Generation uint32       `msgpack:"gen"`
	ExpiresAt  int64        `msgpack:"expires_at,omitempty"`
}

func (r *storedRecord) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}

func (r *storedRecord) key() *key.Key {
	var uv any
	if r.UserKey != nil {
		if v, err := value.Decode(*r.UserKey); err == nil {
			uv = v
		}
	}
	k, err := key.WithValue(r.Namespace, r.Set, uv, r.Digest)
	if err != nil {
		k, _ = key.NewFromDigest(r.Namespace, r.Set, r.Digest)
	}
	return k
}

func (r *storedRecord) ttl(now time.Time) uint32 {
	if r.ExpiresAt == 0 {
		return record.TTLNever
	}
	remaining := time.Duration(r.ExpiresAt - now.UnixNano())
	secs := int64(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return uint32(secs)
}

// wire builds the response form. A nil selection returns every bin and
// noBins returns metadata only.
func (r *storedRecord) wire(now time.Time, selection []string, noBins bool) *record.Wire {
	w := &record.Wire{
		Key:        r.key(),
		Bins:       record.Bins{},
		Generation: r.Generation,
		TTL:        r.ttl(now),
	}
	if noBins {
		return w
	}
	if len(selection) == 0 {
		w.Bins = r.Bins.Clone()
		return w
	}
	for _, name := range selection {
		if v, ok := r.Bins[name]; ok {
			w.Bins[name] = v
		}
	}
	return w
}

func setSegment(set string) string {
	if set == "" {
		return noSet
	}
	return set
}

func recordKey(k *key.Key) ds.Key {
	return ds.KeyWithNamespaces([]string{recordsRoot, k.Namespace(), setSegment(k.Set()), k.DigestHex()})
}

func storeErr(op string, err error) error {
	return status.Newf(status.ServerError, "mock %s: %v", op, err)
}

// load returns nil for a missing or expired record. Expired records are
// removed on access.
func (m *Mock) load(ctx context.Context, dk ds.Key) (*storedRecord, error) {
	data, err := m.store.Get(ctx, dk)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	rec := &storedRecord{}
	if err := msgpack.Unmarshal(data, rec); err != nil {
		return nil, storeErr("decode", err)
	}
	if rec.expired(m.clock()) {
		if err := m.store.Delete(ctx, dk); err != nil {
			return nil, storeErr("delete", err)
		}
		return nil, nil
	}
	return rec, nil
}

func (m *Mock) save(ctx context.Context, dk ds.Key, rec *storedRecord) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return storeErr("encode", err)
	}
	if err := m.store.Put(ctx, dk, data); err != nil {
		return storeErr("put", err)
	}
	return nil
}

// snapshot returns the live records of a namespace, optionally restricted
// to one set, in digest order.
func (m *Mock) snapshot(ctx context.Context, namespace, set string) ([]*storedRecord, error) {
	parts := []string{recordsRoot, namespace}
	if set != "" {
		parts = append(parts, setSegment(set))
	}
	prefix := ds.KeyWithNamespaces(parts)

	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.store.Query(ctx, dsq.Query{Prefix: prefix.String(), Orders: []dsq.Order{dsq.OrderByKey{}}})
	if err != nil {
		return nil, storeErr("query", err)
	}
	defer res.Close()

	entries, err := res.Rest()
	if err != nil {
		return nil, storeErr("query", err)
	}

	now := m.clock()
	out := make([]*storedRecord, 0, len(entries))
	for _, r := range entries {
		rec := &storedRecord{}
		if err := msgpack.Unmarshal(r.Value, rec); err != nil {
			logger.Error("mock: skipping undecodable record", "key", r.Key, "error", err)
			continue
		}
		if rec.expired(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Mock) getDoc(ctx context.Context, dk ds.Key, out any) (bool, error) {
	data, err := m.store.Get(ctx, dk)
	if errors.Is(err, ds.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("get", err)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, storeErr("decode", err)
	}
	return true, nil
}

func (m *Mock) putDoc(ctx context.Context, dk ds.Key, doc any) error {
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return storeErr("encode", err)
	}
	if err := m.store.Put(ctx, dk, data); err != nil {
		return storeErr("put", err)
	}
	return nil
}

func (m *Mock) listDocs(ctx context.Context, prefix ds.Key, decode func([]byte) error) error {
	res, err := m.store.Query(ctx, dsq.Query{Prefix: prefix.String(), Orders: []dsq.Order{dsq.OrderByKey{}}})
	if err != nil {
		return storeErr("query", err)
	}
	defer res.Close()
	entries, err := res.Rest()
	if err != nil {
		return storeErr("query", err)
	}
	for _, r := range entries {
		if err := decode(r.Value); err != nil {
			return storeErr("decode", fmt.Errorf("%s: %w", r.Key, err))
		}
	}
	return nil
}
