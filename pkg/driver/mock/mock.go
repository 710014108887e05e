// Package mock implements an in-memory driver with store semantics:
// generations, TTLs, exists and generation checks, secondary indexes and a
// UDF registry whose functions are supplied as Go handlers.
//
// Records live in a go-datastore so scans are ordered prefix queries. A
// custom datastore (for example a failstore wrapper) can be injected with
// WithDatastore.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"

	"github.com/Ratio1/aerospike_native_go/internal/devseed"
	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

// RecordFunc is the Go body of a record UDF applied by background scans. It
// returns the new bins, or nil to leave the record unchanged.
type RecordFunc func(bins map[string]any, args []any) (map[string]any, error)

// AggregateFunc is the Go body of an aggregation UDF applied by queries.
type AggregateFunc func(records []map[string]any, args []any) ([]any, error)

// Mock is an in-memory Driver.
type Mock struct {
	mu    sync.Mutex
	store ds.Datastore
	now   func() time.Time

	defaultTTL   time.Duration
	fault        func(*key.Key) status.Code
	connectFault status.Code

	closed bool
	hosts  []driver.Host

	scanSeq     atomic.Uint64
	scans       map[uint64]driver.ScanInfo
	recordFuncs map[string]RecordFunc
	aggregates  map[string]AggregateFunc
}

var _ driver.Driver = (*Mock)(nil)

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for TTL bookkeeping (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithDatastore replaces the backing datastore. It is wrapped with a mutex.
func WithDatastore(store ds.Datastore) Option {
	return func(m *Mock) {
		if store != nil {
			m.store = dssync.MutexWrap(store)
		}
	}
}

// WithDefaultTTL sets the namespace default TTL applied when a write asks
// for it. Zero means records never expire.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Mock) {
		m.defaultTTL = ttl
	}
}

// WithFault makes keyed calls fail with the returned code. Batch calls
// report the code on the affected item only.
func WithFault(fn func(*key.Key) status.Code) Option {
	return func(m *Mock) {
		m.fault = fn
	}
}

// WithConnectFault makes Connect fail with code.
func WithConnectFault(code status.Code) Option {
	return func(m *Mock) {
		m.connectFault = code
	}
}

// New creates an empty mock store.
func New(opts ...Option) *Mock {
	m := &Mock{
		store: dssync.MutexWrap(ds.NewMapDatastore()),
		now: func() time.Time {
			return time.Now().UTC()
		},
		scans:       make(map[uint64]driver.ScanInfo),
		recordFuncs: make(map[string]RecordFunc),
		aggregates:  make(map[string]AggregateFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) clock() time.Time {
	if m.now == nil {
		return time.Now().UTC()
	}
	return m.now()
}

// Connect records the hosts. The mock is usable without it; Connect only
// reopens a closed instance.
func (m *Mock) Connect(ctx context.Context, hosts []driver.Host) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if m.connectFault != status.OK {
		return status.Newf(m.connectFault, "mock: failed to connect to %d host(s)", len(hosts))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
	m.hosts = append([]driver.Host(nil), hosts...)
	return nil
}

// Close marks the instance closed. Data is kept.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Hosts returns the hosts passed to the last Connect.
func (m *Mock) Hosts() []driver.Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driver.Host(nil), m.hosts...)
}

// RegisterRecordFunc installs the Go body of module.fn for background scans.
// The module itself must still be uploaded with UDFPut.
func (m *Mock) RegisterRecordFunc(module, fn string, f RecordFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordFuncs[module+"."+fn] = f
}

// RegisterAggregate installs the Go body of module.fn for query aggregation.
func (m *Mock) RegisterAggregate(module, fn string, f AggregateFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[module+"."+fn] = f
}

// Seed creates the seeded indexes and writes the seeded records with their
// user keys stored.
func (m *Mock) Seed(ctx context.Context, seed *devseed.Seed) error {
	if seed == nil {
		return nil
	}
	for _, idx := range seed.Indexes {
		typ, err := query.ParseIndexType(idx.Type)
		if err != nil {
			return fmt.Errorf("mock: seed index %q: %w", idx.Name, err)
		}
		coll, err := query.ParseCollectionType(idx.Collection)
		if err != nil {
			return fmt.Errorf("mock: seed index %q: %w", idx.Name, err)
		}
		desc := driver.IndexDescriptor{
			Namespace:  idx.Namespace,
			Set:        idx.Set,
			Bin:        idx.Bin,
			Name:       idx.Name,
			Type:       typ,
			Collection: coll,
		}
		if err := m.CreateIndex(ctx, desc, nil); err != nil && status.CodeOf(err) != status.IndexFound {
			return err
		}
	}

	send := policy.KeySend
	for i, entry := range seed.Records {
		k, err := key.New(entry.Namespace, entry.Set, entry.UserKey())
		if err != nil {
			return fmt.Errorf("mock: seed record %d: %w", i, err)
		}
		bins, err := record.ToWire(entry.BinMap())
		if err != nil {
			return fmt.Errorf("mock: seed record %d: %w", i, err)
		}
		wp := &policy.Write{Key: &send}
		if entry.TTLSeconds != nil {
			ttl := policy.Expiration(*entry.TTLSeconds)
			wp.TTL = &ttl
		}
		if err := m.Put(ctx, k, bins, wp); err != nil {
			return fmt.Errorf("mock: seed record %d: %w", i, err)
		}
	}
	logger.Debug("mock: seeded", "records", len(seed.Records), "indexes", len(seed.Indexes))
	return nil
}

// begin checks the instance state and applies the policy timeout.
func (m *Mock) begin(ctx context.Context, timeout *time.Duration) (context.Context, context.CancelFunc, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, nil, driver.ErrNotConnected
	}

	cancel := context.CancelFunc(func() {})
	if timeout != nil && *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
	}
	if err := ctxErr(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, cancel, nil
}

func (m *Mock) faultFor(k *key.Key) status.Code {
	if m.fault == nil {
		return status.OK
	}
	return m.fault(k)
}

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.New(status.Timeout, "mock: deadline exceeded")
	}
	return err
}

