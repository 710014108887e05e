package mock

import (
	"context"
	"fmt"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

// BatchGet emits one item per key in request order.
func (m *Mock) BatchGet(ctx context.Context, keys []*key.Key, bins []string, p *policy.Batch, emit stream.Emit) error {
	return m.batch(ctx, keys, bins, false, p, emit)
}

// BatchExists emits metadata-only records for the keys that exist.
func (m *Mock) BatchExists(ctx context.Context, keys []*key.Key, p *policy.Batch, emit stream.Emit) error {
	return m.batch(ctx, keys, nil, true, p, emit)
}

func (m *Mock) batch(ctx context.Context, keys []*key.Key, bins []string, noBins bool, p *policy.Batch, emit stream.Emit) error {
	b := policy.Or(p, policy.Batch{})
	ctx, cancel, err := m.begin(ctx, b.Timeout)
	if err != nil {
		return err
	}
	defer cancel()

	for _, k := range keys {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if code := m.faultFor(k); code != status.OK {
			emit(stream.Item{Key: k, Status: code, Err: status.Newf(code, "mock: batch item %s", k)})
			continue
		}

		m.mu.Lock()
		cur, err := m.load(ctx, recordKey(k))
		m.mu.Unlock()
		if err != nil {
			return err
		}
		if cur == nil {
			emit(stream.Item{Key: k, Status: status.KeyNotFound})
			continue
		}
		emit(stream.Item{Key: k, Record: cur.wire(m.clock(), bins, noBins), Status: status.OK})
	}
	return nil
}

// Query evaluates the statement predicate against a secondary index. A
// predicate without a matching index fails with IndexNotFound.
func (m *Mock) Query(ctx context.Context, stmt *query.Statement, p *policy.Query, emit stream.Emit) error {
	q := policy.Or(p, policy.Query{})
	ctx, cancel, err := m.begin(ctx, q.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if err := stmt.Validate(); err != nil {
		return status.Newf(status.ParameterError, "mock: %v", err)
	}

	filter, filtered := stmt.Filter()
	if filtered {
		ok, err := m.hasIndex(ctx, stmt.Namespace, stmt.Set, filter)
		if err != nil {
			return err
		}
		if !ok {
			return status.Newf(status.IndexNotFound, "mock: no %s index on %s.%s", filter.Type, stmt.Namespace, filter.Bin)
		}
	}

	recs, err := m.snapshot(ctx, stmt.Namespace, stmt.Set)
	if err != nil {
		return err
	}
	matched := recs[:0]
	for _, rec := range recs {
		if filtered && !matchesBin(rec, filter) {
			continue
		}
		matched = append(matched, rec)
	}

	if stmt.Apply != nil {
		return m.aggregate(ctx, stmt.Apply, matched, emit)
	}
	now := m.clock()
	for _, rec := range matched {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		emit(stream.Item{Key: rec.key(), Record: rec.wire(now, stmt.Bins, false), Status: status.OK})
	}
	return nil
}

func matchesBin(rec *storedRecord, c query.Condition) bool {
	wv, ok := rec.Bins[c.Bin]
	if !ok {
		return false
	}
	v, err := value.Decode(wv)
	if err != nil {
		return false
	}
	return c.Matches(v)
}

func (m *Mock) aggregate(ctx context.Context, apply *query.Apply, recs []*storedRecord, emit stream.Emit) error {
	m.mu.Lock()
	fn := m.aggregates[apply.Module+"."+apply.Function]
	m.mu.Unlock()
	if err := m.requireModule(ctx, apply.Module); err != nil {
		return err
	}
	if fn == nil {
		return status.Newf(status.UDFBadResponse, "mock: function %s.%s not found", apply.Module, apply.Function)
	}

	now := m.clock()
	input := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		input = append(input, record.FromWire(rec.wire(now, nil, false), nil).Bins)
	}
	out, err := fn(input, apply.Args)
	if err != nil {
		return status.Newf(status.UDFBadResponse, "mock: %s.%s: %v", apply.Module, apply.Function, err)
	}
	for _, v := range out {
		wv, err := value.Encode(v)
		if err != nil {
			return status.Newf(status.UDFBadResponse, "mock: %s.%s result: %v", apply.Module, apply.Function, err)
		}
		emit(stream.Item{Value: &wv, Status: status.OK})
	}
	return nil
}

// Scan emits every live record of the namespace or set in digest order.
func (m *Mock) Scan(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan, emit stream.Emit) error {
	sp := policy.Or(p, policy.Scan{})
	ctx, cancel, err := m.begin(ctx, sp.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if err := stmt.Validate(); err != nil {
		return status.Newf(status.ParameterError, "mock: %v", err)
	}
	if stmt.Background {
		return status.New(status.ParameterError, "mock: background scans run through ScanBackground")
	}

	recs, err := m.snapshot(ctx, stmt.Namespace, stmt.Set)
	if err != nil {
		return err
	}
	percent := stmt.PercentFor(&sp)
	noBins := stmt.NoBins || policy.Or(sp.NoBins, false)
	now := m.clock()
	for _, rec := range recs {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if !query.Sampled(rec.Digest, percent) {
			continue
		}
		emit(stream.Item{Key: rec.key(), Record: rec.wire(now, stmt.Bins, noBins), Status: status.OK})
	}
	return nil
}

// ScanBackground applies a record UDF to every sampled record and returns
// the scan id. The mock finishes the job before returning.
func (m *Mock) ScanBackground(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan) (uint64, error) {
	sp := policy.Or(p, policy.Scan{})
	ctx, cancel, err := m.begin(ctx, sp.Timeout)
	if err != nil {
		return 0, err
	}
	defer cancel()
	if err := stmt.Validate(); err != nil {
		return 0, status.Newf(status.ParameterError, "mock: %v", err)
	}
	if stmt.Apply == nil {
		return 0, status.New(status.ParameterError, "mock: background scan requires apply")
	}
	if err := m.requireModule(ctx, stmt.Apply.Module); err != nil {
		return 0, err
	}
	m.mu.Lock()
	fn := m.recordFuncs[stmt.Apply.Module+"."+stmt.Apply.Function]
	m.mu.Unlock()
	if fn == nil {
		return 0, status.Newf(status.UDFBadResponse, "mock: function %s.%s not found", stmt.Apply.Module, stmt.Apply.Function)
	}

	recs, err := m.snapshot(ctx, stmt.Namespace, stmt.Set)
	if err != nil {
		return 0, err
	}
	id := m.scanSeq.Add(1)
	m.setScanInfo(id, driver.ScanInfo{Status: driver.ScanInProgress})

	percent := stmt.PercentFor(&sp)
	var scanned int64
	for _, rec := range recs {
		if !query.Sampled(rec.Digest, percent) {
			continue
		}
		scanned++
		if err := m.applyRecordFunc(ctx, rec, fn, stmt.Apply); err != nil {
			logger.Error("mock: background scan record failed", "scan", id, "key", rec.key(), "error", err)
		}
	}
	m.setScanInfo(id, driver.ScanInfo{ProgressPercent: 100, RecordsScanned: scanned, Status: driver.ScanCompleted})
	return id, nil
}

func (m *Mock) applyRecordFunc(ctx context.Context, rec *storedRecord, fn RecordFunc, apply *query.Apply) error {
	bins := record.FromWire(rec.wire(m.clock(), nil, false), nil).Bins
	out, err := fn(bins, apply.Args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	wire := make(record.Bins, len(out))
	for name, v := range out {
		if err := record.ValidateBinName(name); err != nil {
			return err
		}
		wv, err := value.Encode(v)
		if err != nil {
			return fmt.Errorf("bin %q: %w", name, err)
		}
		wire[name] = wv
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := rec.key()
	dk := recordKey(k)
	cur, err := m.load(ctx, dk)
	if err != nil || cur == nil {
		return err
	}
	next := m.nextVersion(k, cur, false)
	for name, v := range wire {
		if v.Kind == value.KindNil {
			delete(next.Bins, name)
			continue
		}
		next.Bins[name] = v
	}
	m.stamp(next, k, cur, policy.KeyDigest, policy.TTLDontUpdate)
	return m.commit(ctx, dk, next)
}

// ScanInfo reports a background scan. Unknown ids are ScanUndefined.
func (m *Mock) ScanInfo(ctx context.Context, id uint64, p *policy.Info) (*driver.ScanInfo, error) {
	ip := policy.Or(p, policy.Info{})
	_, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.scans[id]
	if !ok {
		return &driver.ScanInfo{Status: driver.ScanUndefined}, nil
	}
	return &info, nil
}

func (m *Mock) setScanInfo(id uint64, info driver.ScanInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[id] = info
}
