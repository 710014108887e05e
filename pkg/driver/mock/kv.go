package mock

import (
	"context"
	"time"

	ds "github.com/ipfs/go-datastore"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

// Put writes bins. Nil bins delete the bin and a record left without bins
// is removed.
func (m *Mock) Put(ctx context.Context, k *key.Key, bins record.Bins, p *policy.Write) error {
	w := policy.Or(p, policy.Write{})
	ctx, cancel, err := m.begin(ctx, w.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if len(bins) == 0 {
		return status.New(status.ParameterError, "mock: put without bins")
	}
	if code := m.faultFor(k); code != status.OK {
		return status.Newf(code, "mock: put %s", k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dk := recordKey(k)
	cur, err := m.load(ctx, dk)
	if err != nil {
		return err
	}
	mode := policy.Or(w.Exists, policy.ExistsIgnore)
	if err := checkExists(mode, k, cur); err != nil {
		return err
	}
	if err := checkGeneration(policy.Or(w.Gen, policy.GenIgnore), policy.Or(w.Generation, 0), k, cur); err != nil {
		return err
	}

	next := m.nextVersion(k, cur, mode == policy.ExistsReplace || mode == policy.ExistsCreateOrReplace)
	for name, v := range bins {
		if v.Kind == value.KindNil {
			delete(next.Bins, name)
			continue
		}
		next.Bins[name] = v
	}
	m.stamp(next, k, cur, policy.Or(w.Key, policy.KeyDigest), policy.Or(w.TTL, policy.TTLNamespaceDefault))
	return m.commit(ctx, dk, next)
}

// Get returns a KeyNotFound error for a missing record.
func (m *Mock) Get(ctx context.Context, k *key.Key, bins []string, p *policy.Read) (*record.Wire, error) {
	r := policy.Or(p, policy.Read{})
	ctx, cancel, err := m.begin(ctx, r.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	if code := m.faultFor(k); code != status.OK {
		return nil, status.Newf(code, "mock: get %s", k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.load(ctx, recordKey(k))
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, notFound(k)
	}
	return cur.wire(m.clock(), bins, false), nil
}

func (m *Mock) Exists(ctx context.Context, k *key.Key, p *policy.Read) (bool, error) {
	r := policy.Or(p, policy.Read{})
	ctx, cancel, err := m.begin(ctx, r.Timeout)
	if err != nil {
		return false, err
	}
	defer cancel()
	if code := m.faultFor(k); code != status.OK {
		return false, status.Newf(code, "mock: exists %s", k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.load(ctx, recordKey(k))
	if err != nil {
		return false, err
	}
	return cur != nil, nil
}

func (m *Mock) Remove(ctx context.Context, k *key.Key, p *policy.Remove) error {
	r := policy.Or(p, policy.Remove{})
	ctx, cancel, err := m.begin(ctx, r.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if code := m.faultFor(k); code != status.OK {
		return status.Newf(code, "mock: remove %s", k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	dk := recordKey(k)
	cur, err := m.load(ctx, dk)
	if err != nil {
		return err
	}
	if cur == nil {
		return notFound(k)
	}
	if err := checkGeneration(policy.Or(r.Gen, policy.GenIgnore), policy.Or(r.Generation, 0), k, cur); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, dk); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// Operate applies ops in order against one record. Reads observe the
// writes that precede them.
func (m *Mock) Operate(ctx context.Context, k *key.Key, ops *operation.List, p *policy.Operate) (*record.Wire, error) {
	o := policy.Or(p, policy.Operate{})
	ctx, cancel, err := m.begin(ctx, o.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	if ops == nil || len(ops.Ops) == 0 {
		return nil, status.New(status.ParameterError, "mock: operate without operations")
	}
	if code := m.faultFor(k); code != status.OK {
		return nil, status.Newf(code, "mock: operate %s", k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dk := recordKey(k)
	cur, err := m.load(ctx, dk)
	if err != nil {
		return nil, err
	}
	if cur == nil && !mutates(ops) {
		return nil, notFound(k)
	}
	if err := checkGeneration(policy.Or(o.Gen, policy.GenIgnore), policy.Or(o.Generation, 0), k, cur); err != nil {
		return nil, err
	}

	next := m.nextVersion(k, cur, false)
	read := record.Bins{}
	changed := false
	for _, op := range ops.Ops {
		switch op.Kind {
		case operation.KindRead:
			if v, ok := next.Bins[op.Bin]; ok {
				read[op.Bin] = v
			}
		case operation.KindWrite:
			if op.Value.Kind == value.KindNil {
				delete(next.Bins, op.Bin)
			} else {
				next.Bins[op.Bin] = op.Value
			}
			changed = true
		case operation.KindIncrement:
			v, ok := next.Bins[op.Bin]
			switch {
			case !ok:
				next.Bins[op.Bin] = op.Value
			case v.Kind == value.KindInteger:
				next.Bins[op.Bin] = value.Int(v.Int + op.Value.Int)
			default:
				return nil, status.Newf(status.BinTypeError, "mock: increment on %s bin %q", v.Kind, op.Bin)
			}
			changed = true
		case operation.KindAppend, operation.KindPrepend:
			v, ok := next.Bins[op.Bin]
			switch {
			case !ok:
				next.Bins[op.Bin] = op.Value
			case v.Kind != value.KindString:
				return nil, status.Newf(status.BinTypeError, "mock: %s on %s bin %q", op.Kind, v.Kind, op.Bin)
			case op.Kind == operation.KindAppend:
				next.Bins[op.Bin] = value.String(v.Str + op.Value.Str)
			default:
				next.Bins[op.Bin] = value.String(op.Value.Str + v.Str)
			}
			changed = true
		case operation.KindTouch:
			changed = true
		}
	}

	if changed {
		m.stamp(next, k, cur, policy.Or(o.Key, policy.KeyDigest), policy.Or(o.TTL, policy.TTLNamespaceDefault))
		if err := m.commit(ctx, dk, next); err != nil {
			return nil, err
		}
	}
	if !ops.ExpectsRecord {
		return nil, nil
	}
	return &record.Wire{
		Key:        next.key(),
		Bins:       read,
		Generation: next.Generation,
		TTL:        next.ttl(m.clock()),
	}, nil
}

// nextVersion starts the record that a write will store. The bins of cur
// are carried over unless replace is set.
func (m *Mock) nextVersion(k *key.Key, cur *storedRecord, replace bool) *storedRecord {
	next := &storedRecord{
		Namespace: k.Namespace(),
		Set:       k.Set(),
		Digest:    k.Digest(),
		Bins:      record.Bins{},
	}
	if cur == nil {
		return next
	}
	next.UserKey = cur.UserKey
	next.Generation = cur.Generation
	next.ExpiresAt = cur.ExpiresAt
	if !replace {
		next.Bins = cur.Bins.Clone()
	}
	return next
}

// stamp bumps the generation and applies the key mode and TTL of a write.
func (m *Mock) stamp(next *storedRecord, k *key.Key, cur *storedRecord, mode policy.KeyMode, ttl policy.Expiration) {
	next.Generation++
	if mode == policy.KeySend && k.HasValue() {
		if uv, err := value.Encode(k.Value()); err == nil {
			next.UserKey = &uv
		}
	}
	now := m.clock()
	switch {
	case ttl == policy.TTLDontUpdate && cur != nil:
		next.ExpiresAt = cur.ExpiresAt
	case ttl == policy.TTLNeverExpire:
		next.ExpiresAt = 0
	case ttl > 0:
		next.ExpiresAt = now.Add(time.Duration(ttl) * time.Second).UnixNano()
	case m.defaultTTL > 0:
		next.ExpiresAt = now.Add(m.defaultTTL).UnixNano()
	default:
		next.ExpiresAt = 0
	}
}

func (m *Mock) commit(ctx context.Context, dk ds.Key, next *storedRecord) error {
	if len(next.Bins) == 0 {
		if err := m.store.Delete(ctx, dk); err != nil {
			return storeErr("delete", err)
		}
		return nil
	}
	return m.save(ctx, dk, next)
}

func mutates(ops *operation.List) bool {
	for _, op := range ops.Ops {
		switch op.Kind {
		case operation.KindWrite, operation.KindIncrement, operation.KindAppend, operation.KindPrepend:
			return true
		}
	}
	return false
}

func checkExists(mode policy.ExistsMode, k *key.Key, cur *storedRecord) error {
	switch mode {
	case policy.ExistsCreate:
		if cur != nil {
			return status.Newf(status.KeyExists, "mock: record %s already exists", k)
		}
	case policy.ExistsUpdate, policy.ExistsReplace:
		if cur == nil {
			return notFound(k)
		}
	}
	return nil
}

func checkGeneration(mode policy.GenMode, want uint32, k *key.Key, cur *storedRecord) error {
	if cur == nil {
		return nil
	}
	switch mode {
	case policy.GenEQ:
		if cur.Generation != want {
			return status.Newf(status.GenerationError, "mock: generation of %s is %d, expected %d", k, cur.Generation, want)
		}
	case policy.GenGT:
		if want <= cur.Generation {
			return status.Newf(status.GenerationError, "mock: generation of %s is %d, expected less than %d", k, cur.Generation, want)
		}
	}
	return nil
}

func notFound(k *key.Key) error {
	return status.Newf(status.KeyNotFound, "mock: record %s not found", k)
}
