package asnative_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/aerospike_native_go/pkg/asnative"
	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/mock"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

func newClient(t *testing.T, opts ...mock.Option) (*asnative.Client, *mock.Mock, afero.Fs) {
	t.Helper()
	m := mock.New(opts...)
	fs := afero.NewMemMapFs()
	c, err := asnative.New(context.Background(), nil, asnative.WithDriver(m), asnative.WithFs(fs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, m, fs
}

func mustKey(t *testing.T, set string, v any) *key.Key {
	t.Helper()
	k, err := key.New("test", set, v)
	require.NoError(t, err)
	return k
}

func TestNewDefaultsToLocalHost(t *testing.T) {
	c, m, _ := newClient(t)
	assert.Equal(t, driver.DefaultHosts(), c.Hosts())
	assert.Equal(t, driver.DefaultHosts(), m.Hosts())
	assert.NotEmpty(t, c.ID())
}

func TestNewReportsConnectFailureCode(t *testing.T) {
	_, err := asnative.New(context.Background(), nil, asnative.WithDriver(mock.New(mock.WithConnectFault(status.Timeout))))
	require.Error(t, err)
	assert.Equal(t, status.Timeout, status.CodeOf(err))
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k := mustKey(t, "users", "alice")

	ok, err := c.Put(ctx, k, map[string]any{"n": 42, "s": "hi"}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := c.Get(ctx, k, nil)
	require.NoError(t, err)
	assert.True(t, rec.Found())
	assert.Equal(t, map[string]any{"n": int64(42), "s": "hi"}, rec.Bins)
	assert.GreaterOrEqual(t, rec.Generation, uint32(1))

	rec, err = c.Get(ctx, k, nil, "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"s": "hi"}, rec.Bins)

	found, err := c.Exists(ctx, k, nil)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, c.Remove(ctx, k, nil))
	_, err = c.Get(ctx, k, nil)
	assert.True(t, status.IsNotFound(err))
	assert.ErrorIs(t, c.Remove(ctx, k, nil), status.ErrKeyNotFound)

	found, err = c.Exists(ctx, k, nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutEmptyBinsWritesNothing(t *testing.T) {
	c, _, _ := newClient(t)
	k := mustKey(t, "users", "empty")

	ok, err := c.Put(context.Background(), k, map[string]any{}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := c.Exists(context.Background(), k, nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestArgumentErrorsFailBeforeTheDriver(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k := mustKey(t, "users", "bob")

	_, err := c.Put(ctx, k, map[string]any{"n": 1}, policy.Map{"timeout": 500, "retry": 99})
	var invalid *policy.InvalidValueError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "retry", invalid.Field)

	found, err := c.Exists(ctx, k, nil)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = c.Put(ctx, k, map[string]any{"n": 1}, policy.Map{"timeout": 500})
	assert.NoError(t, err)

	_, err = c.Put(ctx, k, map[string]any{"a_very_long_bin_name": 1}, nil)
	assert.Error(t, err)

	_, err = c.Get(ctx, nil, nil)
	assert.ErrorIs(t, err, key.ErrInvalidArgument)
}

func TestExistsCreateReportsKeyExists(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k := mustKey(t, "users", "carol")
	create := policy.Map{policy.Symbol("exists"): "create"}

	_, err := c.Put(ctx, k, map[string]any{"n": 1}, create)
	require.NoError(t, err)
	_, err = c.Put(ctx, k, map[string]any{"n": 2}, create)
	assert.ErrorIs(t, err, status.ErrKeyExists)
}

func TestOperateResultShapes(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k := mustKey(t, "counters", "hits")

	rec, ok, err := c.Operate(ctx, k, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, ok)

	rec, ok, err = c.Operate(ctx, k, []operation.Operation{
		operation.Write("label", "home"),
		operation.Increment("hits", 1),
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.True(t, ok)

	rec, ok, err = c.Operate(ctx, k, []operation.Operation{
		operation.Increment("hits", 2),
		operation.Append("label", "/x"),
		operation.Read("hits"),
		operation.Read("label"),
	}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.Bins["hits"])
	assert.Equal(t, "home/x", rec.Bins["label"])

	_, _, err = c.Operate(ctx, k, []operation.Operation{{Kind: operation.KindTouch, Value: 1}}, nil)
	assert.ErrorIs(t, err, operation.ErrInvalidArgument)
}

func TestTouchBumpsGeneration(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k := mustKey(t, "users", "dave")

	_, err := c.Put(ctx, k, map[string]any{"n": 1}, nil)
	require.NoError(t, err)
	before, err := c.Get(ctx, k, nil)
	require.NoError(t, err)

	_, err = c.Touch(ctx, k, policy.Map{"ttl": 120})
	require.NoError(t, err)
	after, err := c.Get(ctx, k, nil)
	require.NoError(t, err)
	assert.Greater(t, after.Generation, before.Generation)
	assert.LessOrEqual(t, after.TTL, uint32(120))
}

func TestBatchGetMarksMissingKeys(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k1 := mustKey(t, "users", "k1")
	k2 := mustKey(t, "users", "k2")
	_, err := c.Put(ctx, k1, map[string]any{"n": 1, "s": "a"}, nil)
	require.NoError(t, err)

	results, err := c.Batch().Get(ctx, []*key.Key{k1, k2}, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Record.Found())
	assert.Equal(t, int64(1), results[0].Record.Bins["n"])
	assert.False(t, results[1].Record.Found())
	assert.True(t, results[1].Record.Key.Equal(k2))

	results, err = c.Batch().Get(ctx, []*key.Key{k1}, nil, nil, "s")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"s": "a"}, results[0].Record.Bins)

	var seen []bool
	results, err = c.Batch().Get(ctx, []*key.Key{k2, k1}, nil, func(r stream.Result) {
		seen = append(seen, r.Record.Found())
	})
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, []bool{false, true}, seen)

	results, err = c.Batch().Get(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBatchSkipsFailedItems(t *testing.T) {
	busy := mustKey(t, "users", "busy")
	c, _, _ := newClient(t, mock.WithFault(func(k *key.Key) status.Code {
		if k.Equal(busy) {
			return status.KeyBusy
		}
		return status.OK
	}))
	ctx := context.Background()
	ok := mustKey(t, "users", "ok")
	_, err := c.Put(ctx, ok, map[string]any{"n": 1}, nil)
	require.NoError(t, err)

	results, err := c.Batch().Get(ctx, []*key.Key{busy, ok}, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Record.Key.Equal(ok))
}

func TestBatchExists(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	k1 := mustKey(t, "users", "x1")
	k2 := mustKey(t, "users", "x2")
	_, err := c.Put(ctx, k1, map[string]any{"n": 1}, nil)
	require.NoError(t, err)

	results, err := c.Batch().Exists(ctx, []*key.Key{k1, k2}, policy.Map{"timeout": "2s"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Record.Found())
	assert.Empty(t, results[0].Record.Bins)
	assert.GreaterOrEqual(t, results[0].Record.Generation, uint32(1))
	assert.False(t, results[1].Record.Found())

	_, err = c.Batch().Exists(ctx, []*key.Key{k1, nil}, nil, nil)
	assert.True(t, errors.Is(err, key.ErrInvalidArgument))
}

func TestClosedClientFails(t *testing.T) {
	c, _, _ := newClient(t)
	require.NoError(t, c.Close())
	_, err := c.Get(context.Background(), mustKey(t, "users", "z"), nil)
	assert.ErrorIs(t, err, driver.ErrNotConnected)
}
