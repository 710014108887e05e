package restgw_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ratio1/aerospike_native_go/internal/gwapi"
	"github.com/Ratio1/aerospike_native_go/internal/httpx"
	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/mock"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/restgw"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

func newGateway(t *testing.T, opts ...mock.Option) (*restgw.Driver, *mock.Mock) {
	t.Helper()
	backend := mock.New(opts...)
	srv := httptest.NewServer(restgw.NewHandler(backend))
	t.Cleanup(srv.Close)

	d, err := restgw.New(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background(), driver.DefaultHosts()))
	return d, backend
}

func mustKey(t *testing.T, v any) *key.Key {
	t.Helper()
	k, err := key.New("test", "demo", v)
	require.NoError(t, err)
	return k
}

func TestGatewayPutGetRemove(t *testing.T) {
	d, _ := newGateway(t)
	ctx := context.Background()
	k := mustKey(t, "alice")

	bins, err := record.ToWire(map[string]any{"n": 42, "s": "hi", "m": map[string]any{"a": int64(1)}})
	require.NoError(t, err)
	send := policy.KeySend
	require.NoError(t, d.Put(ctx, k, bins, &policy.Write{Key: &send}))

	w, err := d.Get(ctx, k, nil, nil)
	require.NoError(t, err)
	rec := record.FromWire(w, k)
	assert.Equal(t, map[string]any{"n": int64(42), "s": "hi", "m": map[string]any{"a": int64(1)}}, rec.Bins)
	assert.Equal(t, uint32(1), rec.Generation)
	assert.Equal(t, "alice", rec.Key.Value())
	assert.True(t, rec.Key.Equal(k))

	ok, err := d.Exists(ctx, k, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.Remove(ctx, k, nil))
	_, err = d.Get(ctx, k, nil, nil)
	assert.ErrorIs(t, err, status.ErrKeyNotFound)
	assert.Equal(t, status.KeyNotFound, status.CodeOf(err))

	ok, err = d.Exists(ctx, k, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGatewayPreservesStoreCodes(t *testing.T) {
	d, _ := newGateway(t)
	ctx := context.Background()
	k := mustKey(t, 1)
	bins, err := record.ToWire(map[string]any{"a": 1})
	require.NoError(t, err)
	create := policy.ExistsCreate

	require.NoError(t, d.Put(ctx, k, bins, &policy.Write{Exists: &create}))
	err = d.Put(ctx, k, bins, &policy.Write{Exists: &create})
	assert.ErrorIs(t, err, status.ErrKeyExists)
}

func TestGatewayOperate(t *testing.T) {
	d, _ := newGateway(t)
	ctx := context.Background()
	k := mustKey(t, "counter")

	ops, err := operation.Build([]operation.Operation{operation.Increment("hits", 2), operation.Read("hits")})
	require.NoError(t, err)
	w, err := d.Operate(ctx, k, ops, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record.FromWire(w, k).Bins["hits"])

	writeOnly, err := operation.Build([]operation.Operation{operation.Write("tag", "x")})
	require.NoError(t, err)
	w, err = d.Operate(ctx, k, writeOnly, nil)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestGatewayBatchAndScan(t *testing.T) {
	busy := mustKey(t, "busy")
	d, backend := newGateway(t, mock.WithFault(func(k *key.Key) status.Code {
		if k.Equal(busy) {
			return status.KeyBusy
		}
		return status.OK
	}))
	ctx := context.Background()
	present := mustKey(t, "present")
	bins, err := record.ToWire(map[string]any{"v": 1})
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, present, bins, nil))

	results, err := stream.Run("batch_get", nil, func(emit stream.Emit) error {
		return d.BatchGet(ctx, []*key.Key{present, mustKey(t, "absent"), busy}, nil, nil, emit)
	})
	require.NoError(t, err)
	require.Len(t, results, 2, "the failed item is logged and skipped")
	assert.True(t, results[0].Record.Found())
	assert.False(t, results[1].Record.Found())

	var scanned int
	require.NoError(t, d.Scan(ctx, &query.ScanStatement{Namespace: "test", Set: "demo"}, nil, func(it stream.Item) {
		scanned++
		assert.Equal(t, status.OK, it.Status)
	}))
	assert.Equal(t, 1, scanned)

	info, err := d.ScanInfo(ctx, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, driver.ScanUndefined, info.Status)
}

func TestGatewayUnsupportedFeatures(t *testing.T) {
	d, _ := newGateway(t)
	ctx := context.Background()

	err := d.Query(ctx, &query.Statement{Namespace: "test"}, nil, func(stream.Item) {})
	assert.ErrorIs(t, err, driver.ErrUnsupportedFeature)
	assert.ErrorIs(t, d.CreateIndex(ctx, driver.IndexDescriptor{}, nil), driver.ErrUnsupportedFeature)
	_, err = d.UDFList(ctx, nil)
	assert.ErrorIs(t, err, driver.ErrUnsupportedFeature)
}

func TestGatewayConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, err := restgw.New(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 0}))
	require.NoError(t, err)
	err = d.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, status.ServerError, status.CodeOf(err))
}

func TestHandlerRejectsGet(t *testing.T) {
	srv := httptest.NewServer(restgw.NewHandler(mock.New()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/records/get")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandlerRejectsMismatchedDigest(t *testing.T) {
	backend := mock.New()
	srv := httptest.NewServer(restgw.NewHandler(backend))
	defer srv.Close()

	alice := mustKey(t, "alice")
	wk, err := gwapi.EncodeKey(alice)
	require.NoError(t, err)
	wk.Digest = mustKey(t, "bob").Digest()
	bins, err := record.ToWire(map[string]any{"n": 1})
	require.NoError(t, err)
	body, err := msgpack.Marshal(gwapi.PutRequest{Key: wk, Bins: bins})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+gwapi.PathPut, httpx.ContentTypeMsgpack, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, k := range []*key.Key{alice, mustKey(t, "bob")} {
		found, err := backend.Exists(context.Background(), k, nil)
		require.NoError(t, err)
		assert.False(t, found)
	}
}
