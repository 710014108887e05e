package stream_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

type countingSink struct {
	warns, errs int
}

func (s *countingSink) Error(string, ...any) { s.errs++ }
func (s *countingSink) Warn(string, ...any)  { s.warns++ }
func (s *countingSink) Info(string, ...any)  {}
func (s *countingSink) Debug(string, ...any) {}

func captureLogs(t *testing.T) *countingSink {
	t.Helper()
	sink := &countingSink{}
	logger.SetSink(sink)
	t.Cleanup(func() { logger.SetSink(nil) })
	return sink
}

func mustKey(t *testing.T, v any) *key.Key {
	t.Helper()
	k, err := key.New("test", "demo", v)
	require.NoError(t, err)
	return k
}

func TestAccumulatesInOrderWithAbsentMarker(t *testing.T) {
	sink := captureLogs(t)
	k1, k2, k3 := mustKey(t, 1), mustKey(t, 2), mustKey(t, 3)

	results, err := stream.Run("batch_get", nil, func(emit stream.Emit) error {
		emit(stream.Item{Key: k1, Status: status.OK, Record: &record.Wire{Bins: record.Bins{"n": value.Int(1)}, Generation: 1}})
		emit(stream.Item{Key: k2, Status: status.KeyNotFound})
		emit(stream.Item{Key: k3, Status: status.Timeout, Err: errors.New("node timeout")})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Record.Found())
	assert.Equal(t, map[string]any{"n": int64(1)}, results[0].Record.Bins)
	assert.Same(t, k1, results[0].Record.Key)

	assert.False(t, results[1].Record.Found())
	assert.Same(t, k2, results[1].Record.Key)

	assert.Equal(t, 1, sink.warns)
	assert.Equal(t, 1, sink.errs)
}

func TestConsumerReceivesItemsImmediately(t *testing.T) {
	var seen []int64
	results, err := stream.Run("scan", func(r stream.Result) {
		v, _ := r.Record.Bin("n")
		seen = append(seen, v.(int64))
	}, func(emit stream.Emit) error {
		for i := int64(0); i < 3; i++ {
			emit(stream.Item{Status: status.OK, Record: &record.Wire{Bins: record.Bins{"n": value.Int(i)}}})
			assert.Len(t, seen, int(i)+1)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, []int64{0, 1, 2}, seen)
}

func TestAggregateValues(t *testing.T) {
	v := value.Int(99)
	results, err := stream.Run("query", nil, func(emit stream.Emit) error {
		emit(stream.Item{Status: status.OK, Value: &v})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Record)
	assert.Equal(t, int64(99), results[0].Value)
}

func TestTerminalErrorFailsCall(t *testing.T) {
	delivered := 0
	terminal := status.New(status.ServerError, "connection reset")
	results, err := stream.Run("query", func(stream.Result) { delivered++ }, func(emit stream.Emit) error {
		emit(stream.Item{Status: status.OK, Record: &record.Wire{}})
		return terminal
	})
	assert.Nil(t, results)
	assert.Same(t, terminal, err)
	assert.Equal(t, 1, delivered)
}

func TestStateMachine(t *testing.T) {
	a := stream.New("batch_get", nil)
	assert.Equal(t, stream.Pending, a.State())
	a.Start()
	assert.Equal(t, stream.Streaming, a.State())
	res, err := a.Finish(nil)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NotNil(t, res)
	assert.Equal(t, stream.Accumulated, a.State())

	a.Emit(stream.Item{Status: status.OK, Record: &record.Wire{}})
	assert.Equal(t, stream.Accumulated, a.State())

	withConsumer := stream.New("scan", func(stream.Result) {})
	withConsumer.Start()
	_, _ = withConsumer.Finish(nil)
	assert.Equal(t, stream.Delivered, withConsumer.State())

	failed := stream.New("scan", nil)
	_, err = failed.Finish(errors.New("boom"))
	assert.Error(t, err)
	assert.Equal(t, stream.Failed, failed.State())
}

func TestItemWithoutPayloadIsSkipped(t *testing.T) {
	sink := captureLogs(t)
	results, err := stream.Run("scan", nil, func(emit stream.Emit) error {
		emit(stream.Item{Status: status.OK})
		bad := value.Blob([]byte{0xc1})
		emit(stream.Item{Status: status.OK, Value: &bad})
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, sink.errs)
}
