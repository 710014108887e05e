package asclient

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"
	asl "github.com/aerospike/aerospike-client-go/v7/logger"
	"github.com/aerospike/aerospike-client-go/v7/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

func ptr[T any](v T) *T { return &v }

func TestUnconnectedDriver(t *testing.T) {
	d := New()
	k, err := key.New("test", "demo", "a")
	require.NoError(t, err)

	_, err = d.Get(context.Background(), k, nil, nil)
	assert.ErrorIs(t, err, driver.ErrNotConnected)
	err = d.CreateIndex(context.Background(), driver.IndexDescriptor{Namespace: "test"}, nil)
	assert.ErrorIs(t, err, driver.ErrInvalidArgument)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestWritePolicyMapping(t *testing.T) {
	wp := writePolicy(&policy.Write{
		Timeout:    ptr(250 * time.Millisecond),
		Retry:      ptr(policy.RetryNone),
		Key:        ptr(policy.KeySend),
		Gen:        ptr(policy.GenEQ),
		Generation: ptr(uint32(7)),
		Exists:     ptr(policy.ExistsCreate),
		TTL:        ptr(policy.Expiration(60)),
	})
	assert.Equal(t, 250*time.Millisecond, wp.TotalTimeout)
	assert.Equal(t, 0, wp.MaxRetries)
	assert.True(t, wp.SendKey)
	assert.Equal(t, as.EXPECT_GEN_EQUAL, wp.GenerationPolicy)
	assert.Equal(t, uint32(7), wp.Generation)
	assert.Equal(t, as.CREATE_ONLY, wp.RecordExistsAction)
	assert.Equal(t, uint32(60), wp.Expiration)

	def := writePolicy(nil)
	assert.Equal(t, as.UPDATE, def.RecordExistsAction)
	assert.Equal(t, uint32(as.TTLServerDefault), def.Expiration)
}

func TestExpirationSentinels(t *testing.T) {
	assert.Equal(t, uint32(as.TTLServerDefault), expiration(policy.TTLNamespaceDefault))
	assert.Equal(t, uint32(as.TTLDontExpire), expiration(policy.TTLNeverExpire))
	assert.Equal(t, uint32(as.TTLDontUpdate), expiration(policy.TTLDontUpdate))
	assert.Equal(t, uint32(3600), expiration(3600))
}

func TestExistsActions(t *testing.T) {
	assert.Equal(t, as.UPDATE, existsAction(policy.ExistsIgnore))
	assert.Equal(t, as.UPDATE_ONLY, existsAction(policy.ExistsUpdate))
	assert.Equal(t, as.REPLACE_ONLY, existsAction(policy.ExistsReplace))
	assert.Equal(t, as.REPLACE, existsAction(policy.ExistsCreateOrReplace))
}

func TestReadAndScanPolicies(t *testing.T) {
	bp := readPolicy(&policy.Read{Replica: ptr(policy.ReplicaAny), Consistency: ptr(policy.ConsistencyAll)})
	assert.Equal(t, as.MASTER_PROLES, bp.ReplicaPolicy)
	assert.Equal(t, as.ReadModeAPAll, bp.ReadModeAP)

	sp := scanPolicy(&policy.Scan{Concurrent: ptr(true)}, false, true)
	assert.False(t, sp.IncludeBinData)
	assert.Equal(t, 0, sp.MaxConcurrentNodes)

	sp = scanPolicy(nil, false, false)
	assert.True(t, sp.IncludeBinData)
	assert.Equal(t, 1, sp.MaxConcurrentNodes)

	ip := infoPolicy(&policy.Info{Timeout: ptr(2 * time.Second)})
	assert.Equal(t, 2*time.Second, ip.Timeout)
}

func TestValueMapping(t *testing.T) {
	assert.Equal(t, value.Int(5), fromNative(5))
	assert.Equal(t, value.String("x"), fromNative("x"))
	assert.Equal(t, value.Nil(), fromNative(nil))

	f := fromNative(1.5)
	require.Equal(t, value.KindBlob, f.Kind)
	got, err := value.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)

	list := fromNative([]any{1, "a"})
	got, err = value.Decode(list)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "a"}, got)

	raw := fromNative([]byte("hello"))
	assert.Equal(t, []byte("hello"), mustDecode(t, raw))

	geo := fromNative(as.GeoJSONValue(`{"type":"Point","coordinates":[0,0]}`))
	assert.Equal(t, value.Kind(23), geo.Kind)
	assert.True(t, value.IsUnknown(mustDecode(t, geo)))

	assert.Equal(t, int64(9), toNative(value.Int(9)))
	assert.Equal(t, "s", toNative(value.String("s")))
	assert.Nil(t, toNative(value.Nil()))
}

func mustDecode(t *testing.T, v value.Value) any {
	t.Helper()
	out, err := value.Decode(v)
	require.NoError(t, err)
	return out
}

func TestRecordMapping(t *testing.T) {
	k, err := key.New("test", "demo", "alice")
	require.NoError(t, err)
	ak, err := asKey(k)
	require.NoError(t, err)
	assert.Equal(t, k.Digest(), ak.Digest())

	rec := &as.Record{Key: ak, Bins: as.BinMap{"n": 3, "s": "v"}, Generation: 2, Expiration: 100}
	w := fromRecord(rec, nil, false)
	require.NotNil(t, w)
	assert.True(t, w.Key.Equal(k))
	assert.Equal(t, "alice", w.Key.Value())
	assert.Equal(t, record.Bins{"n": value.Int(3), "s": value.String("v")}, w.Bins)
	assert.Equal(t, uint32(2), w.Generation)
	assert.Equal(t, uint32(100), w.TTL)

	header := fromRecord(rec, nil, true)
	assert.Empty(t, header.Bins)

	bins := toBins(record.Bins{"b": value.Int(1), "a": value.String("x")})
	require.Len(t, bins, 2)
	assert.Equal(t, "a", bins[0].Name)
}

func TestToOps(t *testing.T) {
	list, err := operation.Build([]operation.Operation{
		operation.Increment("n", 1),
		operation.Append("s", "x"),
		operation.Touch(),
		operation.Read("n"),
	})
	require.NoError(t, err)
	ops, err := toOps(list)
	require.NoError(t, err)
	assert.Len(t, ops, 4)

	_, err = toOps(&operation.List{Ops: []operation.WireOp{{Kind: operation.Kind(99)}}})
	assert.Equal(t, status.ParameterError, status.CodeOf(err))
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.Equal(t, status.Timeout, codeOf(types.TIMEOUT))
	assert.Equal(t, status.KeyNotFound, codeOf(types.KEY_NOT_FOUND_ERROR))
	assert.Equal(t, status.IndexFound, codeOf(types.INDEX_FOUND))
	assert.Equal(t, status.ClientError, codeOf(types.NO_RESPONSE))

	err := translate(errors.New("boom"))
	assert.Equal(t, status.ClientError, status.CodeOf(err))
	err = translate(context.DeadlineExceeded)
	assert.Equal(t, status.Timeout, status.CodeOf(err))
}

func TestParseJobInfo(t *testing.T) {
	running, ok := parseJobInfo("trid=7:job-type=basic:ns=test:set=demo:status=active(ok):job-progress=42.50:recs-succeeded=10")
	require.True(t, ok)
	assert.Equal(t, driver.ScanInProgress, running.Status)
	assert.Equal(t, 42, running.ProgressPercent)
	assert.Equal(t, int64(10), running.RecordsScanned)

	done, ok := parseJobInfo("trid=7:status=done(ok):job-progress=100.00:recs-succeeded=5")
	require.True(t, ok)
	assert.Equal(t, driver.ScanCompleted, done.Status)

	aborted, ok := parseJobInfo("trid=7:status=done(user-aborted):job-progress=10.00")
	require.True(t, ok)
	assert.Equal(t, driver.ScanAborted, aborted.Status)

	_, ok = parseJobInfo("ERROR:2:job not found")
	assert.False(t, ok)

	folded := foldJobs([]driver.ScanInfo{done, running})
	assert.Equal(t, driver.ScanInProgress, folded.Status)
	assert.Equal(t, 42, folded.ProgressPercent)
	assert.Equal(t, int64(15), folded.RecordsScanned)

	assert.Equal(t, driver.ScanUndefined, foldJobs(nil).Status)
}

func TestParseUDFGet(t *testing.T) {
	src := []byte("function add(r, n) return n end")
	content, err := parseUDFGet("gen=abc;type=LUA;content=" + base64.StdEncoding.EncodeToString(src))
	require.NoError(t, err)
	assert.Equal(t, src, content)

	_, err = parseUDFGet("error=not_found")
	assert.ErrorIs(t, err, driver.ErrUDFNotFound)
}

func TestClientLevel(t *testing.T) {
	assert.Equal(t, asl.ERR, clientLevel(logger.LevelError))
	assert.Equal(t, asl.WARNING, clientLevel(logger.LevelWarn))
	assert.Equal(t, asl.DEBUG, clientLevel(logger.LevelTrace))
}

func TestTaskWaitIsBounded(t *testing.T) {
	ctx, cancel := withInfoTimeout(context.Background(), nil)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultTaskWait), deadline, time.Second)

	ctx, cancel = withInfoTimeout(context.Background(), &policy.Info{Timeout: ptr(20 * time.Millisecond)})
	defer cancel()
	never := make(chan as.Error)
	err := await(ctx, never)
	assert.Equal(t, status.Timeout, status.CodeOf(err))
}

type lineSink struct{ lines []string }

func (s *lineSink) Error(msg string, _ ...any) { s.lines = append(s.lines, msg) }
func (s *lineSink) Warn(msg string, _ ...any)  { s.lines = append(s.lines, msg) }
func (s *lineSink) Info(msg string, _ ...any)  { s.lines = append(s.lines, msg) }
func (s *lineSink) Debug(msg string, _ ...any) { s.lines = append(s.lines, msg) }

func TestBridgeFollowsLevelChanges(t *testing.T) {
	sink := &lineSink{}
	logger.SetSink(sink)
	t.Cleanup(func() {
		logger.SetSink(nil)
		logger.SetLevel(logger.LevelInfo)
	})
	bridgeLogs()

	logger.SetLevel(logger.LevelInfo)
	asl.Logger.Debug("hidden")
	logger.SetLevel(logger.LevelDebug)
	asl.Logger.Debug("shown")

	require.Len(t, sink.lines, 1)
	assert.Contains(t, sink.lines[0], "shown")
}
