// Package gwapi defines the msgpack wire format shared by the gateway driver
// and the gateway handler.
//
// Every response is an Envelope. A successful call carries its payload under
// "result"; a failed call carries the store result code under "error" and
// an HTTP status derived from that code.
package gwapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

// Gateway routes.
const (
	PathHealth         = "/v1/health"
	PathPut            = "/v1/records/put"
	PathGet            = "/v1/records/get"
	PathExists         = "/v1/records/exists"
	PathRemove         = "/v1/records/remove"
	PathOperate        = "/v1/records/operate"
	PathBatchGet       = "/v1/batch/get"
	PathBatchExists    = "/v1/batch/exists"
	PathScan           = "/v1/scan"
	PathScanBackground = "/v1/scan/background"
	PathScanInfo       = "/v1/scan/info"
)

// ErrorBody is the error half of an Envelope.
type ErrorBody struct {
	Code    int    `msgpack:"code"`
	Message string `msgpack:"message"`
}

// Envelope wraps every response.
type Envelope struct {
	Result msgpack.RawMessage `msgpack:"result,omitempty"`
	Error  *ErrorBody         `msgpack:"error,omitempty"`
}

// Key is the wire form of a key.Key.
type Key struct {
	Namespace string       `msgpack:"ns"`
	Set       string       `msgpack:"set"`
	UserKey   *value.Value `msgpack:"user_key,omitempty"`
	Digest    []byte       `msgpack:"digest"`
}

// Record is the wire form of a record.Wire.
type Record struct {
	Key        *Key        `msgpack:"key,omitempty"`
	Bins       record.Bins `msgpack:"bins"`
	Generation uint32      `msgpack:"gen"`
	TTL        uint32      `msgpack:"ttl"`
}

// Item is the wire form of a stream.Item.
type Item struct {
	Key     *Key         `msgpack:"key,omitempty"`
	Record  *Record      `msgpack:"record,omitempty"`
	Value   *value.Value `msgpack:"value,omitempty"`
	Code    int          `msgpack:"code"`
	Message string       `msgpack:"message,omitempty"`
}

type PutRequest struct {
	Key    Key           `msgpack:"key"`
	Bins   record.Bins   `msgpack:"bins"`
	Policy *policy.Write `msgpack:"policy,omitempty"`
}

type GetRequest struct {
	Key    Key          `msgpack:"key"`
	Bins   []string     `msgpack:"bins,omitempty"`
	Policy *policy.Read `msgpack:"policy,omitempty"`
}

type RemoveRequest struct {
	Key    Key            `msgpack:"key"`
	Policy *policy.Remove `msgpack:"policy,omitempty"`
}

type OperateRequest struct {
	Key           Key                `msgpack:"key"`
	Ops           []operation.WireOp `msgpack:"ops"`
	ExpectsRecord bool               `msgpack:"expects_record"`
	Policy        *policy.Operate    `msgpack:"policy,omitempty"`
}

type BatchRequest struct {
	Keys   []Key         `msgpack:"keys"`
	Bins   []string      `msgpack:"bins,omitempty"`
	Policy *policy.Batch `msgpack:"policy,omitempty"`
}

type ScanRequest struct {
	Statement query.ScanStatement `msgpack:"statement"`
	Policy    *policy.Scan        `msgpack:"policy,omitempty"`
}

type ScanInfoRequest struct {
	ID     uint64       `msgpack:"id"`
	Policy *policy.Info `msgpack:"policy,omitempty"`
}

// ScanInfo is the wire form of driver.ScanInfo.
type ScanInfo struct {
	ProgressPercent int               `msgpack:"progress_percent"`
	RecordsScanned  int64             `msgpack:"records_scanned"`
	Status          driver.ScanStatus `msgpack:"status"`
}

// EncodeKey converts a key for the wire.
func EncodeKey(k *key.Key) (Key, error) {
	if k == nil {
		return Key{}, errors.New("gwapi: key is nil")
	}
	out := Key{Namespace: k.Namespace(), Set: k.Set(), Digest: k.Digest()}
	if k.HasValue() {
		uv, err := value.Encode(k.Value())
		if err != nil {
			return Key{}, fmt.Errorf("gwapi: encode user key: %w", err)
		}
		out.UserKey = &uv
	}
	return out, nil
}

// EncodeKeys converts a key list for the wire.
func EncodeKeys(keys []*key.Key) ([]Key, error) {
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		wk, err := EncodeKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, wk)
	}
	return out, nil
}

// DecodeKey rebuilds a key. A key carrying a user value is rehashed and
// must match the digest sent with it; a digest-only key is taken as is.
func (k Key) DecodeKey() (*key.Key, error) {
	if k.UserKey == nil {
		return key.NewFromDigest(k.Namespace, k.Set, k.Digest)
	}
	uv, err := value.Decode(*k.UserKey)
	if err != nil {
		return nil, fmt.Errorf("gwapi: decode user key: %w", err)
	}
	out, err := key.New(k.Namespace, k.Set, uv)
	if err != nil {
		return nil, fmt.Errorf("gwapi: %w", err)
	}
	if len(k.Digest) > 0 && !bytes.Equal(out.Digest(), k.Digest) {
		return nil, fmt.Errorf("gwapi: %w: digest does not match user key %v", key.ErrInvalidArgument, uv)
	}
	return out, nil
}

// EncodeRecord converts a driver record for the wire.
func EncodeRecord(w *record.Wire) (*Record, error) {
	if w == nil {
		return nil, nil
	}
	out := &Record{Bins: w.Bins, Generation: w.Generation, TTL: w.TTL}
	if w.Key != nil {
		k, err := EncodeKey(w.Key)
		if err != nil {
			return nil, err
		}
		out.Key = &k
	}
	return out, nil
}

// DecodeRecord rebuilds a driver record.
func (r *Record) DecodeRecord() (*record.Wire, error) {
	if r == nil {
		return nil, nil
	}
	out := &record.Wire{Bins: r.Bins, Generation: r.Generation, TTL: r.TTL}
	if out.Bins == nil {
		out.Bins = record.Bins{}
	}
	if r.Key != nil {
		k, err := r.Key.DecodeKey()
		if err != nil {
			return nil, err
		}
		out.Key = k
	}
	return out, nil
}

// EncodeItem converts a stream item for the wire.
func EncodeItem(it stream.Item) (Item, error) {
	out := Item{Value: it.Value, Code: int(it.Status)}
	if it.Err != nil {
		out.Message = it.Err.Error()
	}
	if it.Key != nil {
		k, err := EncodeKey(it.Key)
		if err != nil {
			return Item{}, err
		}
		out.Key = &k
	}
	rec, err := EncodeRecord(it.Record)
	if err != nil {
		return Item{}, err
	}
	out.Record = rec
	return out, nil
}

// DecodeItem rebuilds a stream item.
func (it Item) DecodeItem() (stream.Item, error) {
	out := stream.Item{Value: it.Value, Status: status.Code(it.Code)}
	if it.Code != int(status.OK) && it.Code != int(status.KeyNotFound) {
		out.Err = status.New(status.Code(it.Code), it.Message)
	}
	if it.Key != nil {
		k, err := it.Key.DecodeKey()
		if err != nil {
			return stream.Item{}, err
		}
		out.Key = k
	}
	rec, err := it.Record.DecodeRecord()
	if err != nil {
		return stream.Item{}, err
	}
	out.Record = rec
	return out, nil
}

// EncodeResult marshals a successful envelope.
func EncodeResult(result any) ([]byte, error) {
	raw, err := msgpack.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("gwapi: encode result: %w", err)
	}
	return msgpack.Marshal(Envelope{Result: raw})
}

// EncodeError marshals a failed envelope. Errors without a store code are
// reported as ClientError.
func EncodeError(err error) ([]byte, int) {
	code := status.CodeOf(err)
	body := &ErrorBody{Code: int(code), Message: err.Error()}
	var se *status.Error
	if errors.As(err, &se) {
		body.Message = se.Message
	}
	data, merr := msgpack.Marshal(Envelope{Error: body})
	if merr != nil {
		return nil, http.StatusInternalServerError
	}
	return data, HTTPStatus(err)
}

// DecodeResult unwraps an envelope into out. An error envelope is returned
// as a *status.Error; out may be nil when the caller expects no payload.
func DecodeResult(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var env Envelope
	if err := msgpack.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("gwapi: decode envelope: %w", err)
	}
	if env.Error != nil {
		return status.New(status.Code(env.Error.Code), env.Error.Message)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("gwapi: decode result: %w", err)
	}
	return nil
}

// HTTPStatus maps an error to the status code the handler answers with.
// Transient store codes map to 503 so the client transport retries them.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, driver.ErrUnsupportedFeature):
		return http.StatusNotImplemented
	case errors.Is(err, driver.ErrNotConnected):
		return http.StatusServiceUnavailable
	}
	code := status.CodeOf(err)
	switch code {
	case status.KeyNotFound:
		return http.StatusNotFound
	case status.KeyExists, status.GenerationError, status.BinExists:
		return http.StatusConflict
	case status.ParameterError, status.ClientError, status.BinTypeError, status.RecordTooBig:
		return http.StatusBadRequest
	case status.Timeout:
		return http.StatusGatewayTimeout
	}
	if code.Retryable() {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
