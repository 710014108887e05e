// Package restgw implements a driver that talks to an HTTP gateway in front
// of the store. The gateway serves single-key calls, operate, batch reads
// and scans; queries, index and UDF management are not available through
// it.
package restgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ratio1/aerospike_native_go/internal/gwapi"
	"github.com/Ratio1/aerospike_native_go/internal/httpx"
	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

// Driver is a gateway client.
type Driver struct {
	http *httpx.Client
}

var _ driver.Driver = (*Driver)(nil)

// New constructs a Driver for the gateway at baseURL.
func New(baseURL string, opts ...httpx.Option) (*Driver, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("restgw: base URL is required")
	}
	defaults := []httpx.Option{
		httpx.WithHeaders(http.Header{"Accept": []string{httpx.ContentTypeMsgpack}}),
	}
	client, err := httpx.NewClient(baseURL, append(defaults, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Driver{http: client}, nil
}

// NewWithHTTPClient constructs a Driver using a custom http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) (*Driver, error) {
	return New(baseURL, httpx.WithHTTPClient(hc))
}

// Connect checks the gateway health endpoint. Hosts are owned by the
// gateway and ignored here.
func (d *Driver) Connect(ctx context.Context, hosts []driver.Host) error {
	if len(hosts) > 0 {
		logger.Debug("restgw: hosts are configured on the gateway", "hosts", len(hosts), "gateway", d.http.BaseURL())
	}
	return d.call(ctx, http.MethodGet, gwapi.PathHealth, nil, nil, nil, false)
}

func (d *Driver) Close() error { return nil }

func (d *Driver) Put(ctx context.Context, k *key.Key, bins record.Bins, p *policy.Write) error {
	wk, err := gwapi.EncodeKey(k)
	if err != nil {
		return err
	}
	var timeout *time.Duration
	var retry *policy.Retry
	if p != nil {
		timeout, retry = p.Timeout, p.Retry
	}
	req := gwapi.PutRequest{Key: wk, Bins: bins, Policy: p}
	return d.call(ctx, http.MethodPost, gwapi.PathPut, req, nil, timeout, noRetry(retry))
}

func (d *Driver) Get(ctx context.Context, k *key.Key, bins []string, p *policy.Read) (*record.Wire, error) {
	wk, err := gwapi.EncodeKey(k)
	if err != nil {
		return nil, err
	}
	var timeout *time.Duration
	var retry *policy.Retry
	if p != nil {
		timeout, retry = p.Timeout, p.Retry
	}
	var out gwapi.Record
	req := gwapi.GetRequest{Key: wk, Bins: bins, Policy: p}
	if err := d.call(ctx, http.MethodPost, gwapi.PathGet, req, &out, timeout, noRetry(retry)); err != nil {
		return nil, err
	}
	return out.DecodeRecord()
}

func (d *Driver) Exists(ctx context.Context, k *key.Key, p *policy.Read) (bool, error) {
	wk, err := gwapi.EncodeKey(k)
	if err != nil {
		return false, err
	}
	var timeout *time.Duration
	var retry *policy.Retry
	if p != nil {
		timeout, retry = p.Timeout, p.Retry
	}
	var found bool
	req := gwapi.GetRequest{Key: wk, Policy: p}
	if err := d.call(ctx, http.MethodPost, gwapi.PathExists, req, &found, timeout, noRetry(retry)); err != nil {
		return false, err
	}
	return found, nil
}

func (d *Driver) Remove(ctx context.Context, k *key.Key, p *policy.Remove) error {
	wk, err := gwapi.EncodeKey(k)
	if err != nil {
		return err
	}
	var timeout *time.Duration
	var retry *policy.Retry
	if p != nil {
		timeout, retry = p.Timeout, p.Retry
	}
	req := gwapi.RemoveRequest{Key: wk, Policy: p}
	return d.call(ctx, http.MethodPost, gwapi.PathRemove, req, nil, timeout, noRetry(retry))
}

func (d *Driver) Operate(ctx context.Context, k *key.Key, ops *operation.List, p *policy.Operate) (*record.Wire, error) {
	if ops == nil {
		return nil, errors.New("restgw: operation list is nil")
	}
	wk, err := gwapi.EncodeKey(k)
	if err != nil {
		return nil, err
	}
	var timeout *time.Duration
	if p != nil {
		timeout = p.Timeout
	}
	req := gwapi.OperateRequest{Key: wk, Ops: ops.Ops, ExpectsRecord: ops.ExpectsRecord, Policy: p}
	var out *gwapi.Record
	// Operate is not idempotent for increments and appends.
	if err := d.call(ctx, http.MethodPost, gwapi.PathOperate, req, &out, timeout, true); err != nil {
		return nil, err
	}
	if !ops.ExpectsRecord {
		return nil, nil
	}
	return out.DecodeRecord()
}

func (d *Driver) BatchGet(ctx context.Context, keys []*key.Key, bins []string, p *policy.Batch, emit stream.Emit) error {
	return d.batch(ctx, gwapi.PathBatchGet, keys, bins, p, emit)
}

func (d *Driver) BatchExists(ctx context.Context, keys []*key.Key, p *policy.Batch, emit stream.Emit) error {
	return d.batch(ctx, gwapi.PathBatchExists, keys, nil, p, emit)
}

func (d *Driver) batch(ctx context.Context, path string, keys []*key.Key, bins []string, p *policy.Batch, emit stream.Emit) error {
	wks, err := gwapi.EncodeKeys(keys)
	if err != nil {
		return err
	}
	var timeout *time.Duration
	if p != nil {
		timeout = p.Timeout
	}
	var items []gwapi.Item
	if err := d.call(ctx, http.MethodPost, path, gwapi.BatchRequest{Keys: wks, Bins: bins, Policy: p}, &items, timeout, false); err != nil {
		return err
	}
	return replay(items, emit)
}

// Query is not served by the gateway.
func (d *Driver) Query(context.Context, *query.Statement, *policy.Query, stream.Emit) error {
	return fmt.Errorf("restgw: query: %w", driver.ErrUnsupportedFeature)
}

// Scan fetches the full result list and replays it in gateway order.
func (d *Driver) Scan(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan, emit stream.Emit) error {
	if stmt == nil {
		return errors.New("restgw: scan statement is nil")
	}
	var timeout *time.Duration
	if p != nil {
		timeout = p.Timeout
	}
	var items []gwapi.Item
	if err := d.call(ctx, http.MethodPost, gwapi.PathScan, gwapi.ScanRequest{Statement: *stmt, Policy: p}, &items, timeout, false); err != nil {
		return err
	}
	return replay(items, emit)
}

func (d *Driver) ScanBackground(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan) (uint64, error) {
	if stmt == nil {
		return 0, errors.New("restgw: scan statement is nil")
	}
	var timeout *time.Duration
	if p != nil {
		timeout = p.Timeout
	}
	var id uint64
	if err := d.call(ctx, http.MethodPost, gwapi.PathScanBackground, gwapi.ScanRequest{Statement: *stmt, Policy: p}, &id, timeout, true); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *Driver) ScanInfo(ctx context.Context, id uint64, p *policy.Info) (*driver.ScanInfo, error) {
	var timeout *time.Duration
	if p != nil {
		timeout = p.Timeout
	}
	var out gwapi.ScanInfo
	if err := d.call(ctx, http.MethodPost, gwapi.PathScanInfo, gwapi.ScanInfoRequest{ID: id, Policy: p}, &out, timeout, false); err != nil {
		return nil, err
	}
	return &driver.ScanInfo{ProgressPercent: out.ProgressPercent, RecordsScanned: out.RecordsScanned, Status: out.Status}, nil
}

func (d *Driver) CreateIndex(context.Context, driver.IndexDescriptor, *policy.Info) error {
	return fmt.Errorf("restgw: create index: %w", driver.ErrUnsupportedFeature)
}

func (d *Driver) DropIndex(context.Context, string, string, *policy.Info) error {
	return fmt.Errorf("restgw: drop index: %w", driver.ErrUnsupportedFeature)
}

func (d *Driver) UDFPut(context.Context, string, []byte, driver.UDFLanguage, *policy.Info) error {
	return fmt.Errorf("restgw: udf put: %w", driver.ErrUnsupportedFeature)
}

func (d *Driver) UDFRemove(context.Context, string, *policy.Info) error {
	return fmt.Errorf("restgw: udf remove: %w", driver.ErrUnsupportedFeature)
}

func (d *Driver) UDFList(context.Context, *policy.Info) ([]driver.UDFFile, error) {
	return nil, fmt.Errorf("restgw: udf list: %w", driver.ErrUnsupportedFeature)
}

func (d *Driver) UDFGet(context.Context, string, driver.UDFLanguage, *policy.Info) (*driver.UDFFile, error) {
	return nil, fmt.Errorf("restgw: udf get: %w", driver.ErrUnsupportedFeature)
}

func replay(items []gwapi.Item, emit stream.Emit) error {
	for i, wi := range items {
		it, err := wi.DecodeItem()
		if err != nil {
			return status.Newf(status.ClientError, "restgw: item %d: %v", i, err)
		}
		emit(it)
	}
	return nil
}

// call posts in as msgpack and decodes the envelope result into out.
// Gateway errors come back as *status.Error with the store code.
func (d *Driver) call(ctx context.Context, method, path string, in, out any, timeout *time.Duration, disableRetry bool) error {
	if timeout != nil && *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	req := &httpx.Request{Method: method, Path: path, DisableRetry: disableRetry}
	if in != nil {
		body, contentType, err := httpx.MsgpackBody(in)
		if err != nil {
			return err
		}
		req.Body = body
		req.Header = http.Header{"Content-Type": []string{contentType}}
	}

	resp, err := d.http.Do(ctx, req)
	if err != nil {
		return translate(err)
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return status.Newf(status.ClientError, "restgw: read response: %v", err)
	}
	return gwapi.DecodeResult(data, out)
}

func translate(err error) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusNotImplemented {
			return fmt.Errorf("restgw: %w", driver.ErrUnsupportedFeature)
		}
		if httpx.IsMsgpack(httpErr.ContentType) {
			if derr := gwapi.DecodeResult(httpErr.Body, nil); derr != nil {
				return derr
			}
		}
		switch httpErr.StatusCode {
		case http.StatusGatewayTimeout, http.StatusRequestTimeout:
			return status.Newf(status.Timeout, "restgw: %v", httpErr)
		}
		return status.Newf(status.ServerError, "restgw: %v", httpErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.New(status.Timeout, "restgw: deadline exceeded")
	}
	return status.Newf(status.ClientError, "restgw: %v", err)
}

func noRetry(r *policy.Retry) bool {
	return r != nil && *r == policy.RetryNone
}
