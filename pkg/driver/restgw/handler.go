package restgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ratio1/aerospike_native_go/internal/gwapi"
	"github.com/Ratio1/aerospike_native_go/internal/httpx"
	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

// NewHandler serves the gateway protocol from any driver. The sandbox uses
// it in front of the mock driver.
func NewHandler(d driver.Driver) http.Handler {
	h := &handler{d: d}
	mux := http.NewServeMux()
	mux.HandleFunc(gwapi.PathHealth, h.health)
	mux.HandleFunc(gwapi.PathPut, post(h.put))
	mux.HandleFunc(gwapi.PathGet, post(h.get))
	mux.HandleFunc(gwapi.PathExists, post(h.exists))
	mux.HandleFunc(gwapi.PathRemove, post(h.remove))
	mux.HandleFunc(gwapi.PathOperate, post(h.operate))
	mux.HandleFunc(gwapi.PathBatchGet, post(h.batchGet))
	mux.HandleFunc(gwapi.PathBatchExists, post(h.batchExists))
	mux.HandleFunc(gwapi.PathScan, post(h.scan))
	mux.HandleFunc(gwapi.PathScanBackground, post(h.scanBackground))
	mux.HandleFunc(gwapi.PathScanInfo, post(h.scanInfo))
	return mux
}

type handler struct {
	d driver.Driver
}

// call handles one request and returns the result to encode.
type call func(r *http.Request) (any, error)

func post(fn call) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := fn(r)
		if err != nil {
			logger.Debug("restgw: request failed", "path", r.URL.Path, "error", err)
			writeError(w, err)
			return
		}
		writeResult(w, result)
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeResult(w, true)
}

func (h *handler) put(r *http.Request) (any, error) {
	var req gwapi.PutRequest
	k, err := decodeKeyed(r, &req, func() gwapi.Key { return req.Key })
	if err != nil {
		return nil, err
	}
	if err := h.d.Put(r.Context(), k, req.Bins, req.Policy); err != nil {
		return nil, err
	}
	return true, nil
}

func (h *handler) get(r *http.Request) (any, error) {
	var req gwapi.GetRequest
	k, err := decodeKeyed(r, &req, func() gwapi.Key { return req.Key })
	if err != nil {
		return nil, err
	}
	w, err := h.d.Get(r.Context(), k, req.Bins, req.Policy)
	if err != nil {
		return nil, err
	}
	return gwapi.EncodeRecord(w)
}

func (h *handler) exists(r *http.Request) (any, error) {
	var req gwapi.GetRequest
	k, err := decodeKeyed(r, &req, func() gwapi.Key { return req.Key })
	if err != nil {
		return nil, err
	}
	return h.d.Exists(r.Context(), k, req.Policy)
}

func (h *handler) remove(r *http.Request) (any, error) {
	var req gwapi.RemoveRequest
	k, err := decodeKeyed(r, &req, func() gwapi.Key { return req.Key })
	if err != nil {
		return nil, err
	}
	if err := h.d.Remove(r.Context(), k, req.Policy); err != nil {
		return nil, err
	}
	return true, nil
}

func (h *handler) operate(r *http.Request) (any, error) {
	var req gwapi.OperateRequest
	k, err := decodeKeyed(r, &req, func() gwapi.Key { return req.Key })
	if err != nil {
		return nil, err
	}
	list := &operation.List{Ops: req.Ops, ExpectsRecord: req.ExpectsRecord}
	w, err := h.d.Operate(r.Context(), k, list, req.Policy)
	if err != nil {
		return nil, err
	}
	return gwapi.EncodeRecord(w)
}

func (h *handler) batchGet(r *http.Request) (any, error) {
	var req gwapi.BatchRequest
	keys, err := decodeBatch(r, &req)
	if err != nil {
		return nil, err
	}
	return collect(func(emit stream.Emit) error {
		return h.d.BatchGet(r.Context(), keys, req.Bins, req.Policy, emit)
	})
}

func (h *handler) batchExists(r *http.Request) (any, error) {
	var req gwapi.BatchRequest
	keys, err := decodeBatch(r, &req)
	if err != nil {
		return nil, err
	}
	return collect(func(emit stream.Emit) error {
		return h.d.BatchExists(r.Context(), keys, req.Policy, emit)
	})
}

func (h *handler) scan(r *http.Request) (any, error) {
	var req gwapi.ScanRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return collect(func(emit stream.Emit) error {
		return h.d.Scan(r.Context(), &req.Statement, req.Policy, emit)
	})
}

func (h *handler) scanBackground(r *http.Request) (any, error) {
	var req gwapi.ScanRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return h.d.ScanBackground(r.Context(), &req.Statement, req.Policy)
}

func (h *handler) scanInfo(r *http.Request) (any, error) {
	var req gwapi.ScanInfoRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	info, err := h.d.ScanInfo(r.Context(), req.ID, req.Policy)
	if err != nil {
		return nil, err
	}
	return gwapi.ScanInfo{ProgressPercent: info.ProgressPercent, RecordsScanned: info.RecordsScanned, Status: info.Status}, nil
}

// collect buffers the items of a streaming call. Encoding failures on one
// item are reported on that item so the stream stays intact.
func collect(drive func(stream.Emit) error) ([]gwapi.Item, error) {
	items := []gwapi.Item{}
	var encodeErr error
	err := drive(func(it stream.Item) {
		wi, err := gwapi.EncodeItem(it)
		if err != nil {
			encodeErr = err
			wi = gwapi.Item{Code: int(status.ClientError), Message: err.Error()}
		}
		items = append(items, wi)
	})
	if err != nil {
		return nil, err
	}
	if encodeErr != nil {
		logger.Warn("restgw: item could not be encoded", "error", encodeErr)
	}
	return items, nil
}

func decodeBody(r *http.Request, out any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !httpx.IsMsgpack(ct) {
		return status.Newf(status.ParameterError, "restgw: unsupported content type %q", ct)
	}
	data, err := httpx.ReadAllAndClose(r.Body)
	if err != nil {
		return status.Newf(status.ParameterError, "restgw: read body: %v", err)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return status.Newf(status.ParameterError, "restgw: decode body: %v", err)
	}
	return nil
}

func decodeKeyed(r *http.Request, out any, keyOf func() gwapi.Key) (*key.Key, error) {
	if err := decodeBody(r, out); err != nil {
		return nil, err
	}
	k, err := keyOf().DecodeKey()
	if err != nil {
		return nil, status.Newf(status.ParameterError, "restgw: %v", err)
	}
	return k, nil
}

func decodeBatch(r *http.Request, req *gwapi.BatchRequest) ([]*key.Key, error) {
	if err := decodeBody(r, req); err != nil {
		return nil, err
	}
	keys := make([]*key.Key, 0, len(req.Keys))
	for i, wk := range req.Keys {
		k, err := wk.DecodeKey()
		if err != nil {
			return nil, status.Newf(status.ParameterError, "restgw: key %d: %v", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func writeResult(w http.ResponseWriter, result any) {
	data, err := gwapi.EncodeResult(result)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", httpx.ContentTypeMsgpack)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		err = status.New(status.ClientError, "restgw: request canceled")
	}
	data, code := gwapi.EncodeError(err)
	if data == nil {
		http.Error(w, fmt.Sprintf("restgw: %v", err), code)
		return
	}
	w.Header().Set("Content-Type", httpx.ContentTypeMsgpack)
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
