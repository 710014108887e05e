package gwapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

func TestKeyWireKeepsDigestAndValue(t *testing.T) {
	k, err := key.New("test", "users", "alice")
	if err != nil {
		t.Fatalf("key.New: %v", err)
	}
	wk, err := EncodeKey(k)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	back, err := wk.DecodeKey()
	if err != nil {
		t.Fatalf("DecodeKey: %v", err)
	}
	if !back.Equal(k) || back.Value() != "alice" {
		t.Fatalf("key mismatch: %v vs %v", back, k)
	}

	digestOnly, err := key.NewFromDigest("test", "", k.Digest())
	if err != nil {
		t.Fatalf("NewFromDigest: %v", err)
	}
	wk, err = EncodeKey(digestOnly)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if wk.UserKey != nil {
		t.Fatalf("digest-only key must not carry a user key")
	}
}

func TestKeyWireRejectsForeignDigest(t *testing.T) {
	alice, _ := key.New("test", "users", "alice")
	bob, _ := key.New("test", "users", "bob")
	wk, err := EncodeKey(alice)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	wk.Digest = bob.Digest()
	if _, err := wk.DecodeKey(); !errors.Is(err, key.ErrInvalidArgument) {
		t.Fatalf("expected key.ErrInvalidArgument, got %v", err)
	}

	wk.Digest = nil
	back, err := wk.DecodeKey()
	if err != nil {
		t.Fatalf("DecodeKey without digest: %v", err)
	}
	if !back.Equal(alice) {
		t.Fatalf("rehashed key mismatch: %v vs %v", back, alice)
	}
}

func TestItemWire(t *testing.T) {
	k, _ := key.New("test", "users", 7)
	ok := stream.Item{
		Key:    k,
		Record: &record.Wire{Key: k, Bins: record.Bins{"n": value.Int(1)}, Generation: 3, TTL: 10},
		Status: status.OK,
	}
	failed := stream.Item{Key: k, Status: status.KeyBusy, Err: status.New(status.KeyBusy, "busy")}

	for _, tc := range []struct {
		name string
		in   stream.Item
	}{{"ok", ok}, {"failed", failed}} {
		t.Run(tc.name, func(t *testing.T) {
			wi, err := EncodeItem(tc.in)
			if err != nil {
				t.Fatalf("EncodeItem: %v", err)
			}
			got, err := wi.DecodeItem()
			if err != nil {
				t.Fatalf("DecodeItem: %v", err)
			}
			if got.Status != tc.in.Status || !got.Key.Equal(k) {
				t.Fatalf("unexpected item: %#v", got)
			}
			if (got.Err == nil) != (tc.in.Err == nil) {
				t.Fatalf("error presence mismatch: %v", got.Err)
			}
			if tc.in.Record != nil && got.Record.Generation != 3 {
				t.Fatalf("record not carried: %#v", got.Record)
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	body, err := EncodeResult(map[string]int{"count": 2})
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	var out map[string]int
	if err := DecodeResult(body, &out); err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if out["count"] != 2 {
		t.Fatalf("unexpected result %v", out)
	}

	errBody, httpStatus := EncodeError(status.New(status.KeyExists, "dup"))
	if httpStatus != http.StatusConflict {
		t.Fatalf("status = %d", httpStatus)
	}
	err = DecodeResult(errBody, nil)
	var se *status.Error
	if !errors.As(err, &se) || se.Code != status.KeyExists || se.Message != "dup" {
		t.Fatalf("expected KeyExists status error, got %v", err)
	}

	if err := DecodeResult(nil, &out); err != nil {
		t.Fatalf("empty body: %v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{status.New(status.KeyNotFound, ""), http.StatusNotFound},
		{status.New(status.GenerationError, ""), http.StatusConflict},
		{status.New(status.ParameterError, ""), http.StatusBadRequest},
		{status.New(status.Timeout, ""), http.StatusGatewayTimeout},
		{status.New(status.DeviceOverload, ""), http.StatusServiceUnavailable},
		{status.New(status.ServerError, ""), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", driver.ErrUnsupportedFeature), http.StatusNotImplemented},
		{errors.New("plain"), http.StatusBadRequest},
	}
	for _, tc := range tests {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
