package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ratio1/aerospike_native_go/internal/httpx"
	"github.com/Ratio1/aerospike_native_go/pkg/asnative"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/mock"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/restgw"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

func TestParseFailConfig(t *testing.T) {
	cfg, err := parseFailConfig("rate=0.25, code=14")
	if err != nil {
		t.Fatalf("parseFailConfig: %v", err)
	}
	if cfg.rate != 0.25 || cfg.code != status.KeyBusy {
		t.Fatalf("unexpected config %+v", cfg)
	}

	cfg, err = parseFailConfig("")
	if err != nil || cfg.rate != 0 {
		t.Fatalf("empty config = %+v, %v", cfg, err)
	}

	for _, bad := range []string{"rate", "rate=x", "rate=2", "code=abc", "speed=1"} {
		if _, err := parseFailConfig(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestMiddlewareInjectsStoreErrors(t *testing.T) {
	srv := httptest.NewServer(withMiddleware(0, failConfig{rate: 1, code: status.KeyBusy}, restgw.NewHandler(mock.New())))
	defer srv.Close()

	d, err := restgw.New(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 0}))
	if err != nil {
		t.Fatalf("restgw.New: %v", err)
	}
	err = d.Connect(context.Background(), nil)
	if status.CodeOf(err) != status.KeyBusy {
		t.Fatalf("expected KeyBusy, got %v", err)
	}
}

func TestSandboxServesClients(t *testing.T) {
	srv := httptest.NewServer(withMiddleware(time.Millisecond, failConfig{}, restgw.NewHandler(mock.New())))
	defer srv.Close()

	d, err := restgw.New(srv.URL)
	if err != nil {
		t.Fatalf("restgw.New: %v", err)
	}
	ctx := context.Background()
	c, err := asnative.New(ctx, nil, asnative.WithDriver(d))
	if err != nil {
		t.Fatalf("asnative.New: %v", err)
	}
	defer c.Close()

	k, err := key.New("test", "demo", "k")
	if err != nil {
		t.Fatalf("key.New: %v", err)
	}
	if _, err := c.Put(ctx, k, map[string]any{"n": 1}, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := c.Get(ctx, k, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Bins["n"] != int64(1) {
		t.Fatalf("unexpected bins %v", rec.Bins)
	}
}

func TestVersionAndExports(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if out.String() != version+"\n" {
		t.Fatalf("unexpected version output %q", out.String())
	}

	out.Reset()
	printExports(root, ":9000")
	if !bytes.Contains(out.Bytes(), []byte("AEROSPIKE_REST_URL=http://localhost:9000")) {
		t.Fatalf("missing export line in %q", out.String())
	}
}
