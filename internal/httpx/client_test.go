package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetries(n int) Option {
	return WithRetryPolicy(RetryPolicy{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func TestDoRetriesUnavailableAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("attempt %d saw body %q", calls.Load()+1, body)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, fastRetries(3))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "v1/x", Body: strings.NewReader("payload")})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", ContentTypeMsgpack+"; charset=binary")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte{0x80})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, fastRetries(3))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/v1/missing"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound || httpErr.Retryable() {
		t.Fatalf("unexpected error: %#v", httpErr)
	}
	if httpErr.ContentType != ContentTypeMsgpack {
		t.Fatalf("content type = %q", httpErr.ContentType)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestDoDisableRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, fastRetries(3))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/v1/x", DisableRetry: true}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost:8080"); err == nil {
		t.Fatal("expected error for URL without scheme")
	}
	if _, err := NewClient(" "); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestBackoffForAttempt(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 50*time.Millisecond, 0)
	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		if got := b.ForAttempt(i); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v want %v", i, got, w*time.Millisecond)
		}
	}

	jittered := NewBackoff(100*time.Millisecond, time.Second, 0.5)
	for i := 0; i < 20; i++ {
		d := jittered.ForAttempt(0)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}
