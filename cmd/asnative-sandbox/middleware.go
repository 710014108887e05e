package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ratio1/aerospike_native_go/internal/gwapi"
	"github.com/Ratio1/aerospike_native_go/internal/httpx"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

type failConfig struct {
	rate float64
	code status.Code
}

// withMiddleware delays every request and fails a share of them with a
// store error envelope, so clients see the same code a real gateway sends.
func withMiddleware(delay time.Duration, failCfg failConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("sandbox: request", "method", r.Method, "path", r.URL.Path)
		if delay > 0 {
			time.Sleep(delay)
		}
		if failCfg.rate > 0 && rand.Float64() < failCfg.rate {
			code := failCfg.code
			if code == status.OK {
				code = status.ServerError
			}
			data, httpStatus := gwapi.EncodeError(status.New(code, "failure injected"))
			if data == nil {
				http.Error(w, "failure injected", httpStatus)
				return
			}
			w.Header().Set("Content-Type", httpx.ContentTypeMsgpack)
			w.WriteHeader(httpStatus)
			_, _ = w.Write(data)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: status.ServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(name) {
		case "rate":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return failConfig{}, err
			}
			if f < 0 || f > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v outside 0..1", f)
			}
			cfg.rate = f
		case "code":
			n, err := strconv.Atoi(val)
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = status.Code(n)
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", name)
		}
	}
	return cfg, nil
}
