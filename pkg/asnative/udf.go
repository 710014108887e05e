package asnative

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

const (
	// DefaultUDFWait bounds UDF.Wait when no timeout is given.
	DefaultUDFWait = 1000 * time.Millisecond

	udfPollInterval = 50 * time.Millisecond
)

// UDFInfo describes a registered module in UDF.List.
type UDFInfo struct {
	Type driver.UDFLanguage
	Hash string
}

// UDF manages the Lua modules registered with the store.
type UDF struct {
	c *Client
}

// UDF returns the module management interface.
func (c *Client) UDF() *UDF {
	return &UDF{c: c}
}

// Put reads the module at path and registers it under its base file name.
// A missing file is logged and reported as false rather than an error.
func (u *UDF) Put(ctx context.Context, path string, opts policy.Map) (bool, error) {
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return false, err
	}
	exists, err := afero.Exists(u.c.fs, path)
	if err != nil {
		return false, fmt.Errorf("asnative: stat udf %q: %w", path, err)
	}
	if !exists {
		logger.Warn("asnative: udf file not found", "client", u.c.id, "path", path)
		return false, nil
	}
	content, err := afero.ReadFile(u.c.fs, path)
	if err != nil {
		return false, fmt.Errorf("asnative: read udf %q: %w", path, err)
	}

	name := filepath.Base(path)
	if err := u.c.driver.UDFPut(ctx, name, content, driver.UDFLua, p); err != nil {
		logger.Debug("asnative: udf register failed", "client", u.c.id, "module", name, "error", err)
		return false, err
	}
	logger.Info("asnative: udf registered", "client", u.c.id, "module", name, "bytes", len(content))
	return true, nil
}

// Remove unregisters the named module.
func (u *UDF) Remove(ctx context.Context, name string, opts policy.Map) error {
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return err
	}
	return u.c.driver.UDFRemove(ctx, name, p)
}

// List returns the registered modules keyed by name.
func (u *UDF) List(ctx context.Context, opts policy.Map) (map[string]UDFInfo, error) {
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return nil, err
	}
	files, err := u.c.driver.UDFList(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make(map[string]UDFInfo, len(files))
	for _, f := range files {
		out[f.Name] = UDFInfo{Type: f.Type, Hash: f.Hash}
	}
	return out, nil
}

// Get returns the named module with its source.
func (u *UDF) Get(ctx context.Context, name string, opts policy.Map) (*driver.UDFFile, error) {
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return nil, err
	}
	return u.c.driver.UDFGet(ctx, name, driver.UDFLua, p)
}

// Wait polls until the named module is listed by the store. A zero timeout
// waits DefaultUDFWait; expiry is a Timeout *status.Error.
func (u *UDF) Wait(ctx context.Context, name string, timeout time.Duration, opts policy.Map) error {
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = DefaultUDFWait
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(udfPollInterval)
	defer ticker.Stop()
	for {
		files, err := u.c.driver.UDFList(ctx, p)
		switch {
		case err == nil:
			for _, f := range files {
				if f.Name == name {
					return nil
				}
			}
		case errors.Is(err, context.DeadlineExceeded), status.CodeOf(err) == status.Timeout:
		default:
			return err
		}
		select {
		case <-ctx.Done():
			return status.Newf(status.Timeout, "asnative: udf %q not registered after %s", name, timeout)
		case <-ticker.C:
		}
	}
}
