package asnative

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/asclient"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

// Option configures a Client.
type Option func(*Client)

// WithDriver replaces the default cluster driver, for example with
// mock.New() or a restgw driver.
func WithDriver(d driver.Driver) Option {
	return func(c *Client) {
		if d != nil {
			c.driver = d
		}
	}
}

// WithFs sets the filesystem UDF modules are read from.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// Client is a connected handle. Calls block until the driver has answered.
type Client struct {
	id     string
	driver driver.Driver
	fs     afero.Fs
	hosts  []driver.Host
}

// New connects to hosts, or to the local default endpoint when hosts is
// empty. A connection failure carries the driver's status code.
func New(ctx context.Context, hosts []driver.Host, opts ...Option) (*Client, error) {
	if len(hosts) == 0 {
		hosts = driver.DefaultHosts()
	}
	c := &Client{
		id:    uuid.NewString(),
		hosts: append([]driver.Host(nil), hosts...),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.driver == nil {
		c.driver = asclient.New()
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}

	if err := c.driver.Connect(ctx, c.hosts); err != nil {
		logger.Error("asnative: connect failed", "client", c.id, "hosts", len(c.hosts), "error", err)
		return nil, fmt.Errorf("asnative: connect: %w", err)
	}
	logger.Info("asnative: connected", "client", c.id, "seed", c.hosts[0].String())
	return c, nil
}

// ID identifies the client in log lines.
func (c *Client) ID() string { return c.id }

// Hosts returns the seed hosts the client connected with.
func (c *Client) Hosts() []driver.Host {
	return append([]driver.Host(nil), c.hosts...)
}

// Close releases the driver connection.
func (c *Client) Close() error {
	logger.Debug("asnative: closing", "client", c.id)
	return c.driver.Close()
}

// Put writes bins to the record at k. An empty bin map writes nothing and
// returns false.
func (c *Client) Put(ctx context.Context, k *key.Key, bins map[string]any, opts policy.Map) (bool, error) {
	if err := checkKey(k); err != nil {
		return false, err
	}
	wire, err := record.ToWire(bins)
	if errors.Is(err, record.ErrEmptyBins) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("asnative: put: %w", err)
	}
	p, err := policy.ResolveWrite(opts)
	if err != nil {
		return false, err
	}
	if err := c.driver.Put(ctx, k, wire, p); err != nil {
		c.trace("put", k, err)
		return false, err
	}
	return true, nil
}

// Get reads the record at k, restricted to bins when any are named. A
// missing record is a KeyNotFound *status.Error.
func (c *Client) Get(ctx context.Context, k *key.Key, opts policy.Map, bins ...string) (*record.Record, error) {
	if err := checkKey(k); err != nil {
		return nil, err
	}
	for _, b := range bins {
		if err := record.ValidateBinName(b); err != nil {
			return nil, fmt.Errorf("asnative: get: %w", err)
		}
	}
	p, err := policy.ResolveRead(opts)
	if err != nil {
		return nil, err
	}
	w, err := c.driver.Get(ctx, k, bins, p)
	if err != nil {
		c.trace("get", k, err)
		return nil, err
	}
	return record.FromWire(w, k), nil
}

// Exists reports whether a record is stored at k.
func (c *Client) Exists(ctx context.Context, k *key.Key, opts policy.Map) (bool, error) {
	if err := checkKey(k); err != nil {
		return false, err
	}
	p, err := policy.ResolveRead(opts)
	if err != nil {
		return false, err
	}
	found, err := c.driver.Exists(ctx, k, p)
	if err != nil {
		c.trace("exists", k, err)
		return false, err
	}
	return found, nil
}

// Remove deletes the record at k. Removing a missing record is a
// KeyNotFound *status.Error.
func (c *Client) Remove(ctx context.Context, k *key.Key, opts policy.Map) error {
	if err := checkKey(k); err != nil {
		return err
	}
	p, err := policy.ResolveRemove(opts)
	if err != nil {
		return err
	}
	if err := c.driver.Remove(ctx, k, p); err != nil {
		c.trace("remove", k, err)
		return err
	}
	return nil
}

// Touch resets the TTL of the record at k and bumps its generation. The ttl
// entry of opts sets the new TTL.
func (c *Client) Touch(ctx context.Context, k *key.Key, opts policy.Map) (*record.Record, error) {
	rec, _, err := c.Operate(ctx, k, []operation.Operation{operation.Touch()}, opts)
	return rec, err
}

// Operate applies ops atomically to one record. An empty list returns
// (nil, false, nil) without contacting the store. A list without read or
// touch steps returns (nil, true, nil); otherwise the resulting record is
// returned.
func (c *Client) Operate(ctx context.Context, k *key.Key, ops []operation.Operation, opts policy.Map) (*record.Record, bool, error) {
	if len(ops) == 0 {
		return nil, false, nil
	}
	if err := checkKey(k); err != nil {
		return nil, false, err
	}
	list, err := operation.Build(ops)
	if err != nil {
		return nil, false, fmt.Errorf("asnative: operate: %w", err)
	}
	p, err := policy.ResolveOperate(opts)
	if err != nil {
		return nil, false, err
	}
	w, err := c.driver.Operate(ctx, k, list, p)
	if err != nil {
		c.trace("operate", k, err)
		return nil, false, err
	}
	if !list.ExpectsRecord {
		return nil, true, nil
	}
	return record.FromWire(w, k), true, nil
}

// ScanInfo reports the progress of a background scan started with
// Scan.ExecBackground.
func (c *Client) ScanInfo(ctx context.Context, id uint64, opts policy.Map) (*driver.ScanInfo, error) {
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return nil, err
	}
	info, err := c.driver.ScanInfo(ctx, id, p)
	if err != nil {
		logger.Debug("asnative: scan info failed", "client", c.id, "scan", id, "error", err)
		return nil, err
	}
	return info, nil
}

// trace logs a failed single-key call. Not-found is expected often enough
// to stay at trace level.
func (c *Client) trace(op string, k *key.Key, err error) {
	l := logger.LevelDebug
	if status.IsNotFound(err) {
		l = logger.LevelTrace
	}
	logger.Log(l, "asnative: "+op+" failed", "client", c.id, "key", k, "code", int(status.CodeOf(err)), "error", err)
}

func checkKey(k *key.Key) error {
	if k == nil {
		return fmt.Errorf("asnative: %w: key is nil", key.ErrInvalidArgument)
	}
	return nil
}
