// Package asclient implements driver.Driver on top of the Aerospike Go
// client. It owns one cluster connection and translates keys, bins,
// policies and result codes between the binding's types and the client's.
package asclient

import (
	"context"
	"errors"
	"sync"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

// Option configures a Driver.
type Option func(*Driver)

// WithUser sets the credentials used when the cluster has security enabled.
func WithUser(user, password string) Option {
	return func(d *Driver) {
		d.user = user
		d.password = password
	}
}

// WithClusterName makes Connect fail when the seed nodes report a different
// cluster name.
func WithClusterName(name string) Option {
	return func(d *Driver) {
		d.clusterName = name
	}
}

// WithConnectTimeout bounds the initial cluster tend.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.connectTimeout = timeout
		}
	}
}

// WithLuaPath points the client at the local copies of UDF modules. Query
// aggregations run their reduce stage on the client and load modules from
// this directory.
func WithLuaPath(dir string) Option {
	return func(d *Driver) {
		d.luaPath = dir
	}
}

// Driver talks to a live cluster.
type Driver struct {
	mu     sync.RWMutex
	client *as.Client

	user           string
	password       string
	clusterName    string
	connectTimeout time.Duration
	luaPath        string
}

var _ driver.Driver = (*Driver)(nil)

// New constructs an unconnected Driver.
func New(opts ...Option) *Driver {
	d := &Driver{connectTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect seeds the cluster from hosts and waits for the first tend.
func (d *Driver) Connect(ctx context.Context, hosts []driver.Host) error {
	if len(hosts) == 0 {
		hosts = driver.DefaultHosts()
	}
	bridgeLogs()
	if d.luaPath != "" {
		as.SetLuaPath(d.luaPath)
	}

	cp := as.NewClientPolicy()
	cp.Timeout = d.connectTimeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < cp.Timeout {
			cp.Timeout = remaining
		}
	}
	if cp.Timeout <= 0 {
		return status.New(status.Timeout, "asclient: connect deadline exceeded")
	}
	cp.User = d.user
	cp.Password = d.password
	cp.ClusterName = d.clusterName

	seeds := make([]*as.Host, 0, len(hosts))
	for _, h := range hosts {
		seeds = append(seeds, as.NewHost(h.Name, h.Port))
	}

	client, err := as.NewClientWithPolicyAndHost(cp, seeds...)
	if err != nil {
		return translate(err)
	}

	d.mu.Lock()
	old := d.client
	d.client = client
	d.mu.Unlock()
	if old != nil {
		old.Close()
	}
	logger.Info("asclient: connected", "hosts", len(seeds), "nodes", len(client.GetNodes()))
	return nil
}

// Close releases the cluster connection. It is safe to call more than once.
func (d *Driver) Close() error {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()
	if client != nil {
		client.Close()
	}
	return nil
}

// conn returns the live client or ErrNotConnected.
func (d *Driver) conn(ctx context.Context) (*as.Client, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return nil, driver.ErrNotConnected
	}
	return client, nil
}

// bound shortens the policy's total timeout to the context deadline.
func bound(ctx context.Context, bp *as.BasePolicy) {
	dl, ok := ctx.Deadline()
	if !ok {
		return
	}
	remaining := time.Until(dl)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if bp.TotalTimeout == 0 || remaining < bp.TotalTimeout {
		bp.TotalTimeout = remaining
	}
}

func asKey(k *key.Key) (*as.Key, error) {
	if k == nil {
		return nil, status.New(status.ParameterError, "asclient: key is nil")
	}
	ak, err := as.NewKeyWithDigest(k.Namespace(), k.Set(), k.Value(), k.Digest())
	if err != nil {
		return nil, status.Newf(status.ParameterError, "asclient: key %s: %v", k, err)
	}
	return ak, nil
}

func asKeys(keys []*key.Key) ([]*as.Key, error) {
	out := make([]*as.Key, 0, len(keys))
	for _, k := range keys {
		ak, err := asKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, ak)
	}
	return out, nil
}

// fromKey rebuilds a key from a response, falling back to the digest alone
// when the stored user key has a type keys do not support.
func fromKey(ak *as.Key) *key.Key {
	if ak == nil {
		return nil
	}
	var uv any
	if v := ak.Value(); v != nil {
		uv = v.GetObject()
	}
	k, err := key.WithValue(ak.Namespace(), ak.SetName(), uv, ak.Digest())
	if err == nil {
		return k
	}
	k, err = key.NewFromDigest(ak.Namespace(), ak.SetName(), ak.Digest())
	if err != nil {
		logger.Warn("asclient: response key dropped", "key", ak.String(), "error", err)
		return nil
	}
	return k
}

// translate converts client and context failures to *status.Error. Client
// side result codes (negative) keep their meaning only for timeouts.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var ae *as.AerospikeError
	if errors.As(err, &ae) {
		return status.New(codeOf(ae.ResultCode), ae.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.New(status.Timeout, "asclient: deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return status.Newf(status.ClientError, "asclient: %v", err)
}

func codeOf(rc types.ResultCode) status.Code {
	switch {
	case rc == types.TIMEOUT:
		return status.Timeout
	case rc < 0:
		return status.ClientError
	}
	return status.Code(rc)
}

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.New(status.Timeout, "asclient: deadline exceeded")
	}
	return err
}
