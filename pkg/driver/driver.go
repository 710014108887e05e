// Package driver defines the transport boundary every client talks to.
//
// A Driver owns one connection to the store. Implementations live in the
// asclient (real cluster), restgw (HTTP gateway) and mock (in-memory)
// subpackages. Driver failures are reported as *status.Error values so the
// store result code survives to the caller; streaming calls push one
// stream.Item per record and return only the terminal error.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 3000
)

var (
	// ErrUnsupportedFeature indicates the driver cannot serve the call.
	ErrUnsupportedFeature = errors.New("driver: unsupported feature")
	// ErrNotConnected is returned when a call is made before Connect or after Close.
	ErrNotConnected = errors.New("driver: not connected")
	// ErrUDFNotFound is returned by UDFGet for a module that is not registered.
	ErrUDFNotFound = errors.New("driver: udf module not found")
	// ErrInvalidArgument is returned for malformed index or module arguments.
	ErrInvalidArgument = errors.New("driver: invalid argument")
)

// Host is one seed node.
type Host struct {
	Name string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

func (h Host) String() string {
	return net.JoinHostPort(h.Name, strconv.Itoa(h.Port))
}

// DefaultHosts returns the single local endpoint used when no host is given.
func DefaultHosts() []Host {
	return []Host{{Name: DefaultHost, Port: DefaultPort}}
}

// ParseHosts parses a comma separated list of host[:port] entries.
func ParseHosts(s string) ([]Host, error) {
	var hosts []Host
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, portStr, err := net.SplitHostPort(part)
		if err != nil {
			hosts = append(hosts, Host{Name: part, Port: DefaultPort})
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("driver: invalid port in %q", part)
		}
		hosts = append(hosts, Host{Name: name, Port: port})
	}
	return hosts, nil
}

// IndexDescriptor names a secondary index.
type IndexDescriptor struct {
	Namespace  string               `msgpack:"ns"`
	Set        string               `msgpack:"set"`
	Bin        string               `msgpack:"bin"`
	Name       string               `msgpack:"name"`
	Type       query.IndexType      `msgpack:"type"`
	Collection query.CollectionType `msgpack:"collection"`
}

// Validate checks that every name is present.
func (d IndexDescriptor) Validate() error {
	if d.Namespace == "" || d.Bin == "" || d.Name == "" {
		return fmt.Errorf("%w: index requires namespace, bin and name", ErrInvalidArgument)
	}
	if d.Type != query.IndexNumeric && d.Type != query.IndexString {
		return fmt.Errorf("%w: unknown index type %d", ErrInvalidArgument, int(d.Type))
	}
	return nil
}

// ScanStatus is the state of a background scan.
type ScanStatus int

const (
	ScanUndefined ScanStatus = iota
	ScanInProgress
	ScanAborted
	ScanCompleted
)

func (s ScanStatus) String() string {
	switch s {
	case ScanInProgress:
		return "in-progress"
	case ScanAborted:
		return "aborted"
	case ScanCompleted:
		return "completed"
	}
	return "undefined"
}

// ScanInfo reports the progress of a background scan.
type ScanInfo struct {
	ProgressPercent int
	RecordsScanned  int64
	Status          ScanStatus
}

// UDFLanguage is the language of a UDF module.
type UDFLanguage int

const (
	UDFLua UDFLanguage = iota
)

func (l UDFLanguage) String() string {
	if l == UDFLua {
		return "LUA"
	}
	return fmt.Sprintf("UDFLanguage(%d)", int(l))
}

// UDFFile describes a registered module. Content is only set by UDFGet.
type UDFFile struct {
	Name    string      `msgpack:"name"`
	Type    UDFLanguage `msgpack:"type"`
	Hash    string      `msgpack:"hash"`
	Content []byte      `msgpack:"content,omitempty"`
}

// Driver is the transport used by a client.
type Driver interface {
	Connect(ctx context.Context, hosts []Host) error
	Close() error

	Put(ctx context.Context, k *key.Key, bins record.Bins, p *policy.Write) error
	// Get returns a KeyNotFound *status.Error for a missing record.
	Get(ctx context.Context, k *key.Key, bins []string, p *policy.Read) (*record.Wire, error)
	Exists(ctx context.Context, k *key.Key, p *policy.Read) (bool, error)
	Remove(ctx context.Context, k *key.Key, p *policy.Remove) error
	// Operate returns a record only when ops.ExpectsRecord is set.
	Operate(ctx context.Context, k *key.Key, ops *operation.List, p *policy.Operate) (*record.Wire, error)

	BatchGet(ctx context.Context, keys []*key.Key, bins []string, p *policy.Batch, emit stream.Emit) error
	BatchExists(ctx context.Context, keys []*key.Key, p *policy.Batch, emit stream.Emit) error
	Query(ctx context.Context, stmt *query.Statement, p *policy.Query, emit stream.Emit) error
	Scan(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan, emit stream.Emit) error
	ScanBackground(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan) (uint64, error)
	ScanInfo(ctx context.Context, id uint64, p *policy.Info) (*ScanInfo, error)

	// CreateIndex blocks until the index is built or the policy timeout elapses.
	CreateIndex(ctx context.Context, idx IndexDescriptor, p *policy.Info) error
	DropIndex(ctx context.Context, namespace, name string, p *policy.Info) error

	UDFPut(ctx context.Context, name string, content []byte, lang UDFLanguage, p *policy.Info) error
	UDFRemove(ctx context.Context, name string, p *policy.Info) error
	UDFList(ctx context.Context, p *policy.Info) ([]UDFFile, error)
	UDFGet(ctx context.Context, name string, lang UDFLanguage, p *policy.Info) (*UDFFile, error)
}
