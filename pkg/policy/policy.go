// Package policy resolves sparse per-call configuration maps into typed
// policies, one schema per operation category.
//
// A Map may key its entries by string or by Symbol; when both forms of the
// same key are present the string form wins. Unknown keys are ignored and
// missing keys leave the field nil so the driver default applies. Enumerated
// knobs accept their numeric value or their name (for example "RETRY_ONCE"
// or "once") and fail with an *InvalidValueError when out of range.
package policy

import (
	"errors"
	"fmt"
	"time"
)

// Map is a per-call configuration map.
type Map map[any]any

// Symbol is the atom form of a configuration key.
type Symbol string

// FromStrings converts a string-keyed map.
func FromStrings(m map[string]any) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Lookup returns the entry for name, preferring the string key over the
// Symbol key.
func (m Map) Lookup(name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	v, ok := m[Symbol(name)]
	return v, ok
}

func (m Map) normalize() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch name := k.(type) {
		case string:
			out[name] = v
		case Symbol:
			if _, ok := m[string(name)]; !ok {
				out[string(name)] = v
			}
		}
	}
	return out
}

// ErrInvalidPolicyValue matches every policy validation failure.
var ErrInvalidPolicyValue = errors.New("policy: invalid value")

// InvalidValueError reports the field and the rejected value.
type InvalidValueError struct {
	Field string
	Value any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("policy: invalid value %v (%T) for %q", e.Value, e.Value, e.Field)
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidPolicyValue }

// Retry selects how many times the driver retries a failed transaction.
type Retry int

const (
	RetryNone Retry = 0
	RetryOnce Retry = 1
)

// KeyMode selects whether the user key is sent and stored with the record.
type KeyMode int

const (
	KeyDigest KeyMode = 0
	KeySend   KeyMode = 1
)

// GenMode selects the generation check applied to writes.
type GenMode int

const (
	GenIgnore GenMode = 0
	GenEQ     GenMode = 1
	GenGT     GenMode = 2
)

// ExistsMode selects the behaviour of a write relative to an existing record.
type ExistsMode int

const (
	ExistsIgnore          ExistsMode = 0
	ExistsCreate          ExistsMode = 1
	ExistsUpdate          ExistsMode = 2
	ExistsReplace         ExistsMode = 3
	ExistsCreateOrReplace ExistsMode = 4
)

// CommitLevel selects which replicas must apply a write before it succeeds.
type CommitLevel int

const (
	CommitAll    CommitLevel = 0
	CommitMaster CommitLevel = 1
)

// Replica selects which replica serves a read.
type Replica int

const (
	ReplicaMaster Replica = 0
	ReplicaAny    Replica = 1
)

// Consistency selects how many replicas a read consults.
type Consistency int

const (
	ConsistencyOne Consistency = 0
	ConsistencyAll Consistency = 1
)

// ScanPriority is the server-side priority of a scan.
type ScanPriority int

const (
	PriorityAuto   ScanPriority = 0
	PriorityLow    ScanPriority = 1
	PriorityMedium ScanPriority = 2
	PriorityHigh   ScanPriority = 3
)

// Percent is a scan sampling percentage in 1..100.
type Percent uint8

// Expiration is a record TTL in seconds. Zero uses the namespace default.
type Expiration int32

const (
	TTLNamespaceDefault Expiration = 0
	TTLNeverExpire      Expiration = -1
	TTLDontUpdate       Expiration = -2
)

func (r Retry) String() string        { return enumName(r) }
func (k KeyMode) String() string      { return enumName(k) }
func (g GenMode) String() string      { return enumName(g) }
func (e ExistsMode) String() string   { return enumName(e) }
func (c CommitLevel) String() string  { return enumName(c) }
func (r Replica) String() string      { return enumName(r) }
func (c Consistency) String() string  { return enumName(c) }
func (p ScanPriority) String() string { return enumName(p) }

// Read configures single-key and batch record reads.
type Read struct {
	Timeout     *time.Duration `mapstructure:"timeout"`
	Retry       *Retry         `mapstructure:"retry"`
	Key         *KeyMode       `mapstructure:"key"`
	Replica     *Replica       `mapstructure:"replica"`
	Consistency *Consistency   `mapstructure:"consistency_level"`
}

// Write configures puts.
type Write struct {
	Timeout     *time.Duration `mapstructure:"timeout"`
	Retry       *Retry         `mapstructure:"retry"`
	Key         *KeyMode       `mapstructure:"key"`
	Gen         *GenMode       `mapstructure:"gen"`
	Exists      *ExistsMode    `mapstructure:"exists"`
	CommitLevel *CommitLevel   `mapstructure:"commit_level"`
	Generation  *uint32        `mapstructure:"generation"`
	TTL         *Expiration    `mapstructure:"ttl"`
}

// Operate configures multi-operation requests.
type Operate struct {
	Timeout     *time.Duration `mapstructure:"timeout"`
	Retry       *Retry         `mapstructure:"retry"`
	Key         *KeyMode       `mapstructure:"key"`
	Gen         *GenMode       `mapstructure:"gen"`
	CommitLevel *CommitLevel   `mapstructure:"commit_level"`
	Replica     *Replica       `mapstructure:"replica"`
	Consistency *Consistency   `mapstructure:"consistency_level"`
	Generation  *uint32        `mapstructure:"generation"`
	TTL         *Expiration    `mapstructure:"ttl"`
}

// Remove configures deletes.
type Remove struct {
	Timeout     *time.Duration `mapstructure:"timeout"`
	Retry       *Retry         `mapstructure:"retry"`
	Key         *KeyMode       `mapstructure:"key"`
	Gen         *GenMode       `mapstructure:"gen"`
	CommitLevel *CommitLevel   `mapstructure:"commit_level"`
	Generation  *uint32        `mapstructure:"generation"`
}

// Info configures info and administrative calls (indexes, UDFs).
type Info struct {
	Timeout     *time.Duration `mapstructure:"timeout"`
	SendAsIs    *bool          `mapstructure:"send_as_is"`
	CheckBounds *bool          `mapstructure:"check_bounds"`
}

// Scan configures full set scans.
type Scan struct {
	Timeout             *time.Duration `mapstructure:"timeout"`
	FailOnClusterChange *bool          `mapstructure:"fail_on_cluster_change"`
	Percent             *Percent       `mapstructure:"percent"`
	Priority            *ScanPriority  `mapstructure:"priority"`
	Concurrent          *bool          `mapstructure:"concurrent"`
	NoBins              *bool          `mapstructure:"no_bins"`
}

// Query configures secondary index queries.
type Query struct {
	Timeout *time.Duration `mapstructure:"timeout"`
}

// Batch configures multi-key reads.
type Batch struct {
	Timeout     *time.Duration `mapstructure:"timeout"`
	Concurrent  *bool          `mapstructure:"concurrent"`
	AllowInline *bool          `mapstructure:"allow_inline"`
}

// ResolveRead builds a Read policy.
func ResolveRead(m Map) (*Read, error) {
	return resolve[Read](m)
}

// ResolveWrite builds a Write policy.
func ResolveWrite(m Map) (*Write, error) {
	return resolve[Write](m)
}

// ResolveOperate builds an Operate policy.
func ResolveOperate(m Map) (*Operate, error) {
	return resolve[Operate](m)
}

// ResolveRemove builds a Remove policy.
func ResolveRemove(m Map) (*Remove, error) {
	return resolve[Remove](m)
}

// ResolveInfo builds an Info policy.
func ResolveInfo(m Map) (*Info, error) {
	return resolve[Info](m)
}

// ResolveScan builds a Scan policy.
func ResolveScan(m Map) (*Scan, error) {
	return resolve[Scan](m)
}

// ResolveQuery builds a Query policy.
func ResolveQuery(m Map) (*Query, error) {
	return resolve[Query](m)
}

// ResolveBatch builds a Batch policy.
func ResolveBatch(m Map) (*Batch, error) {
	return resolve[Batch](m)
}

func resolve[T any](m Map) (*T, error) {
	p := new(T)
	if err := decode(m, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Or dereferences p, falling back to def when the field is unset.
func Or[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
