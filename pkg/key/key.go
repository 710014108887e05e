// Package key models record identity: namespace, set, user key and the
// 20-byte digest the store routes on.
package key

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	as "github.com/aerospike/aerospike-client-go/v7"
)

// DigestSize is the length of a record digest in bytes.
const DigestSize = 20

// ErrInvalidArgument is returned for malformed key components.
var ErrInvalidArgument = errors.New("key: invalid argument")

// Key identifies a record. It is immutable once constructed.
type Key struct {
	namespace string
	set       string
	value     any
	digest    [DigestSize]byte
}

// New builds a key from a user value and computes its digest. The value
// must be an integer, a string or a byte slice.
func New(namespace, set string, v any) (*Key, error) {
	if err := validateNames(namespace, set); err != nil {
		return nil, err
	}
	uv, err := normalize(v)
	if err != nil {
		return nil, err
	}
	ak, aerr := as.NewKey(namespace, set, uv)
	if aerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, aerr)
	}
	k := &Key{namespace: namespace, set: set, value: uv}
	copy(k.digest[:], ak.Digest())
	return k, nil
}

// NewFromDigest builds a key from a digest returned by the store. The user
// value is absent.
func NewFromDigest(namespace, set string, digest []byte) (*Key, error) {
	if err := validateNames(namespace, set); err != nil {
		return nil, err
	}
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("%w: digest must be %d bytes, got %d", ErrInvalidArgument, DigestSize, len(digest))
	}
	k := &Key{namespace: namespace, set: set}
	copy(k.digest[:], digest)
	return k, nil
}

// WithValue rebuilds a response key that carries both the user value and
// the digest computed by the store.
func WithValue(namespace, set string, v any, digest []byte) (*Key, error) {
	k, err := NewFromDigest(namespace, set, digest)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return k, nil
	}
	uv, err := normalize(v)
	if err != nil {
		return nil, err
	}
	k.value = uv
	return k, nil
}

func validateNames(namespace, set string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidArgument)
	}
	if strings.ContainsRune(namespace, '/') || strings.ContainsRune(set, '/') {
		return fmt.Errorf("%w: namespace and set must not contain '/'", ErrInvalidArgument)
	}
	return nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case string:
		return t, nil
	case []byte:
		return append([]byte(nil), t...), nil
	case nil:
		return nil, fmt.Errorf("%w: user key is required", ErrInvalidArgument)
	}
	return nil, fmt.Errorf("%w: unsupported user key type %T", ErrInvalidArgument, v)
}

// Namespace returns the namespace.
func (k *Key) Namespace() string { return k.namespace }

// Set returns the set name, which may be empty.
func (k *Key) Set() string { return k.set }

// Value returns the user key: int64, string, []byte or nil when the key was
// rebuilt from a digest.
func (k *Key) Value() any {
	if b, ok := k.value.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return k.value
}

// HasValue reports whether the key carries a user value.
func (k *Key) HasValue() bool { return k.value != nil }

// Digest returns a copy of the digest.
func (k *Key) Digest() []byte {
	return append([]byte(nil), k.digest[:]...)
}

// DigestHex returns the digest as lowercase hex.
func (k *Key) DigestHex() string {
	return hex.EncodeToString(k.digest[:])
}

// Equal compares namespace, set and digest.
func (k *Key) Equal(o *Key) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.namespace == o.namespace && k.set == o.set && bytes.Equal(k.digest[:], o.digest[:])
}

func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	if k.value != nil {
		return fmt.Sprintf("%s:%s:%v", k.namespace, k.set, k.value)
	}
	return fmt.Sprintf("%s:%s:%s", k.namespace, k.set, k.DigestHex())
}
