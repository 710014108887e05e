// Package query describes secondary index predicates and the statements run
// by queries and scans.
package query

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidCondition is returned for malformed predicates and statements.
var ErrInvalidCondition = errors.New("query: invalid condition")

// IndexType is the data type of a secondary index.
type IndexType int

const (
	IndexNumeric IndexType = iota
	IndexString
)

func (t IndexType) String() string {
	switch t {
	case IndexNumeric:
		return "NUMERIC"
	case IndexString:
		return "STRING"
	}
	return fmt.Sprintf("IndexType(%d)", int(t))
}

// ParseIndexType accepts "numeric" or "string" in any case.
func ParseIndexType(s string) (IndexType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NUMERIC":
		return IndexNumeric, nil
	case "STRING":
		return IndexString, nil
	}
	return 0, fmt.Errorf("%w: unknown index type %q", ErrInvalidCondition, s)
}

// CollectionType selects which part of a collection bin is indexed.
type CollectionType int

const (
	CollectionDefault CollectionType = iota
	CollectionList
	CollectionMapKeys
	CollectionMapValues
)

func (c CollectionType) String() string {
	switch c {
	case CollectionDefault:
		return "DEFAULT"
	case CollectionList:
		return "LIST"
	case CollectionMapKeys:
		return "MAPKEYS"
	case CollectionMapValues:
		return "MAPVALUES"
	}
	return fmt.Sprintf("CollectionType(%d)", int(c))
}

// ParseCollectionType accepts the collection names in any case. An empty
// string selects CollectionDefault.
func ParseCollectionType(s string) (CollectionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DEFAULT":
		return CollectionDefault, nil
	case "LIST":
		return CollectionList, nil
	case "MAPKEYS":
		return CollectionMapKeys, nil
	case "MAPVALUES":
		return CollectionMapValues, nil
	}
	return 0, fmt.Errorf("%w: unknown collection type %q", ErrInvalidCondition, s)
}

// Condition is a predicate on one indexed bin. Min and Max are int64 for a
// numeric predicate. A string predicate carries Min only and matches by
// equality. A numeric predicate with Max unset also matches by equality.
type Condition struct {
	Bin        string
	Type       IndexType
	Collection CollectionType
	Min        any
	Max        any
}

// NewCondition builds a predicate. max may be nil for equality; otherwise
// min and max must both be integers.
func NewCondition(bin string, min, max any) (Condition, error) {
	if strings.TrimSpace(bin) == "" {
		return Condition{}, fmt.Errorf("%w: bin name is required", ErrInvalidCondition)
	}
	c := Condition{Bin: bin}
	switch lo := min.(type) {
	case string:
		if max != nil {
			return Condition{}, fmt.Errorf("%w: string predicates on %q support equality only", ErrInvalidCondition, bin)
		}
		c.Type = IndexString
		c.Min = lo
		return c, nil
	default:
		n, ok := toInt64(min)
		if !ok {
			return Condition{}, fmt.Errorf("%w: unsupported predicate value %T on %q", ErrInvalidCondition, min, bin)
		}
		c.Type = IndexNumeric
		c.Min = n
	}
	if max == nil {
		return c, nil
	}
	hi, ok := toInt64(max)
	if !ok {
		return Condition{}, fmt.Errorf("%w: min and max types differ on %q (%T, %T)", ErrInvalidCondition, bin, min, max)
	}
	if hi < c.Min.(int64) {
		return Condition{}, fmt.Errorf("%w: min %d exceeds max %d on %q", ErrInvalidCondition, c.Min, hi, bin)
	}
	c.Max = hi
	return c, nil
}

// Equal builds an equality predicate on an integer or string.
func Equal(bin string, v any) (Condition, error) {
	return NewCondition(bin, v, nil)
}

// Range builds an inclusive integer range predicate.
func Range(bin string, min, max int64) (Condition, error) {
	return NewCondition(bin, min, max)
}

// On returns a copy of c that targets a collection index.
func (c Condition) On(collection CollectionType) Condition {
	c.Collection = collection
	return c
}

// IsRange reports whether c is a numeric range.
func (c Condition) IsRange() bool {
	return c.Max != nil
}

// Bounds returns the inclusive numeric range. Equality yields min == max.
func (c Condition) Bounds() (int64, int64) {
	lo, _ := c.Min.(int64)
	if hi, ok := c.Max.(int64); ok {
		return lo, hi
	}
	return lo, lo
}

// Matches evaluates c against a decoded bin value.
func (c Condition) Matches(bin any) bool {
	switch c.Collection {
	case CollectionList:
		list, ok := bin.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if c.matchScalar(v) {
				return true
			}
		}
	case CollectionMapKeys, CollectionMapValues:
		useKeys := c.Collection == CollectionMapKeys
		switch m := bin.(type) {
		case map[string]any:
			for k, v := range m {
				if (useKeys && c.matchScalar(k)) || (!useKeys && c.matchScalar(v)) {
					return true
				}
			}
		case map[any]any:
			for k, v := range m {
				if (useKeys && c.matchScalar(k)) || (!useKeys && c.matchScalar(v)) {
					return true
				}
			}
		}
	default:
		return c.matchScalar(bin)
	}
	return false
}

func (c Condition) matchScalar(v any) bool {
	if c.Type == IndexString {
		s, ok := v.(string)
		return ok && s == c.Min
	}
	n, ok := toInt64(v)
	if !ok {
		return false
	}
	lo, hi := c.Bounds()
	return n >= lo && n <= hi
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}
