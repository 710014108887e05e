package query

import (
	"fmt"
	"strings"

	"github.com/Ratio1/aerospike_native_go/pkg/policy"
)

// Order is a sort direction.
type Order int

const (
	Asc Order = iota
	Desc
)

func (o Order) String() string {
	if o == Desc {
		return "desc"
	}
	return "asc"
}

// OrderBy sorts results on one bin.
type OrderBy struct {
	Bin   string
	Order Order
}

// Apply names a UDF run over the results: an aggregation for queries, a
// per-record function for background scans.
type Apply struct {
	Module   string
	Function string
	Args     []any
}

// Statement describes a secondary index query.
type Statement struct {
	Namespace string
	Set       string
	Bins      []string
	Where     []Condition
	OrderBy   []OrderBy
	Apply     *Apply
}

// Validate checks the statement before it reaches a driver. The store
// evaluates a single index predicate per query.
func (s *Statement) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: statement is nil", ErrInvalidCondition)
	}
	if strings.TrimSpace(s.Namespace) == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidCondition)
	}
	if len(s.Where) > 1 {
		return fmt.Errorf("%w: only one where predicate is supported, got %d", ErrInvalidCondition, len(s.Where))
	}
	for _, ob := range s.OrderBy {
		if ob.Bin == "" {
			return fmt.Errorf("%w: order requires a bin name", ErrInvalidCondition)
		}
	}
	return validateApply(s.Apply)
}

// Filter returns the index predicate, if any.
func (s *Statement) Filter() (Condition, bool) {
	if len(s.Where) == 0 {
		return Condition{}, false
	}
	return s.Where[0], true
}

// ScanStatement describes a full scan of a namespace or set.
type ScanStatement struct {
	Namespace  string
	Set        string
	Bins       []string
	Percent    policy.Percent
	Priority   policy.ScanPriority
	Concurrent bool
	NoBins     bool
	Background bool
	Apply      *Apply
}

// Validate checks the statement before it reaches a driver.
func (s *ScanStatement) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: scan statement is nil", ErrInvalidCondition)
	}
	if strings.TrimSpace(s.Namespace) == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidCondition)
	}
	if s.Percent > 100 {
		return fmt.Errorf("%w: percent must be within 1..100, got %d", ErrInvalidCondition, s.Percent)
	}
	if s.Background != (s.Apply != nil) {
		return fmt.Errorf("%w: apply and background must be used together", ErrInvalidCondition)
	}
	return validateApply(s.Apply)
}

// EffectivePercent returns Percent, treating zero as 100.
func (s *ScanStatement) EffectivePercent() int {
	if s.Percent == 0 {
		return 100
	}
	return int(s.Percent)
}

// PercentFor resolves the sampling percentage. A percent set on the
// statement wins over the policy.
func (s *ScanStatement) PercentFor(p *policy.Scan) int {
	if s.Percent == 0 && p != nil && p.Percent != nil && *p.Percent > 0 {
		return int(*p.Percent)
	}
	return s.EffectivePercent()
}

// Sampled picks records by the first digest byte, so a given percent
// always selects the same records.
func Sampled(digest []byte, percent int) bool {
	if percent >= 100 {
		return true
	}
	if len(digest) == 0 {
		return false
	}
	return int(digest[0])*100/256 < percent
}

func validateApply(a *Apply) error {
	if a == nil {
		return nil
	}
	if strings.TrimSpace(a.Module) == "" || strings.TrimSpace(a.Function) == "" {
		return fmt.Errorf("%w: apply requires a module and a function", ErrInvalidCondition)
	}
	return nil
}
