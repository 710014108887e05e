package asnative

import (
	"cmp"
	"context"
	"fmt"
	"sort"

	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

// Query builds a secondary index query. Builder methods return the receiver
// so calls can be chained; the statement is validated by Exec.
type Query struct {
	c    *Client
	stmt query.Statement
}

// Query starts a query over namespace and set. An empty set queries the
// whole namespace.
func (c *Client) Query(namespace, set string) *Query {
	return &Query{c: c, stmt: query.Statement{Namespace: namespace, Set: set}}
}

// Select restricts the bins returned.
func (q *Query) Select(bins ...string) *Query {
	q.stmt.Bins = append(q.stmt.Bins, bins...)
	return q
}

// Where adds index predicates. The store evaluates one predicate per query.
func (q *Query) Where(conds ...query.Condition) *Query {
	q.stmt.Where = append(q.stmt.Where, conds...)
	return q
}

// Order sorts the results on bin. Later calls break ties of earlier ones.
func (q *Query) Order(bin string, o query.Order) *Query {
	q.stmt.OrderBy = append(q.stmt.OrderBy, query.OrderBy{Bin: bin, Order: o})
	return q
}

// Apply runs an aggregation UDF over the matching records. Its results are
// delivered as values rather than records.
func (q *Query) Apply(module, function string, args ...any) *Query {
	q.stmt.Apply = &query.Apply{Module: module, Function: function, Args: args}
	return q
}

// Statement returns a copy of the statement built so far.
func (q *Query) Statement() query.Statement {
	return q.stmt
}

// Exec runs the query. Without ordering, results stream to consumer as the
// driver produces them. With ordering, all results are collected and sorted
// first, then delivered in sorted order.
func (q *Query) Exec(ctx context.Context, opts policy.Map, consumer stream.Consumer) ([]stream.Result, error) {
	stmt := q.stmt
	if err := stmt.Validate(); err != nil {
		return nil, fmt.Errorf("asnative: query: %w", err)
	}
	p, err := policy.ResolveQuery(opts)
	if err != nil {
		return nil, err
	}
	drive := func(emit stream.Emit) error {
		err := q.c.driver.Query(ctx, &stmt, p, emit)
		if err != nil {
			logger.Debug("asnative: query failed", "client", q.c.id, "namespace", stmt.Namespace, "set", stmt.Set, "error", err)
		}
		return err
	}
	if len(stmt.OrderBy) == 0 {
		return stream.Run("query", consumer, drive)
	}

	results, err := stream.Run("query", nil, drive)
	if err != nil {
		return nil, err
	}
	sortResults(results, stmt.OrderBy)
	if consumer == nil {
		return results, nil
	}
	for _, res := range results {
		consumer(res)
	}
	return nil, nil
}

// sortResults orders records by their bins and aggregation values by the
// value itself. Missing bins sort last in either direction.
func sortResults(results []stream.Result, order []query.OrderBy) {
	sort.SliceStable(results, func(i, j int) bool {
		for _, ob := range order {
			a, aok := sortValue(results[i], ob.Bin)
			b, bok := sortValue(results[j], ob.Bin)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return false
			case !bok:
				return true
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if ob.Order == query.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func sortValue(res stream.Result, bin string) (any, bool) {
	if res.Record == nil {
		return res.Value, res.Value != nil
	}
	if !res.Record.Found() {
		return nil, false
	}
	return res.Record.Bin(bin)
}

// compareValues orders numbers before strings before everything else,
// which compares by its printed form.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		if x, ok := a.(int64); ok {
			if y, ok := b.(int64); ok {
				return cmp.Compare(x, y)
			}
		}
		return cmp.Compare(toFloat(a), toFloat(b))
	case 1:
		return cmp.Compare(a.(string), b.(string))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case int64, float64, int:
		return 0
	case string:
		return 1
	}
	return 2
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
