package asnative

import (
	"context"
	"fmt"

	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

// Scan builds a full scan of a namespace or set.
type Scan struct {
	c          *Client
	stmt       query.ScanStatement
	percentErr error
}

// Scan starts a scan over namespace and set. An empty set scans the whole
// namespace.
func (c *Client) Scan(namespace, set string) *Scan {
	return &Scan{c: c, stmt: query.ScanStatement{Namespace: namespace, Set: set}}
}

func (s *Scan) Select(bins ...string) *Scan {
	s.stmt.Bins = append(s.stmt.Bins, bins...)
	return s
}

// Percent samples the given share of records, 1 to 100. The last call
// wins, so a valid percent replaces an earlier invalid one.
func (s *Scan) Percent(p int) *Scan {
	if p < 1 || p > 100 {
		s.percentErr = &policy.InvalidValueError{Field: "percent", Value: p}
		return s
	}
	s.percentErr = nil
	s.stmt.Percent = policy.Percent(p)
	return s
}

func (s *Scan) Priority(p policy.ScanPriority) *Scan {
	s.stmt.Priority = p
	return s
}

// Concurrent scans all nodes in parallel instead of one at a time.
func (s *Scan) Concurrent(on bool) *Scan {
	s.stmt.Concurrent = on
	return s
}

// NoBins returns record metadata only.
func (s *Scan) NoBins(on bool) *Scan {
	s.stmt.NoBins = on
	return s
}

// Background marks the scan as a server side job. It requires Apply and is
// started with ExecBackground.
func (s *Scan) Background(on bool) *Scan {
	s.stmt.Background = on
	return s
}

// Apply names the record UDF a background scan runs on every record.
func (s *Scan) Apply(module, function string, args ...any) *Scan {
	s.stmt.Apply = &query.Apply{Module: module, Function: function, Args: args}
	return s
}

// Statement returns a copy of the statement built so far.
func (s *Scan) Statement() query.ScanStatement {
	return s.stmt
}

func (s *Scan) validate() error {
	if s.percentErr != nil {
		return s.percentErr
	}
	if err := s.stmt.Validate(); err != nil {
		return fmt.Errorf("asnative: scan: %w", err)
	}
	return nil
}

// Exec runs a foreground scan, delivering records to consumer or
// returning them.
func (s *Scan) Exec(ctx context.Context, opts policy.Map, consumer stream.Consumer) ([]stream.Result, error) {
	if s.stmt.Background {
		return nil, fmt.Errorf("asnative: %w: background scans are started with ExecBackground", query.ErrInvalidCondition)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	p, err := policy.ResolveScan(opts)
	if err != nil {
		return nil, err
	}
	stmt := s.stmt
	return stream.Run("scan", consumer, func(emit stream.Emit) error {
		err := s.c.driver.Scan(ctx, &stmt, p, emit)
		if err != nil {
			logger.Debug("asnative: scan failed", "client", s.c.id, "namespace", stmt.Namespace, "set", stmt.Set, "error", err)
		}
		return err
	})
}

// ExecBackground starts the scan as a server side job applying the UDF set
// with Apply, and returns the job id for Client.ScanInfo.
func (s *Scan) ExecBackground(ctx context.Context, opts policy.Map) (uint64, error) {
	if s.stmt.Apply == nil {
		return 0, fmt.Errorf("asnative: %w: background scan requires Apply", query.ErrInvalidCondition)
	}
	s.stmt.Background = true
	if err := s.validate(); err != nil {
		return 0, err
	}
	p, err := policy.ResolveScan(opts)
	if err != nil {
		return 0, err
	}
	stmt := s.stmt
	id, err := s.c.driver.ScanBackground(ctx, &stmt, p)
	if err != nil {
		logger.Debug("asnative: background scan failed", "client", s.c.id, "namespace", stmt.Namespace, "error", err)
		return 0, err
	}
	logger.Debug("asnative: background scan started", "client", s.c.id, "scan", id, "module", stmt.Apply.Module, "function", stmt.Apply.Function)
	return id, nil
}
