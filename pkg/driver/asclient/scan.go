package asclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

func (d *Driver) BatchGet(ctx context.Context, keys []*key.Key, bins []string, p *policy.Batch, emit stream.Emit) error {
	return d.batch(ctx, keys, bins, false, p, emit)
}

func (d *Driver) BatchExists(ctx context.Context, keys []*key.Key, p *policy.Batch, emit stream.Emit) error {
	return d.batch(ctx, keys, nil, true, p, emit)
}

// batch issues one batch read and emits an item per key in request order,
// carrying each key's own result code.
func (d *Driver) batch(ctx context.Context, keys []*key.Key, bins []string, header bool, p *policy.Batch, emit stream.Emit) error {
	if len(keys) == 0 {
		return nil
	}
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	aks, err := asKeys(keys)
	if err != nil {
		return err
	}

	reads := make([]as.BatchRecordIfc, len(aks))
	for i, ak := range aks {
		if header {
			reads[i] = as.NewBatchReadHeader(nil, ak)
		} else {
			reads[i] = as.NewBatchRead(nil, ak, bins)
		}
	}
	bp := batchPolicy(p)
	bound(ctx, &bp.BasePolicy)
	if aerr := client.BatchOperate(bp, reads); aerr != nil {
		if !answered(reads) {
			return translate(aerr)
		}
		logger.Warn("asclient: batch completed with errors", "keys", len(keys), "error", aerr)
	}

	for i, r := range reads {
		br := r.BatchRec()
		code := codeOf(br.ResultCode)
		switch code {
		case status.OK:
			emit(stream.Item{Key: keys[i], Record: fromRecord(br.Record, keys[i], header), Status: status.OK})
		case status.KeyNotFound:
			emit(stream.Item{Key: keys[i], Status: status.KeyNotFound})
		default:
			var itemErr error = status.Newf(code, "asclient: batch item %s", keys[i])
			if br.Err != nil {
				itemErr = translate(br.Err)
			}
			emit(stream.Item{Key: keys[i], Status: code, Err: itemErr})
		}
	}
	return nil
}

func answered(reads []as.BatchRecordIfc) bool {
	for _, r := range reads {
		if r.BatchRec().ResultCode != types.NO_RESPONSE {
			return true
		}
	}
	return false
}

// Query runs a secondary index query, or an aggregation when the statement
// applies a stream UDF. Aggregation results are emitted as values.
func (d *Driver) Query(ctx context.Context, stmt *query.Statement, p *policy.Query, emit stream.Emit) error {
	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("asclient: %w", err)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	st := as.NewStatement(stmt.Namespace, stmt.Set, stmt.Bins...)
	if c, ok := stmt.Filter(); ok {
		if aerr := st.SetFilter(filterFor(c)); aerr != nil {
			return translate(aerr)
		}
	}
	qp := queryPolicy(p)
	bound(ctx, &qp.BasePolicy)

	if stmt.Apply != nil {
		rs, aerr := client.QueryAggregate(qp, st, stmt.Apply.Module, stmt.Apply.Function, udfArgs(stmt.Apply.Args)...)
		if aerr != nil {
			return translate(aerr)
		}
		return drain(ctx, rs, func(rec *as.Record) {
			v := fromNative(rec.Bins["SUCCESS"])
			emit(stream.Item{Value: &v, Status: status.OK})
		})
	}

	rs, aerr := client.Query(qp, st)
	if aerr != nil {
		return translate(aerr)
	}
	return drain(ctx, rs, func(rec *as.Record) {
		w := fromRecord(rec, nil, false)
		emit(stream.Item{Key: w.Key, Record: w, Status: status.OK})
	})
}

func filterFor(c query.Condition) *as.Filter {
	ct := collectionType(c.Collection)
	if c.Type == query.IndexString {
		if ct == as.ICT_DEFAULT {
			return as.NewEqualFilter(c.Bin, c.Min)
		}
		return as.NewContainsFilter(c.Bin, ct, c.Min)
	}
	lo, hi := c.Bounds()
	if ct == as.ICT_DEFAULT {
		if lo == hi {
			return as.NewEqualFilter(c.Bin, lo)
		}
		return as.NewRangeFilter(c.Bin, lo, hi)
	}
	return as.NewContainsRangeFilter(c.Bin, ct, lo, hi)
}

func collectionType(c query.CollectionType) as.IndexCollectionType {
	switch c {
	case query.CollectionList:
		return as.ICT_LIST
	case query.CollectionMapKeys:
		return as.ICT_MAPKEYS
	case query.CollectionMapValues:
		return as.ICT_MAPVALUES
	}
	return as.ICT_DEFAULT
}

// Scan reads every record of a namespace or set. Sampling is applied on
// the digest so a given percent selects the same records as the mock.
func (d *Driver) Scan(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan, emit stream.Emit) error {
	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("asclient: %w", err)
	}
	if stmt.Background {
		return fmt.Errorf("asclient: %w: background scans are started with ScanBackground", query.ErrInvalidCondition)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	noBins := stmt.NoBins
	if p != nil {
		noBins = noBins || policy.Or(p.NoBins, false)
	}
	sp := scanPolicy(p, stmt.Concurrent, noBins)
	bound(ctx, &sp.BasePolicy)
	percent := stmt.PercentFor(p)

	rs, aerr := client.ScanAll(sp, stmt.Namespace, stmt.Set, stmt.Bins...)
	if aerr != nil {
		return translate(aerr)
	}
	return drain(ctx, rs, func(rec *as.Record) {
		if rec.Key != nil && !query.Sampled(rec.Key.Digest(), percent) {
			return
		}
		w := fromRecord(rec, nil, noBins)
		emit(stream.Item{Key: w.Key, Record: w, Status: status.OK})
	})
}

// ScanBackground applies a record UDF to every record server side and
// returns the job id.
func (d *Driver) ScanBackground(ctx context.Context, stmt *query.ScanStatement, p *policy.Scan) (uint64, error) {
	if err := stmt.Validate(); err != nil {
		return 0, fmt.Errorf("asclient: %w", err)
	}
	if !stmt.Background {
		return 0, fmt.Errorf("asclient: %w: statement is not a background scan", query.ErrInvalidCondition)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return 0, err
	}
	if pct := stmt.PercentFor(p); pct < 100 {
		logger.Debug("asclient: background scans run over every record", "percent", pct)
	}

	st := as.NewStatement(stmt.Namespace, stmt.Set, stmt.Bins...)
	qp := as.NewQueryPolicy()
	if p != nil {
		applyBase(&qp.BasePolicy, p.Timeout, nil, nil)
	}
	bound(ctx, &qp.BasePolicy)
	task, aerr := client.ExecuteUDF(qp, st, stmt.Apply.Module, stmt.Apply.Function, udfArgs(stmt.Apply.Args)...)
	if aerr != nil {
		return 0, translate(aerr)
	}
	return task.TaskId(), nil
}

// ScanInfo asks every node for the job and folds the answers: the job is
// in progress while any node is still running it.
func (d *Driver) ScanInfo(ctx context.Context, id uint64, p *policy.Info) (*driver.ScanInfo, error) {
	client, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	ip := infoPolicy(p)
	cmd := "query-show:trid=" + strconv.FormatUint(id, 10)

	var jobs []driver.ScanInfo
	for _, node := range client.GetNodes() {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		resp, aerr := node.RequestInfo(ip, cmd)
		if aerr != nil {
			return nil, translate(aerr)
		}
		if job, ok := parseJobInfo(resp[cmd]); ok {
			jobs = append(jobs, job)
		}
	}
	info := foldJobs(jobs)
	return &info, nil
}

// parseJobInfo reads one node's colon separated job description.
func parseJobInfo(resp string) (driver.ScanInfo, bool) {
	resp = strings.TrimSpace(resp)
	if resp == "" || strings.HasPrefix(strings.ToUpper(resp), "ERROR") {
		return driver.ScanInfo{}, false
	}
	var info driver.ScanInfo
	for _, field := range strings.Split(resp, ":") {
		name, val, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch name {
		case "status":
			switch {
			case strings.HasPrefix(val, "active"):
				info.Status = driver.ScanInProgress
			case val == "done(ok)" || val == "done":
				info.Status = driver.ScanCompleted
			case strings.HasPrefix(val, "done"):
				info.Status = driver.ScanAborted
			}
		case "job-progress":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				info.ProgressPercent = int(f)
			}
		case "recs-succeeded", "recs-read":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				info.RecordsScanned += n
			}
		}
	}
	return info, true
}

func foldJobs(jobs []driver.ScanInfo) driver.ScanInfo {
	if len(jobs) == 0 {
		return driver.ScanInfo{Status: driver.ScanUndefined}
	}
	out := driver.ScanInfo{Status: driver.ScanCompleted, ProgressPercent: 100}
	for _, j := range jobs {
		out.RecordsScanned += j.RecordsScanned
		if j.ProgressPercent < out.ProgressPercent {
			out.ProgressPercent = j.ProgressPercent
		}
		switch j.Status {
		case driver.ScanInProgress:
			out.Status = driver.ScanInProgress
		case driver.ScanAborted:
			if out.Status != driver.ScanInProgress {
				out.Status = driver.ScanAborted
			}
		}
	}
	return out
}

func udfArgs(args []any) []as.Value {
	out := make([]as.Value, 0, len(args))
	for _, a := range args {
		out = append(out, as.NewValue(a))
	}
	return out
}

// drain feeds a recordset to fn until it ends, fails or ctx is done.
func drain(ctx context.Context, rs *as.Recordset, fn func(*as.Record)) error {
	defer rs.Close()
	results := rs.Results()
	for {
		select {
		case <-ctx.Done():
			return ctxErr(ctx)
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if res.Err != nil {
				return translate(res.Err)
			}
			fn(res.Record)
		}
	}
}
