package asclient

import (
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"

	"github.com/Ratio1/aerospike_native_go/pkg/policy"
)

func applyBase(bp *as.BasePolicy, timeout *time.Duration, retry *policy.Retry, keyMode *policy.KeyMode) {
	if timeout != nil && *timeout > 0 {
		bp.TotalTimeout = *timeout
		if bp.SocketTimeout > *timeout {
			bp.SocketTimeout = *timeout
		}
	}
	if retry != nil {
		bp.MaxRetries = int(*retry)
	}
	if keyMode != nil {
		bp.SendKey = *keyMode == policy.KeySend
	}
}

func applyRead(bp *as.BasePolicy, replica *policy.Replica, consistency *policy.Consistency) {
	if replica != nil {
		switch *replica {
		case policy.ReplicaAny:
			bp.ReplicaPolicy = as.MASTER_PROLES
		default:
			bp.ReplicaPolicy = as.MASTER
		}
	}
	if consistency != nil {
		switch *consistency {
		case policy.ConsistencyAll:
			bp.ReadModeAP = as.ReadModeAPAll
		default:
			bp.ReadModeAP = as.ReadModeAPOne
		}
	}
}

func readPolicy(p *policy.Read) *as.BasePolicy {
	bp := as.NewPolicy()
	if p == nil {
		return bp
	}
	applyBase(bp, p.Timeout, p.Retry, p.Key)
	applyRead(bp, p.Replica, p.Consistency)
	return bp
}

func writePolicy(p *policy.Write) *as.WritePolicy {
	wp := as.NewWritePolicy(0, as.TTLServerDefault)
	if p == nil {
		return wp
	}
	applyBase(&wp.BasePolicy, p.Timeout, p.Retry, p.Key)
	applyWrite(wp, p.Gen, p.Generation, p.CommitLevel, p.TTL)
	if p.Exists != nil {
		wp.RecordExistsAction = existsAction(*p.Exists)
	}
	return wp
}

func operatePolicy(p *policy.Operate) *as.WritePolicy {
	wp := as.NewWritePolicy(0, as.TTLServerDefault)
	if p == nil {
		return wp
	}
	applyBase(&wp.BasePolicy, p.Timeout, p.Retry, p.Key)
	applyRead(&wp.BasePolicy, p.Replica, p.Consistency)
	applyWrite(wp, p.Gen, p.Generation, p.CommitLevel, p.TTL)
	return wp
}

func removePolicy(p *policy.Remove) *as.WritePolicy {
	wp := as.NewWritePolicy(0, as.TTLServerDefault)
	if p == nil {
		return wp
	}
	applyBase(&wp.BasePolicy, p.Timeout, p.Retry, p.Key)
	applyWrite(wp, p.Gen, p.Generation, p.CommitLevel, nil)
	return wp
}

func applyWrite(wp *as.WritePolicy, gen *policy.GenMode, generation *uint32, commit *policy.CommitLevel, ttl *policy.Expiration) {
	if gen != nil {
		switch *gen {
		case policy.GenEQ:
			wp.GenerationPolicy = as.EXPECT_GEN_EQUAL
		case policy.GenGT:
			wp.GenerationPolicy = as.EXPECT_GEN_GT
		default:
			wp.GenerationPolicy = as.NONE
		}
	}
	if generation != nil {
		wp.Generation = *generation
	}
	if commit != nil {
		if *commit == policy.CommitMaster {
			wp.CommitLevel = as.COMMIT_MASTER
		} else {
			wp.CommitLevel = as.COMMIT_ALL
		}
	}
	if ttl != nil {
		wp.Expiration = expiration(*ttl)
	}
}

func existsAction(e policy.ExistsMode) as.RecordExistsAction {
	switch e {
	case policy.ExistsCreate:
		return as.CREATE_ONLY
	case policy.ExistsUpdate:
		return as.UPDATE_ONLY
	case policy.ExistsReplace:
		return as.REPLACE_ONLY
	case policy.ExistsCreateOrReplace:
		return as.REPLACE
	}
	return as.UPDATE
}

// expiration maps the signed TTL sentinels onto the client's unsigned ones.
func expiration(ttl policy.Expiration) uint32 {
	switch {
	case ttl == policy.TTLNeverExpire:
		return as.TTLDontExpire
	case ttl == policy.TTLDontUpdate:
		return as.TTLDontUpdate
	case ttl <= 0:
		return as.TTLServerDefault
	}
	return uint32(ttl)
}

func batchPolicy(p *policy.Batch) *as.BatchPolicy {
	bp := as.NewBatchPolicy()
	if p == nil {
		return bp
	}
	applyBase(&bp.BasePolicy, p.Timeout, nil, nil)
	if p.Concurrent != nil {
		if *p.Concurrent {
			bp.ConcurrentNodes = 0
		} else {
			bp.ConcurrentNodes = 1
		}
	}
	if p.AllowInline != nil {
		bp.AllowInline = *p.AllowInline
	}
	return bp
}

func scanPolicy(p *policy.Scan, concurrent, noBins bool) *as.ScanPolicy {
	sp := as.NewScanPolicy()
	sp.IncludeBinData = !noBins
	if !concurrent {
		sp.MaxConcurrentNodes = 1
	}
	if p == nil {
		return sp
	}
	applyBase(&sp.BasePolicy, p.Timeout, nil, nil)
	if p.Concurrent != nil && *p.Concurrent {
		sp.MaxConcurrentNodes = 0
	}
	if p.NoBins != nil && *p.NoBins {
		sp.IncludeBinData = false
	}
	return sp
}

func queryPolicy(p *policy.Query) *as.QueryPolicy {
	qp := as.NewQueryPolicy()
	if p == nil {
		return qp
	}
	applyBase(&qp.BasePolicy, p.Timeout, nil, nil)
	return qp
}

func infoPolicy(p *policy.Info) *as.InfoPolicy {
	ip := as.NewInfoPolicy()
	if p != nil && p.Timeout != nil && *p.Timeout > 0 {
		ip.Timeout = *p.Timeout
	}
	return ip
}

// adminPolicy is the write policy the client expects for index and UDF
// management.
func adminPolicy(p *policy.Info) *as.WritePolicy {
	wp := as.NewWritePolicy(0, as.TTLServerDefault)
	if p != nil {
		applyBase(&wp.BasePolicy, p.Timeout, nil, nil)
	}
	return wp
}
