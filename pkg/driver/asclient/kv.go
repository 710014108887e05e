package asclient

import (
	"context"

	as "github.com/aerospike/aerospike-client-go/v7"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/operation"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

func (d *Driver) Put(ctx context.Context, k *key.Key, bins record.Bins, p *policy.Write) error {
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	ak, err := asKey(k)
	if err != nil {
		return err
	}
	wp := writePolicy(p)
	bound(ctx, &wp.BasePolicy)
	return translate(client.PutBins(wp, ak, toBins(bins)...))
}

func (d *Driver) Get(ctx context.Context, k *key.Key, bins []string, p *policy.Read) (*record.Wire, error) {
	client, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	ak, err := asKey(k)
	if err != nil {
		return nil, err
	}
	bp := readPolicy(p)
	bound(ctx, bp)
	rec, aerr := client.Get(bp, ak, bins...)
	if aerr != nil {
		return nil, translate(aerr)
	}
	if rec == nil {
		return nil, status.Newf(status.KeyNotFound, "asclient: %s", k)
	}
	return fromRecord(rec, k, false), nil
}

func (d *Driver) Exists(ctx context.Context, k *key.Key, p *policy.Read) (bool, error) {
	client, err := d.conn(ctx)
	if err != nil {
		return false, err
	}
	ak, err := asKey(k)
	if err != nil {
		return false, err
	}
	bp := readPolicy(p)
	bound(ctx, bp)
	found, aerr := client.Exists(bp, ak)
	if aerr != nil {
		return false, translate(aerr)
	}
	return found, nil
}

// Remove reports KeyNotFound when the record did not exist.
func (d *Driver) Remove(ctx context.Context, k *key.Key, p *policy.Remove) error {
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	ak, err := asKey(k)
	if err != nil {
		return err
	}
	wp := removePolicy(p)
	bound(ctx, &wp.BasePolicy)
	existed, aerr := client.Delete(wp, ak)
	if aerr != nil {
		return translate(aerr)
	}
	if !existed {
		return status.Newf(status.KeyNotFound, "asclient: %s", k)
	}
	return nil
}

func (d *Driver) Operate(ctx context.Context, k *key.Key, ops *operation.List, p *policy.Operate) (*record.Wire, error) {
	if ops == nil || len(ops.Ops) == 0 {
		return nil, status.New(status.ParameterError, "asclient: operation list is empty")
	}
	client, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	ak, err := asKey(k)
	if err != nil {
		return nil, err
	}
	aops, err := toOps(ops)
	if err != nil {
		return nil, err
	}
	wp := operatePolicy(p)
	bound(ctx, &wp.BasePolicy)
	rec, aerr := client.Operate(wp, ak, aops...)
	if aerr != nil {
		return nil, translate(aerr)
	}
	if !ops.ExpectsRecord {
		return nil, nil
	}
	if rec == nil {
		return nil, status.Newf(status.KeyNotFound, "asclient: %s", k)
	}
	return fromRecord(rec, k, false), nil
}

func toOps(list *operation.List) ([]*as.Operation, error) {
	out := make([]*as.Operation, 0, len(list.Ops))
	for i, op := range list.Ops {
		switch op.Kind {
		case operation.KindRead:
			out = append(out, as.GetBinOp(op.Bin))
		case operation.KindWrite:
			out = append(out, as.PutOp(as.NewBin(op.Bin, toNative(op.Value))))
		case operation.KindIncrement:
			out = append(out, as.AddOp(as.NewBin(op.Bin, op.Value.Int)))
		case operation.KindAppend:
			out = append(out, as.AppendOp(as.NewBin(op.Bin, op.Value.Str)))
		case operation.KindPrepend:
			out = append(out, as.PrependOp(as.NewBin(op.Bin, op.Value.Str)))
		case operation.KindTouch:
			out = append(out, as.TouchOp())
		default:
			return nil, status.Newf(status.ParameterError, "asclient: operation %d has unknown kind %s", i, op.Kind)
		}
	}
	return out, nil
}
