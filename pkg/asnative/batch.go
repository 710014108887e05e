package asnative

import (
	"context"
	"fmt"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/stream"
)

// Batch reads many keys in one request.
type Batch struct {
	c *Client
}

// Batch returns the multi-key read interface.
func (c *Client) Batch() *Batch {
	return &Batch{c: c}
}

// Get reads keys in order. Each result is the record, or the record.Absent
// marker for a missing key. Keys that fail individually are logged and
// skipped.
func (b *Batch) Get(ctx context.Context, keys []*key.Key, opts policy.Map, consumer stream.Consumer, bins ...string) ([]stream.Result, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	for _, name := range bins {
		if err := record.ValidateBinName(name); err != nil {
			return nil, fmt.Errorf("asnative: batch get: %w", err)
		}
	}
	p, err := policy.ResolveBatch(opts)
	if err != nil {
		return nil, err
	}
	return stream.Run("batch_get", consumer, func(emit stream.Emit) error {
		if len(keys) == 0 {
			return nil
		}
		err := b.c.driver.BatchGet(ctx, keys, bins, p, emit)
		if err != nil {
			logger.Debug("asnative: batch get failed", "client", b.c.id, "keys", len(keys), "error", err)
		}
		return err
	})
}

// Exists checks keys in order. Found keys yield a record with metadata and
// no bins; missing keys yield the record.Absent marker.
func (b *Batch) Exists(ctx context.Context, keys []*key.Key, opts policy.Map, consumer stream.Consumer) ([]stream.Result, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	p, err := policy.ResolveBatch(opts)
	if err != nil {
		return nil, err
	}
	return stream.Run("batch_exists", consumer, func(emit stream.Emit) error {
		if len(keys) == 0 {
			return nil
		}
		err := b.c.driver.BatchExists(ctx, keys, p, emit)
		if err != nil {
			logger.Debug("asnative: batch exists failed", "client", b.c.id, "keys", len(keys), "error", err)
		}
		return err
	})
}

func checkKeys(keys []*key.Key) error {
	for i, k := range keys {
		if k == nil {
			return fmt.Errorf("asnative: %w: key %d is nil", key.ErrInvalidArgument, i)
		}
	}
	return nil
}
