package asnative

import (
	"context"
	"fmt"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
)

// CreateIndex builds a secondary index on bin and blocks until it is ready
// or the info policy timeout elapses. Creating an existing index is an
// IndexFound *status.Error.
func (c *Client) CreateIndex(ctx context.Context, namespace, set, bin, name string, typ query.IndexType, opts policy.Map) error {
	return c.CreateCollectionIndex(ctx, namespace, set, bin, name, typ, query.CollectionDefault, opts)
}

// CreateCollectionIndex indexes the elements, map keys or map values of a
// collection bin.
func (c *Client) CreateCollectionIndex(ctx context.Context, namespace, set, bin, name string, typ query.IndexType, coll query.CollectionType, opts policy.Map) error {
	idx := driver.IndexDescriptor{
		Namespace:  namespace,
		Set:        set,
		Bin:        bin,
		Name:       name,
		Type:       typ,
		Collection: coll,
	}
	if err := idx.Validate(); err != nil {
		return fmt.Errorf("asnative: %w", err)
	}
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return err
	}
	if err := c.driver.CreateIndex(ctx, idx, p); err != nil {
		logger.Debug("asnative: create index failed", "client", c.id, "index", name, "error", err)
		return err
	}
	logger.Info("asnative: index created", "client", c.id, "namespace", namespace, "index", name, "type", typ.String())
	return nil
}

// DropIndex removes the named index from namespace.
func (c *Client) DropIndex(ctx context.Context, namespace, name string, opts policy.Map) error {
	if namespace == "" || name == "" {
		return fmt.Errorf("asnative: %w: drop index requires namespace and name", driver.ErrInvalidArgument)
	}
	p, err := policy.ResolveInfo(opts)
	if err != nil {
		return err
	}
	if err := c.driver.DropIndex(ctx, namespace, name, p); err != nil {
		return fmt.Errorf("asnative: drop index %q: %w", name, err)
	}
	return nil
}
