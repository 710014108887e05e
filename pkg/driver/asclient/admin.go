package asclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

// CreateIndex creates the index and waits for the build to finish.
func (d *Driver) CreateIndex(ctx context.Context, idx driver.IndexDescriptor, p *policy.Info) error {
	if err := idx.Validate(); err != nil {
		return fmt.Errorf("asclient: %w", err)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := withInfoTimeout(ctx, p)
	defer cancel()

	wp := adminPolicy(p)
	bound(ctx, &wp.BasePolicy)
	var task *as.IndexTask
	var aerr as.Error
	if idx.Collection == query.CollectionDefault {
		task, aerr = client.CreateIndex(wp, idx.Namespace, idx.Set, idx.Name, idx.Bin, indexType(idx.Type))
	} else {
		task, aerr = client.CreateComplexIndex(wp, idx.Namespace, idx.Set, idx.Name, idx.Bin, indexType(idx.Type), collectionType(idx.Collection))
	}
	if aerr != nil {
		return translate(aerr)
	}
	return await(ctx, task.OnComplete())
}

func (d *Driver) DropIndex(ctx context.Context, namespace, name string, p *policy.Info) error {
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	wp := adminPolicy(p)
	bound(ctx, &wp.BasePolicy)
	return translate(client.DropIndex(wp, namespace, "", name))
}

func indexType(t query.IndexType) as.IndexType {
	if t == query.IndexString {
		return as.STRING
	}
	return as.NUMERIC
}

// UDFPut registers a module under name and waits until every node has it.
func (d *Driver) UDFPut(ctx context.Context, name string, content []byte, lang driver.UDFLanguage, p *policy.Info) error {
	if lang != driver.UDFLua {
		return fmt.Errorf("asclient: udf language %s: %w", lang, driver.ErrUnsupportedFeature)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := withInfoTimeout(ctx, p)
	defer cancel()

	wp := adminPolicy(p)
	bound(ctx, &wp.BasePolicy)
	task, aerr := client.RegisterUDF(wp, content, name, as.LUA)
	if aerr != nil {
		return translate(aerr)
	}
	return await(ctx, task.OnComplete())
}

func (d *Driver) UDFRemove(ctx context.Context, name string, p *policy.Info) error {
	files, err := d.UDFList(ctx, p)
	if err != nil {
		return err
	}
	if !hasModule(files, name) {
		return fmt.Errorf("asclient: %q: %w", name, driver.ErrUDFNotFound)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := withInfoTimeout(ctx, p)
	defer cancel()

	wp := adminPolicy(p)
	bound(ctx, &wp.BasePolicy)
	task, aerr := client.RemoveUDF(wp, name)
	if aerr != nil {
		return translate(aerr)
	}
	return await(ctx, task.OnComplete())
}

// UDFList returns the registered modules sorted by name, without content.
func (d *Driver) UDFList(ctx context.Context, p *policy.Info) ([]driver.UDFFile, error) {
	client, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	bp := as.NewPolicy()
	applyBase(bp, infoTimeout(p), nil, nil)
	bound(ctx, bp)
	udfs, aerr := client.ListUDF(bp)
	if aerr != nil {
		return nil, translate(aerr)
	}
	out := make([]driver.UDFFile, 0, len(udfs))
	for _, u := range udfs {
		if u == nil || u.Language != as.LUA {
			continue
		}
		out = append(out, driver.UDFFile{Name: u.Filename, Type: driver.UDFLua, Hash: u.Hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UDFGet fetches a module with its source through the info protocol.
func (d *Driver) UDFGet(ctx context.Context, name string, lang driver.UDFLanguage, p *policy.Info) (*driver.UDFFile, error) {
	if lang != driver.UDFLua {
		return nil, fmt.Errorf("asclient: udf language %s: %w", lang, driver.ErrUnsupportedFeature)
	}
	client, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	nodes := client.GetNodes()
	if len(nodes) == 0 {
		return nil, driver.ErrNotConnected
	}
	cmd := "udf-get:filename=" + name
	resp, aerr := nodes[0].RequestInfo(infoPolicy(p), cmd)
	if aerr != nil {
		return nil, translate(aerr)
	}
	content, err := parseUDFGet(resp[cmd])
	if err != nil {
		return nil, fmt.Errorf("asclient: %q: %w", name, err)
	}

	file := &driver.UDFFile{Name: name, Type: driver.UDFLua, Content: content}
	if files, err := d.UDFList(ctx, p); err == nil {
		for _, f := range files {
			if f.Name == name {
				file.Hash = f.Hash
			}
		}
	}
	return file, nil
}

// parseUDFGet decodes a "gen=..;type=LUA;content=<base64>" response.
func parseUDFGet(resp string) ([]byte, error) {
	fields := map[string]string{}
	for _, part := range strings.Split(strings.TrimSpace(resp), ";") {
		if k, v, ok := strings.Cut(part, "="); ok {
			fields[k] = v
		}
	}
	if _, failed := fields["error"]; failed {
		return nil, driver.ErrUDFNotFound
	}
	raw, ok := fields["content"]
	if !ok {
		return nil, driver.ErrUDFNotFound
	}
	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, status.Newf(status.ServerError, "asclient: udf content: %v", err)
	}
	return content, nil
}

func hasModule(files []driver.UDFFile, name string) bool {
	for _, f := range files {
		if f.Name == name {
			return true
		}
	}
	return false
}

func infoTimeout(p *policy.Info) *time.Duration {
	if p == nil {
		return nil
	}
	return p.Timeout
}

// DefaultTaskWait bounds index builds and UDF propagation when the info
// policy sets no timeout.
const DefaultTaskWait = 30 * time.Second

func withInfoTimeout(ctx context.Context, p *policy.Info) (context.Context, context.CancelFunc) {
	if t := infoTimeout(p); t != nil && *t > 0 {
		return context.WithTimeout(ctx, *t)
	}
	return context.WithTimeout(ctx, DefaultTaskWait)
}

func await(ctx context.Context, done <-chan as.Error) error {
	select {
	case err := <-done:
		return translate(err)
	case <-ctx.Done():
		return ctxErr(ctx)
	}
}
