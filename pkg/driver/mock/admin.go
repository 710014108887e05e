package mock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	ds "github.com/ipfs/go-datastore"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/policy"
	"github.com/Ratio1/aerospike_native_go/pkg/query"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

const luaSuffix = ".lua"

func indexKey(namespace, name string) ds.Key {
	return ds.KeyWithNamespaces([]string{indexesRoot, namespace, name})
}

func udfKey(name string) ds.Key {
	return ds.KeyWithNamespaces([]string{udfsRoot, name})
}

// CreateIndex registers an index. Building is immediate.
func (m *Mock) CreateIndex(ctx context.Context, idx driver.IndexDescriptor, p *policy.Info) error {
	ip := policy.Or(p, policy.Info{})
	ctx, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if err := idx.Validate(); err != nil {
		return status.Newf(status.ParameterError, "mock: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	dk := indexKey(idx.Namespace, idx.Name)
	var existing driver.IndexDescriptor
	found, err := m.getDoc(ctx, dk, &existing)
	if err != nil {
		return err
	}
	if found {
		return status.Newf(status.IndexFound, "mock: index %s already exists", idx.Name)
	}
	return m.putDoc(ctx, dk, idx)
}

func (m *Mock) DropIndex(ctx context.Context, namespace, name string, p *policy.Info) error {
	ip := policy.Or(p, policy.Info{})
	ctx, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return err
	}
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	dk := indexKey(namespace, name)
	var existing driver.IndexDescriptor
	found, err := m.getDoc(ctx, dk, &existing)
	if err != nil {
		return err
	}
	if !found {
		return status.Newf(status.IndexNotFound, "mock: index %s not found", name)
	}
	if err := m.store.Delete(ctx, dk); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// hasIndex looks for an index serving c. Indexes without a set cover the
// whole namespace.
func (m *Mock) hasIndex(ctx context.Context, namespace, set string, c query.Condition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	err := m.listDocs(ctx, ds.KeyWithNamespaces([]string{indexesRoot, namespace}), func(data []byte) error {
		var idx driver.IndexDescriptor
		if err := msgpack.Unmarshal(data, &idx); err != nil {
			return err
		}
		if idx.Bin == c.Bin && idx.Type == c.Type && idx.Collection == c.Collection &&
			(idx.Set == "" || idx.Set == set) {
			found = true
		}
		return nil
	})
	return found, err
}

func (m *Mock) UDFPut(ctx context.Context, name string, content []byte, lang driver.UDFLanguage, p *policy.Info) error {
	ip := policy.Or(p, policy.Info{})
	ctx, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
		return status.Newf(status.ParameterError, "mock: invalid udf module name %q", name)
	}
	if lang != driver.UDFLua {
		return status.Newf(status.ParameterError, "mock: unsupported udf language %s", lang)
	}

	sum := sha1.Sum(content)
	file := driver.UDFFile{
		Name:    name,
		Type:    lang,
		Hash:    hex.EncodeToString(sum[:]),
		Content: append([]byte(nil), content...),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putDoc(ctx, udfKey(name), file)
}

func (m *Mock) UDFRemove(ctx context.Context, name string, p *policy.Info) error {
	ip := policy.Or(p, policy.Info{})
	ctx, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return err
	}
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	var file driver.UDFFile
	found, err := m.getDoc(ctx, udfKey(name), &file)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("mock: %w: %s", driver.ErrUDFNotFound, name)
	}
	if err := m.store.Delete(ctx, udfKey(name)); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// UDFList returns the registered modules without their content.
func (m *Mock) UDFList(ctx context.Context, p *policy.Info) ([]driver.UDFFile, error) {
	ip := policy.Or(p, policy.Info{})
	ctx, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	files := []driver.UDFFile{}
	err = m.listDocs(ctx, ds.NewKey(udfsRoot), func(data []byte) error {
		var file driver.UDFFile
		if err := msgpack.Unmarshal(data, &file); err != nil {
			return err
		}
		file.Content = nil
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (m *Mock) UDFGet(ctx context.Context, name string, lang driver.UDFLanguage, p *policy.Info) (*driver.UDFFile, error) {
	ip := policy.Or(p, policy.Info{})
	ctx, cancel, err := m.begin(ctx, ip.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	var file driver.UDFFile
	found, err := m.getDoc(ctx, udfKey(name), &file)
	if err != nil {
		return nil, err
	}
	if !found || file.Type != lang {
		return nil, fmt.Errorf("mock: %w: %s", driver.ErrUDFNotFound, name)
	}
	return &file, nil
}

// requireModule checks that the module an apply names was uploaded. Apply
// names modules without the file suffix.
func (m *Mock) requireModule(ctx context.Context, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range []string{module, module + luaSuffix} {
		var file driver.UDFFile
		found, err := m.getDoc(ctx, udfKey(name), &file)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return status.Newf(status.UDFBadResponse, "mock: udf module %s not registered", module)
}
