// Package devseed loads fixture data for the mock driver from JSON or YAML
// files.
//
// A seed file has two top-level lists:
//
//	records:
//	  - namespace: test
//	    set: users
//	    key: alice
//	    ttl_seconds: 60
//	    bins:
//	      - name: firstName
//	        value: Alice
//	indexes:
//	  - namespace: test
//	    set: users
//	    bin: age
//	    name: idx_users_age
//	    type: numeric
//
// Bins are a list of name/value pairs because configuration keys are case
// insensitive while bin names are not.
package devseed

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// BinSeed is one bin of a seeded record.
type BinSeed struct {
	Name  string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
}

// RecordSeedEntry is one record to preload.
type RecordSeedEntry struct {
	Namespace  string    `mapstructure:"namespace"`
	Set        string    `mapstructure:"set"`
	Key        any       `mapstructure:"key"`
	Bins       []BinSeed `mapstructure:"bins"`
	TTLSeconds *int      `mapstructure:"ttl_seconds"`
}

// BinMap returns the bins keyed by name. Integral floats, which JSON
// produces for every number, are narrowed to int64.
func (e RecordSeedEntry) BinMap() map[string]any {
	out := make(map[string]any, len(e.Bins))
	for _, b := range e.Bins {
		out[b.Name] = normalize(b.Value)
	}
	return out
}

// UserKey returns the record key with JSON numbers narrowed to int64.
func (e RecordSeedEntry) UserKey() any {
	return normalize(e.Key)
}

// IndexSeedEntry is one secondary index to create before records load.
type IndexSeedEntry struct {
	Namespace  string `mapstructure:"namespace"`
	Set        string `mapstructure:"set"`
	Bin        string `mapstructure:"bin"`
	Name       string `mapstructure:"name"`
	Type       string `mapstructure:"type"`
	Collection string `mapstructure:"collection"`
}

// Seed is the decoded content of a seed file.
type Seed struct {
	Records []RecordSeedEntry `mapstructure:"records"`
	Indexes []IndexSeedEntry  `mapstructure:"indexes"`
}

// Load reads a seed file from the OS filesystem.
func Load(path string) (*Seed, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads a seed file from fs. The format follows the file extension.
func LoadFs(fs afero.Fs, path string) (*Seed, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("devseed: path is required")
	}
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}

	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("devseed: decode %s: %w", path, err)
	}
	for i, r := range seed.Records {
		if strings.TrimSpace(r.Namespace) == "" {
			return nil, fmt.Errorf("devseed: record %d missing namespace", i)
		}
		if r.Key == nil {
			return nil, fmt.Errorf("devseed: record %d missing key", i)
		}
		for _, b := range r.Bins {
			if b.Name == "" {
				return nil, fmt.Errorf("devseed: record %d has a bin without a name", i)
			}
		}
	}
	for i, idx := range seed.Indexes {
		if idx.Namespace == "" || idx.Bin == "" || idx.Name == "" {
			return nil, fmt.Errorf("devseed: index %d requires namespace, bin and name", i)
		}
	}
	return &seed, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < math.MaxInt64 {
			return int64(x)
		}
		return x
	case int:
		return int64(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	}
	return v
}
