package policy

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

type enumSpec struct {
	field  string
	prefix string
	names  []string
}

var enums = map[reflect.Type]enumSpec{
	reflect.TypeOf(Retry(0)):        {field: "retry", prefix: "retry_", names: []string{"none", "once"}},
	reflect.TypeOf(KeyMode(0)):      {field: "key", prefix: "key_", names: []string{"digest", "send"}},
	reflect.TypeOf(GenMode(0)):      {field: "gen", prefix: "gen_", names: []string{"ignore", "eq", "gt"}},
	reflect.TypeOf(ExistsMode(0)):   {field: "exists", prefix: "exists_", names: []string{"ignore", "create", "update", "replace", "create_or_replace"}},
	reflect.TypeOf(CommitLevel(0)):  {field: "commit_level", prefix: "commit_level_", names: []string{"all", "master"}},
	reflect.TypeOf(Replica(0)):      {field: "replica", prefix: "replica_", names: []string{"master", "any"}},
	reflect.TypeOf(Consistency(0)):  {field: "consistency_level", prefix: "consistency_level_", names: []string{"one", "all"}},
	reflect.TypeOf(ScanPriority(0)): {field: "priority", prefix: "priority_", names: []string{"auto", "low", "medium", "high"}},
}

var (
	durationType   = reflect.TypeOf(time.Duration(0))
	percentType    = reflect.TypeOf(Percent(0))
	expirationType = reflect.TypeOf(Expiration(0))
)

func enumName(v any) string {
	rv := reflect.ValueOf(v)
	def, ok := enums[rv.Type()]
	n := rv.Int()
	if !ok || n < 0 || n >= int64(len(def.names)) {
		return strconv.FormatInt(n, 10)
	}
	return strings.ToUpper(def.prefix + def.names[n])
}

func (s enumSpec) parse(t reflect.Type, data any) (any, error) {
	n, ok := asInt(data)
	if !ok {
		name, isName := asString(data)
		if !isName {
			return nil, &InvalidValueError{Field: s.field, Value: data}
		}
		name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), s.prefix)
		n = -1
		for i, candidate := range s.names {
			if candidate == name {
				n = int64(i)
				break
			}
		}
	}
	if n < 0 || n >= int64(len(s.names)) {
		return nil, &InvalidValueError{Field: s.field, Value: data}
	}
	return reflect.ValueOf(n).Convert(t).Interface(), nil
}

func convert(t reflect.Type, data any) (any, error) {
	if def, ok := enums[t]; ok {
		return def.parse(t, data)
	}
	switch t {
	case durationType:
		return parseTimeout(data)
	case percentType:
		n, ok := asInt(data)
		if !ok || n < 1 || n > 100 {
			return nil, &InvalidValueError{Field: "percent", Value: data}
		}
		return Percent(n), nil
	case expirationType:
		n, ok := asInt(data)
		if !ok || n < int64(TTLDontUpdate) || n > math.MaxInt32 {
			return nil, &InvalidValueError{Field: "ttl", Value: data}
		}
		return Expiration(n), nil
	}
	return data, nil
}

// parseTimeout treats integers as milliseconds and strings as Go durations.
func parseTimeout(data any) (any, error) {
	if d, ok := data.(time.Duration); ok {
		if d < 0 {
			return nil, &InvalidValueError{Field: "timeout", Value: data}
		}
		return d, nil
	}
	if n, ok := asInt(data); ok {
		if n < 0 {
			return nil, &InvalidValueError{Field: "timeout", Value: data}
		}
		return time.Duration(n) * time.Millisecond, nil
	}
	if s, ok := asString(data); ok {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil || d < 0 {
			return nil, &InvalidValueError{Field: "timeout", Value: data}
		}
		return d, nil
	}
	return nil, &InvalidValueError{Field: "timeout", Value: data}
}

func asInt(data any) (int64, bool) {
	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func asString(data any) (string, bool) {
	switch s := data.(type) {
	case string:
		return s, true
	case Symbol:
		return string(s), true
	}
	return "", false
}

func decode(m Map, out any) error {
	if len(m) == 0 {
		return nil
	}
	var hookErr error
	hook := func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		v, err := convert(t, data)
		if err != nil && hookErr == nil {
			hookErr = err
		}
		return v, err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: hook,
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("policy: build decoder: %w", err)
	}
	norm := m.normalize()
	if err := checkScalars(reflect.TypeOf(out).Elem(), norm); err != nil {
		return err
	}
	if err := dec.Decode(norm); err != nil {
		if hookErr != nil {
			return hookErr
		}
		return fmt.Errorf("%w: %v", ErrInvalidPolicyValue, err)
	}
	return nil
}

// checkScalars rejects bool and unsigned fields the hooks do not cover, so
// every bad value is reported as an *InvalidValueError naming its field.
func checkScalars(t reflect.Type, m map[string]any) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		data, ok := m[name]
		if !ok || data == nil {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if _, isEnum := enums[ft]; isEnum {
			continue
		}
		switch ft.Kind() {
		case reflect.Bool:
			if _, ok := data.(bool); !ok {
				return &InvalidValueError{Field: name, Value: data}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, ok := asInt(data)
			if !ok || n < 0 || reflect.Zero(ft).OverflowUint(uint64(n)) {
				return &InvalidValueError{Field: name, Value: data}
			}
		}
	}
	return nil
}
