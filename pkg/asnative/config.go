package asnative

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/Ratio1/aerospike_native_go/internal/devseed"
	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/asclient"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/mock"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/restgw"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
)

const (
	envPrefix = "AEROSPIKE"

	ModeAuto      = "auto"
	ModeAerospike = "aerospike"
	ModeREST      = "rest"
	ModeMock      = "mock"
)

// Config is the environment driven client configuration. Each field is read
// from AEROSPIKE_<FIELD>, for example AEROSPIKE_HOSTS=db1:3000,db2:3000.
type Config struct {
	Mode           string        `mapstructure:"mode"`
	Hosts          []driver.Host `mapstructure:"hosts"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	ClusterName    string        `mapstructure:"cluster_name"`
	RestURL        string        `mapstructure:"rest_url"`
	MockSeed       string        `mapstructure:"mock_seed"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
}

var configKeys = []string{"mode", "hosts", "user", "password", "cluster_name", "rest_url", "mock_seed", "connect_timeout", "log_level"}

// LoadConfig reads the AEROSPIKE_* environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("mode", ModeAuto)
	v.SetDefault("connect_timeout", "30s")
	v.SetDefault("log_level", "info")
	for _, k := range configKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("asnative: bind %s: %w", k, err)
		}
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			hostsHook,
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("asnative: build config decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("asnative: decode config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.RestURL = strings.TrimSpace(cfg.RestURL)
	cfg.MockSeed = strings.TrimSpace(cfg.MockSeed)
	return &cfg, nil
}

var hostsType = reflect.TypeOf([]driver.Host{})

func hostsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != hostsType {
		return data, nil
	}
	return driver.ParseHosts(data.(string))
}

// NewFromEnv builds a Client from the AEROSPIKE_* environment and returns
// the resolved mode. In auto mode a REST URL wins, then explicit hosts,
// and the in-memory mock is used when neither is set.
func NewFromEnv(ctx context.Context) (client *Client, mode string, err error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, "", err
	}
	return NewFromConfig(ctx, cfg)
}

// NewFromConfig is NewFromEnv for an already loaded Config.
func NewFromConfig(ctx context.Context, cfg *Config) (*Client, string, error) {
	if cfg.LogLevel != "" {
		lvl, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, "", fmt.Errorf("asnative: %w", err)
		}
		logger.SetLevel(lvl)
	}

	switch cfg.Mode {
	case "", ModeAuto:
		if cfg.RestURL != "" {
			return newRESTClient(ctx, cfg)
		}
		if len(cfg.Hosts) > 0 {
			return newClusterClient(ctx, cfg)
		}
		return newMockClient(ctx, cfg)
	case ModeAerospike:
		return newClusterClient(ctx, cfg)
	case ModeREST:
		if cfg.RestURL == "" {
			return nil, "", fmt.Errorf("asnative: REST mode requires %s_REST_URL", envPrefix)
		}
		return newRESTClient(ctx, cfg)
	case ModeMock:
		return newMockClient(ctx, cfg)
	default:
		return nil, "", fmt.Errorf("asnative: unsupported %s_MODE value %q", envPrefix, cfg.Mode)
	}
}

func newClusterClient(ctx context.Context, cfg *Config) (*Client, string, error) {
	d := asclient.New(
		asclient.WithUser(cfg.User, cfg.Password),
		asclient.WithClusterName(cfg.ClusterName),
		asclient.WithConnectTimeout(cfg.ConnectTimeout),
	)
	client, err := New(ctx, cfg.Hosts, WithDriver(d))
	if err != nil {
		return nil, "", err
	}
	return client, ModeAerospike, nil
}

func newRESTClient(ctx context.Context, cfg *Config) (*Client, string, error) {
	d, err := restgw.New(cfg.RestURL)
	if err != nil {
		return nil, "", fmt.Errorf("asnative: init REST driver: %w", err)
	}
	client, err := New(ctx, cfg.Hosts, WithDriver(d))
	if err != nil {
		return nil, "", err
	}
	return client, ModeREST, nil
}

func newMockClient(ctx context.Context, cfg *Config) (*Client, string, error) {
	m := mock.New()
	if cfg.MockSeed != "" {
		seed, err := devseed.Load(cfg.MockSeed)
		if err != nil {
			return nil, "", fmt.Errorf("asnative: load mock seed: %w", err)
		}
		if err := m.Seed(ctx, seed); err != nil {
			return nil, "", fmt.Errorf("asnative: apply mock seed: %w", err)
		}
	}
	client, err := New(ctx, cfg.Hosts, WithDriver(m))
	if err != nil {
		return nil, "", err
	}
	return client, ModeMock, nil
}

// SetLogSink redirects the log output of every client.
func SetLogSink(s logger.Sink) {
	logger.SetSink(s)
}

// SetLogLevel sets the level gating the log output of every client.
func SetLogLevel(l logger.Level) {
	logger.SetLevel(l)
}
