// Package config defines the client's configuration surface: a
// YAML-decodable Config (defaults applied via deepcopy, a custom Duration
// type, a validate pass run from UnmarshalYAML) plus Default for
// programmatic construction. There is no functional-option builder.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v2"
)

// RouteMode selects how the client maps tables to endpoints.
type RouteMode int

const (
	RouteModeDirect RouteMode = iota
	RouteModeProxy
)

func (m RouteMode) String() string {
	if m == RouteModeProxy {
		return "proxy"
	}
	return "direct"
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (m *RouteMode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "", "direct":
		*m = RouteModeDirect
	case "proxy":
		*m = RouteModeProxy
	default:
		return fmt.Errorf("config: unknown route_mode %q", s)
	}
	return nil
}

// LimitKind selects the adaptive concurrency limit strategy.
type LimitKind int

const (
	LimitKindVegas LimitKind = iota
	LimitKindGradient
)

func (k LimitKind) String() string {
	if k == LimitKindGradient {
		return "gradient"
	}
	return "vegas"
}

func (k *LimitKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "", "vegas":
		*k = LimitKindVegas
	case "gradient":
		*k = LimitKindGradient
	default:
		return fmt.Errorf("config: unknown limit_kind %q", s)
	}
	return nil
}

// Endpoint is the YAML-facing (host, port) pair, mirroring model.Endpoint
// without importing the model package into config.
type Endpoint struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// Tenant is the bearer tuple attached to every RPC.
type Tenant struct {
	Tenant    string `yaml:"tenant,omitempty"`
	SubTenant string `yaml:"sub_tenant,omitempty"`
	Token     string `yaml:"token,omitempty"`
}

// RpcOptions governs adaptive limiting. DefaultRpcTimeout and
// LogOnLimitChange are decoded but not read by the client: RPCs carry no
// deadline beyond their context's, and limit changes are not logged.
type RpcOptions struct {
	BlockOnLimit      bool      `yaml:"block_on_limit,omitempty"`
	InitialLimit      int       `yaml:"initial_limit,omitempty"`
	LimitKind         LimitKind `yaml:"limit_kind,omitempty"`
	DefaultRpcTimeout Duration  `yaml:"default_rpc_timeout,omitempty"`
	LogOnLimitChange  bool      `yaml:"log_on_limit_change,omitempty"`

	// Catches all undefined fields rather than failing decode.
	XXX map[string]interface{} `yaml:",inline"`
}

// Config is the top-level, YAML-decodable client configuration.
type Config struct {
	ClusterAddress Endpoint  `yaml:"cluster_address"`
	RouteMode      RouteMode `yaml:"route_mode,omitempty"`
	Database       string    `yaml:"database"`
	Tenant         Tenant    `yaml:"tenant,omitempty"`

	WriteMaxRetries int `yaml:"write_max_retries,omitempty"`
	ReadMaxRetries  int `yaml:"read_max_retries,omitempty"`

	MaxCachedSize   int `yaml:"max_cached_size,omitempty"`
	GcPeriodSeconds int `yaml:"gc_period_seconds,omitempty"`

	RpcOptions RpcOptions `yaml:"rpc_options,omitempty"`

	CollectWroteDetail bool `yaml:"collect_wrote_detail,omitempty"`

	LogDebug bool `yaml:"log_debug,omitempty"`

	XXX map[string]interface{} `yaml:",inline"`
}

var defaultConfig = Config{
	RouteMode:       RouteModeDirect,
	WriteMaxRetries: 1,
	ReadMaxRetries:  1,
	MaxCachedSize:   10_000,
	GcPeriodSeconds: 60,
	RpcOptions: RpcOptions{
		BlockOnLimit:      true,
		InitialLimit:      20,
		LimitKind:         LimitKindVegas,
		DefaultRpcTimeout: Duration(10 * time.Second),
	},
}

// UnmarshalYAML implements the yaml.Unmarshaler interface: seed the
// defaults, unmarshal on top, then validate.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// nolint: forcetypeassert // shape is specified by deepcopy.Copy's contract.
	*c = deepcopy.Copy(defaultConfig).(Config)
	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks the required invariants of each option.
func (c *Config) Validate() error {
	if c.RouteMode == RouteModeDirect && c.ClusterAddress.Host == "" {
		return fmt.Errorf("config: `cluster_address` is required in direct route mode")
	}
	if c.Database == "" {
		return fmt.Errorf("config: `database` must be set")
	}
	if c.WriteMaxRetries < 0 {
		return fmt.Errorf("config: `write_max_retries` must be >= 0")
	}
	if c.ReadMaxRetries < 0 {
		return fmt.Errorf("config: `read_max_retries` must be >= 0")
	}
	if c.MaxCachedSize <= 0 {
		return fmt.Errorf("config: `max_cached_size` must be > 0")
	}
	return nil
}

// Load reads and decodes a YAML config file: read bytes, yaml.Unmarshal,
// defaults+validate via UnmarshalYAML.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}
	return cfg, nil
}

// Default returns a copy of the built-in defaults, for callers building a
// Config programmatically instead of from YAML.
func Default() Config {
	// nolint: forcetypeassert // shape is specified by deepcopy.Copy's contract.
	return deepcopy.Copy(defaultConfig).(Config)
}
