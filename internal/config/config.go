// Package config provides configuration management for reviewchain.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/reviewchain/reviewchain/internal/fileutil"
	"github.com/reviewchain/reviewchain/internal/network"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version        int             `yaml:"version"`
	Home           string          `yaml:"home"`
	DefaultNetwork string          `yaml:"default_network"`
	Networks       []NetworkConfig `yaml:"networks,omitempty"`
	Tx             TxConfig        `yaml:"tx"`
	Evidence       EvidenceConfig  `yaml:"evidence"`
	Store          StoreConfig     `yaml:"store"`
	Lock           LockConfig      `yaml:"lock"`
	Cache          CacheConfig     `yaml:"cache"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
	Output         OutputConfig    `yaml:"output"`
	Logging        LoggingConfig   `yaml:"logging"`
}

// NetworkConfig overrides a built-in network or adds a new one. Empty
// fields keep the built-in value.
type NetworkConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name,omitempty"`
	ChainID        uint64 `yaml:"chain_id,omitempty"`
	RPCURL         string `yaml:"rpc_url,omitempty"`
	ExplorerURL    string `yaml:"explorer_url,omitempty"`
	FaucetURL      string `yaml:"faucet_url,omitempty"`
	NativeSymbol   string `yaml:"native_symbol,omitempty"`
	ReviewRegistry string `yaml:"review_registry,omitempty"`
	RewardToken    string `yaml:"reward_token,omitempty"`
}

// TxConfig tunes the transaction executor.
type TxConfig struct {
	GasCeiling       uint64        `yaml:"gas_ceiling"`
	GasBufferPercent uint64        `yaml:"gas_buffer_percent"`
	GasSpeed         string        `yaml:"gas_speed"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	Confirmations    uint64        `yaml:"confirmations"`
	ConfirmTimeout   time.Duration `yaml:"confirm_timeout"`
	RPCRate          float64       `yaml:"rpc_rate"`
	RPCBurst         int           `yaml:"rpc_burst"`
}

// EvidenceConfig selects the off-chain evidence backend.
type EvidenceConfig struct {
	Backend    string   `yaml:"backend"`
	Dir        string   `yaml:"dir,omitempty"`
	Bucket     string   `yaml:"bucket,omitempty"`
	Region     string   `yaml:"region,omitempty"`
	Endpoint   string   `yaml:"endpoint,omitempty"`
	Prefix     string   `yaml:"prefix,omitempty"`
	PathStyle  bool     `yaml:"path_style,omitempty"`
	Recipients []string `yaml:"recipients,omitempty"`
}

// StoreConfig selects the record database.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LockConfig selects where the one-submission-in-flight lock lives.
type LockConfig struct {
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	TTL       time.Duration `yaml:"ttl"`
}

// CacheConfig controls the review read cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// TelemetryConfig controls in-process metrics.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	Encoding string `yaml:"encoding"`
}

// Load reads configuration from the specified file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config file path is chosen by the user
	if errors.Is(err, fs.ErrNotExist) {
		return nil, reviewerr.WithDetails(reviewerr.ErrConfigNotFound, map[string]string{"path": path})
	}
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		err := reviewerr.Newf(reviewerr.ErrConfigInvalid, "parsing %s: %v", path, err)
		return nil, reviewerr.WithDetails(err, map[string]string{"path": path})
	}
	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the config file path under home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default reviewchain home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reviewchain"
	}
	return filepath.Join(home, ".reviewchain")
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch {
	case c.Tx.GasCeiling == 0:
		return invalid("tx.gas_ceiling", "must be greater than zero")
	case c.Tx.GasBufferPercent > 100:
		return invalid("tx.gas_buffer_percent", "must be between 0 and 100")
	case !slices.Contains([]string{"", "slow", "medium", "fast"}, c.Tx.GasSpeed):
		return invalid("tx.gas_speed", "must be slow, medium or fast")
	case c.Tx.Confirmations == 0:
		return invalid("tx.confirmations", "must be at least 1")
	case c.Tx.ConfirmTimeout <= 0:
		return invalid("tx.confirm_timeout", "must be positive")
	case !slices.Contains([]string{"local", "s3", "gcs"}, c.Evidence.Backend):
		return invalid("evidence.backend", "must be local, s3 or gcs")
	case c.Evidence.Backend != "local" && c.Evidence.Bucket == "":
		return invalid("evidence.bucket", "is required for "+c.Evidence.Backend)
	case !slices.Contains([]string{"sqlite", "postgres"}, c.Store.Driver):
		return invalid("store.driver", "must be sqlite or postgres")
	case !slices.Contains([]string{"memory", "redis"}, c.Lock.Backend):
		return invalid("lock.backend", "must be memory or redis")
	case c.Lock.Backend == "redis" && c.Lock.RedisAddr == "":
		return invalid("lock.redis_addr", "is required for the redis lock")
	case !slices.Contains([]string{"console", "json"}, c.Logging.Encoding):
		return invalid("logging.encoding", "must be console or json")
	}
	_, err := c.Profiles()
	return err
}

func invalid(field, reason string) error {
	err := reviewerr.Newf(reviewerr.ErrConfigInvalid, "%s %s", field, reason)
	return reviewerr.WithDetails(err, map[string]string{"field": field})
}

// Profiles merges the configured networks over the built-in ones.
func (c *Config) Profiles() ([]network.Profile, error) {
	profiles := network.DefaultProfiles()
	for _, nc := range c.Networks {
		if nc.ID == "" {
			return nil, invalid("networks.id", "is required")
		}
		idx := slices.IndexFunc(profiles, func(p network.Profile) bool { return p.ID == nc.ID })
		if idx < 0 {
			profiles = append(profiles, network.Profile{ID: nc.ID, Name: nc.ID, NativeDecimals: 18})
			idx = len(profiles) - 1
		}
		if err := nc.apply(&profiles[idx]); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func (nc NetworkConfig) apply(p *network.Profile) error {
	if nc.Name != "" {
		p.Name = nc.Name
	}
	if nc.ChainID != 0 {
		p.ChainID = nc.ChainID
	}
	if nc.RPCURL != "" {
		p.RPCURL = SanitizeURL(nc.RPCURL)
	}
	if nc.ExplorerURL != "" {
		p.ExplorerURL = SanitizeURL(nc.ExplorerURL)
	}
	if nc.FaucetURL != "" {
		p.FaucetURL = SanitizeURL(nc.FaucetURL)
	}
	if nc.NativeSymbol != "" {
		p.NativeSymbol = nc.NativeSymbol
	}

	field := fmt.Sprintf("networks.%s", nc.ID)
	if nc.ReviewRegistry != "" {
		if !common.IsHexAddress(nc.ReviewRegistry) {
			return invalid(field+".review_registry", "is not an address")
		}
		p.Contracts.ReviewRegistry = common.HexToAddress(nc.ReviewRegistry)
	}
	if nc.RewardToken != "" {
		if !common.IsHexAddress(nc.RewardToken) {
			return invalid(field+".reward_token", "is not an address")
		}
		p.Contracts.RewardToken = common.HexToAddress(nc.RewardToken)
	}
	if p.ChainID == 0 {
		return invalid(field+".chain_id", "is required for new networks")
	}
	return nil
}

// Registry builds the network registry from the merged profiles.
func (c *Config) Registry() (*network.Registry, error) {
	profiles, err := c.Profiles()
	if err != nil {
		return nil, err
	}
	return network.NewRegistry(profiles, c.DefaultNetwork)
}

// SetNetwork overrides one field of a network, adding the network entry
// when needed. Used by environment overrides.
func (c *Config) SetNetwork(id string, set func(*NetworkConfig)) {
	for i := range c.Networks {
		if c.Networks[i].ID == id {
			set(&c.Networks[i])
			return
		}
	}
	nc := NetworkConfig{ID: id}
	set(&nc)
	c.Networks = append(c.Networks, nc)
}
