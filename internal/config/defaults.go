package config

import (
	"time"

	"github.com/reviewchain/reviewchain/internal/network"
)

// Default values shared with the CLI.
const (
	DefaultGasCeiling     = 500_000
	DefaultGasBuffer      = 20
	DefaultConfirmTimeout = 3 * time.Minute
	DefaultLockTTL        = 10 * time.Minute
	DefaultCacheTTL       = 30 * time.Second
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version:        1,
		Home:           "~/.reviewchain",
		DefaultNetwork: network.DefaultNetwork,
		Tx: TxConfig{
			GasCeiling:       DefaultGasCeiling,
			GasBufferPercent: DefaultGasBuffer,
			GasSpeed:         "medium",
			PollInterval:     2 * time.Second,
			Confirmations:    1,
			ConfirmTimeout:   DefaultConfirmTimeout,
			RPCRate:          10,
			RPCBurst:         20,
		},
		Evidence: EvidenceConfig{
			Backend: "local",
			Dir:     "~/.reviewchain/evidence",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "~/.reviewchain/reviewchain.db",
		},
		Lock: LockConfig{
			Backend: "memory",
			TTL:     DefaultLockTTL,
		},
		Cache: CacheConfig{
			TTL: DefaultCacheTTL,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "reviewchain",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
		},
		Logging: LoggingConfig{
			Level:    "error",
			File:     "~/.reviewchain/reviewchain.log",
			Encoding: "json",
		},
	}
}
