package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome             = "REVIEWCHAIN_HOME"
	EnvDefaultNetwork   = "REVIEWCHAIN_DEFAULT_NETWORK"
	EnvRPCPrefix        = "REVIEWCHAIN_RPC_"
	EnvStoreDSN         = "REVIEWCHAIN_STORE_DSN"
	EnvRedisAddr        = "REVIEWCHAIN_REDIS_ADDR"
	EnvEvidenceBackend  = "REVIEWCHAIN_EVIDENCE_BACKEND"
	EnvOutputFormat     = "REVIEWCHAIN_OUTPUT_FORMAT"
	EnvVerbose          = "REVIEWCHAIN_VERBOSE"
	EnvLogLevel         = "REVIEWCHAIN_LOG_LEVEL"
	EnvTelemetryEnabled = "REVIEWCHAIN_TELEMETRY"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvDefaultNetwork); v != "" {
		cfg.DefaultNetwork = strings.ToLower(strings.TrimSpace(v))
	}

	// REVIEWCHAIN_RPC_AMOY=https://... overrides one network's endpoint
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvRPCPrefix) || value == "" {
			continue
		}
		id := strings.ToLower(strings.TrimPrefix(key, EnvRPCPrefix))
		if id == "" {
			continue
		}
		url := SanitizeURL(value)
		cfg.SetNetwork(id, func(nc *NetworkConfig) { nc.RPCURL = url })
	}

	if v := os.Getenv(EnvStoreDSN); v != "" {
		cfg.Store.DSN = strings.TrimSpace(v)
		if strings.HasPrefix(cfg.Store.DSN, "postgres://") || strings.HasPrefix(cfg.Store.DSN, "postgresql://") {
			cfg.Store.Driver = "postgres"
		}
	}

	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Lock.RedisAddr = strings.TrimSpace(v)
		cfg.Lock.Backend = "redis"
	}

	if v := os.Getenv(EnvEvidenceBackend); v != "" {
		cfg.Evidence.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvTelemetryEnabled); v != "" {
		cfg.Telemetry.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided RPC URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
