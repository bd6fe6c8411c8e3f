package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"1", "1", true},
		{"true", "true", true},
		{"TRUE", "TRUE", true},
		{"yes", "yes", true},
		{"on", "on", true},
		{"with spaces", "  true  ", true},
		{"0", "0", false},
		{"false", "false", false},
		{"no", "no", false},
		{"off", "off", false},
		{"empty", "", false},
		{"random", "random", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, parseBool(tc.input))
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean URL", "https://rpc-amoy.polygon.technology", "https://rpc-amoy.polygon.technology"},
		{"surrounding spaces", "  https://polygon-rpc.com  ", "https://polygon-rpc.com"},
		{"localhost", "http://localhost:8545", "http://localhost:8545"},
		{"websocket", "wss://mainnet.infura.io/ws", "wss://mainnet.infura.io/ws"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeURL(tc.input))
		})
	}
}

// Environment tests mutate process state and cannot run in parallel.

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(EnvHome, "/srv/reviewchain")
	t.Setenv(EnvDefaultNetwork, " Polygon ")
	t.Setenv(EnvStoreDSN, "postgres://user@db/reviews")
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvEvidenceBackend, "S3")
	t.Setenv(EnvOutputFormat, "JSON")
	t.Setenv(EnvVerbose, "yes")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvTelemetryEnabled, "1")

	cfg := Defaults()
	ApplyEnvironment(cfg)

	assert.Equal(t, "/srv/reviewchain", cfg.Home)
	assert.Equal(t, "polygon", cfg.DefaultNetwork)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://user@db/reviews", cfg.Store.DSN)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, "redis:6379", cfg.Lock.RedisAddr)
	assert.Equal(t, "s3", cfg.Evidence.Backend)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Output.Verbose)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestApplyEnvironmentRPCOverrides(t *testing.T) {
	t.Setenv(EnvRPCPrefix+"AMOY", " https://amoy.example.org ")
	t.Setenv(EnvRPCPrefix+"DEVNET", "http://127.0.0.1:8545")
	t.Setenv(EnvRPCPrefix, "ignored")

	cfg := Defaults()
	cfg.Networks = []NetworkConfig{{ID: "amoy", ReviewRegistry: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}}
	ApplyEnvironment(cfg)

	byID := map[string]NetworkConfig{}
	for _, nc := range cfg.Networks {
		byID[nc.ID] = nc
	}
	require.Contains(t, byID, "amoy")
	assert.Equal(t, "https://amoy.example.org", byID["amoy"].RPCURL)
	assert.NotEmpty(t, byID["amoy"].ReviewRegistry, "existing fields survive")
	assert.Equal(t, "http://127.0.0.1:8545", byID["devnet"].RPCURL)
	assert.NotContains(t, byID, "")
}

func TestApplyEnvironmentEmptyLeavesDefaults(t *testing.T) {
	t.Setenv(EnvStoreDSN, "")
	t.Setenv(EnvLogLevel, "")

	cfg := Defaults()
	ApplyEnvironment(cfg)
	assert.Equal(t, Defaults().Store, cfg.Store)
	assert.Equal(t, Defaults().Logging, cfg.Logging)
}
