package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewchain/reviewchain/internal/config"
	"github.com/reviewchain/reviewchain/internal/network"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

const registryHex = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := config.Defaults()
	cfg.Networks = []config.NetworkConfig{{ID: network.Amoy, ReviewRegistry: registryHex}}
	cfg.Tx.ConfirmTimeout = 90 * time.Second
	cfg.Lock.Backend = "redis"
	cfg.Lock.RedisAddr = "localhost:6379"
	cfg.Output.Verbose = true

	require.NoError(t, config.Save(cfg, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("tx:\n  confirmations: 3\n  confirm_timeout: 45s\nstore:\n  driver: postgres\n  dsn: postgres://localhost/reviews\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Tx.Confirmations)
	assert.Equal(t, 45*time.Second, cfg.Tx.ConfirmTimeout)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, uint64(config.DefaultGasCeiling), cfg.Tx.GasCeiling)
	assert.Equal(t, network.DefaultNetwork, cfg.DefaultNetwork)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, reviewerr.ErrConfigNotFound)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tx: [unclosed"), 0o600))
	_, err = config.Load(bad)
	require.ErrorIs(t, err, reviewerr.ErrConfigInvalid)
	assert.Equal(t, bad, reviewerr.Detail(err, "path"))
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "~/.reviewchain", cfg.Home)
	assert.Equal(t, network.Amoy, cfg.DefaultNetwork)
	assert.Equal(t, uint64(500_000), cfg.Tx.GasCeiling)
	assert.Equal(t, uint64(20), cfg.Tx.GasBufferPercent)
	assert.Equal(t, "medium", cfg.Tx.GasSpeed)
	assert.Equal(t, "local", cfg.Evidence.Backend)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.False(t, cfg.Telemetry.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"zero gas ceiling", func(c *config.Config) { c.Tx.GasCeiling = 0 }, "tx.gas_ceiling"},
		{"buffer too large", func(c *config.Config) { c.Tx.GasBufferPercent = 150 }, "tx.gas_buffer_percent"},
		{"unknown speed", func(c *config.Config) { c.Tx.GasSpeed = "ludicrous" }, "tx.gas_speed"},
		{"zero confirmations", func(c *config.Config) { c.Tx.Confirmations = 0 }, "tx.confirmations"},
		{"zero timeout", func(c *config.Config) { c.Tx.ConfirmTimeout = 0 }, "tx.confirm_timeout"},
		{"unknown evidence backend", func(c *config.Config) { c.Evidence.Backend = "ftp" }, "evidence.backend"},
		{"s3 without bucket", func(c *config.Config) { c.Evidence.Backend = "s3" }, "evidence.bucket"},
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"redis without address", func(c *config.Config) { c.Lock.Backend = "redis" }, "lock.redis_addr"},
		{"bad encoding", func(c *config.Config) { c.Logging.Encoding = "xml" }, "logging.encoding"},
		{"network without id", func(c *config.Config) {
			c.Networks = []config.NetworkConfig{{RPCURL: "http://localhost:8545"}}
		}, "networks.id"},
		{"bad registry address", func(c *config.Config) {
			c.Networks = []config.NetworkConfig{{ID: network.Amoy, ReviewRegistry: "0x1234"}}
		}, "networks.amoy.review_registry"},
		{"new network without chain id", func(c *config.Config) {
			c.Networks = []config.NetworkConfig{{ID: "devnet", RPCURL: "http://localhost:8545"}}
		}, "networks.devnet.chain_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, reviewerr.ErrConfigInvalid)
			assert.Equal(t, tc.field, reviewerr.Detail(err, "field"))
		})
	}
}

func TestProfilesMergeOverrides(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Networks = []config.NetworkConfig{
		{ID: network.Amoy, ReviewRegistry: registryHex, RPCURL: " https://amoy.example.org/rpc "},
		{ID: "devnet", Name: "Devnet", ChainID: 424242, RPCURL: "http://127.0.0.1:8545", ReviewRegistry: registryHex},
	}

	profiles, err := cfg.Profiles()
	require.NoError(t, err)
	assert.Len(t, profiles, len(network.DefaultProfiles())+1)

	reg, err := cfg.Registry()
	require.NoError(t, err)

	amoy, err := reg.ByID(network.Amoy)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(registryHex), amoy.Contracts.ReviewRegistry)
	assert.Equal(t, "https://amoy.example.org/rpc", amoy.RPCURL)
	assert.Equal(t, uint64(80002), amoy.ChainID, "unset fields keep built-in values")
	assert.True(t, amoy.IsContractsDeployed())

	devnet, ok := reg.ByChainID(424242)
	require.True(t, ok)
	assert.Equal(t, "Devnet", devnet.Name)
	assert.Equal(t, 18, devnet.NativeDecimals)

	polygon, err := reg.ByID(network.Polygon)
	require.NoError(t, err)
	assert.False(t, polygon.IsContractsDeployed())
}

func TestSetNetwork(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()

	cfg.SetNetwork(network.Sepolia, func(nc *config.NetworkConfig) { nc.RPCURL = "http://a" })
	cfg.SetNetwork(network.Sepolia, func(nc *config.NetworkConfig) { nc.ReviewRegistry = registryHex })

	require.Len(t, cfg.Networks, 1)
	assert.Equal(t, "http://a", cfg.Networks[0].RPCURL)
	assert.Equal(t, registryHex, cfg.Networks[0].ReviewRegistry)
}

func TestPathHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/tmp/rc", "config.yaml"), config.Path("/tmp/rc"))
	assert.Equal(t, "/abs/path", config.ExpandPath("/abs/path"))

	home, err := os.UserHomeDir()
	if err == nil {
		assert.Equal(t, filepath.Join(home, "x", "y"), config.ExpandPath("~/x/y"))
		assert.Equal(t, filepath.Join(home, ".reviewchain"), config.DefaultHome())
	}
}
