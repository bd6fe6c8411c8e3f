package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/config"
	"github.com/reviewchain/reviewchain/internal/evidence"
	"github.com/reviewchain/reviewchain/internal/network"
	"github.com/reviewchain/reviewchain/internal/secret"
	"github.com/reviewchain/reviewchain/internal/service/review"
	"github.com/reviewchain/reviewchain/internal/service/submission"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Wallet key sources, checked in this order.
const (
	EnvMnemonic         = "REVIEWCHAIN_MNEMONIC"
	EnvPassphrase       = "REVIEWCHAIN_PASSPHRASE"
	EnvPrivateKey       = "REVIEWCHAIN_PRIVATE_KEY"
	EnvKeystore         = "REVIEWCHAIN_KEYSTORE"
	EnvKeystorePassword = "REVIEWCHAIN_KEYSTORE_PASSWORD"
)

// appOptions says which parts of the stack a command needs.
type appOptions struct {
	// Wallet connects a signing wallet. Read-only commands leave it off.
	Wallet bool
	// Evidence opens the evidence store without a wallet.
	Evidence bool
}

// App holds the services a command runs against.
type App struct {
	Registry *network.Registry
	Network  network.Profile

	Submissions Submitter
	Reviews     ReviewClient
	Records     RecordReader
	Wallet      WalletState

	closers []func() error
}

// Close releases everything the app opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// openApp builds the service stack. Tests replace it with fakes.
//
//nolint:gochecknoglobals // replaced in tests
var openApp = buildApp

// selectNetwork resolves the --network flag or the configured default.
func selectNetwork(registry *network.Registry) (network.Profile, error) {
	if networkFlag == "" {
		return registry.ByID(cfg.DefaultNetwork)
	}
	return registry.ByID(networkFlag)
}

//nolint:gocognit,gocyclo // linear wiring of every backend
func buildApp(ctx context.Context, opts appOptions) (app *App, err error) {
	built := &App{}
	defer func() {
		if err != nil {
			_ = built.Close()
		}
	}()
	app = built

	app.Registry, err = cfg.Registry()
	if err != nil {
		return nil, err
	}
	app.Network, err = selectNetwork(app.Registry)
	if err != nil {
		return nil, err
	}

	m := metricsHandle()

	dsn := config.ExpandPath(cfg.Store.DSN)
	if cfg.Store.Driver == store.DriverSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	records, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, err
	}
	app.onClose(records.Close)
	app.Records = records

	speed, err := eth.ParseGasSpeed(cfg.Tx.GasSpeed)
	if err != nil {
		return nil, err
	}
	executor := eth.NewExecutor(eth.Options{
		GasCeiling:       cfg.Tx.GasCeiling,
		GasBufferPercent: cfg.Tx.GasBufferPercent,
		Speed:            speed,
		PollInterval:     cfg.Tx.PollInterval,
		Confirmations:    cfg.Tx.Confirmations,
		ConfirmTimeout:   cfg.Tx.ConfirmTimeout,
	}, records, logger, m)

	limiter := chain.NewRateLimiter(cfg.Tx.RPCRate, cfg.Tx.RPCBurst)
	dial := chain.LimitedDialer(chain.DialEthClient, limiter)

	var provider wallet.Provider
	if opts.Wallet {
		local, err := loadProvider(app.Network.ChainID)
		if err != nil {
			return nil, err
		}
		app.onClose(func() error { local.Close(); return nil })
		provider = local
	}

	var files evidence.Store
	if opts.Wallet || opts.Evidence {
		files, err = openEvidence(ctx)
		if err != nil {
			return nil, err
		}
		if c, ok := files.(io.Closer); ok {
			app.onClose(c.Close)
		}
	}

	manager := wallet.NewManager(provider, app.Registry, dial, logger)
	app.onClose(func() error { manager.Close(); return nil })
	app.Wallet = manager

	if opts.Wallet {
		if err := manager.Start(ctx); err != nil {
			return nil, err
		}
		if _, err := manager.Connect(ctx); err != nil {
			return nil, err
		}
		state := manager.State()
		logger.Debug("wallet connected",
			zap.String("account", state.Account.Hex()),
			zap.String("network", state.NetworkID),
		)

		locker, err := openLocker(app)
		if err != nil {
			return nil, err
		}

		app.Submissions = submission.NewOrchestrator(&submission.Config{
			Sessions: manager,
			Executor: executor,
			Evidence: files,
			Records:  records,
			Locker:   locker,
			Logger:   logger,
			Metrics:  m,
		})
	}

	app.Reviews = review.NewService(&review.Config{
		Sessions: manager,
		Binder:   manager,
		Executor: executor,
		Pending:  records,
		Records:  records,
		Evidence: files,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
		Metrics:  m,
	})
	return app, nil
}

func openEvidence(ctx context.Context) (evidence.Store, error) {
	ec := cfg.Evidence
	return evidence.Open(ctx, evidence.Config{
		Backend: ec.Backend,
		Dir:     config.ExpandPath(ec.Dir),
		S3: evidence.S3Config{
			Bucket:   ec.Bucket,
			Region:   ec.Region,
			Endpoint: ec.Endpoint,
			Prefix:   ec.Prefix,
		},
		GCS: evidence.GCSConfig{
			Bucket: ec.Bucket,
			Prefix: ec.Prefix,
		},
		Recipients: ec.Recipients,
	})
}

func openLocker(app *App) (submission.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return submission.NewMemoryLocker(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
	app.onClose(client.Close)
	return submission.NewRedisLocker(client, cfg.Lock.TTL, logger), nil
}

// loadProvider builds the signing wallet from the first configured key
// source. The CLI user owns the key, so accounts start authorized.
func loadProvider(chainID uint64) (*wallet.LocalProvider, error) {
	opts := []wallet.LocalOption{wallet.WithAuthorized(), wallet.WithApprover(approveFn)}

	if mnemonic := strings.TrimSpace(os.Getenv(EnvMnemonic)); mnemonic != "" {
		mnemonic = wallet.NormalizeMnemonicInput(mnemonic)
		if err := wallet.ValidateMnemonic(mnemonic); err != nil {
			return nil, err
		}
		return wallet.NewHDProvider(mnemonic, os.Getenv(EnvPassphrase), 1, chainID, opts...)
	}

	if hexKey := strings.TrimSpace(os.Getenv(EnvPrivateKey)); hexKey != "" {
		raw := common.FromHex(hexKey)
		defer secret.Zero(raw)
		if len(raw) != 32 {
			return nil, reviewerr.WithDetails(
				reviewerr.Newf(reviewerr.ErrValidationFailed, "private key must be 32 bytes of hex"),
				map[string]string{"field": EnvPrivateKey},
			)
		}
		return wallet.NewLocalProvider(chainID, [][]byte{raw}, opts...)
	}

	path := keystorePath
	if path == "" {
		path = os.Getenv(EnvKeystore)
	}
	if path == "" {
		return nil, reviewerr.WithSuggestion(reviewerr.ErrWalletNotConnected,
			fmt.Sprintf("set %s, %s or pass --keystore", EnvMnemonic, EnvPrivateKey))
	}

	password := os.Getenv(EnvKeystorePassword)
	if password == "" {
		pw, err := promptPasswordFn("Keystore password: ")
		if err != nil {
			return nil, err
		}
		password = string(pw)
		secret.Zero(pw)
	}
	raw, err := wallet.LoadKeystore(config.ExpandPath(path), password)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(raw)
	return wallet.NewLocalProvider(chainID, [][]byte{raw}, opts...)
}

// withApp opens the stack for one command and closes it afterwards.
func withApp(ctx context.Context, opts appOptions, fn func(*App) error) error {
	app, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("closing services", zap.Error(cerr))
		}
	}()
	return fn(app)
}
