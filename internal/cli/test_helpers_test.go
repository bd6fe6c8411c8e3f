package cli

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/service/review"
	"github.com/reviewchain/reviewchain/internal/service/submission"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, password []byte, confirm bool) {
	t.Helper()
	origPW := promptPasswordFn
	origConfirm := promptConfirmFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptConfirmFn = origConfirm
	})
	promptPasswordFn = func(_ string) ([]byte, error) {
		cp := make([]byte, len(password))
		copy(cp, password)
		return cp, nil
	}
	promptConfirmFn = func(_ string) bool { return confirm }
}

// withFakeApp makes every command run against the given app.
func withFakeApp(t *testing.T, build func() *App) *[]appOptions {
	t.Helper()
	orig := openApp
	t.Cleanup(func() { openApp = orig })

	var opened []appOptions
	openApp = func(_ context.Context, opts appOptions) (*App, error) {
		opened = append(opened, opts)
		app := build()
		if app.Registry == nil {
			registry, err := cfg.Registry()
			if err != nil {
				return nil, err
			}
			app.Registry = registry
			if app.Network, err = selectNetwork(registry); err != nil {
				return nil, err
			}
		}
		return app, nil
	}
	return &opened
}

// resetCommandState clears flag values left over from a previous run.
func resetCommandState(t *testing.T) {
	t.Helper()
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					require.NoError(t, sv.Replace(nil))
				} else {
					require.NoError(t, f.Value.Set(f.DefValue))
				}
				f.Changed = false
			})
		}
	})
	cfg, formatter, progress, telemetry = nil, nil, nil, nil
	logger = zap.NewNop()
}

// executeCommand runs the CLI with an isolated home directory and returns
// what it wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetCommandState(t)
	for _, key := range []string{EnvMnemonic, EnvPrivateKey, EnvKeystore, "REVIEWCHAIN_HOME", "REVIEWCHAIN_OUTPUT_FORMAT"} {
		t.Setenv(key, "")
	}

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(append([]string{"--home", t.TempDir()}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute(context.Background())
	return stdout.String(), stderr.String(), err
}

func testReceipt(method string) *eth.Receipt {
	return &eth.Receipt{
		TxHash:      common.HexToHash("0xabc123"),
		Method:      method,
		NetworkID:   "amoy",
		ChainID:     80002,
		From:        common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"),
		BlockNumber: 100,
		GasLimit:    120000,
		GasUsed:     90000,
		ExplorerURL: "https://amoy.polygonscan.com/tx/0xabc123",
	}
}

type fakeSubmitter struct {
	result *submission.Result
	err    error
	drafts []*submission.Draft
}

func (f *fakeSubmitter) Submit(_ context.Context, draft *submission.Draft) (*submission.Result, error) {
	f.drafts = append(f.drafts, draft)
	return f.result, f.err
}

type fakeReviews struct {
	receipt    *eth.Receipt
	review     *contracts.Review
	ids        []uint64
	reconciled []review.Reconciled
	err        error
	calls      []string
	comment    string
}

func (f *fakeReviews) Upvote(_ context.Context, id uint64) (*eth.Receipt, error) {
	f.calls = append(f.calls, "upvote:"+itoa(id))
	return f.receipt, f.err
}

func (f *fakeReviews) Downvote(_ context.Context, id uint64) (*eth.Receipt, error) {
	f.calls = append(f.calls, "downvote:"+itoa(id))
	return f.receipt, f.err
}

func (f *fakeReviews) Comment(_ context.Context, id uint64, content string) (*eth.Receipt, error) {
	f.calls = append(f.calls, "comment:"+itoa(id))
	f.comment = content
	return f.receipt, f.err
}

func (f *fakeReviews) Get(_ context.Context, networkID string, id uint64) (*contracts.Review, error) {
	f.calls = append(f.calls, "get:"+networkID+":"+itoa(id))
	return f.review, f.err
}

func (f *fakeReviews) ListByUser(_ context.Context, networkID string, user common.Address) ([]uint64, error) {
	f.calls = append(f.calls, "list:"+networkID+":"+strings.ToLower(user.Hex()))
	return f.ids, f.err
}

func (f *fakeReviews) Reconcile(_ context.Context) ([]review.Reconciled, error) {
	f.calls = append(f.calls, "reconcile")
	return f.reconciled, f.err
}

type fakeRecords struct {
	records []store.Record
	txs     []store.Transaction
	queries []string
}

func (f *fakeRecords) GetRecord(_ context.Context, id string) (store.Record, error) {
	f.queries = append(f.queries, "record:"+id)
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return store.Record{}, reviewerr.ErrNotFound
}

func (f *fakeRecords) ListByReviewer(_ context.Context, reviewer string) ([]store.Record, error) {
	f.queries = append(f.queries, "reviewer:"+reviewer)
	return f.records, nil
}

func (f *fakeRecords) GetTransaction(_ context.Context, hash string) (store.Transaction, error) {
	f.queries = append(f.queries, "tx:"+hash)
	for _, tx := range f.txs {
		if tx.Hash == hash {
			return tx, nil
		}
	}
	return store.Transaction{}, reviewerr.ErrNotFound
}

func (f *fakeRecords) ListPending(_ context.Context) ([]store.Transaction, error) {
	f.queries = append(f.queries, "pending")
	return f.txs, nil
}

type fakeWallet struct {
	state wallet.State
}

func (f fakeWallet) State() wallet.State { return f.state }

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
