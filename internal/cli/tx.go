package cli

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/reviewchain/reviewchain/internal/output"
	"github.com/reviewchain/reviewchain/internal/store"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect tracked transactions",
	Long: `Every transaction the CLI broadcasts is recorded as pending until its
receipt is seen. These commands inspect that record and settle transactions
that timed out waiting for confirmation.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txStatusCmd = &cobra.Command{
	Use:     "status <tx-hash>",
	Short:   "Show a tracked transaction",
	Long:    `Show the locally recorded state of one transaction.`,
	Example: `  reviewchain tx status 0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTxStatus,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txPendingCmd = &cobra.Command{
	Use:     "pending",
	Short:   "List transactions awaiting confirmation",
	Long:    `List every transaction still recorded as pending, oldest first.`,
	Example: `  reviewchain tx pending -o json`,
	Args:    cobra.NoArgs,
	RunE:    runTxPending,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle pending transactions against the chain",
	Long: `Look up the receipt of every pending transaction once. Transactions with
enough confirmations become confirmed, reverted ones become failed, and
the rest stay pending for a later run.`,
	Example: `  reviewchain tx reconcile`,
	Args:    cobra.NoArgs,
	RunE:    runTxReconcile,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(txCmd)
	txCmd.GroupID = groupChain
	txCmd.AddCommand(txStatusCmd, txPendingCmd, txReconcileCmd)
}

func runTxStatus(cmd *cobra.Command, args []string) error {
	hash := strings.TrimSpace(args[0])
	if len(common.FromHex(hash)) != common.HashLength || !strings.HasPrefix(hash, "0x") {
		return reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "%q is not a transaction hash", hash),
			map[string]string{"field": "tx_hash"},
		)
	}

	return withApp(cmd.Context(), appOptions{}, func(app *App) error {
		tx, err := app.Records.GetTransaction(cmd.Context(), common.HexToHash(hash).Hex())
		if err != nil {
			return err
		}
		view := transactionView{Transaction: tx}
		if p, err := app.Registry.ByID(tx.NetworkID); err == nil {
			view.ExplorerURL = p.TxURL(tx.Hash)
		}
		if err := formatter.Print(view); err != nil {
			return err
		}
		if !formatter.IsJSON() {
			output.RenderQR(cmd.OutOrStdout(), view.ExplorerURL, output.DefaultQRConfig())
		}
		return nil
	})
}

func runTxPending(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), appOptions{}, func(app *App) error {
		pending, err := app.Records.ListPending(cmd.Context())
		if err != nil {
			return err
		}
		return formatter.Print(transactionsView(pending))
	})
}

func runTxReconcile(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), appOptions{Evidence: true}, func(app *App) error {
		progress.Step("Reconciling pending transactions")
		results, err := app.Reviews.Reconcile(cmd.Context())
		if err != nil {
			return err
		}

		var settled, failed int
		for _, r := range results {
			switch {
			case r.Error != "":
				failed++
			case r.Status != store.TxPending:
				settled++
			}
		}
		progress.Info("%d settled, %d still pending, %d errors", settled, len(results)-settled-failed, failed)
		return formatter.Print(reconcileView(results))
	})
}
