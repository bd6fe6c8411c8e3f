package cli

import (
	"github.com/spf13/cobra"

	"github.com/reviewchain/reviewchain/internal/wallet"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect the signing wallet",
	Long: `The signing wallet is loaded from REVIEWCHAIN_MNEMONIC,
REVIEWCHAIN_PRIVATE_KEY or an encrypted keystore passed with --keystore
(password from REVIEWCHAIN_KEYSTORE_PASSWORD or a prompt).`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect the wallet and show the session",
	Long: `Connect the configured wallet to the selected network and show the
account, chain and whether the review contracts are deployed there.`,
	Example: "  REVIEWCHAIN_PRIVATE_KEY=0x... reviewchain wallet status\n" +
		"  reviewchain wallet status --keystore ~/keys/reviewer.json --network amoy",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), appOptions{Wallet: true}, func(app *App) error {
			state := app.Wallet.State()
			view := walletView{State: state}
			if state.Status == wallet.StatusConnected {
				if p, ok := app.Registry.ByChainID(state.ChainID); ok {
					view.ExplorerURL = p.AddressURL(state.Account.Hex())
				}
			}
			return formatter.Print(view)
		})
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.GroupID = groupChain
	walletCmd.AddCommand(walletStatusCmd)
}
