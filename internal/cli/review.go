package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/sanitize"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Read reviews",
	Long: `Read reviews from the ReviewRegistry contract or from the local record
database. Reads need no wallet and are cached briefly.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var reviewShowCmd = &cobra.Command{
	Use:     "show <review-id>",
	Short:   "Show an on-chain review",
	Long:    `Fetch one review from the registry on the selected network.`,
	Example: "  reviewchain review show 42\n  reviewchain review show 42 --network polygon -o json",
	Args:    cobra.ExactArgs(1),
	RunE:    runReviewShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var reviewListCmd = &cobra.Command{
	Use:     "list <address>",
	Short:   "List review ids written by an address",
	Long:    `List the ids of every review the given address submitted on the selected network.`,
	Example: `  reviewchain review list 0x8ba1f109551bD432803012645Ac136ddd64DBA72`,
	Args:    cobra.ExactArgs(1),
	RunE:    runReviewList,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var reviewRecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List locally recorded submissions",
	Long: `List submissions stored in the local record database, newest first.
With --id a single record is shown.`,
	Example: "  reviewchain review records --reviewer 0x8ba1f109551bD432803012645Ac136ddd64DBA72\n" +
		"  reviewchain review records --id 3f2c9a1e-5b7d-4c1a-9e2f-1a2b3c4d5e6f",
	RunE: runReviewRecords,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	recordsReviewer string
	recordsID       string
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.GroupID = groupReviews
	reviewCmd.AddCommand(reviewShowCmd, reviewListCmd, reviewRecordsCmd)

	reviewRecordsCmd.Flags().StringVar(&recordsReviewer, "reviewer", "", "reviewer address to list records for")
	reviewRecordsCmd.Flags().StringVar(&recordsID, "id", "", "submission id of a single record")
	reviewRecordsCmd.MarkFlagsOneRequired("reviewer", "id")
	reviewRecordsCmd.MarkFlagsMutuallyExclusive("reviewer", "id")
}

func runReviewShow(cmd *cobra.Command, args []string) error {
	id, err := parseReviewID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), appOptions{}, func(app *App) error {
		r, err := app.Reviews.Get(cmd.Context(), app.Network.ID, id)
		if err != nil {
			return err
		}
		return formatter.Print(newReviewView(r, app.Network.ID))
	})
}

func runReviewList(cmd *cobra.Command, args []string) error {
	user, err := eth.ParseAddress(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), appOptions{}, func(app *App) error {
		ids, err := app.Reviews.ListByUser(cmd.Context(), app.Network.ID, user)
		if err != nil {
			return err
		}
		return formatter.Print(reviewIDsView{User: user.Hex(), Network: app.Network.ID, IDs: ids})
	})
}

func runReviewRecords(cmd *cobra.Command, _ []string) error {
	reviewer := sanitize.WalletAddress(recordsReviewer)
	if recordsID == "" && reviewer == "" {
		return reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "reviewer must be a wallet address"),
			map[string]string{"field": "reviewer"},
		)
	}

	return withApp(cmd.Context(), appOptions{}, func(app *App) error {
		if recordsID != "" {
			rec, err := app.Records.GetRecord(cmd.Context(), strings.TrimSpace(recordsID))
			if err != nil {
				return err
			}
			return formatter.Print(recordsView{rec})
		}

		records, err := app.Records.ListByReviewer(cmd.Context(), reviewer)
		if err != nil {
			return err
		}
		return formatter.Print(recordsView(records))
	})
}
