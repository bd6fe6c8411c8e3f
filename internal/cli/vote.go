package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/output"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Vote on a review",
	Long:  `Upvote or downvote an on-chain review from the connected wallet.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var voteUpCmd = &cobra.Command{
	Use:     "up <review-id>",
	Short:   "Upvote a review",
	Long:    `Send an upvoteReview transaction for the given review and wait for confirmation.`,
	Example: `  reviewchain vote up 42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args[0], "Upvoting", func(ctx context.Context, c ReviewClient, id uint64) (*eth.Receipt, error) {
			return c.Upvote(ctx, id)
		})
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var voteDownCmd = &cobra.Command{
	Use:     "down <review-id>",
	Short:   "Downvote a review",
	Long:    `Send a downvoteReview transaction for the given review and wait for confirmation.`,
	Example: `  reviewchain vote down 42 --network amoy`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args[0], "Downvoting", func(ctx context.Context, c ReviewClient, id uint64) (*eth.Receipt, error) {
			return c.Downvote(ctx, id)
		})
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var commentCmd = &cobra.Command{
	Use:   "comment <review-id> <text>...",
	Short: "Comment on a review",
	Long: `Add a comment to an on-chain review. The text is sanitized and must be
between 1 and 1000 characters after sanitizing.`,
	Example: `  reviewchain comment 42 "Same experience here"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		return runWrite(cmd, args[0], "Commenting on", func(ctx context.Context, c ReviewClient, id uint64) (*eth.Receipt, error) {
			return c.Comment(ctx, id, text)
		})
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(voteCmd, commentCmd)
	voteCmd.GroupID = groupReviews
	commentCmd.GroupID = groupReviews
	voteCmd.AddCommand(voteUpCmd, voteDownCmd)
}

type writeFunc func(ctx context.Context, c ReviewClient, reviewID uint64) (*eth.Receipt, error)

// runWrite sends one review transaction and prints its receipt.
func runWrite(cmd *cobra.Command, rawID, verb string, send writeFunc) error {
	id, err := parseReviewID(rawID)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), appOptions{Wallet: true}, func(app *App) error {
		progress.Step("%s review %d on %s", verb, id, app.Network.Name)
		receipt, err := send(cmd.Context(), app.Reviews, id)
		if err != nil {
			return err
		}
		if err := formatter.Print(receiptView{receipt}); err != nil {
			return err
		}
		if !formatter.IsJSON() {
			output.RenderQR(cmd.OutOrStdout(), receipt.ExplorerURL, output.DefaultQRConfig())
		}
		return nil
	})
}

// parseReviewID parses a positive review id.
func parseReviewID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "review id must be a positive integer, got %q", s),
			map[string]string{"field": "review_id"},
		)
	}
	return id, nil
}
