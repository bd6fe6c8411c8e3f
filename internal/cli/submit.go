package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewchain/reviewchain/internal/evidence"
	"github.com/reviewchain/reviewchain/internal/output"
	"github.com/reviewchain/reviewchain/internal/sanitize"
	"github.com/reviewchain/reviewchain/internal/service/submission"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a review with evidence",
	Long: `Submit a company review to the ReviewRegistry contract.

Each evidence file is validated (PDF, PNG, JPEG or WEBP, at most 5 MB each,
5 files and 25 MB in total), uploaded to the configured evidence backend and
bound to the review by its manifest hash. If the transaction fails, uploaded
files are removed again. Text fields are sanitized and the rating is
floored and clamped to 1..5.

Press Ctrl-C before the transaction is sent to cancel; once it is sent the
command waits for confirmation.`,
	Example: `  reviewchain submit --company "Acme Corp" --category services \
      --title "Reliable" --body "Delivered on time" --rating 4 \
      --file invoice.pdf --file receipt.png
  reviewchain submit --company Acme --category retail --title Meh \
      --body-file review.txt --rating 2.5 --file photo.jpg --network amoy -y`,
	RunE: runSubmit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	submitCompany  string
	submitCategory string
	submitTitle    string
	submitBody     string
	submitBodyFile string
	submitRating   string
	submitFiles    []string
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.GroupID = groupReviews

	f := submitCmd.Flags()
	f.StringVar(&submitCompany, "company", "", "company being reviewed")
	f.StringVar(&submitCategory, "category", "", "company category")
	f.StringVar(&submitTitle, "title", "", "review title")
	f.StringVar(&submitBody, "body", "", "review text")
	f.StringVar(&submitBodyFile, "body-file", "", "read the review text from a file")
	f.StringVar(&submitRating, "rating", "", "rating from 1 to 5")
	f.StringArrayVar(&submitFiles, "file", nil, "evidence file to attach (repeatable)")
	submitCmd.MarkFlagsMutuallyExclusive("body", "body-file")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	draft, err := buildDraft()
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), appOptions{Wallet: true}, func(app *App) error {
		progress.Step("Submitting review of %s to %s", draft.CompanyName, app.Network.Name)
		progress.Info("%d evidence file(s), %s", len(draft.Files), evidence.HumanSize(totalSize(draft.Files)))

		result, err := app.Submissions.Submit(cmd.Context(), draft)
		if err != nil {
			return err
		}

		if err := formatter.Print(submissionView{result}); err != nil {
			return err
		}
		if !formatter.IsJSON() && result.Receipt != nil {
			output.RenderQR(cmd.OutOrStdout(), result.Receipt.ExplorerURL, output.DefaultQRConfig())
		}
		return nil
	})
}

// buildDraft turns flags into a draft. Evidence files are read and
// checked against the limits before any network work starts.
func buildDraft() (*submission.Draft, error) {
	body := submitBody
	if submitBodyFile != "" {
		data, err := os.ReadFile(submitBodyFile) //nolint:gosec // path chosen by the user
		if err != nil {
			return nil, reviewerr.Wrap(err, "reading review body")
		}
		body = string(data)
	}

	if submitRating == "" {
		return nil, reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "rating is required"),
			map[string]string{"field": "rating"},
		)
	}
	rating, err := sanitize.ParseRating(submitRating)
	if err != nil {
		return nil, err
	}

	draft := &submission.Draft{
		CompanyName: submitCompany,
		Category:    submitCategory,
		Title:       submitTitle,
		Body:        body,
		Rating:      float64(rating),
	}

	uploads := make([]evidence.Upload, 0, len(submitFiles))
	for _, path := range submitFiles {
		u, err := evidence.ReadUpload(path)
		if err != nil {
			return nil, reviewerr.WithDetails(
				reviewerr.WithCause(reviewerr.ErrFileValidation, err),
				map[string]string{"file": path},
			)
		}
		uploads = append(uploads, u)
	}
	if err := draft.AddFiles(uploads...); err != nil {
		return nil, err
	}
	return draft, nil
}

func totalSize(files []evidence.Upload) int64 {
	var n int64
	for _, f := range files {
		n += f.Size
	}
	return n
}
