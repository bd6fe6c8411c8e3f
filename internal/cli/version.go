package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	Long:    `Print the reviewchain version, the commit it was built from and the build date.`,
	Example: "  reviewchain version\n  reviewchain version -o json",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return formatter.Print(versionView(buildInfo))
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.GroupID = groupConfig
}

// formatVersion renders build info with placeholders for unset fields.
func formatVersion(info BuildInfo) string {
	version, commit, date := info.Version, info.Commit, info.Date
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

type versionView BuildInfo

func (v versionView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "reviewchain %s\n", formatVersion(BuildInfo(v)))
	return err
}
