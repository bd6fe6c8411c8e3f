package cli

import (
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List supported networks",
	Long: `Show the built-in networks merged with any networks from the configuration
file. Reviews can only be written where the review registry is deployed.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networksListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all networks",
	Long:    `List every configured network. The default network is marked with *.`,
	Example: "  reviewchain networks list\n  reviewchain networks list -o json",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		return formatter.Print(networksView{
			Default:  registry.Default().ID,
			Networks: registry.All(),
		})
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networksShowCmd = &cobra.Command{
	Use:     "show [network-id]",
	Short:   "Show one network",
	Long:    `Show the profile of one network, or of the selected network when no id is given.`,
	Example: "  reviewchain networks show amoy\n  reviewchain networks show --network polygon",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		profile, err := selectNetwork(registry)
		if len(args) == 1 {
			profile, err = registry.ByID(args[0])
		}
		if err != nil {
			return err
		}
		return formatter.Print(profileView{Profile: profile, Deployed: profile.IsContractsDeployed()})
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(networksCmd)
	networksCmd.GroupID = groupChain
	networksCmd.AddCommand(networksListCmd, networksShowCmd)
}
