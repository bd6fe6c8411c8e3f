package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reviewchain/reviewchain/internal/config"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and initialize the reviewchain configuration file.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.reviewchain/config.yaml.

An existing file is only replaced when --force is given.`,
	Example: "  reviewchain config init\n  reviewchain config init --force --home /srv/reviewchain",
	Args:    cobra.NoArgs,
	RunE:    runConfigInit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration after environment variables and
flags are applied. Credentials inside the store DSN are masked.`,
	Example: "  reviewchain config show\n  reviewchain config show -o json",
	Args:    cobra.NoArgs,
	RunE:    runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:     "get <path>",
	Short:   "Get a configuration value",
	Long:    `Print one value of the effective configuration using dot notation.`,
	Example: "  reviewchain config get tx.gas_ceiling\n  reviewchain config get lock.backend",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigGet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configValidateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Validate the configuration",
	Long:    `Load the configuration file and report the first invalid setting, if any.`,
	Example: `  reviewchain config validate`,
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Validation already ran while loading; reaching here means it passed.
		return formatter.Printf("configuration at %s is valid\n", config.Path(cfg.Home))
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.GroupID = groupConfig
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configValidateCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := config.Path(cfg.Home)
	if _, err := os.Stat(path); err == nil && !configForce {
		return reviewerr.WithSuggestion(
			reviewerr.Newf(reviewerr.ErrGeneral, "configuration already exists at %s", path),
			"use --force to overwrite it",
		)
	}

	if err := config.Save(defaultsUnder(cfg.Home), path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Configuration initialized at %s\n\n", path)
	_, _ = fmt.Fprintln(w, "Edit this file to configure:")
	_, _ = fmt.Fprintln(w, "  - default_network: network used when --network is not given")
	_, _ = fmt.Fprintln(w, "  - networks: RPC endpoints and contract addresses")
	_, _ = fmt.Fprintln(w, "  - evidence.backend: local, s3 or gcs")
	_, _ = fmt.Fprintln(w, "  - lock.backend: memory or redis")
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	tree, err := configTree(cfg)
	if err != nil {
		return err
	}
	return formatter.Print(configView{tree})
}

func runConfigGet(_ *cobra.Command, args []string) error {
	tree, err := configTree(cfg)
	if err != nil {
		return err
	}
	value, ok := lookupPath(tree, args[0])
	if !ok {
		return reviewerr.WithSuggestion(
			reviewerr.Newf(reviewerr.ErrNotFound, "configuration path %q not found", args[0]),
			"run 'reviewchain config show' to list available keys",
		)
	}
	if !formatter.IsJSON() {
		if m, isMap := value.(map[string]any); isMap {
			return formatter.Print(configView{m})
		}
		return formatter.Printf("%v\n", value)
	}
	return formatter.Print(value)
}

// configTree converts the config into a generic tree keyed by yaml names,
// with secrets masked.
func configTree(c *config.Config) (map[string]any, error) {
	masked := *c
	masked.Store.DSN = maskDSN(c.Store.DSN)

	raw, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, err
	}
	tree := map[string]any{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func lookupPath(tree map[string]any, path string) (any, bool) {
	var cur any = tree
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// maskDSN hides the password of URL-style DSNs.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, set := u.User.Password(); set {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

type configView struct {
	Tree map[string]any
}

func (v configView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Tree)
}

func (v configView) RenderText(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v.Tree); err != nil {
		return err
	}
	return enc.Close()
}
