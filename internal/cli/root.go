// Package cli implements the reviewchain command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/config"
	"github.com/reviewchain/reviewchain/internal/metrics"
	"github.com/reviewchain/reviewchain/internal/output"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Command groups shown in root help.
const (
	groupReviews = "reviews"
	groupChain   = "chain"
	groupConfig  = "config"
)

// shutdownTimeout bounds telemetry flushing at exit.
const shutdownTimeout = 5 * time.Second

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	quiet        bool
	networkFlag  string
	assumeYes    bool
	keystorePath string

	buildInfo BuildInfo
	helpOnce  sync.Once

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *zap.Logger
	closeLog  func() error
	formatter *output.Formatter
	progress  *output.Progress
	telemetry *metrics.Provider
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reviewchain",
	Short: "Submit and curate company reviews recorded on-chain",
	Long: `reviewchain writes company reviews to a ReviewRegistry contract on an
EVM network. Evidence files are validated, stored off-chain, and bound to
the review by a manifest hash so anyone can verify them later.

Reviews can be voted on and commented, and every transaction the CLI
broadcasts is tracked locally until it is confirmed or failed.`,
	Example: `  reviewchain submit --company "Acme" --category services --title "Great" \
      --body "Fast delivery" --rating 5 --file invoice.pdf
  reviewchain vote up 42
  reviewchain review show 42 -o json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
}

// SetBuildInfo records version metadata for the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// Execute runs the root command under ctx and reports any error on stderr.
func Execute(ctx context.Context) error {
	helpOnce.Do(finalizeHelp)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger != nil {
			logger.Error("command failed", zap.String("code", reviewerr.Code(err)), zap.Error(err))
		}
		// PersistentPostRun is skipped when a command fails.
		cleanup(ctx)

		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(rootCmd.ErrOrStderr(), err, format)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return reviewerr.ExitCode(err)
}

// initGlobals loads configuration and builds the logger and formatter.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(config.ExpandPath(home)))
	switch {
	case reviewerr.Is(err, reviewerr.ErrConfigNotFound):
		cfg = defaultsUnder(config.ExpandPath(home))
	case err != nil:
		return err
	}

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	cfg.Home = config.ExpandPath(cfg.Home)
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		cfg.Output.DefaultFormat = outputFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err = config.NewLogger(cfg.Logging)
	if err != nil {
		// A broken log file must not block the command.
		logger, closeLog = zap.NewNop(), func() error { return nil }
	}

	if cfg.Telemetry.Enabled {
		telemetry, err = metrics.NewProvider(cfg.Telemetry.ServiceName)
		if err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
			telemetry = nil
		}
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), cmd.OutOrStdout())
	progress = output.NewProgress(cmd.ErrOrStderr(), quiet || (formatter.IsJSON() && !cfg.Output.Verbose))
	return nil
}

// defaultsUnder returns the default configuration with every data path
// placed under home.
func defaultsUnder(home string) *config.Config {
	c := config.Defaults()
	c.Home = home
	c.Evidence.Dir = filepath.Join(home, "evidence")
	c.Store.DSN = filepath.Join(home, "reviewchain.db")
	c.Logging.File = filepath.Join(home, "reviewchain.log")
	return c
}

// cleanup flushes telemetry and closes the log. It is safe to call twice.
func cleanup(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if telemetry != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if snap, err := telemetry.Snapshot(flushCtx); err == nil {
			logger.Info("telemetry snapshot",
				zap.Any("counters", snap.Counters),
				zap.Float64("cache_hit_rate", snap.CacheHitRate()),
			)
			if cfg.Output.Verbose {
				printSnapshot(snap)
			}
		}
		_ = telemetry.Shutdown(flushCtx)
		cancel()
		telemetry = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

func printSnapshot(snap metrics.Snapshot) {
	tbl := output.NewTable("SERIES", "VALUE").AlignRight(1)
	for _, key := range slices.Sorted(maps.Keys(snap.Counters)) {
		tbl.AddRow(key, fmt.Sprintf("%d", snap.Counters[key]))
	}
	_ = tbl.Render(rootCmd.ErrOrStderr())
}

// metricsHandle returns the live instruments, or nil when telemetry is off.
func metricsHandle() *metrics.Metrics {
	if telemetry == nil {
		return nil
	}
	return telemetry.Metrics
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	// Assigned here rather than in the literal to break the
	// rootCmd -> cleanup -> printSnapshot -> rootCmd initialization cycle.
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, _ []string) {
		cleanup(cmd.Context())
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: groupReviews, Title: "Review Operations:"},
		&cobra.Group{ID: groupChain, Title: "Chain & Wallet:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID(groupConfig)

	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "reviewchain data directory (default: ~/.reviewchain)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output and debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress messages")
	rootCmd.PersistentFlags().StringVarP(&networkFlag, "network", "n", "", "network id to use (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "approve wallet signing prompts without asking")
	rootCmd.PersistentFlags().StringVar(&keystorePath, "keystore", "", "path to an encrypted keystore file for signing")
}
