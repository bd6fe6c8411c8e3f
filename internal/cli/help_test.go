package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAllCommandsHaveShortDescription walks the entire command tree and
// verifies that every command has a non-empty Short description.
func TestAllCommandsHaveShortDescription(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Short,
				"%s: missing Short description", cmd.CommandPath())
		})
	})
}

// TestAllCommandsHaveLongDescription walks the entire command tree and
// verifies that every command has a non-empty Long description.
func TestAllCommandsHaveLongDescription(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Long,
				"%s: missing Long description", cmd.CommandPath())
		})
	})
}

// TestLeafCommandsHaveExamples verifies that every leaf command has a
// non-empty Example field.
func TestLeafCommandsHaveExamples(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		if (cmd.RunE == nil && cmd.Run == nil) || cmd.Name() == "help" {
			return
		}
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Example,
				"%s: leaf command missing Example field", cmd.CommandPath())
		})
	})
}

// TestNoEmbeddedExamplesInLong ensures examples live in the Example field.
func TestNoEmbeddedExamplesInLong(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.False(t,
				strings.Contains(cmd.Long, "\nExample:") ||
					strings.Contains(cmd.Long, "\nExamples:"),
				"%s: Long contains embedded examples; move to Example field",
				cmd.CommandPath())
		})
	})
}

// TestAllFlagsHaveDescriptions verifies every registered flag has usage text.
func TestAllFlagsHaveDescriptions(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			t.Run(cmd.CommandPath()+"/--"+f.Name, func(t *testing.T) {
				assert.NotEmpty(t, f.Usage,
					"flag --%s on %s has no description", f.Name, cmd.CommandPath())
			})
		})
	})
}

// TestCommandGroupsAssigned verifies all top-level commands have a GroupID.
func TestCommandGroupsAssigned(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if !cmd.IsAvailableCommand() {
			continue
		}
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.GroupID,
				"top-level command %q missing GroupID", cmd.Name())
		})
	}
}

// TestRootHelpContainsGroups verifies the root help shows command groups.
func TestRootHelpContainsGroups(t *testing.T) {
	stdout, _, err := executeCommand(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Review Operations:")
	assert.Contains(t, stdout, "Chain & Wallet:")
	assert.Contains(t, stdout, "Configuration:")
}

// TestParentCommandsShowSubcommandsInHelp verifies parent help lists
// every available subcommand.
func TestParentCommandsShowSubcommandsInHelp(t *testing.T) {
	parents := []*cobra.Command{voteCmd, reviewCmd, txCmd, networksCmd, walletCmd, configCmd}

	for _, parent := range parents {
		t.Run(parent.Name(), func(t *testing.T) {
			buf := new(bytes.Buffer)
			parent.SetOut(buf)
			t.Cleanup(func() { parent.SetOut(nil) })
			require.NoError(t, parent.Help())

			help := buf.String()
			assert.Contains(t, help, "Available Commands:")
			for _, sub := range parent.Commands() {
				if sub.IsAvailableCommand() {
					assert.Contains(t, help, sub.Name())
				}
			}
		})
	}
}

// TestWalkCommandsVisitsAll verifies walkCommands discovers every command.
func TestWalkCommandsVisitsAll(t *testing.T) {
	var visited []string
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		visited = append(visited, cmd.CommandPath())
	})

	expected := []string{
		"reviewchain",
		"reviewchain submit",
		"reviewchain vote",
		"reviewchain vote up",
		"reviewchain vote down",
		"reviewchain comment",
		"reviewchain review show",
		"reviewchain review list",
		"reviewchain review records",
		"reviewchain tx status",
		"reviewchain tx pending",
		"reviewchain tx reconcile",
		"reviewchain networks list",
		"reviewchain networks show",
		"reviewchain wallet status",
		"reviewchain config init",
		"reviewchain config show",
		"reviewchain config get",
		"reviewchain config validate",
		"reviewchain completion",
		"reviewchain version",
	}
	for _, path := range expected {
		assert.Contains(t, visited, path, "walkCommands did not visit %q", path)
	}
}

func newNoopRun() func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {}
}

func TestEnrichParentLong(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "root"}
	parent := &cobra.Command{Use: "parent", Short: "Parent", Long: "Base description."}
	child1 := &cobra.Command{Use: "sub1", Short: "First subcommand", Run: newNoopRun()}
	child2 := &cobra.Command{Use: "sub2", Short: "Second subcommand", Run: newNoopRun()}
	hidden := &cobra.Command{Use: "secret", Short: "Hidden command", Hidden: true, Run: newNoopRun()}
	parent.AddCommand(child1, child2, hidden)
	root.AddCommand(parent)

	enrichParentLong(parent)

	assert.True(t, strings.HasPrefix(parent.Long, "Base description.\n\nSubcommands:\n"))
	assert.Contains(t, parent.Long, "sub1")
	assert.Contains(t, parent.Long, "First subcommand")
	assert.Contains(t, parent.Long, "Second subcommand")
	assert.NotContains(t, parent.Long, "secret")
}

func TestEnrichParentLong_SkipsLeafAndRoot(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "root", Long: "Root."}
	leaf := &cobra.Command{Use: "leaf", Short: "A leaf", Long: "Leaf description.", Run: newNoopRun()}
	root.AddCommand(leaf)

	enrichParentLong(leaf)
	enrichParentLong(root)

	assert.Equal(t, "Leaf description.", leaf.Long)
	assert.Equal(t, "Root.", root.Long)
}

func TestCommandShortDescriptionsAreReasonableLength(t *testing.T) {
	const maxShortLen = 80

	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.LessOrEqual(t, len(cmd.Short), maxShortLen,
				"%s: Short description too long: %q", cmd.CommandPath(), cmd.Short)
		})
	})
}

// TestExamplesContainCommandName verifies Example fields show full invocations.
func TestExamplesContainCommandName(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		if cmd.Example == "" {
			return
		}
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.Contains(t, cmd.Example, "reviewchain")
		})
	})
}

func TestMutuallyExclusiveBodyFlags(t *testing.T) {
	resetCommandState(t)
	require.NoError(t, submitCmd.Flags().Set("body", "text"))
	require.NoError(t, submitCmd.Flags().Set("body-file", "review.txt"))
	t.Cleanup(func() { resetCommandState(t) })

	err := submitCmd.ValidateFlagGroups()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestRecordsNeedsReviewerOrID(t *testing.T) {
	resetCommandState(t)
	t.Cleanup(func() { resetCommandState(t) })

	require.Error(t, reviewRecordsCmd.ValidateFlagGroups())

	require.NoError(t, reviewRecordsCmd.Flags().Set("reviewer", "0x8ba1f109551bD432803012645Ac136ddd64DBA72"))
	require.NoError(t, reviewRecordsCmd.ValidateFlagGroups())

	require.NoError(t, reviewRecordsCmd.Flags().Set("id", "abc"))
	require.Error(t, reviewRecordsCmd.ValidateFlagGroups())
}

// TestHelpOutputContainsGlobalFlags verifies leaf help includes inherited flags.
func TestHelpOutputContainsGlobalFlags(t *testing.T) {
	buf := new(bytes.Buffer)
	submitCmd.SetOut(buf)
	t.Cleanup(func() { submitCmd.SetOut(nil) })
	require.NoError(t, submitCmd.Help())

	help := buf.String()
	assert.Contains(t, help, "--home")
	assert.Contains(t, help, "--network")
	assert.Contains(t, help, "--yes")
	assert.Contains(t, help, "Examples:")
}
