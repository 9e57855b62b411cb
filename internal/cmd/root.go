package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for booktester
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booktester",
		Short: "Replay and verify the code listings of a programming book",
		Long: `Booktester replays a chapter's code listings against a git working copy
of the book's example project.

Each chapter starts from the previous chapter's final commit. Code listings
are written to disk, commands are executed and their output compared with
the printed output, and at the end the working tree must match the
chapter's own final commit.

Configuration is loaded from .booktester/config.yaml in the project root.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main prints the error and picks the exit code
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .booktester/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("log-dir", "", "Directory for run logs")
	cmd.PersistentFlags().String("repo", "", "Git working copy to replay listings in")
	cmd.PersistentFlags().String("book", "", "Directory holding chapter configuration files")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid usage", err)
	})

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid usage", err)
		}
		return nil
	}
}
