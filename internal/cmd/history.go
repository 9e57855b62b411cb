package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/booktester/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past chapter runs",
		Long: `List recorded chapter runs from the history database, most recent first.

Examples:
  booktester history
  booktester history --chapter chapter_21_mocking_2 --limit 5
  booktester history --format json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: historyCommand,
	}

	cmd.Flags().String("chapter", "", "Only show runs of this chapter")
	cmd.Flags().Int("limit", history.DefaultLimit, "Maximum number of runs to show")
	cmd.Flags().String("format", "text", "Output format: text or json")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validFormat(format); err != nil {
		return err
	}
	chapter, _ := cmd.Flags().GetString("chapter")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must be >= 1, got %d", limit))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{Format: format, Writer: cmd.OutOrStdout()}

	// Opening would create an empty database; a missing file just means
	// nothing has been recorded yet.
	if _, err := os.Stat(cfg.HistoryDB); os.IsNotExist(err) {
		return formatter.History(nil)
	}

	store, err := history.NewStore(cfg.HistoryDB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), chapter, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	return formatter.History(runs)
}
