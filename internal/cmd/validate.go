package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/booktester/internal/config"
	"github.com/harrison/booktester/internal/logger"
	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/parser"
	"github.com/harrison/booktester/internal/replay"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <chapter>...",
		Short: "Check chapter configuration and listings without replaying",
		Long: `Parse and validate chapters, checking for:
  - Chapter configuration errors (missing fields, unknown keys)
  - Listings whose type cannot be determined
  - Skips pointing past the end of the chapter
  - Sanity checks that do not match the parsed listings

Nothing is written to the working copy.

Exit code: 0 if valid, 1 if errors found, 2 on configuration errors`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			paths := make([]string, len(args))
			for i, arg := range args {
				paths[i] = config.ResolveChapterPath(cfg.BookDir, arg)
			}
			return validateChapters(paths, cfg, cmd.OutOrStdout())
		},
	}

	return cmd
}

// validateChapters validates every chapter and reports each one, returning an
// ExitError when any is invalid.
func validateChapters(paths []string, cfg *config.Config, output io.Writer) error {
	invalid := 0
	for _, path := range paths {
		if err := validateChapter(path, cfg, output); err != nil {
			fmt.Fprintf(output, "✗ %s: %v\n", path, err)
			invalid++
		}
	}
	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d chapter(s) invalid", invalid, len(paths)))
	}
	return nil
}

// validateChapter loads, parses and sanity checks one chapter.
func validateChapter(path string, cfg *config.Config, output io.Writer) error {
	ch, err := config.LoadChapter(path)
	if err != nil {
		return err
	}

	opts, err := buildOptions(ch, cfg, false)
	if err != nil {
		return err
	}

	listings, err := parser.ParseChapter(ch.SourcePath())
	if err != nil {
		return err
	}

	// Same order as a run: checks see the parsed skip flags, then the
	// configured skips must land inside the chapter.
	if err := replay.CheckSanity(listings, opts.Checks); err != nil {
		return err
	}
	run := models.NewChapterRun(ch.Chapter, ch.PreviousChapter, listings)
	runner := replay.NewRunner(run, nil, logger.NewNoOpLogger())
	for _, s := range opts.Skips {
		if err := runner.Skip(s.Index, s.Reason); err != nil {
			return err
		}
	}

	counts := make(map[models.ListingType]int)
	skipped := 0
	for _, l := range listings {
		counts[l.Type()]++
		if l.State().Skip {
			skipped++
		}
	}
	fmt.Fprintf(output, "✓ %s (from %s): %d listings", ch.Chapter, ch.PreviousChapter, len(listings))
	for _, t := range models.KnownListingTypes {
		if n := counts[t]; n > 0 {
			fmt.Fprintf(output, ", %s: %d", t, n)
		}
	}
	fmt.Fprintf(output, ", %d skipped\n", skipped)
	return nil
}
