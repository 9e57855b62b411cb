package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/booktester/internal/config"
	"github.com/harrison/booktester/internal/history"
	"github.com/harrison/booktester/internal/logger"
	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/parser"
	"github.com/harrison/booktester/internal/replay"
	"github.com/harrison/booktester/internal/sourcetree"
)

// ResumeEnv activates the chapter's configured resume point, like --resume.
const ResumeEnv = "BOOKTESTER_RESUME"

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <chapter>...",
		Short: "Replay and verify one or more chapters",
		Long: `Replay every listing of each chapter against the git working copy and
verify the result.

A chapter is either a path to its configuration file or a bare chapter name,
looked up as <book_dir>/<name>.yaml. Chapters run one after another; each
starts from its previous chapter's commit, so a failure in one does not stop
the rest.

With --resume (or BOOKTESTER_RESUME=1) a chapter that declares a resume_point
starts there: earlier listings are trusted without being replayed.

Examples:
  booktester run chapter_21_mocking_2
  booktester run book/chapter_21_mocking_2.yaml --resume
  booktester run ch20 ch21 --format json > report.json`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: runCommand,
	}

	cmd.Flags().Bool("resume", false, "Start chapters at their configured resume point")
	cmd.Flags().String("format", "text", "Report format: text or json")
	cmd.Flags().String("timeout", "", "Maximum time per chapter (e.g., 10m, 1h)")
	cmd.Flags().Bool("no-history", false, "Do not record runs in the history database")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validFormat(format); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("timeout") {
		timeoutStr, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid timeout format %q", timeoutStr), err)
		}
		cfg.MergeWithFlags(nil, nil, nil, nil, &timeout)
		if err := cfg.Validate(); err != nil {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
	}

	resume, err := resumeRequested(cmd)
	if err != nil {
		return err
	}

	// JSON goes to stdout untouched; progress moves to stderr.
	var progressOut io.Writer = cmd.OutOrStdout()
	if format == "json" {
		progressOut = cmd.ErrOrStderr()
	}
	consoleLog := logger.NewConsoleLogger(progressOut, cfg.LogLevel)

	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create file logger", err)
	}
	defer fileLog.Close()

	log := logger.NewMultiLogger(consoleLog, fileLog)

	var store *history.Store
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory && cfg.HistoryDB != "" {
		store, err = history.NewStore(cfg.HistoryDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer store.Close()
	}

	tree := sourcetree.New(cfg.RepoDir)
	tree.Exclude(cfg.StatePaths()...)
	if err := tree.Lock(); err != nil {
		if errors.Is(err, sourcetree.ErrWorkingCopyBusy) {
			return WrapExitError(ExitCommandError, "another run owns the working copy", err)
		}
		return WrapExitError(ExitCommandError, "failed to lock working copy", err)
	}
	defer tree.Unlock()

	// Checkout refuses to clobber local edits, so flag them up front.
	if clean, err := tree.IsCleanState(cmd.Context()); err != nil {
		log.LogDebug(fmt.Sprintf("Could not inspect working copy: %v", err))
	} else if !clean {
		log.LogWarn(fmt.Sprintf("Working copy %s has uncommitted changes; checkouts may be refused", cfg.RepoDir))
	}

	r := &chapterRunner{cfg: cfg, tree: tree, store: store, log: log, resume: resume}
	var results []*models.RunResult
	for _, arg := range args {
		path := config.ResolveChapterPath(cfg.BookDir, arg)
		result, err := r.run(cmd.Context(), path)
		if result == nil {
			return err
		}
		results = append(results, result)
	}

	formatter := &OutputFormatter{Format: format, Writer: cmd.OutOrStdout()}
	if err := formatter.Report(results); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	failed := 0
	for _, res := range results {
		if !res.Passed {
			failed++
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d chapter(s) failed", failed, len(results)))
	}
	return nil
}

var _ replay.SourceTree = (*sourcetree.Tree)(nil)

// chapterRunner replays chapters one at a time against a locked tree.
type chapterRunner struct {
	cfg    *config.Config
	tree   replay.SourceTree
	store  *history.Store
	log    logger.Logger
	resume bool
}

// run replays one chapter. A nil result means the chapter could not even be
// set up and err is an ExitError; otherwise err describes the failure the
// result already records.
func (r *chapterRunner) run(ctx context.Context, path string) (*models.RunResult, error) {
	ch, err := config.LoadChapter(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load chapter", err)
	}

	opts, err := buildOptions(ch, r.cfg, r.resume)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid chapter %s", ch.Chapter), err)
	}
	if r.resume && opts.ResumeFrom == nil {
		r.log.LogDebug(fmt.Sprintf("Chapter %s has no resume_point, replaying from the start", ch.Chapter))
	}

	listings, err := parser.ParseChapter(ch.SourcePath())
	if err != nil {
		// A chapter whose text cannot be classified fails like any other
		// chapter rather than aborting the whole run.
		result := models.NewRunResult(models.NewChapterRun(ch.Chapter, ch.PreviousChapter, nil), time.Now())
		result.FailedIndex = replay.FailedIndex(err)
		result.Error = err.Error()
		r.log.LogError(fmt.Sprintf("Chapter %s: %v", ch.Chapter, err))
		r.record(ctx, result)
		return result, err
	}

	if r.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CommandTimeout)
		defer cancel()
	}

	run := models.NewChapterRun(ch.Chapter, ch.PreviousChapter, listings)
	result, err := replay.Execute(ctx, r.tree, run, opts, r.log)
	r.record(ctx, result)
	return result, err
}

func (r *chapterRunner) record(ctx context.Context, result *models.RunResult) {
	if r.store == nil {
		return
	}
	// The run context may have timed out; recording must still happen.
	if err := r.store.Record(context.WithoutCancel(ctx), result); err != nil {
		r.log.LogWarn(fmt.Sprintf("Failed to record run in history: %v", err))
	}
}

// buildOptions turns a chapter configuration into replay options. The resume
// point is only used when resume is requested.
func buildOptions(ch *config.ChapterConfig, cfg *config.Config, resume bool) (replay.Options, error) {
	ignore, err := sourcetree.NewCategorySet(ch.IgnoreList(cfg.Ignore)...)
	if err != nil {
		return replay.Options{}, fmt.Errorf("ignore: %w", err)
	}

	opts := replay.Options{
		Setup:  ch.Setup,
		Ignore: ignore,
	}
	for _, s := range ch.Skips {
		opts.Skips = append(opts.Skips, replay.SkipInstruction{Index: s.Index, Reason: s.Reason})
	}
	for _, c := range ch.Checks {
		check := replay.SanityCheck{Index: c.Index, Skip: c.Skip}
		if c.Type != "" {
			if check.Type, err = config.ParseListingType(c.Type); err != nil {
				return replay.Options{}, fmt.Errorf("checks: listing %d: %w", c.Index, err)
			}
		}
		opts.Checks = append(opts.Checks, check)
	}
	if resume && ch.ResumePoint != nil {
		opts.ResumeFrom = &replay.ResumePoint{Pos: ch.ResumePoint.Pos, Commit: ch.ResumePoint.Commit}
	}
	return opts, nil
}

// resumeRequested reports whether resume points are active. The flag wins
// over the environment; any non-empty environment value other than a false
// boolean counts as set.
func resumeRequested(cmd *cobra.Command) (bool, error) {
	if cmd.Flags().Changed("resume") {
		return cmd.Flags().GetBool("resume")
	}
	v := os.Getenv(ResumeEnv)
	if v == "" {
		return false, nil
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b, nil
	}
	return true, nil
}
