package replay

import (
	"context"
	"errors"
	"time"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// SkipInstruction is an explicit skip applied before replay starts.
type SkipInstruction struct {
	Index  int
	Reason string
}

// ResumePoint lets a run start partway through a chapter: listings before
// Pos are trusted and the tree is checked out at Commit.
type ResumePoint struct {
	Pos    int
	Commit string
}

// Options configures one chapter run.
type Options struct {
	// StartFrom is checked out before replay. Defaults to the previous chapter.
	StartFrom string

	// ExpectedEnd is the commit the final tree is compared against.
	// Defaults to the chapter name.
	ExpectedEnd string

	// Setup commands run once after checkout, before any listing.
	Setup []string

	Skips  []SkipInstruction
	Checks []SanityCheck

	// ResumeFrom, when set, fast-forwards before the first listing.
	ResumeFrom *ResumePoint

	// Ignore lists diff categories the final state check tolerates.
	Ignore sourcetree.CategorySet
}

// Execute replays a whole chapter: checkout, sanity checks, setup, skips,
// optional resume, every listing, then coverage and final-state checks.
// The returned result is always non-nil and describes the failure, if any.
func Execute(ctx context.Context, tree SourceTree, run *models.ChapterRun, opts Options, logger Logger) (*models.RunResult, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	result := models.NewRunResult(run, time.Now())
	runner := NewRunner(run, tree, logger)

	err := execute(ctx, tree, runner, opts, logger)

	result.Duration = time.Since(result.StartedAt)
	result.Finalize(run, err)
	result.FailedIndex = FailedIndex(err)
	var de *DivergenceError
	if errors.As(err, &de) {
		result.Divergence = de.Diff.Lines()
	}
	logger.LogSummary(result)
	return result, err
}

func execute(ctx context.Context, tree SourceTree, runner *Runner, opts Options, logger Logger) error {
	run := runner.ChapterRun()
	logger.LogChapterStart(run)

	start := opts.StartFrom
	if start == "" {
		start = run.PreviousChapter
	}
	if err := tree.Checkout(ctx, start); err != nil {
		return err
	}

	if err := CheckSanity(run.Listings, opts.Checks); err != nil {
		return err
	}

	for _, cmd := range opts.Setup {
		res, err := tree.RunCommand(ctx, cmd)
		if err != nil {
			return &ListingError{Index: -1, Err: err}
		}
		if !res.Succeeded() {
			return &CommandFailureError{
				Index:    -1,
				Command:  cmd,
				ExitCode: res.ExitCode,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
			}
		}
	}

	for _, s := range opts.Skips {
		if err := runner.Skip(s.Index, s.Reason); err != nil {
			return err
		}
	}

	if rp := opts.ResumeFrom; rp != nil {
		if err := runner.FastForward(ctx, rp.Pos, rp.Commit); err != nil {
			return err
		}
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}

	if err := AssertAllChecked(run.Listings); err != nil {
		return err
	}

	end := opts.ExpectedEnd
	if end == "" {
		end = run.ChapterName
	}
	return AssertFinalState(ctx, tree, end, opts.Ignore)
}
