// Package replay drives a chapter's listings against a working copy and
// verifies the result.
//
// A Runner owns the cursor over a ChapterRun. Each Advance hands the listing
// at the cursor to the Dispatcher, which applies it to the SourceTree. Skips
// and fast-forwards are the only ways a listing becomes checked without
// being replayed, and both are explicit calls.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// SourceTree is the working copy the listings are replayed against.
// *sourcetree.Tree implements it.
type SourceTree interface {
	Checkout(ctx context.Context, commitSpec string) error
	RunCommand(ctx context.Context, cmd string) (sourcetree.CommandResult, error)
	GetCommitSpec(ctx context.Context, tag string) (string, error)
	Diff(ctx context.Context, against string, ignore sourcetree.CategorySet) (*sourcetree.Diff, error)
	WriteFile(path string, content []byte) error
	ShowFile(ctx context.Context, commit, path string) (string, error)
	Stage(ctx context.Context) error
	Head(ctx context.Context) (string, error)
}

// Runner is the position/skip state machine over a ChapterRun.
type Runner struct {
	run        *models.ChapterRun
	tree       SourceTree
	dispatcher *Dispatcher
	logger     Logger
}

// NewRunner creates a Runner for run. A nil logger discards progress events.
func NewRunner(run *models.ChapterRun, tree SourceTree, logger Logger) *Runner {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Runner{
		run:        run,
		tree:       tree,
		dispatcher: NewDispatcher(tree),
		logger:     logger,
	}
}

// ChapterRun returns the run being driven.
func (r *Runner) ChapterRun() *models.ChapterRun {
	return r.run
}

// State returns the current state of the cursor.
func (r *Runner) State() models.RunState {
	return r.run.State()
}

// Advance processes the listing at the cursor and moves past it.
// On error the cursor stays on the failing listing.
func (r *Runner) Advance(ctx context.Context) error {
	if r.run.State() == models.StateDone {
		return &StateError{Op: "advance", Pos: r.run.Pos, State: models.StateDone, Msg: "no listings left"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	index := r.run.Pos
	listing := r.run.Listings[index]
	st := listing.State()

	switch {
	case st.Checked:
		// Explicitly skipped ahead of time; nothing to do.
	case st.Skip:
		r.markSkipped(index, st.SkipReason)
	default:
		r.logger.LogListingStart(index, listing)
		start := time.Now()
		if err := r.dispatcher.Dispatch(ctx, r.run.Listings, index); err != nil {
			return err
		}
		st.Checked = true
		r.logger.LogListingChecked(index, listing, time.Since(start))
	}

	r.run.Pos++
	return nil
}

// Skip marks the listing at index as skipped and checked. Only listings the
// cursor has not reached yet may be skipped.
func (r *Runner) Skip(index int, reason string) error {
	if index < 0 || index >= len(r.run.Listings) {
		return &StateError{Op: "skip", Pos: r.run.Pos, State: r.run.State(),
			Msg: fmt.Sprintf("index %d out of range [0, %d)", index, len(r.run.Listings))}
	}
	if index < r.run.Pos {
		return &StateError{Op: "skip", Pos: r.run.Pos, State: r.run.State(),
			Msg: fmt.Sprintf("listing %d has already been processed", index)}
	}
	r.markSkipped(index, reason)
	return nil
}

func (r *Runner) markSkipped(index int, reason string) {
	listing := r.run.Listings[index]
	st := listing.State()
	st.Skip = true
	st.Checked = true
	if reason != "" {
		st.SkipReason = reason
	}
	r.logger.LogListingSkipped(index, listing)
}

// FastForward checks out toCommit and jumps the cursor to targetPos. Every
// listing the jump passes over becomes checked and trusted: it is assumed
// correct because the commit it leads to is.
func (r *Runner) FastForward(ctx context.Context, targetPos int, toCommit string) error {
	from := r.run.Pos
	if targetPos < from {
		return &StateError{Op: "fast-forward", Pos: from, State: r.run.State(),
			Msg: fmt.Sprintf("cannot move backwards to %d", targetPos)}
	}
	if targetPos > len(r.run.Listings) {
		return &StateError{Op: "fast-forward", Pos: from, State: r.run.State(),
			Msg: fmt.Sprintf("target %d is past the last listing (%d)", targetPos, len(r.run.Listings))}
	}

	commit, err := r.tree.GetCommitSpec(ctx, toCommit)
	if err != nil {
		return &sourcetree.CheckoutError{Spec: toCommit, Err: err}
	}
	if err := r.tree.Checkout(ctx, commit); err != nil {
		return err
	}

	for i := from; i < targetPos; i++ {
		st := r.run.Listings[i].State()
		if !st.Checked {
			st.Checked = true
			st.Trusted = true
		}
	}
	r.run.Pos = targetPos
	r.dispatcher.Reset()
	r.logger.LogFastForward(from, targetPos, toCommit)
	return nil
}

// Run advances until every listing has been processed or one fails.
func (r *Runner) Run(ctx context.Context) error {
	for r.run.State() != models.StateDone {
		if err := r.Advance(ctx); err != nil {
			return err
		}
	}
	return nil
}
