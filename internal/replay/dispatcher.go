package replay

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// capturedCommand is the result of the most recent command listing.
type capturedCommand struct {
	index  int
	result sourcetree.CommandResult
}

// Dispatcher applies a single listing to the source tree according to its type.
type Dispatcher struct {
	tree SourceTree
	last *capturedCommand
}

// NewDispatcher creates a Dispatcher over tree.
func NewDispatcher(tree SourceTree) *Dispatcher {
	return &Dispatcher{tree: tree}
}

// Reset forgets the captured command result. Called after a fast-forward,
// when the tree no longer reflects the last command that ran.
func (d *Dispatcher) Reset() {
	d.last = nil
}

// Dispatch replays listings[index].
func (d *Dispatcher) Dispatch(ctx context.Context, listings []models.Listing, index int) error {
	switch l := listings[index].(type) {
	case *models.CodeListingWithRef:
		return d.applyCodeWithRef(ctx, index, l)
	case *models.CodeListing:
		return d.applyCode(index, l)
	case *models.CommandListing:
		return d.runCommand(ctx, index, l)
	case *models.OutputListing:
		return d.compareOutput(ctx, listings, index, l)
	default:
		typ := "<nil>"
		if l != nil {
			typ = string(l.Type())
		}
		return &models.UnknownListingTypeError{Index: index, Type: typ}
	}
}

func (d *Dispatcher) applyCode(index int, l *models.CodeListing) error {
	if err := d.tree.WriteFile(l.Path, []byte(l.Content)); err != nil {
		return &ListingError{Index: index, Err: err}
	}
	return nil
}

func (d *Dispatcher) applyCodeWithRef(ctx context.Context, index int, l *models.CodeListingWithRef) error {
	commit, err := d.tree.GetCommitSpec(ctx, l.GitRef)
	if err != nil {
		return &ListingError{Index: index, Err: err}
	}
	if err := d.applyCode(index, &l.CodeListing); err != nil {
		return err
	}

	expected, err := d.tree.ShowFile(ctx, commit, l.Path)
	if err != nil {
		return &ListingError{Index: index, Err: err}
	}
	if normalizeText(expected) != normalizeText(l.Content) {
		return &ContentMismatchError{Index: index, Path: l.Path, Ref: l.GitRef}
	}

	if err := d.tree.Stage(ctx); err != nil {
		return &ListingError{Index: index, Err: err}
	}
	if err := d.tree.Checkout(ctx, commit); err != nil {
		return &ListingError{Index: index, Err: err}
	}

	head, err := d.tree.Head(ctx)
	if err != nil {
		return &ListingError{Index: index, Err: err}
	}
	if head != commit {
		return &ListingError{Index: index, Err: &sourcetree.CheckoutError{
			Spec: l.GitRef,
			Err:  fmt.Errorf("HEAD is %s after checkout, want %s", head, commit),
		}}
	}
	return nil
}

func (d *Dispatcher) runCommand(ctx context.Context, index int, l *models.CommandListing) error {
	result, err := d.tree.RunCommand(ctx, l.Content)
	if err != nil {
		return &ListingError{Index: index, Err: err}
	}
	d.last = &capturedCommand{index: index, result: result}

	if !result.Succeeded() && !l.ExpectFailure {
		return &CommandFailureError{
			Index:    index,
			Command:  l.Content,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}
	return nil
}

func (d *Dispatcher) compareOutput(ctx context.Context, listings []models.Listing, index int, l *models.OutputListing) error {
	result, err := d.precedingResult(ctx, listings, index)
	if err != nil {
		return err
	}

	// Commands that are expected to fail usually print to stderr.
	actual := result.Stdout
	if strings.TrimSpace(actual) == "" {
		actual = result.Combined()
	}

	if normalizeText(actual) != normalizeText(l.Content) {
		return &OutputMismatchError{
			Index:    index,
			Expected: normalizeText(l.Content),
			Actual:   normalizeText(actual),
		}
	}
	return nil
}

// precedingResult returns the result of the nearest command listing before
// index. That command's captured result is used when there is one; otherwise
// (after a fast-forward) the command is run again. A skipped command never
// ran, so its output cannot be checked against an older command's stdout.
func (d *Dispatcher) precedingResult(ctx context.Context, listings []models.Listing, index int) (sourcetree.CommandResult, error) {
	for i := index - 1; i >= 0; i-- {
		cmd, ok := listings[i].(*models.CommandListing)
		if !ok {
			continue
		}
		if cmd.Skip {
			return sourcetree.CommandResult{}, &OutputMismatchError{
				Index:    index,
				Expected: normalizeText(listings[index].State().Content),
				Reason:   fmt.Sprintf("preceding command listing %d was skipped", i),
			}
		}
		if d.last != nil && d.last.index == i {
			return d.last.result, nil
		}

		result, err := d.tree.RunCommand(ctx, cmd.Content)
		if err != nil {
			return sourcetree.CommandResult{}, &ListingError{Index: index, Err: err}
		}
		d.last = &capturedCommand{index: i, result: result}
		return result, nil
	}

	return sourcetree.CommandResult{}, &OutputMismatchError{
		Index:    index,
		Expected: normalizeText(listings[index].State().Content),
		Reason:   "no preceding command listing",
	}
}

// normalizeText puts text into a comparable form: NFC, LF line endings, no
// trailing whitespace on any line and no trailing blank lines.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
