package replay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// CommandFailureError is returned when a command listing exits non-zero and
// the listing was not annotated as expected to fail.
type CommandFailureError struct {
	Index    int // Listing index, or -1 for a setup command
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error implements the error interface.
func (e *CommandFailureError) Error() string {
	var sb strings.Builder
	if e.Index < 0 {
		sb.WriteString(fmt.Sprintf("setup command %q exited with status %d", e.Command, e.ExitCode))
	} else {
		sb.WriteString(fmt.Sprintf("listing %d: command %q exited with status %d", e.Index, e.Command, e.ExitCode))
	}
	if out := strings.TrimSpace(e.Stdout + e.Stderr); out != "" {
		sb.WriteString(fmt.Sprintf("\nOutput:\n%s", out))
	}
	return sb.String()
}

// OutputMismatchError is returned when observed command output disagrees
// with an output listing.
type OutputMismatchError struct {
	Index    int
	Expected string
	Actual   string
	Reason   string // Set when there was nothing to compare against
}

// Error implements the error interface.
func (e *OutputMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("listing %d: output mismatch: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("listing %d: output mismatch\n--- expected\n%s\n--- actual\n%s", e.Index, e.Expected, e.Actual)
}

// ContentMismatchError is returned when a code listing differs from the
// version of the file recorded at its git ref.
type ContentMismatchError struct {
	Index int
	Path  string
	Ref   string
}

// Error implements the error interface.
func (e *ContentMismatchError) Error() string {
	return fmt.Sprintf("listing %d: %s does not match its version at %s", e.Index, e.Path, e.Ref)
}

// CoverageError is returned at the end of a run if a listing was never checked.
type CoverageError struct {
	Index   int    // First unchecked listing
	Listing string // Short description of that listing
}

// Error implements the error interface.
func (e *CoverageError) Error() string {
	return fmt.Sprintf("listing %d was never checked: %s", e.Index, e.Listing)
}

// DivergenceError is returned when the final tree differs from the chapter's
// end commit beyond the ignored categories.
type DivergenceError struct {
	Diff *sourcetree.Diff
}

// Error implements the error interface.
func (e *DivergenceError) Error() string {
	return fmt.Sprintf("working tree diverges from %s:\n  %s",
		e.Diff.Against, strings.Join(e.Diff.Lines(), "\n  "))
}

// StateError is returned for an illegal state machine transition.
type StateError struct {
	Op    string
	Pos   int
	State models.RunState
	Msg   string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s at pos %d (%s): %s", e.Op, e.Pos, e.State, e.Msg)
}

// SanityError is returned when a parsed listing does not look the way the
// chapter configuration says it should.
type SanityError struct {
	Index int
	Msg   string
}

// Error implements the error interface.
func (e *SanityError) Error() string {
	return fmt.Sprintf("listing %d: sanity check failed: %s", e.Index, e.Msg)
}

// ListingError attaches a listing index to an error from a collaborator.
type ListingError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *ListingError) Error() string {
	return fmt.Sprintf("listing %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListingError) Unwrap() error {
	return e.Err
}

// FailedIndex extracts the listing index an error is about.
// Returns -1 when the error is not tied to a single listing.
func FailedIndex(err error) int {
	if err == nil {
		return -1
	}
	var (
		cfe *CommandFailureError
		ome *OutputMismatchError
		cme *ContentMismatchError
		cov *CoverageError
		se  *SanityError
		le  *ListingError
		ue  *models.UnknownListingTypeError
	)
	switch {
	case errors.As(err, &cfe):
		return cfe.Index
	case errors.As(err, &ome):
		return ome.Index
	case errors.As(err, &cme):
		return cme.Index
	case errors.As(err, &cov):
		return cov.Index
	case errors.As(err, &se):
		return se.Index
	case errors.As(err, &ue):
		return ue.Index
	case errors.As(err, &le):
		return le.Index
	default:
		return -1
	}
}

// IsCommandFailure checks if the error is or wraps a CommandFailureError.
func IsCommandFailure(err error) bool {
	var e *CommandFailureError
	return errors.As(err, &e)
}

// IsOutputMismatch checks if the error is or wraps an OutputMismatchError.
func IsOutputMismatch(err error) bool {
	var e *OutputMismatchError
	return errors.As(err, &e)
}

// IsCoverageError checks if the error is or wraps a CoverageError.
func IsCoverageError(err error) bool {
	var e *CoverageError
	return errors.As(err, &e)
}

// IsDivergence checks if the error is or wraps a DivergenceError.
func IsDivergence(err error) bool {
	var e *DivergenceError
	return errors.As(err, &e)
}

// IsStateError checks if the error is or wraps a StateError.
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}
