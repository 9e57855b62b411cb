package sourcetree

import (
	"errors"
	"fmt"
)

// ErrWorkingCopyBusy indicates another run holds the working copy lock.
var ErrWorkingCopyBusy = errors.New("working copy is locked by another run")

// UnknownRefError is returned when a tag resolves to no commit.
type UnknownRefError struct {
	Tag string
}

// Error implements the error interface.
func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("unknown ref %q: no matching branch, tag, or commit message", e.Tag)
}

// CheckoutError is returned when the working tree cannot be moved to a commit.
type CheckoutError struct {
	Spec string // The commit spec that was requested
	Err  error  // Underlying cause (may be *UnknownRefError)
}

// Error implements the error interface.
func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout %s: %v", e.Spec, e.Err)
	}
	return fmt.Sprintf("checkout %s failed", e.Spec)
}

// Unwrap returns the underlying error.
func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// IsUnknownRef checks if the error is or wraps an UnknownRefError.
func IsUnknownRef(err error) bool {
	var ue *UnknownRefError
	return errors.As(err, &ue)
}

// IsCheckoutError checks if the error is or wraps a CheckoutError.
func IsCheckoutError(err error) bool {
	var ce *CheckoutError
	return errors.As(err, &ce)
}
