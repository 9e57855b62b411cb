package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harrison/booktester/internal/models"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // All chapters replayed and verified
	ExitFailure      = 1 // A chapter failed to replay or verify
	ExitCommandError = 2 // Usage or configuration error
)

// Error codes used in JSON output.
const (
	CodeConfig = "E001"
	CodeReplay = "E002"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func validFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --format %q, must be text or json", format))
	}
}

// Report writes the outcome of one or more chapter runs.
func (f *OutputFormatter) Report(results []*models.RunResult) error {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: results}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: CodeReplay, Message: fmt.Sprintf("%d of %d chapter(s) failed", failed, len(results))}
		}
		return json.NewEncoder(f.Writer).Encode(resp)
	}

	w := f.Writer
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (from %s)\n", status, r.Chapter, r.PreviousChapter)
		fmt.Fprintf(w, "  listings: %d total, %d checked, %d trusted, %d skipped\n",
			r.Total, r.Checked, r.Trusted, len(r.Skips))
		for _, s := range r.Skips {
			reason := s.Reason
			if reason == "" {
				reason = "no reason given"
			}
			fmt.Fprintf(w, "  skipped %d: %s\n", s.Index, reason)
		}
		fmt.Fprintf(w, "  duration: %s\n", r.Duration.Round(time.Millisecond))
		if !r.Passed {
			if r.FailedIndex >= 0 {
				fmt.Fprintf(w, "  failed at listing %d\n", r.FailedIndex)
			}
			for _, line := range strings.Split(strings.TrimRight(r.Error, "\n"), "\n") {
				fmt.Fprintf(w, "  | %s\n", line)
			}
		}
	}
	fmt.Fprintf(w, "\n%d chapter(s): %d passed, %d failed\n", len(results), len(results)-failed, failed)
	return nil
}

// History writes past runs, most recent first.
func (f *OutputFormatter) History(results []*models.RunResult) error {
	if f.Format == "json" {
		if results == nil {
			results = []*models.RunResult{}
		}
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: results})
	}

	if len(results) == 0 {
		fmt.Fprintln(f.Writer, "No recorded runs.")
		return nil
	}
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			if r.FailedIndex >= 0 {
				status = fmt.Sprintf("FAIL@%d", r.FailedIndex)
			}
		}
		fmt.Fprintf(f.Writer, "%s  %-8s %-30s %d/%d checked  %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), status, r.Chapter,
			r.Checked, r.Total, r.Duration.Round(time.Millisecond), r.ID)
	}
	return nil
}

// Error writes a failure that prevented any report.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return nil
}
