package sourcetree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// CommandResult is the outcome of one shell command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the command exited with status 0.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Combined returns stdout followed by stderr.
func (r CommandResult) Combined() string {
	return r.Stdout + r.Stderr
}

// CommandRunner abstracts shell command execution for testability.
// A non-zero exit status is reported in the result, not as an error; the
// error is reserved for commands that could not be started at all.
type CommandRunner interface {
	Run(ctx context.Context, command string) (CommandResult, error)
}

// ShellCommandRunner executes commands via the system shell.
type ShellCommandRunner struct {
	WorkDir string   // Working directory for commands (empty = current dir)
	Env     []string // Extra environment entries appended to os.Environ()
}

// NewShellCommandRunner creates a CommandRunner that executes real shell commands.
func NewShellCommandRunner(workDir string) *ShellCommandRunner {
	return &ShellCommandRunner{WorkDir: workDir}
}

// Run executes a command via sh -c, capturing stdout and stderr separately.
func (r *ShellCommandRunner) Run(ctx context.Context, command string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to start %q: %w", command, err)
	}
	return result, nil
}

var _ CommandRunner = (*ShellCommandRunner)(nil)
