// Package sourcetree presents a git working copy as the mutable target of
// listing replay: checkout, command execution, ref resolution, file writes
// and a structural diff against an expected commit.
package sourcetree

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harrison/booktester/internal/filelock"
)

// lockFileName is created inside the .git directory of the working copy.
const lockFileName = "booktester.lock"

// Tree is a working directory backed by git history.
type Tree struct {
	// WorkDir is the root of the working copy.
	WorkDir string

	// Runner executes shell commands and, when set, git commands too.
	// Tests inject a fake; production uses ShellCommandRunner.
	Runner CommandRunner

	// gitViaRunner routes git calls through Runner instead of exec.
	gitViaRunner bool

	// exclude holds slash-separated paths, relative to WorkDir, that never
	// reach the index or the diff.
	exclude []string

	lock *filelock.FileLock
}

// New creates a Tree rooted at workDir that executes real commands.
func New(workDir string) *Tree {
	return &Tree{
		WorkDir: workDir,
		Runner:  NewShellCommandRunner(workDir),
	}
}

// NewWithRunner creates a Tree whose shell and git commands all go through runner.
// Useful for testing.
func NewWithRunner(workDir string, runner CommandRunner) *Tree {
	return &Tree{
		WorkDir:      workDir,
		Runner:       runner,
		gitViaRunner: true,
	}
}

// Lock takes exclusive ownership of the working copy for the current run.
// It fails fast with ErrWorkingCopyBusy instead of waiting.
func (t *Tree) Lock() error {
	lockPath := t.lockPath()

	lock := filelock.NewFileLock(lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrWorkingCopyBusy, lockPath)
	}
	t.lock = lock
	return nil
}

// lockPath puts the lock in the git directory. Worktrees and submodules have
// a .git file pointing elsewhere, so git is asked where that is. Outside a
// repository the lock sits in WorkDir and is excluded from the diff.
func (t *Tree) lockPath() string {
	if info, err := os.Stat(filepath.Join(t.WorkDir, ".git")); err == nil && info.IsDir() {
		return filepath.Join(t.WorkDir, ".git", lockFileName)
	}
	if out, err := t.git(context.Background(), "rev-parse", "--absolute-git-dir"); err == nil {
		if dir := strings.TrimSpace(out); dir != "" {
			return filepath.Join(dir, lockFileName)
		}
	}
	path := filepath.Join(t.WorkDir, "."+lockFileName)
	t.Exclude(path)
	return path
}

// Unlock releases the working copy. Safe to call without a held lock.
func (t *Tree) Unlock() error {
	if t.lock == nil {
		return nil
	}
	err := t.lock.Unlock()
	t.lock = nil
	return err
}

// RunCommand executes cmd in the working directory.
// A non-zero exit code is not an error; the caller inspects the result.
func (t *Tree) RunCommand(ctx context.Context, cmd string) (CommandResult, error) {
	return t.Runner.Run(ctx, cmd)
}

// GetCommitSpec resolves a human-readable tag to a full commit id.
//
// Direct refs (branches, tags, shas) win. Otherwise the tag is looked up as
// a listing label: a commit whose message contains "--<tag>--".
func (t *Tree) GetCommitSpec(ctx context.Context, tag string) (string, error) {
	if tag == "" {
		return "", &UnknownRefError{Tag: tag}
	}

	if out, err := t.git(ctx, "rev-parse", "--verify", "--quiet", tag+"^{commit}"); err == nil {
		if sha := strings.TrimSpace(out); sha != "" {
			return sha, nil
		}
	}

	out, err := t.git(ctx, "log", "--all", "--format=%H", "--fixed-strings",
		fmt.Sprintf("--grep=--%s--", tag), "-n", "1")
	if err != nil {
		return "", fmt.Errorf("failed to search history for %q: %w", tag, err)
	}
	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", &UnknownRefError{Tag: tag}
	}
	return strings.SplitN(sha, "\n", 2)[0], nil
}

// Checkout resets the working tree to the commit named by spec, detaching HEAD.
// Uncommitted changes that conflict with the target make git refuse; that
// refusal is reported as a CheckoutError rather than forced through.
func (t *Tree) Checkout(ctx context.Context, spec string) error {
	commit, err := t.GetCommitSpec(ctx, spec)
	if err != nil {
		return &CheckoutError{Spec: spec, Err: err}
	}
	if _, err := t.git(ctx, "checkout", "--quiet", "--detach", commit); err != nil {
		return &CheckoutError{Spec: spec, Err: err}
	}
	return nil
}

// Head returns the commit id HEAD points at.
func (t *Tree) Head(ctx context.Context) (string, error) {
	out, err := t.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current commit hash: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// IsCleanState checks if the working directory has no uncommitted changes.
func (t *Tree) IsCleanState(ctx context.Context) (bool, error) {
	out, err := t.git(ctx, t.withPathspec("status", "--porcelain")...)
	if err != nil {
		return false, fmt.Errorf("failed to check git status: %w", err)
	}
	return strings.TrimSpace(out) == "", nil
}

// Stage records the whole working tree in the index (git add -A), minus the
// excluded paths.
func (t *Tree) Stage(ctx context.Context) error {
	if _, err := t.git(ctx, t.withPathspec("add", "-A")...); err != nil {
		return fmt.Errorf("failed to stage working tree: %w", err)
	}
	return nil
}

// ShowFile returns the content of path as recorded in commit.
func (t *Tree) ShowFile(ctx context.Context, commit, path string) (string, error) {
	out, err := t.git(ctx, "show", fmt.Sprintf("%s:%s", commit, filepath.ToSlash(path)))
	if err != nil {
		return "", fmt.Errorf("failed to read %s at %s: %w", path, commit, err)
	}
	return out, nil
}

// WriteFile atomically writes content to path inside the working directory.
// Absolute paths and paths escaping the working directory are rejected.
func (t *Tree) WriteFile(path string, content []byte) error {
	target, err := t.resolve(path)
	if err != nil {
		return err
	}
	return filelock.AtomicWrite(target, content)
}

// ReadFile reads path from the working directory.
func (t *Tree) ReadFile(path string) ([]byte, error) {
	target, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

// Diff compares the working tree, including untracked files, with the commit
// named by against. Entries whose category is in ignore are dropped.
// The index is overwritten with the working tree as a side effect.
func (t *Tree) Diff(ctx context.Context, against string, ignore CategorySet) (*Diff, error) {
	commit, err := t.GetCommitSpec(ctx, against)
	if err != nil {
		return nil, err
	}
	if err := t.Stage(ctx); err != nil {
		return nil, err
	}
	out, err := t.git(ctx, t.withPathspec("diff", "--cached", "--name-status", "--find-renames", commit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to diff against %s: %w", against, err)
	}
	full, err := parseNameStatus(against, out)
	if err != nil {
		return nil, err
	}
	return full.Filter(ignore), nil
}

// Exclude keeps paths out of Stage, Diff and IsCleanState. Relative paths are
// taken against WorkDir; paths outside the working copy are ignored.
func (t *Tree) Exclude(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		rel := filepath.Clean(p)
		if filepath.IsAbs(p) {
			root, err := filepath.Abs(t.WorkDir)
			if err != nil {
				continue
			}
			if rel, err = filepath.Rel(root, p); err != nil {
				continue
			}
		}
		if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		if !slices.Contains(t.exclude, rel) {
			t.exclude = append(t.exclude, rel)
		}
	}
}

// withPathspec appends the exclude pathspecs to a git command line.
func (t *Tree) withPathspec(args ...string) []string {
	if len(t.exclude) == 0 {
		return args
	}
	args = append(args, "--", ".")
	for _, p := range t.exclude {
		args = append(args, ":(exclude)"+p)
	}
	return args
}

func (t *Tree) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty file path")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path %q must be relative to the working directory", path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the working directory", path)
	}
	return filepath.Join(t.WorkDir, clean), nil
}

// git executes a git command and returns its stdout.
func (t *Tree) git(ctx context.Context, args ...string) (string, error) {
	if t.gitViaRunner {
		// Build full command string for the injected runner
		res, err := t.Runner.Run(ctx, "git "+strings.Join(args, " "))
		if err != nil {
			return res.Stdout, err
		}
		if res.ExitCode != 0 {
			return res.Stdout, fmt.Errorf("git %s: exit status %d: %s", args[0], res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return res.Stdout, nil
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if t.WorkDir != "" {
		cmd.Dir = t.WorkDir
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}
