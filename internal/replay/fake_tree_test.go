package replay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// fakeTree is an in-memory SourceTree. Commits are snapshots of files keyed
// by sha; refs map tags and listing labels to shas.
type fakeTree struct {
	refs     map[string]string
	commits  map[string]map[string]string
	commands map[string]sourcetree.CommandResult
	diff     []sourcetree.DiffEntry

	head      string
	files     map[string]string
	dirs      map[string]bool
	ran       []string
	checkouts []string
	staged    int
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		refs:     map[string]string{},
		commits:  map[string]map[string]string{},
		commands: map[string]sourcetree.CommandResult{},
		files:    map[string]string{},
		dirs:     map[string]bool{},
	}
}

// addCommit registers a commit reachable by sha and by each of names.
func (f *fakeTree) addCommit(sha string, files map[string]string, names ...string) {
	f.commits[sha] = files
	f.refs[sha] = sha
	for _, n := range names {
		f.refs[n] = sha
	}
}

func (f *fakeTree) GetCommitSpec(_ context.Context, tag string) (string, error) {
	sha, ok := f.refs[tag]
	if !ok {
		return "", &sourcetree.UnknownRefError{Tag: tag}
	}
	return sha, nil
}

func (f *fakeTree) Checkout(ctx context.Context, spec string) error {
	sha, err := f.GetCommitSpec(ctx, spec)
	if err != nil {
		return &sourcetree.CheckoutError{Spec: spec, Err: err}
	}
	f.checkouts = append(f.checkouts, sha)
	f.head = sha
	for path, content := range f.commits[sha] {
		f.files[path] = content
	}
	return nil
}

func (f *fakeTree) RunCommand(_ context.Context, cmd string) (sourcetree.CommandResult, error) {
	f.ran = append(f.ran, cmd)
	if dir, ok := strings.CutPrefix(cmd, "mkdir -p "); ok {
		f.dirs[dir] = true
		return sourcetree.CommandResult{}, nil
	}
	if res, ok := f.commands[cmd]; ok {
		return res, nil
	}
	if cmd == "false" {
		return sourcetree.CommandResult{ExitCode: 1}, nil
	}
	return sourcetree.CommandResult{}, nil
}

func (f *fakeTree) Diff(ctx context.Context, against string, ignore sourcetree.CategorySet) (*sourcetree.Diff, error) {
	if _, err := f.GetCommitSpec(ctx, against); err != nil {
		return nil, err
	}
	d := &sourcetree.Diff{Against: against, Entries: f.diff}
	return d.Filter(ignore), nil
}

func (f *fakeTree) WriteFile(path string, content []byte) error {
	if path == "" || strings.HasPrefix(path, "/") {
		return fmt.Errorf("bad path %q", path)
	}
	f.files[path] = string(content)
	return nil
}

func (f *fakeTree) ShowFile(_ context.Context, commit, path string) (string, error) {
	content, ok := f.commits[commit][path]
	if !ok {
		return "", fmt.Errorf("path %s does not exist in %s", path, commit)
	}
	return content, nil
}

func (f *fakeTree) Stage(context.Context) error {
	f.staged++
	return nil
}

func (f *fakeTree) Head(context.Context) (string, error) {
	return f.head, nil
}

// recordingLogger captures replay events for assertions.
type recordingLogger struct {
	started      []int
	checked      []int
	skipped      []int
	fastForwards []string
	summary      *models.RunResult
}

func (l *recordingLogger) LogChapterStart(*models.ChapterRun) {}

func (l *recordingLogger) LogListingStart(index int, _ models.Listing) {
	l.started = append(l.started, index)
}

func (l *recordingLogger) LogListingChecked(index int, _ models.Listing, _ time.Duration) {
	l.checked = append(l.checked, index)
}

func (l *recordingLogger) LogListingSkipped(index int, _ models.Listing) {
	l.skipped = append(l.skipped, index)
}

func (l *recordingLogger) LogFastForward(from, to int, commit string) {
	l.fastForwards = append(l.fastForwards, fmt.Sprintf("%d->%d@%s", from, to, commit))
}

func (l *recordingLogger) LogSummary(result *models.RunResult) {
	l.summary = result
}

func code(path, content string) *models.CodeListing {
	return &models.CodeListing{ListingState: models.ListingState{Content: content}, Path: path}
}

func codeRef(path, content, ref string) *models.CodeListingWithRef {
	return &models.CodeListingWithRef{CodeListing: *code(path, content), GitRef: ref}
}

func command(content string) *models.CommandListing {
	return &models.CommandListing{ListingState: models.ListingState{Content: content}}
}

func output(content string) *models.OutputListing {
	return &models.OutputListing{ListingState: models.ListingState{Content: content}}
}
