package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harrison/booktester/internal/config"
)

// bookProject is a temporary project: .booktester/config.yaml, a book/
// directory of chapters and, when requested, a git repo/.
type bookProject struct {
	root       string
	configPath string
	repo       string
	book       string
}

func newBookProject(t *testing.T) *bookProject {
	t.Helper()
	t.Setenv(config.HomeEnv, "")
	t.Setenv(ResumeEnv, "")

	root := t.TempDir()
	p := &bookProject{
		root:       root,
		configPath: filepath.Join(root, ".booktester", "config.yaml"),
		repo:       filepath.Join(root, "repo"),
		book:       filepath.Join(root, "book"),
	}
	writeFile(t, p.configPath, `book_dir: book
repo_dir: repo
log_dir: logs
history_db: history.db
`)
	require.NoError(t, os.MkdirAll(p.book, 0755))
	require.NoError(t, os.MkdirAll(p.repo, 0755))
	return p
}

// addChapter writes book/<name>.yaml and book/<name>.md.
func (p *bookProject) addChapter(t *testing.T, name, chapterYAML, markdown string) {
	t.Helper()
	writeFile(t, filepath.Join(p.book, name+".yaml"), chapterYAML)
	writeFile(t, filepath.Join(p.book, name+".md"), markdown)
}

// initRepo builds the example project history: chapter_00 has hello.txt
// with one line, chapter_01 adds a second line.
func (p *bookProject) initRepo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	runGit(t, p.repo, "init", "-q")
	writeFile(t, filepath.Join(p.repo, "hello.txt"), "hello\n")
	runGit(t, p.repo, "add", "-A")
	runGit(t, p.repo, "commit", "-q", "-m", "start --ch00l001--")
	runGit(t, p.repo, "tag", "chapter_00")

	writeFile(t, filepath.Join(p.repo, "hello.txt"), "hello\nworld\n")
	runGit(t, p.repo, "commit", "-q", "-am", "greet the world --ch01l001--")
	runGit(t, p.repo, "tag", "chapter_01")
}

// execute runs the root command with --config pointing at the project.
func (p *bookProject) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", p.configPath}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	full := append([]string{
		"-c", "user.name=Book Tester",
		"-c", "user.email=tester@example.com",
		"-c", "commit.gpgsign=false",
	}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const chapterOneYAML = `chapter: chapter_01
previous_chapter: chapter_00
source: chapter_01.md
`

const chapterOneMarkdown = "# Chapter 1\n" +
	"\n" +
	"Say hello to the world.\n" +
	"\n" +
	"```text path=hello.txt\n" +
	"hello\n" +
	"world\n" +
	"```\n" +
	"\n" +
	"```console\n" +
	"$ cat hello.txt\n" +
	"hello\n" +
	"world\n" +
	"```\n"
