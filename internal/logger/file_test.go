package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/booktester/internal/models"
)

func readRunLog(t *testing.T, fl *FileLogger) string {
	t.Helper()
	require.NoError(t, fl.Close())
	data, err := os.ReadFile(fl.Path())
	require.NoError(t, err)
	return string(data)
}

func TestFileLogger_CreatesRunLogAndSymlink(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	fl, err := NewFileLoggerWithDirAndLevel(logDir, "info")
	require.NoError(t, err)
	defer fl.Close()

	assert.DirExists(t, logDir)
	assert.Regexp(t, `run-\d{8}-\d{6}\.log$`, fl.Path())

	target, err := os.Readlink(filepath.Join(logDir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.Path()), target)
}

func TestFileLogger_ReplacesLatestSymlink(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, os.Symlink("run-old.log", filepath.Join(logDir, "latest.log")))

	fl, err := NewFileLoggerWithDirAndLevel(logDir, "info")
	require.NoError(t, err)
	defer fl.Close()

	target, err := os.Readlink(filepath.Join(logDir, "latest.log"))
	require.NoError(t, err)
	assert.NotEqual(t, "run-old.log", target)
}

func TestFileLogger_DefaultDir(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	fl, err := NewFileLogger()
	require.NoError(t, err)
	defer fl.Close()

	assert.DirExists(t, filepath.Join(tmpDir, ".booktester", "logs"))
}

func TestFileLogger_ReplayEvents(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "debug")
	require.NoError(t, err)

	run := sampleRun()
	fl.LogChapterStart(run)
	fl.LogListingStart(0, run.Listings[0])
	fl.LogListingChecked(0, run.Listings[0], 2*time.Second)
	fl.LogListingSkipped(3, run.Listings[3])
	fl.LogFastForward(1, 3, "ch19l037")
	fl.LogSummary(&models.RunResult{
		ID: "run-1", Chapter: run.ChapterName, Total: 4, Checked: 2,
		Error: "listing 1: command \"false\" exited with status 1\nOutput:\nnope",
		Skips: []models.SkipRecord{{Index: 3}},
	})

	out := readRunLog(t, fl)
	for _, want := range []string{
		"=== booktester run log ===",
		"[INFO] Chapter chapter_21_mocking_2 (from chapter_20_mocking_1): 4 listings",
		"[DEBUG] Listing 0 (line 10): code listing src/a.py\nx = 1\n",
		"[INFO] Listing 0 ok: code listing src/a.py (2s)",
		"[INFO] Listing 3 skipped: command listing \"ls\" (no reason given)",
		"[WARN] Fast-forward to ch19l037: listings 1-2 trusted without replay",
		"Run ID: run-1",
		"Result: FAILED",
		"Output:\nnope",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "warn")
	require.NoError(t, err)

	run := sampleRun()
	fl.LogInfo("quiet")
	fl.LogListingStart(0, run.Listings[0])
	fl.LogWarn("loud")

	out := readRunLog(t, fl)
	assert.NotContains(t, out, "quiet")
	assert.NotContains(t, out, "Listing 0")
	assert.Contains(t, out, "[WARN] loud")
}

func TestFileLogger_CloseTwice(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "info")
	require.NoError(t, err)

	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())
	fl.LogInfo("after close is ignored")

	data, err := os.ReadFile(fl.Path())
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "after close"))
}
