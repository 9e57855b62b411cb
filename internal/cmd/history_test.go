package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/booktester/internal/history"
	"github.com/harrison/booktester/internal/models"
)

func seedHistory(t *testing.T, p *bookProject) {
	t.Helper()
	store, err := history.NewStore(filepath.Join(p.root, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, r := range []*models.RunResult{
		{ID: "r1", Chapter: "chapter_01", PreviousChapter: "chapter_00", Passed: false, FailedIndex: 2, Total: 3, Checked: 2},
		{ID: "r2", Chapter: "chapter_02", PreviousChapter: "chapter_01", Passed: true, FailedIndex: -1, Total: 5, Checked: 5},
		{ID: "r3", Chapter: "chapter_01", PreviousChapter: "chapter_00", Passed: true, FailedIndex: -1, Total: 3, Checked: 3},
	} {
		r.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(context.Background(), r))
	}
}

func TestHistoryCommand(t *testing.T) {
	p := newBookProject(t)
	seedHistory(t, p)

	t.Run("all runs newest first", func(t *testing.T) {
		stdout, _, err := p.execute(t, "history")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasSuffix(lines[0], "r3"))
		assert.True(t, strings.HasSuffix(lines[2], "r1"))
		assert.Contains(t, lines[2], "FAIL@2")
	})

	t.Run("filtered and limited", func(t *testing.T) {
		stdout, _, err := p.execute(t, "history", "--chapter", "chapter_01", "--limit", "1")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 1)
		assert.True(t, strings.HasSuffix(lines[0], "r3"))
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := p.execute(t, "history", "--format", "json", "--chapter", "chapter_02")
		require.NoError(t, err)
		var resp struct {
			Status string              `json:"status"`
			Data   []*models.RunResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "r2", resp.Data[0].ID)
	})

	t.Run("bad limit", func(t *testing.T) {
		_, _, err := p.execute(t, "history", "--limit", "0")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("positional args rejected", func(t *testing.T) {
		_, _, err := p.execute(t, "history", "chapter_01")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestHistoryCommand_NoDatabase(t *testing.T) {
	p := newBookProject(t)

	stdout, _, err := p.execute(t, "history")
	require.NoError(t, err)
	assert.Equal(t, "No recorded runs.\n", stdout)
	assert.NoFileExists(t, filepath.Join(p.root, "history.db"))
}
