package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogDir != ".booktester/logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, ".booktester/logs")
	}
	if cfg.HistoryDB != ".booktester/history.db" {
		t.Errorf("HistoryDB = %q, want %q", cfg.HistoryDB, ".booktester/history.db")
	}
	if cfg.CommandTimeout != 0 {
		t.Errorf("CommandTimeout = %v, want 0", cfg.CommandTimeout)
	}
	if !reflect.DeepEqual(cfg.Ignore, []string{"moves"}) {
		t.Errorf("Ignore = %v, want [moves]", cfg.Ignore)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `book_dir: chapters
repo_dir: /srv/superlists
log_level: debug
log_dir: /tmp/logs
command_timeout: 30m
ignore: [moves, added]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BookDir != "chapters" {
		t.Errorf("BookDir = %q, want %q", cfg.BookDir, "chapters")
	}
	if cfg.RepoDir != "/srv/superlists" {
		t.Errorf("RepoDir = %q, want %q", cfg.RepoDir, "/srv/superlists")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.CommandTimeout != 30*time.Minute {
		t.Errorf("CommandTimeout = %v, want 30m", cfg.CommandTimeout)
	}
	if !reflect.DeepEqual(cfg.Ignore, []string{"moves", "added"}) {
		t.Errorf("Ignore = %v, want [moves added]", cfg.Ignore)
	}
	// Not in file, keeps default
	if cfg.HistoryDB != ".booktester/history.db" {
		t.Errorf("HistoryDB = %q, want default", cfg.HistoryDB)
	}
}

// TestLoadConfigEmptyIgnore tests that an explicit empty list clears the default
func TestLoadConfigEmptyIgnore(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("ignore: []\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Ignore) != 0 {
		t.Errorf("Ignore = %v, want empty", cfg.Ignore)
	}
	set, err := cfg.IgnoreSet()
	if err != nil {
		t.Fatalf("IgnoreSet() error = %v", err)
	}
	if len(set) != 0 {
		t.Errorf("IgnoreSet() = %v, want empty", set)
	}
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() should not error on missing file, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

// TestLoadConfigInvalid tests malformed files
func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "log_level: [unclosed\n"},
		{name: "bad timeout", content: "command_timeout: forever\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if _, err := LoadConfig(configPath); err == nil {
				t.Error("LoadConfig() expected error, got nil")
			}
		})
	}
}

// TestLoadConfigFromDir tests the .booktester/config.yaml convention
func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".booktester"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".booktester", "config.yaml"), []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

// TestMergeWithFlags tests that set flags win over file values
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	repo := "/work/superlists"
	level := "trace"
	timeout := 5 * time.Minute

	cfg.MergeWithFlags(nil, &repo, nil, &level, &timeout)

	if cfg.RepoDir != repo {
		t.Errorf("RepoDir = %q, want %q", cfg.RepoDir, repo)
	}
	if cfg.LogLevel != level {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, level)
	}
	if cfg.CommandTimeout != timeout {
		t.Errorf("CommandTimeout = %v, want %v", cfg.CommandTimeout, timeout)
	}
	if cfg.BookDir != "." {
		t.Errorf("BookDir = %q, nil flag must not override", cfg.BookDir)
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", modify: func(c *Config) {}, wantErr: false},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
		{name: "negative timeout", modify: func(c *Config) { c.CommandTimeout = -time.Second }, wantErr: true},
		{name: "empty repo dir", modify: func(c *Config) { c.RepoDir = "" }, wantErr: true},
		{name: "unknown ignore category", modify: func(c *Config) { c.Ignore = []string{"renames"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestFindProjectRoot tests root detection and the environment override
func TestFindProjectRoot(t *testing.T) {
	t.Setenv(HomeEnv, "")

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".booktester"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	nested := filepath.Join(root, "chapters", "part2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if got != root {
		t.Errorf("FindProjectRoot() = %q, want %q", got, root)
	}

	t.Setenv(HomeEnv, "/elsewhere")
	got, err = FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if got != "/elsewhere" {
		t.Errorf("FindProjectRoot() = %q, want env override", got)
	}
}

// TestResolve tests relative path resolution
func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepoDir = "/abs/repo"
	cfg.Resolve("/project")

	if cfg.RepoDir != "/abs/repo" {
		t.Errorf("RepoDir = %q, absolute path must be kept", cfg.RepoDir)
	}
	if cfg.LogDir != filepath.Join("/project", ".booktester/logs") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.BookDir != "/project" {
		t.Errorf("BookDir = %q, want /project", cfg.BookDir)
	}
}

// TestStatePaths verifies every file booktester writes is reported
func TestStatePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve("/project")

	want := []string{
		filepath.Join("/project", ".booktester"),
		filepath.Join("/project", ".booktester", "logs"),
		filepath.Join("/project", ".booktester", "history.db"),
		filepath.Join("/project", ".booktester", "history.db-wal"),
		filepath.Join("/project", ".booktester", "history.db-shm"),
		filepath.Join("/project", ".booktester", "history.db-journal"),
	}
	if got := cfg.StatePaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("StatePaths() = %v, want %v", got, want)
	}

	cfg.HistoryDB = ""
	if got := cfg.StatePaths(); len(got) != 2 {
		t.Errorf("without history expected home and log dir only, got %v", got)
	}
}
