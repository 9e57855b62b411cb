package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/booktester/internal/sourcetree"
)

// Config represents booktester configuration options
type Config struct {
	// BookDir is where chapter configuration files are looked up by name
	BookDir string `yaml:"book_dir"`

	// RepoDir is the git working copy listings are replayed against
	RepoDir string `yaml:"repo_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// HistoryDB is the SQLite database recording past runs
	HistoryDB string `yaml:"history_db"`

	// CommandTimeout bounds a whole chapter run (0 = no timeout)
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// Ignore lists diff categories tolerated by the final state check
	Ignore []string `yaml:"ignore"`

	// Home is the project's .booktester directory, set by Resolve
	Home string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		BookDir:        ".",
		RepoDir:        ".",
		LogLevel:       "info",
		LogDir:         ".booktester/logs",
		HistoryDB:      ".booktester/history.db",
		CommandTimeout: 0,
		Ignore:         []string{string(sourcetree.CategoryMoves)},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use a temporary struct to handle duration parsing
	type yamlConfig struct {
		BookDir        string   `yaml:"book_dir"`
		RepoDir        string   `yaml:"repo_dir"`
		LogLevel       string   `yaml:"log_level"`
		LogDir         string   `yaml:"log_dir"`
		HistoryDB      string   `yaml:"history_db"`
		CommandTimeout string   `yaml:"command_timeout"`
		Ignore         []string `yaml:"ignore"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.BookDir != "" {
		cfg.BookDir = yamlCfg.BookDir
	}
	if yamlCfg.RepoDir != "" {
		cfg.RepoDir = yamlCfg.RepoDir
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.HistoryDB != "" {
		cfg.HistoryDB = yamlCfg.HistoryDB
	}
	if yamlCfg.CommandTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.CommandTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid command_timeout format %q: %w", yamlCfg.CommandTimeout, err)
		}
		cfg.CommandTimeout = timeout
	}

	// An explicit empty ignore list means "tolerate nothing", so presence
	// of the key matters, not just its value.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if _, exists := rawMap["ignore"]; exists {
			cfg.Ignore = yamlCfg.Ignore
			if cfg.Ignore == nil {
				cfg.Ignore = []string{}
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .booktester/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, HomeDirName, "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(bookDir, repoDir, logDir, logLevel *string, timeout *time.Duration) {
	if bookDir != nil {
		c.BookDir = *bookDir
	}
	if repoDir != nil {
		c.RepoDir = *repoDir
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if timeout != nil {
		c.CommandTimeout = *timeout
	}
}

// IgnoreSet converts Ignore into a category set.
func (c *Config) IgnoreSet() (sourcetree.CategorySet, error) {
	return sourcetree.NewCategorySet(c.Ignore...)
}

// StatePaths lists everything booktester itself writes: the project home,
// run logs and the history database with its SQLite sidecar files. None of
// it belongs in a chapter's diff.
func (c *Config) StatePaths() []string {
	paths := []string{c.Home, c.LogDir}
	if c.HistoryDB != "" {
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			paths = append(paths, c.HistoryDB+suffix)
		}
	}
	return paths
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must be >= 0, got %v", c.CommandTimeout)
	}

	if c.RepoDir == "" {
		return fmt.Errorf("repo_dir cannot be empty")
	}

	if _, err := c.IgnoreSet(); err != nil {
		return fmt.Errorf("invalid ignore: %w", err)
	}

	return nil
}
