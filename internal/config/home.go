package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides project root detection.
const HomeEnv = "BOOKTESTER_HOME"

// HomeDirName is the per-project configuration directory.
const HomeDirName = ".booktester"

// FindProjectRoot returns the directory whose .booktester/ holds the
// configuration.
// Priority order:
//  1. BOOKTESTER_HOME environment variable (if set)
//  2. Nearest ancestor of start containing a .booktester directory
//  3. start itself (fallback)
func FindProjectRoot(start string) (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	current := abs
	for {
		if info, err := os.Stat(filepath.Join(current, HomeDirName)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root
			break
		}
		current = parent
	}

	return abs, nil
}

// ResolvePath makes a configured path absolute relative to root.
// Absolute paths are returned unchanged.
func ResolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Resolve rewrites every relative directory in c against root.
func (c *Config) Resolve(root string) {
	c.Home = filepath.Join(root, HomeDirName)
	c.BookDir = ResolvePath(root, c.BookDir)
	c.RepoDir = ResolvePath(root, c.RepoDir)
	c.LogDir = ResolvePath(root, c.LogDir)
	c.HistoryDB = ResolvePath(root, c.HistoryDB)
}
