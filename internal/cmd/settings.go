package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/booktester/internal/config"
)

// loadConfig loads the project configuration, resolves its paths against the
// project root and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg  *config.Config
		root string
		err  error
	)
	if configPath != "" {
		// Paths inside an explicit config are relative to the project that
		// holds it, found by walking up from the file.
		root, err = config.FindProjectRoot(filepath.Dir(configPath))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to locate project root", err)
		}
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to load config from %s", configPath), err)
		}
	} else {
		root, err = config.FindProjectRoot(".")
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to locate project root", err)
		}
		cfg, err = config.LoadConfigFromDir(root)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	cfg.Resolve(root)

	// Flag paths are taken relative to the current directory, as typed.
	cfg.MergeWithFlags(
		changedString(cmd, "book"),
		changedString(cmd, "repo"),
		changedString(cmd, "log-dir"),
		changedString(cmd, "log-level"),
		nil,
	)

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// changedString returns a pointer to the flag value when the user set it.
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}
