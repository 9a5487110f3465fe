// Package config loads the harness configuration from ini files.
// Values come from the embedded defaults, then the global config in the user's
// config directory, then the local .tunecheck/config in the working directory.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed defaults/config
var defaultsFS embed.FS

// DefaultsFS returns the embedded defaults filesystem.
func DefaultsFS() embed.FS { return defaultsFS }

// LocalDir is the project-local config directory, relative to the working directory.
const LocalDir = ".tunecheck"

// Config holds all configuration settings.
type Config struct {
	Values
	Colors ColorConfig

	configDir string // global config directory
	localPath string // local config file, may not exist
}

// Load installs the default config into configDir if missing and loads the merged configuration.
// An empty configDir means DefaultConfigDir.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := newDefaultsInstaller(defaultsFS).Install(configDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	globalPath := filepath.Join(configDir, "config")
	localPath := filepath.Join(LocalDir, "config")

	values, err := newValuesLoader(defaultsFS).Load(localPath, globalPath)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	colors, err := newColorLoader(defaultsFS).Load(localPath, globalPath)
	if err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}

	return &Config{Values: values, Colors: colors, configDir: configDir, localPath: localPath}, nil
}

// ConfigDir returns the global config directory.
func (c *Config) ConfigDir() string { return c.configDir }

// LocalPath returns the local config file path.
func (c *Config) LocalPath() string { return c.localPath }

// DefaultConfigDir returns ~/.config/tunecheck, or the equivalent under $XDG_CONFIG_HOME.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tunecheck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "tunecheck")
	}
	return filepath.Join(home, ".config", "tunecheck")
}
