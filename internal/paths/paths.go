// Package paths resolves where gridsync keeps its configuration file and
// its local database.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names used when no override is active.
const (
	DefaultConfigDirName = ".gridsync"
	DefaultDataDirName   = ".gridsync-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "GRIDSYNC_CONFIG_DIR"
	EnvDataDir   = "GRIDSYNC_DATA_DIR"
)

// DatabaseFile is the store's file name inside the data directory.
const DatabaseFile = "gridsync.db"

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/gridsync (fallback ~/.config/gridsync)
// macOS:   ~/Library/Application Support/gridsync
// Windows: %APPDATA%/gridsync
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "gridsync"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "gridsync"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "gridsync"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/gridsync (fallback ~/.local/share/gridsync)
// macOS:   ~/Library/Application Support/gridsync
// Windows: %APPDATA%/gridsync
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "gridsync"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "gridsync"), nil
	default:
		// macOS and Windows: same as config dir.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "gridsync"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > GRIDSYNC_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > config file value > GRIDSYNC_DATA_DIR env > $(CWD)/.gridsync-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// DatabasePath resolves the store's database file inside the resolved data
// directory.
func DatabasePath(flag, configValue string) (string, error) {
	dir, err := ResolveDataDir(flag, configValue)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DatabaseFile), nil
}
