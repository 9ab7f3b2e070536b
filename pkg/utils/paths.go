package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "trove"
	dbFileName     = "trove.db"
	photosDirName  = "photos"
	configFileName = "config.yaml"
)

// DefaultDataDir returns a system-appropriate directory for trove's files.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return appName
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName)
	default: // Primarily Linux, but also other UNIX-like systems.
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(homeDir, ".local", "share", appName)
	}
}

// DefaultDBPath is the database file inside DefaultDataDir.
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), dbFileName)
}

// DefaultPhotosDir is the private photo area inside DefaultDataDir.
func DefaultPhotosDir() string {
	return filepath.Join(DefaultDataDir(), photosDirName)
}

// DefaultConfigPath is where the config file is looked up when none is given.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), configFileName)
}

// ExpandPath expands a leading ~/ and makes the path absolute.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory to expand path '%s': %w", path, err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", path, err)
	}
	return absPath, nil
}

// ResolveAndEnsureDBPath expands providedPath, falling back to DefaultDBPath,
// and creates its parent directory.
func ResolveAndEnsureDBPath(providedPath string) (string, error) {
	targetPath := providedPath
	if targetPath == "" {
		targetPath = DefaultDBPath()
	}

	targetPath, err := ExpandPath(targetPath)
	if err != nil {
		return "", err
	}

	dbDir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dbDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create directory '%s' for database: %w", dbDir, err)
	}

	return targetPath, nil
}
