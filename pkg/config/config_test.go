package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unowned-ai/trove/pkg/utils"
	"github.com/unowned-ai/trove/pkg/view"
)

// isolate points the default data dir at a temp dir and clears TROVE_*.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	for _, key := range []string{EnvDB, EnvPhotosDir, EnvLogLevel, EnvSync, EnvWAL} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.WAL)
	assert.Equal(t, "FULL", cfg.Sync)
	assert.Equal(t, view.SortNone, cfg.Sort())
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
db_path: /tmp/trove-test.db
wal: false
sync: normal
log_level: debug
default_sort: date
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/trove-test.db", cfg.DBPath)
	assert.False(t, cfg.WAL)
	assert.Equal(t, "normal", cfg.Sync)
	assert.Equal(t, view.SortByTimestamp, cfg.Sort())
	// Unset fields keep their defaults.
	assert.Equal(t, Default().PhotosDir, cfg.PhotosDir)
}

func TestLoad_EmptyFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	isolate(t)

	_, err := Load(writeConfig(t, "db_pth: typo.db\n"))
	assert.ErrorContains(t, err, "db_pth")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "db_path: /from/file.db\nsync: OFF\n")
	t.Setenv(EnvDB, "/from/env.db")
	t.Setenv(EnvSync, "EXTRA")
	t.Setenv(EnvWAL, "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.DBPath)
	assert.Equal(t, "EXTRA", cfg.Sync)
	assert.False(t, cfg.WAL)
}

func TestLoad_ReadsDefaultConfigFile(t *testing.T) {
	isolate(t)
	path := utils.DefaultConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Sync = "sometimes"
	cfg.LogLevel = "loud"
	cfg.DefaultSort = "priority"
	cfg.DBPath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, view.ErrUnknownSortKey)
	assert.ErrorContains(t, err, "sync mode")
	assert.ErrorContains(t, err, "log level")
	assert.ErrorContains(t, err, "db_path")
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf, false)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	cfg.NewLogger(&buf, true).Debug("verbose")
	assert.Contains(t, buf.String(), "verbose")

	level, err := ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, level)
}
