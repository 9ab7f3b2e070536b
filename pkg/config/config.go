// Package config loads trove settings: defaults, then an optional YAML
// file, then TROVE_* environment variables. Command-line flags are applied
// on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unowned-ai/trove/pkg/db"
	"github.com/unowned-ai/trove/pkg/utils"
	"github.com/unowned-ai/trove/pkg/view"
)

// Environment variables read by ApplyEnv.
const (
	EnvDB        = "TROVE_DB"
	EnvPhotosDir = "TROVE_PHOTOS_DIR"
	EnvLogLevel  = "TROVE_LOG_LEVEL"
	EnvSync      = "TROVE_SYNC"
	EnvWAL       = "TROVE_WAL"
)

// Config is the resolved runtime configuration.
type Config struct {
	DBPath      string `yaml:"db_path"`
	PhotosDir   string `yaml:"photos_dir"`
	WAL         bool   `yaml:"wal"`
	Sync        string `yaml:"sync"`
	LogLevel    string `yaml:"log_level"`
	DefaultSort string `yaml:"default_sort"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:      utils.DefaultDBPath(),
		PhotosDir:   utils.DefaultPhotosDir(),
		WAL:         true,
		Sync:        "FULL",
		LogLevel:    "info",
		DefaultSort: view.SortNone.String(),
	}
}

// Load resolves the configuration. An explicit path must exist; with an
// empty path the default config file is used when present.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = utils.DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// no config file; defaults apply
	default:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from TROVE_* variables that are set.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvDB); ok {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv(EnvPhotosDir); ok {
		c.PhotosDir = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvSync); ok {
		c.Sync = v
	}
	if v, ok := os.LookupEnv(EnvWAL); ok {
		wal, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvWAL, v, err)
		}
		c.WAL = wal
	}
	return nil
}

// Validate rejects values the stores cannot use.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if c.PhotosDir == "" {
		errs = append(errs, errors.New("photos_dir must not be empty"))
	}
	if !db.ValidSyncMode(c.Sync) {
		errs = append(errs, fmt.Errorf("invalid sync mode %q: must be one of OFF, NORMAL, FULL, EXTRA", c.Sync))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := view.ParseSortKey(c.DefaultSort); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Sort returns the parsed default sort key.
func (c Config) Sort() view.SortKey {
	key, err := view.ParseSortKey(c.DefaultSort)
	if err != nil {
		return view.SortNone
	}
	return key
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}
	return l, nil
}

// NewLogger builds a text logger at the configured level. verbose forces debug.
func (c Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
