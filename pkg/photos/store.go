// Package photos keeps item attachments in a private directory. Files are
// only ever touched through a Store; items refer to them by name.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrPhotoNotFound = errors.New("photo not found")
	ErrImportFailed  = errors.New("photo import failed")
)

// ImportError reports why a source could not be copied in. It matches
// ErrImportFailed with errors.Is and unwraps to the I/O cause.
type ImportError struct {
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("photo import from %s failed: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func (e *ImportError) Is(target error) bool {
	return target == ErrImportFailed
}

const (
	namePrefix = "image_"
	// Extension is appended to every stored photo name.
	Extension  = ".jpg"
	tempPrefix = ".import-"

	dirMode = 0o700

	// sweepGrace protects files that were just imported and whose record
	// may not be committed yet.
	sweepGrace = 5 * time.Minute
)

// Store is a private photo area rooted at one directory.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex // serializes name allocation
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the store logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for naming and sweeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates dir if needed and returns a store over it.
func Open(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for photo directory '%s': %w", dir, err)
	}
	if err := os.MkdirAll(abs, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create photo directory '%s': %w", abs, err)
	}

	s := &Store{dir: abs, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir is the private directory.
func (s *Store) Dir() string {
	return s.dir
}

// Import copies the file named by source, a filesystem path or a file://
// URI, into the store and returns its reference.
func (s *Store) Import(ctx context.Context, source string) (string, error) {
	path, err := sourcePath(source)
	if err != nil {
		return "", &ImportError{Source: source, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &ImportError{Source: source, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &ImportError{Source: source, Err: err}
	}
	if info.IsDir() {
		return "", &ImportError{Source: source, Err: fmt.Errorf("%s is a directory", path)}
	}

	return s.ImportFrom(ctx, source, f)
}

// ImportFrom copies r into the store. name only labels errors and logs.
//
// The bytes land in a hidden temp file which is synced and then renamed
// into place, so a reference is either fully written or does not exist.
func (s *Store) ImportFrom(ctx context.Context, name string, r io.Reader) (ref string, err error) {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return "", &ImportError{Source: name, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", &ImportError{Source: name, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return "", &ImportError{Source: name, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return "", &ImportError{Source: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err = s.allocateName()
	if err != nil {
		return "", &ImportError{Source: name, Err: err}
	}
	if err = os.Rename(tmp.Name(), filepath.Join(s.dir, ref)); err != nil {
		return "", &ImportError{Source: name, Err: err}
	}

	s.logger.Info("photo imported", "source", name, "ref", ref, "bytes", written)
	return ref, nil
}

// allocateName returns image_<unix millis>.jpg for the current time, moving
// forward one millisecond at a time past names already taken. Callers hold mu.
func (s *Store) allocateName() (string, error) {
	millis := s.now().UnixMilli()
	for {
		ref := fmt.Sprintf("%s%d%s", namePrefix, millis, Extension)
		_, err := os.Lstat(filepath.Join(s.dir, ref))
		if errors.Is(err, fs.ErrNotExist) {
			return ref, nil
		}
		if err != nil {
			return "", err
		}
		millis++
	}
}

// Resolve opens the photo for reading. A missing file, or a reference that
// does not name a file in the store, is ErrPhotoNotFound.
func (s *Store) Resolve(ref string) (*os.File, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, ref)
	}
	return f, nil
}

// Exists reports whether ref resolves.
func (s *Store) Exists(ref string) bool {
	path, err := s.path(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the photo.
func (s *Store) Remove(ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPhotoNotFound, ref)
		}
		return fmt.Errorf("failed to remove photo %s: %w", ref, err)
	}
	s.logger.Info("photo removed", "ref", ref)
	return nil
}

// List returns every stored reference in name order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo directory '%s': %w", s.dir, err)
	}

	refs := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && isPhotoName(e.Name()) {
			refs = append(refs, e.Name())
		}
	}
	return refs, nil
}

func (s *Store) path(ref string) (string, error) {
	if !validRef(ref) {
		return "", fmt.Errorf("%w: invalid reference %q", ErrPhotoNotFound, ref)
	}
	return filepath.Join(s.dir, ref), nil
}

// validRef accepts bare, visible file names only.
func validRef(ref string) bool {
	return ref != "" &&
		!strings.HasPrefix(ref, ".") &&
		!strings.ContainsAny(ref, `/\`) &&
		filepath.Base(ref) == ref
}

func isPhotoName(name string) bool {
	return strings.HasPrefix(name, namePrefix) && strings.HasSuffix(name, Extension)
}

// sourcePath turns a file:// URI into a path. Anything else is taken as a
// path already.
func sourcePath(source string) (string, error) {
	if source == "" {
		return "", errors.New("empty source")
	}
	if !strings.HasPrefix(source, "file:") {
		return source, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid source uri: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("unsupported source host %q", u.Host)
	}
	if u.Path == "" {
		return "", errors.New("source uri has no path")
	}
	return filepath.FromSlash(u.Path), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
