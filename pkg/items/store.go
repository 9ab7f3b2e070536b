package items

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/unowned-ai/trove/pkg/db"
	"github.com/unowned-ai/trove/pkg/live"
)

// Store is the durable item collection. Reads run concurrently; writes are
// serialized and each committed write wakes every live subscription.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	writeMu    sync.Mutex
	generation atomic.Int64
	closed     atomic.Bool

	hub *live.Hub[Item]
}

// Option configures Open.
type Option func(*storeOptions)

type storeOptions struct {
	wal      bool
	syncMode string
	logger   *slog.Logger
}

// WithWAL toggles the write-ahead log. On by default.
func WithWAL(enabled bool) Option {
	return func(o *storeOptions) {
		o.wal = enabled
	}
}

// WithSyncMode sets the SQLite synchronous pragma (OFF, NORMAL, FULL, EXTRA).
func WithSyncMode(mode string) Option {
	return func(o *storeOptions) {
		o.syncMode = mode
	}
}

// WithLogger sets the store logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open opens the database at path and brings its schema to the current
// version. A migration failure is fatal: no store is returned and the
// error wraps db.ErrMigrationFailed.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	o := storeOptions{wal: true, syncMode: "FULL", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := db.OpenDBConnection(path, o.wal, o.syncMode)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := db.UpgradeDB(conn, path, db.TargetSchemaVersion); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Store{
		db:     conn,
		path:   path,
		logger: o.logger,
	}
	s.hub = live.NewHub[Item](s.Generation, live.WithHubLogger(o.logger))

	o.logger.Info("item store opened", "db", path, "wal", o.wal, "sync", o.syncMode)
	return s, nil
}

// Generation increases after every committed write.
func (s *Store) Generation() int64 {
	return s.generation.Load()
}

// Path is the database file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion reports the recorded schema version of the items component.
func (s *Store) SchemaVersion() (int64, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	return db.GetComponentSchemaVersion(s.db, db.ItemsDBComponent)
}

// Close stops every subscription, waiting for deliveries in flight, then
// closes the database. It must not be called from a subscription callback.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.hub.Close()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close item store %s: %w", s.path, err)
	}
	s.logger.Info("item store closed", "db", s.path)
	return nil
}

// committed advances the generation and wakes subscribers. Callers hold writeMu.
func (s *Store) committed(op string, item Item) {
	gen := s.generation.Add(1)
	s.logger.Debug("item write committed", "op", op, "id", item.ID, "category", item.Category, "generation", gen)
	s.hub.Notify()
}

// storeErr maps errors from a closed pool to ErrStoreClosed.
func (s *Store) storeErr(err error) error {
	if err != nil && s.closed.Load() {
		return fmt.Errorf("%w: %w", ErrStoreClosed, err)
	}
	return err
}
