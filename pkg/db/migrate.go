package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// TargetSchemaVersion is the highest schema version this version of the code supports for the itemsdb component.
	TargetSchemaVersion int64 = 2
	// ItemsDBComponent is the name for the items database component.
	ItemsDBComponent = "itemsdb"
)

// ErrMigrationFailed marks any failure to bring the schema to the target
// version. A store must not be served after seeing it.
var ErrMigrationFailed = errors.New("schema migration failed")

// migration is one ordered schema step. Each step runs in its own transaction
// together with the version bump, so a database is never left between versions.
type migration struct {
	version     int64
	description string
	statements  string
}

var migrations = []migration{
	{version: 1, description: "create items table", statements: SchemaV1},
	{version: 2, description: "add items.category", statements: MigrationV2},
}

// GetComponentSchemaVersion retrieves the schema version for a given component.
// Returns 0 if the component is not found, the versions table is uninitialized, or the table doesn't exist.
func GetComponentSchemaVersion(db *sql.DB, componentName string) (int64, error) {
	query := `SELECT version FROM trove_versions WHERE component = ?;`
	row := db.QueryRow(query, componentName)

	var version int64
	err := row.Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if strings.Contains(err.Error(), "no such table") && strings.Contains(err.Error(), "trove_versions") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan version for component '%s': %w", componentName, err)
	}
	return version, nil
}

// InitializeSchema brings an empty database to exactly schemaVersionToSet by
// applying the ordered migrations up to that version.
func InitializeSchema(db *sql.DB, schemaVersionToSet int64) error {
	if _, err := db.Exec(VersionsTable); err != nil {
		return fmt.Errorf("failed to create versions table: %w", err)
	}
	return migrate(context.Background(), db, 0, schemaVersionToSet)
}

// UpgradeDB applies necessary migrations to bring the database, represented by the *sql.DB connection,
// for the ItemsDBComponent to the appTargetSchemaVersion.
// dbIdentifierForLog is used for logging purposes only.
//
// Every returned error wraps ErrMigrationFailed.
func UpgradeDB(db *sql.DB, dbIdentifierForLog string, appTargetSchemaVersion int64) error {
	if _, err := db.Exec(VersionsTable); err != nil {
		return fmt.Errorf("%w: failed to create versions table in database '%s': %w", ErrMigrationFailed, dbIdentifierForLog, err)
	}

	currentDBVersion, err := GetComponentSchemaVersion(db, ItemsDBComponent)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	if currentDBVersion == 0 {
		// Files written before version tracking existed still carry an items table.
		currentDBVersion, err = inferSchemaVersion(db)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
		if currentDBVersion > 0 {
			slog.Info("untracked items schema detected", "component", ItemsDBComponent, "db", dbIdentifierForLog, "version", currentDBVersion)
			if err := setVersion(context.Background(), db, currentDBVersion); err != nil {
				return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
			}
		}
	}

	switch {
	case currentDBVersion == appTargetSchemaVersion:
		slog.Debug("schema up to date", "component", ItemsDBComponent, "db", dbIdentifierForLog, "version", currentDBVersion)
		return nil
	case currentDBVersion > appTargetSchemaVersion:
		return fmt.Errorf("%w: component %s in database '%s' has schema version %d, which is newer than application's target schema version %d. Please upgrade the application",
			ErrMigrationFailed, ItemsDBComponent, dbIdentifierForLog, currentDBVersion, appTargetSchemaVersion)
	}

	slog.Info("upgrading schema", "component", ItemsDBComponent, "db", dbIdentifierForLog, "from", currentDBVersion, "to", appTargetSchemaVersion)
	if err := migrate(context.Background(), db, currentDBVersion, appTargetSchemaVersion); err != nil {
		return fmt.Errorf("%w: component %s in database '%s': %w", ErrMigrationFailed, ItemsDBComponent, dbIdentifierForLog, err)
	}
	return nil
}

// migrate runs every step in (from, to] in order.
func migrate(ctx context.Context, db *sql.DB, from, to int64) error {
	if to > migrations[len(migrations)-1].version {
		return fmt.Errorf("no migration path to schema version %d", to)
	}

	for _, m := range migrations {
		if m.version <= from || m.version > to {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		slog.Info("schema migration applied", "component", ItemsDBComponent, "version", m.version, "step", m.description)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s): begin tx: %w", m.version, m.description, err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, m.statements); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
	}
	if _, err := tx.ExecContext(ctx, upsertVersionStatement, ItemsDBComponent, m.version); err != nil {
		return fmt.Errorf("migration %d (%s): record version: %w", m.version, m.description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d (%s): commit: %w", m.version, m.description, err)
	}
	return nil
}

const upsertVersionStatement = `
INSERT INTO trove_versions (component, version) VALUES (?, ?)
ON CONFLICT(component) DO UPDATE SET version = excluded.version, created_at = unixepoch();`

func setVersion(ctx context.Context, db *sql.DB, version int64) error {
	if _, err := db.ExecContext(ctx, upsertVersionStatement, ItemsDBComponent, version); err != nil {
		return fmt.Errorf("failed to record version %d for component %s: %w", version, ItemsDBComponent, err)
	}
	return nil
}

// inferSchemaVersion looks at the items table itself: no table is 0, a table
// without a category column is 1, a table with one is 2.
func inferSchemaVersion(db *sql.DB) (int64, error) {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='items'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to inspect items table: %w", err)
	}

	hasCategory, err := hasColumn(db, "items", "category")
	if err != nil {
		return 0, err
	}
	if hasCategory {
		return 2, nil
	}
	return 1, nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
