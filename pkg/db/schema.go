package db

const (
	// VersionsTable tracks the schema version of every component stored in the file.
	VersionsTable = `
CREATE TABLE IF NOT EXISTS trove_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    created_at REAL DEFAULT (unixepoch())
);
`

	// SchemaV1 is the first items layout. It predates categories.
	SchemaV1 = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    date INTEGER NOT NULL,
    photoUri TEXT
);
`

	// MigrationV2 adds the category column. Existing rows become Uncategorized.
	MigrationV2 = `
ALTER TABLE items ADD COLUMN category TEXT NOT NULL DEFAULT 'Uncategorized';
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
`
)
