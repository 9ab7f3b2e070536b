package items

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unowned-ai/trove/pkg/db"
	"github.com/unowned-ai/trove/pkg/live"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.db")
	store, err := Open(context.Background(), path, WithSyncMode("NORMAL"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestItem(t *testing.T, store *Store, title, category string) Item {
	t.Helper()
	item, err := store.Add(context.Background(), New(title, "", category, time.Now()))
	require.NoError(t, err)
	return item
}

func TestAdd_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 9, 14, 30, 15, 123456789, time.FixedZone("CET", 3600))
	added, err := store.Add(ctx, Item{
		Title:       "Buy milk",
		Description: "2 litres",
		Category:    "  Shopping ",
		Timestamp:   ts,
		PhotoRef:    "image_1.jpg",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, added.ID)
	assert.Equal(t, "Shopping", added.Category)

	got, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added, got)
	assert.True(t, got.Timestamp.Equal(ts.Truncate(time.Millisecond)))
	assert.True(t, got.HasPhoto())
}

func TestAdd_DefaultsCategory(t *testing.T) {
	store := setupTestStore(t)

	item := createTestItem(t, store, "loose", "   ")
	assert.Equal(t, DefaultCategory, item.Category)

	got, err := store.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, got.Category)
	assert.False(t, got.HasPhoto())
}

func TestAdd_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := createTestItem(t, store, "first", "Work")
	dup := New("second", "", "Work", time.Now())
	dup.ID = first.ID

	_, err := store.Add(ctx, dup)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func TestAdd_RejectsInvalidItems(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cases := map[string]Item{
		"reserved category": New("x", "", "all", time.Now()),
		"control character": New("x", "", "Wo\x07rk", time.Now()),
		"long category":     New("x", "", strings.Repeat("c", maxCategoryLength+1), time.Now()),
		"zero timestamp":    {Title: "x", Category: "Work"},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.Add(ctx, item)
			assert.ErrorIs(t, err, ErrConstraintViolation)
		})
	}

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Titles have no length limit.
	long, err := store.Add(ctx, New(strings.Repeat("t", 4096), "", "Work", time.Now()))
	require.NoError(t, err)
	assert.Len(t, long.Title, 4096)
}

func TestUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	item := createTestItem(t, store, "draft", "Work")
	item.Title = "final"
	item.Category = "Personal"
	item.PhotoRef = "image_2.jpg"

	updated, err := store.Update(ctx, item)
	require.NoError(t, err)

	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, "Personal", got.Category)

	// Clearing the photo stores NULL again.
	got.PhotoRef = ""
	_, err = store.Update(ctx, got)
	require.NoError(t, err)
	got, err = store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPhoto())
}

func TestReplace(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	item := createTestItem(t, store, "draft", "Work")
	before := store.Generation()

	item.Title = "final"
	updated, previous, err := store.Replace(ctx, item, nil)
	require.NoError(t, err)
	assert.Equal(t, "draft", previous.Title)
	assert.Equal(t, "final", updated.Title)
	assert.Greater(t, store.Generation(), before)

	// A vetoed write leaves the row and the generation alone.
	veto := errors.New("veto")
	item.Title = "vetoed"
	gen := store.Generation()
	_, _, err = store.Replace(ctx, item, func(stored Item) error {
		assert.Equal(t, "final", stored.Title)
		return veto
	})
	assert.ErrorIs(t, err, veto)
	assert.Equal(t, gen, store.Generation())

	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
}

func TestUpdate_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Update(context.Background(), New("ghost", "", "Work", time.Now()))
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	keep := createTestItem(t, store, "keep", "Work")
	drop := createTestItem(t, store, "drop", "Work")

	removed, err := store.Delete(ctx, drop.ID)
	require.NoError(t, err)
	assert.Equal(t, drop, removed)

	_, err = store.Get(ctx, drop.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = store.Delete(ctx, drop.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{keep}, all)
}

func TestAll_InsertionOrder(t *testing.T) {
	store := setupTestStore(t)

	var want []Item
	for _, title := range []string{"c", "a", "b"} {
		want = append(want, createTestItem(t, store, title, "Work"))
	}

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, all)
}

func TestByCategory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	work := createTestItem(t, store, "report", "Work")
	createTestItem(t, store, "milk", "Shopping")
	loose := createTestItem(t, store, "loose", "")

	got, err := store.ByCategory(ctx, "Work")
	require.NoError(t, err)
	assert.Equal(t, []Item{work}, got)

	got, err = store.ByCategory(ctx, " ")
	require.NoError(t, err)
	assert.Equal(t, []Item{loose}, got)

	// Exact match only.
	got, err = store.ByCategory(ctx, "work")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGeneration_AdvancesOnCommit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), store.Generation())
	item := createTestItem(t, store, "a", "Work")
	assert.Equal(t, int64(1), store.Generation())

	_, err := store.Update(ctx, New("ghost", "", "Work", time.Now()))
	require.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, int64(1), store.Generation())

	_, err = store.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.Generation())
}

func TestClosedStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	item := createTestItem(t, store, "a", "Work")

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Get(ctx, item.ID)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Add(ctx, New("b", "", "Work", time.Now()))
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.All(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.SubscribeAll(func(live.Snapshot[Item]) {})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestOpen_MigratesVersion1File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	conn, err := db.OpenDBConnection(path, true, "NORMAL")
	require.NoError(t, err)
	require.NoError(t, db.InitializeSchema(conn, 1))
	id := uuid.New()
	_, err = conn.Exec(`INSERT INTO items (id, title, description, date, photoUri) VALUES (?, ?, ?, ?, ?)`,
		id, "legacy", "from v1", int64(1700000000000), sql.NullString{})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, got.Category)
	assert.Equal(t, "legacy", got.Title)
	assert.Equal(t, int64(1700000000000), got.Timestamp.UnixMilli())

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, db.TargetSchemaVersion, version)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	conn, err := db.OpenDBConnection(path, true, "NORMAL")
	require.NoError(t, err)
	require.NoError(t, db.InitializeSchema(conn, db.TargetSchemaVersion))
	_, err = conn.Exec(`UPDATE trove_versions SET version = 99 WHERE component = ?`, db.ItemsDBComponent)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	store, err := Open(context.Background(), path)
	assert.Nil(t, store)
	assert.ErrorIs(t, err, db.ErrMigrationFailed)
}
