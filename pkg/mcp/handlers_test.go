package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unowned-ai/trove/pkg/config"
	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/keeper"
	"github.com/unowned-ai/trove/pkg/view"
)

func setupTestKeeper(t *testing.T) *keeper.Keeper {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "trove.db")
	cfg.PhotosDir = filepath.Join(dir, "photos")
	cfg.Sync = "NORMAL"

	k, err := keeper.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	return k
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text, result.IsError
	case *mcp.TextContent:
		return c.Text, result.IsError
	}
	t.Fatalf("unexpected content type %T", result.Content[0])
	return "", false
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v), text)
	return v
}

func TestPing(t *testing.T) {
	text, isErr := call(t, pingHandler, nil)
	assert.False(t, isErr)
	assert.Equal(t, "pong_trove", text)
}

func TestAddGetUpdateDelete(t *testing.T) {
	k := setupTestKeeper(t)

	text, isErr := call(t, addItemHandler(k), map[string]interface{}{
		"title":    "Buy milk",
		"category": "Shopping",
		"date":     "2024-03-09",
		"time":     "14:30",
	})
	require.False(t, isErr, text)
	added := decode[items.Item](t, text)
	assert.Equal(t, "Shopping", added.Category)
	assert.Equal(t, "2024-03-09 14:30", added.Timestamp.Local().Format("2006-01-02 15:04"))

	text, isErr = call(t, getItemHandler(k), map[string]interface{}{"id": added.ID.String()})
	require.False(t, isErr, text)
	assert.Equal(t, "Buy milk", decode[items.Item](t, text).Title)

	text, isErr = call(t, updateItemHandler(k), map[string]interface{}{
		"id":    added.ID.String(),
		"title": "Buy oat milk",
	})
	require.False(t, isErr, text)
	updated := decode[items.Item](t, text)
	assert.Equal(t, "Buy oat milk", updated.Title)
	assert.Equal(t, "Shopping", updated.Category)
	assert.True(t, added.Timestamp.Equal(updated.Timestamp))

	text, isErr = call(t, deleteItemHandler(k), map[string]interface{}{"id": added.ID.String()})
	require.False(t, isErr, text)

	// Idempotent.
	_, isErr = call(t, deleteItemHandler(k), map[string]interface{}{"id": added.ID.String()})
	assert.False(t, isErr)

	text, isErr = call(t, getItemHandler(k), map[string]interface{}{"id": added.ID.String()})
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")
}

func TestAddItem_Validation(t *testing.T) {
	k := setupTestKeeper(t)

	text, isErr := call(t, addItemHandler(k), map[string]interface{}{})
	assert.True(t, isErr)
	assert.Contains(t, text, "'title'")

	text, isErr = call(t, addItemHandler(k), map[string]interface{}{"title": "x", "category": "All"})
	assert.True(t, isErr)
	assert.Contains(t, text, "reserved")

	text, isErr = call(t, addItemHandler(k), map[string]interface{}{"title": "x", "date": "tomorrow"})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid date")

	text, isErr = call(t, getItemHandler(k), map[string]interface{}{"id": "not-a-uuid"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Invalid item ID")
}

func TestListItemsAndCategories(t *testing.T) {
	k := setupTestKeeper(t)

	for _, args := range []map[string]interface{}{
		{"title": "Call Bob", "category": "Work", "date": "2024-03-02"},
		{"title": "Buy milk", "category": "Shopping", "date": "2024-03-01"},
		{"title": "Buy bread", "category": "Shopping", "date": "2024-03-03"},
	} {
		_, isErr := call(t, addItemHandler(k), args)
		require.False(t, isErr)
	}

	text, isErr := call(t, listItemsHandler(k), map[string]interface{}{
		"filter":   "BUY",
		"sort":     "date",
		"category": "Shopping",
	})
	require.False(t, isErr, text)
	listed := decode[listResult](t, text)
	assert.Equal(t, "Shopping", listed.Tab)
	assert.Equal(t, "date", listed.Sort)
	require.Len(t, listed.Items, 2)
	assert.Equal(t, "Buy milk", listed.Items[0].Title)
	assert.Equal(t, "Buy bread", listed.Items[1].Title)
	assert.Equal(t, 3, listed.Tabs[0].Count)

	text, isErr = call(t, listItemsHandler(k), map[string]interface{}{"sort": "priority"})
	assert.True(t, isErr)
	assert.Contains(t, text, "unknown sort key")

	text, isErr = call(t, listCategoriesHandler(k), nil)
	require.False(t, isErr, text)
	tabs := decode[[]view.Tab](t, text)
	assert.Equal(t, []view.Tab{
		{Label: "All", Count: 3},
		{Label: "Work", Count: 1},
		{Label: "Shopping", Count: 2},
	}, tabs)
}

func TestAddItem_WithPhoto(t *testing.T) {
	k := setupTestKeeper(t)
	source := filepath.Join(t.TempDir(), "pick.jpg")
	require.NoError(t, os.WriteFile(source, []byte("jpeg"), 0o644))

	text, isErr := call(t, addItemHandler(k), map[string]interface{}{"title": "Receipt", "photo": source})
	require.False(t, isErr, text)
	item := decode[items.Item](t, text)
	assert.True(t, k.Photos().Exists(item.PhotoRef))

	text, isErr = call(t, updateItemHandler(k), map[string]interface{}{"id": item.ID.String(), "clear_photo": true})
	require.False(t, isErr, text)
	assert.False(t, decode[items.Item](t, text).HasPhoto())
	assert.False(t, k.Photos().Exists(item.PhotoRef))

	text, isErr = call(t, addItemHandler(k), map[string]interface{}{"title": "Receipt", "photo": source + ".missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "photo import")
}
