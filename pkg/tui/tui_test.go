package tui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unowned-ai/trove/pkg/config"
	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/keeper"
	"github.com/unowned-ai/trove/pkg/view"
)

func newTestKeeper(t *testing.T) *keeper.Keeper {
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

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m model, msgs ...tea.Msg) (model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(model)
		require.True(t, ok)
	}
	return m, cmd
}

// deliver pushes a snapshot the way the subscription does: through a
// dispatched callback.
func deliver(t *testing.T, m model, snapshot []items.Item) model {
	t.Helper()
	m, _ = send(t, m, dispatchMsg(func() { m.live.deliver(snapshot) }))
	return m
}

func sample() []items.Item {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []items.Item{
		items.New("Buy milk", "2 liters", "Shopping", base.Add(48*time.Hour)),
		items.New("Call Bob", "", "Work", base),
		items.New("Buy bread", "", "Shopping", base.Add(24*time.Hour)),
	}
}

func titles(list []items.Item) []string {
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.Title
	}
	return out
}

func TestSnapshotDelivery(t *testing.T) {
	m := initModel(nil, view.SortNone)
	assert.False(t, m.loaded)

	m = deliver(t, m, sample())
	assert.True(t, m.loaded)
	assert.Equal(t, []string{"Buy milk", "Call Bob", "Buy bread"}, titles(m.result.Items))
	assert.Equal(t, []view.Tab{
		{Label: "All", Count: 3},
		{Label: "Shopping", Count: 2},
		{Label: "Work", Count: 1},
	}, m.result.Tabs)
}

func TestDispatchWithoutDelivery(t *testing.T) {
	m := deliver(t, initModel(nil, view.SortNone), sample())

	// A dispatched callback that was dropped leaves the view alone.
	m, cmd := send(t, m, dispatchMsg(func() {}))
	assert.Nil(t, cmd)
	assert.Len(t, m.result.Items, 3)
}

func TestLoadErrorBecomesNotice(t *testing.T) {
	m := initModel(nil, view.SortNone)
	m, _ = send(t, m, dispatchMsg(func() { m.live.fail(errors.New("disk gone")) }))
	assert.True(t, m.noticeErr)
	assert.Contains(t, m.notice, "disk gone")
	assert.Nil(t, m.live.err)
}

func TestTabsSortAndFilter(t *testing.T) {
	m := deliver(t, initModel(nil, view.SortNone), sample())

	m, _ = send(t, m, key("tab"))
	assert.Equal(t, "Shopping", m.result.Tab)
	assert.Equal(t, 1, m.tabCursor)
	assert.Equal(t, []string{"Buy milk", "Buy bread"}, titles(m.result.Items))

	m, _ = send(t, m, key("s"), key("s"))
	assert.Equal(t, view.SortByTimestamp, m.view.Options().Sort)
	assert.Equal(t, []string{"Buy bread", "Buy milk"}, titles(m.result.Items))
	assert.Contains(t, m.notice, "date")

	m, _ = send(t, m, key("shift+tab"), key("shift+tab"))
	assert.Equal(t, "Work", m.result.Tab)

	m, _ = send(t, m, key("tab"), key("/"), key("b"), key("u"), key("y"))
	assert.True(t, m.filtering)
	assert.Equal(t, "buy", m.view.Options().Filter)
	assert.Equal(t, []string{"Buy bread", "Buy milk"}, titles(m.result.Items))
	// Counts come from the whole snapshot.
	assert.Equal(t, 3, m.result.Tabs[0].Count)

	m, _ = send(t, m, key("enter"))
	assert.False(t, m.filtering)
	assert.Equal(t, "buy", m.view.Options().Filter)

	m, _ = send(t, m, key("/"), key("esc"))
	assert.Empty(t, m.view.Options().Filter)
	assert.Len(t, m.result.Items, 3)
}

func TestTabFallsBackWhenCategoryEmpties(t *testing.T) {
	list := sample()
	m := deliver(t, initModel(nil, view.SortNone), list)
	m, _ = send(t, m, key("tab"), key("tab"))
	require.Equal(t, "Work", m.result.Tab)

	m = deliver(t, m, []items.Item{list[0], list[2]})
	assert.Equal(t, items.AllCategory, m.result.Tab)
	assert.Equal(t, 0, m.tabCursor)
}

func TestSelectionFollowsItem(t *testing.T) {
	list := sample()
	m := deliver(t, initModel(nil, view.SortNone), list)
	m, _ = send(t, m, key("right"), key("down"), key("down"))
	require.Equal(t, "Buy bread", m.result.Items[m.itemCursor].Title)

	m = deliver(t, m, []items.Item{list[1], list[2]})
	assert.Equal(t, "Buy bread", m.result.Items[m.itemCursor].Title)
}

func TestCreateItem(t *testing.T) {
	k := newTestKeeper(t)
	m := deliver(t, initModel(k, view.SortNone), nil)

	m, _ = send(t, m, key("n"))
	require.True(t, m.creating)
	assert.NotEmpty(t, m.inputs[fieldDate].Value())

	m, _ = send(t, m, key("Buy milk"), key("enter"), key("enter"), key("Shopping"))
	m.inputs[fieldDate].SetValue("2024-03-09")
	m.inputs[fieldTime].SetValue("14:30")
	m, cmd := send(t, m, key("enter"), key("enter"), key("enter"), key("enter"))
	assert.False(t, m.creating)
	require.NotNil(t, cmd)

	m, _ = send(t, m, cmd())
	assert.Contains(t, m.notice, "Buy milk")

	all, err := k.Items().All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Shopping", all[0].Category)
	assert.Equal(t, "2024-03-09 14:30", all[0].Timestamp.Local().Format(view.TimestampLayout))
}

func TestCreateItem_InvalidInput(t *testing.T) {
	k := newTestKeeper(t)
	m := initModel(k, view.SortNone)

	m, _ = send(t, m, key("n"), key("x"), key("enter"), key("enter"), key("all"))
	m.inputs[fieldDate].SetValue("tomorrow")
	m, cmd := send(t, m, key("enter"), key("enter"), key("enter"), key("enter"))
	assert.True(t, m.creating)
	assert.Nil(t, cmd)
	assert.Contains(t, m.creatingError, "invalid date")

	m.inputs[fieldDate].SetValue("2024-03-09")
	m, cmd = send(t, m, key("enter"))
	assert.True(t, m.creating)
	assert.Nil(t, cmd)
	assert.Contains(t, m.creatingError, "reserved")

	m, _ = send(t, m, key("esc"))
	assert.False(t, m.creating)
}

func TestCreateItem_ImportFailureIsNotice(t *testing.T) {
	k := newTestKeeper(t)
	m := initModel(k, view.SortNone)

	m, _ = send(t, m, key("n"), key("Receipt"))
	m.inputs[fieldPhoto].SetValue(filepath.Join(t.TempDir(), "missing.jpg"))
	m, cmd := send(t, m, key("enter"), key("enter"), key("enter"), key("enter"), key("enter"), key("enter"))
	require.NotNil(t, cmd)

	m, _ = send(t, m, cmd())
	assert.True(t, m.noticeErr)

	all, err := k.Items().All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteItem(t *testing.T) {
	k := newTestKeeper(t)
	item, err := k.CreateItem(context.Background(), keeper.Draft{
		Title:     "Buy milk",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	m := deliver(t, initModel(k, view.SortNone), []items.Item{item})

	// Nothing happens while the categories column has focus.
	m, _ = send(t, m, key("d"))
	assert.False(t, m.deleting)

	m, _ = send(t, m, key("right"), key("d"))
	require.True(t, m.deleting)
	assert.Equal(t, 1, m.deleteConfirmIdx)

	// "No" is the default.
	m, cmd := send(t, m, key("enter"))
	assert.False(t, m.deleting)
	assert.Nil(t, cmd)

	m, cmd = send(t, m, key("d"), key("up"), key("enter"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.Equal(t, "Item deleted", m.notice)

	_, err = k.GetItem(context.Background(), item.ID)
	assert.ErrorIs(t, err, items.ErrItemNotFound)
}

func TestPhotoStatus(t *testing.T) {
	m := initModel(nil, view.SortNone)
	item := items.New("Receipt", "", "", time.Now())
	item.PhotoRef = "image_1.jpg"

	assert.Contains(t, m.photoLine(item), "image_1.jpg")
	m, _ = send(t, m, photoStatusMsg{"image_1.jpg": false})
	assert.Contains(t, m.photoLine(item), "missing")
}

func TestNoticeExpires(t *testing.T) {
	m := initModel(nil, view.SortNone)
	m, _ = send(t, m, errors.New("boom"))
	require.Equal(t, "boom", m.notice)

	m, _ = send(t, m, time.Now())
	assert.Equal(t, "boom", m.notice)

	m, _ = send(t, m, time.Now().Add(noticeTTL+time.Second))
	assert.Empty(t, m.notice)
}

func TestView(t *testing.T) {
	m := initModel(nil, view.SortNone)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "Loading")

	m = deliver(t, m, sample())
	out := m.View()
	assert.Contains(t, out, "Categories")
	assert.Contains(t, out, "Shopping (2)")
	assert.Contains(t, out, "Call Bob")

	m, _ = send(t, m, key("right"))
	assert.Contains(t, m.View(), "2 liters")

	m, _ = send(t, m, key("q"))
	assert.True(t, m.quitting)
	assert.Contains(t, m.View(), "Everything is saved")
}
