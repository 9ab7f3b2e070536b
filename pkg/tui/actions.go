package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/keeper"
)

// dispatchMsg carries a live-query callback onto the UI loop.
type dispatchMsg func()

type itemSavedMsg struct {
	item items.Item
}

type itemDeletedMsg struct {
	id uuid.UUID
}

// photoStatusMsg maps photo references to whether their file resolves.
type photoStatusMsg map[string]bool

// liveInbox receives snapshots from the subscription. Its methods only run
// inside dispatchMsg handling, on the UI loop.
type liveInbox struct {
	items []items.Item
	fresh bool
	err   error
}

func (l *liveInbox) deliver(snapshot []items.Item) {
	l.items = snapshot
	l.fresh = true
}

func (l *liveInbox) fail(err error) {
	l.err = err
}

// Save a new item (and import its photo) off the UI loop
func createItem(k *keeper.Keeper, draft keeper.Draft) tea.Cmd {
	return func() tea.Msg {
		item, err := k.CreateItem(context.Background(), draft)
		if err != nil {
			return err
		}
		return itemSavedMsg{item: item}
	}
}

// Delete an item and its photo off the UI loop
func deleteItem(k *keeper.Keeper, id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		if err := k.DeleteItem(context.Background(), id); err != nil {
			return err
		}
		return itemDeletedMsg{id: id}
	}
}

// Check which photo references still resolve
func checkPhotos(k *keeper.Keeper, snapshot []items.Item) tea.Cmd {
	refs := make([]string, 0, len(snapshot))
	for _, item := range snapshot {
		if item.HasPhoto() {
			refs = append(refs, item.PhotoRef)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	return func() tea.Msg {
		status := make(photoStatusMsg, len(refs))
		for _, ref := range refs {
			status[ref] = k.Photos().Exists(ref)
		}
		return status
	}
}
