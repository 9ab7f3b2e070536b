// Package view derives what is shown from a snapshot: filter, then sort,
// then partition by category tab.
package view

import (
	"github.com/unowned-ai/trove/pkg/items"
)

// Options is the user-controlled part of a derived view.
type Options struct {
	Filter string
	Sort   SortKey
	Tab    string // empty means All
}

// Result is a derived view together with the tabs of its snapshot.
type Result struct {
	Items []items.Item
	Tabs  []Tab
	Tab   string
}

// Apply derives the visible sequence from snapshot. The tabs are computed
// from the whole snapshot, so their counts ignore the filter.
func Apply(snapshot []items.Item, opts Options) Result {
	tab := opts.Tab
	if IsAll(tab) {
		tab = items.AllCategory
	}
	visible := Partition(Sort(Filter(snapshot, opts.Filter), opts.Sort), tab)
	return Result{
		Items: visible,
		Tabs:  Tabs(snapshot),
		Tab:   tab,
	}
}

// Model holds the latest snapshot and the current options. Every setter
// recomputes the view from the full snapshot. A Model is not safe for
// concurrent use; keep it on the context that receives snapshots.
type Model struct {
	snapshot []items.Item
	opts     Options
	result   Result
}

// NewModel returns an empty model using opts.
func NewModel(opts Options) *Model {
	m := &Model{opts: opts}
	m.recompute()
	return m
}

// SetSnapshot replaces the base data. If the active tab's category no longer
// exists the model returns to All.
func (m *Model) SetSnapshot(snapshot []items.Item) Result {
	m.snapshot = snapshot
	return m.recompute()
}

// SetFilter changes the filter text.
func (m *Model) SetFilter(text string) Result {
	m.opts.Filter = text
	return m.recompute()
}

// SetSort changes the sort key.
func (m *Model) SetSort(key SortKey) Result {
	m.opts.Sort = key
	return m.recompute()
}

// SetTab selects a category tab. Unknown tabs select All.
func (m *Model) SetTab(tab string) Result {
	m.opts.Tab = tab
	return m.recompute()
}

// Options returns the current options.
func (m *Model) Options() Options {
	return m.opts
}

// Result returns the last computed view.
func (m *Model) Result() Result {
	return m.result
}

// Snapshot returns the current base data.
func (m *Model) Snapshot() []items.Item {
	return m.snapshot
}

func (m *Model) recompute() Result {
	if !IsAll(m.opts.Tab) && !hasTab(Tabs(m.snapshot), m.opts.Tab) {
		m.opts.Tab = items.AllCategory
	}
	m.result = Apply(m.snapshot, m.opts)
	return m.result
}
