package view

import (
	"github.com/unowned-ai/trove/pkg/items"
)

// Tab is one category entry with the number of items in it.
type Tab struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Tabs computes the category tabs of a snapshot: All first with the total,
// then every category in order of first appearance.
func Tabs(snapshot []items.Item) []Tab {
	tabs := []Tab{{Label: items.AllCategory, Count: len(snapshot)}}
	index := make(map[string]int)
	for _, item := range snapshot {
		i, ok := index[item.Category]
		if !ok {
			i = len(tabs)
			index[item.Category] = i
			tabs = append(tabs, Tab{Label: item.Category})
		}
		tabs[i].Count++
	}
	return tabs
}

// Partition restricts in to one category tab. All, or an empty tab, passes
// everything through.
func Partition(in []items.Item, tab string) []items.Item {
	if IsAll(tab) {
		return in
	}
	out := make([]items.Item, 0, len(in))
	for _, item := range in {
		if item.Category == tab {
			out = append(out, item)
		}
	}
	return out
}

// IsAll reports whether tab selects every item.
func IsAll(tab string) bool {
	return tab == "" || tab == items.AllCategory
}

func hasTab(tabs []Tab, label string) bool {
	for _, t := range tabs {
		if t.Label == label {
			return true
		}
	}
	return false
}
