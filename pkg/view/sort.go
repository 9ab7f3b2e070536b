package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/unowned-ai/trove/pkg/items"
)

// ErrUnknownSortKey is returned by ParseSortKey.
var ErrUnknownSortKey = errors.New("unknown sort key")

// SortKey selects the ordering of a derived view.
type SortKey int

const (
	// SortNone keeps the snapshot order.
	SortNone SortKey = iota
	SortByTitle
	SortByTimestamp
	SortByCategory
)

// SortKeys lists every key in cycling order.
var SortKeys = []SortKey{SortNone, SortByTitle, SortByTimestamp, SortByCategory}

var comparators = map[SortKey]func(a, b items.Item) int{
	SortByTitle: func(a, b items.Item) int {
		return strings.Compare(a.Title, b.Title)
	},
	SortByTimestamp: func(a, b items.Item) int {
		return a.Timestamp.Compare(b.Timestamp)
	},
	SortByCategory: func(a, b items.Item) int {
		return strings.Compare(a.Category, b.Category)
	},
}

func (k SortKey) String() string {
	switch k {
	case SortNone:
		return "none"
	case SortByTitle:
		return "title"
	case SortByTimestamp:
		return "date"
	case SortByCategory:
		return "category"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// Next returns the key after k in SortKeys, wrapping around.
func (k SortKey) Next() SortKey {
	i := slices.Index(SortKeys, k)
	return SortKeys[(i+1)%len(SortKeys)]
}

// ParseSortKey accepts none, title, date, timestamp and category, in any case.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "title":
		return SortByTitle, nil
	case "date", "timestamp":
		return SortByTimestamp, nil
	case "category":
		return SortByCategory, nil
	}
	return SortNone, fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// Sort returns a stably sorted copy of in. Items with equal keys keep their
// relative order.
func Sort(in []items.Item, key SortKey) []items.Item {
	out := slices.Clone(in)
	if cmp, ok := comparators[key]; ok {
		slices.SortStableFunc(out, cmp)
	}
	return out
}
