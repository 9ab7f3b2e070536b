package view

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/unowned-ai/trove/pkg/items"
)

// fold maps s to a caseless, composed form so that "WORK", "work" and
// "Work" compare equal.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Filter returns the items whose title or description contains text,
// ignoring case. Only empty text matches everything; whitespace is part of
// the match. The input is not modified.
func Filter(in []items.Item, text string) []items.Item {
	needle := fold(text)
	out := make([]items.Item, 0, len(in))
	for _, item := range in {
		if needle == "" || strings.Contains(fold(item.Title), needle) || strings.Contains(fold(item.Description), needle) {
			out = append(out, item)
		}
	}
	return out
}
