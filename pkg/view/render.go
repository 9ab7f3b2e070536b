package view

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// TimestampLayout is how timestamps are printed in listings.
const TimestampLayout = "2006-01-02 15:04"

// Render writes the tabs line followed by one line per visible item.
func Render(w io.Writer, r Result) error {
	labels := make([]string, len(r.Tabs))
	for i, t := range r.Tabs {
		label := fmt.Sprintf("%s (%d)", t.Label, t.Count)
		if t.Label == r.Tab {
			label = "[" + label + "]"
		}
		labels[i] = label
	}
	if _, err := fmt.Fprintf(w, "Tabs: %s\n", strings.Join(labels, "  ")); err != nil {
		return err
	}

	if len(r.Items) == 0 {
		_, err := fmt.Fprintln(w, "No items.")
		return err
	}

	for _, item := range r.Items {
		photo := "-"
		if item.HasPhoto() {
			photo = item.PhotoRef
		}
		_, err := fmt.Fprintf(w, "%s | %s | %s | %s | %s\n",
			item.ID,
			item.Timestamp.In(time.UTC).Format(TimestampLayout),
			item.Category,
			item.Title,
			photo,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
