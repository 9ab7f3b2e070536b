package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/view"
)

func printItem(w io.Writer, item items.Item) {
	photo := "-"
	if item.HasPhoto() {
		photo = item.PhotoRef
	}

	fmt.Fprintln(w, "Item Details:")
	fmt.Fprintf(w, "ID:          %s\n", item.ID)
	fmt.Fprintf(w, "Title:       %s\n", item.Title)
	fmt.Fprintf(w, "Category:    %s\n", item.Category)
	fmt.Fprintf(w, "Date:        %s\n", item.Timestamp.Local().Format(view.TimestampLayout))
	fmt.Fprintf(w, "Photo:       %s\n", photo)
	if item.Description != "" {
		fmt.Fprintln(w, "\nDescription:")
		fmt.Fprintln(w, "------------------------------------------------------------")
		fmt.Fprintln(w, item.Description)
		fmt.Fprintln(w, "------------------------------------------------------------")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
