package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/keeper"
	"github.com/unowned-ai/trove/pkg/live"
	"github.com/unowned-ai/trove/pkg/view"
)

func newItemsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage tracked items",
		Long:  `Add, list, update, and delete items, browse category tabs, and watch the store for changes.`,
	}

	cmd.AddCommand(
		newAddItemCommand(opts),
		newGetItemCommand(opts),
		newListItemsCommand(opts),
		newUpdateItemCommand(opts),
		newDeleteItemCommand(opts),
		newTabsCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

func newAddItemCommand(opts *rootOptions) *cobra.Command {
	var (
		title, description, category string
		date, clock, photo           string
		asJSON                       bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new item",
		Long: `Add an item with a title, optional description and category, a date and time
(defaults to now), and an optional photo copied into the trove.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := timestampFlags(date, clock, time.Now())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid timestamp", err)
			}

			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			item, err := k.CreateItem(cmd.Context(), keeper.Draft{
				Title:       title,
				Description: description,
				Category:    category,
				Timestamp:   ts,
				PhotoSource: photo,
			})
			if errors.Is(err, items.ErrConstraintViolation) {
				return WrapExitError(ExitCommandError, "invalid item", err)
			}
			if err != nil {
				return fmt.Errorf("failed to add item: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title of the item (required)")
	cmd.Flags().StringVar(&description, "description", "", "Description of the item")
	cmd.Flags().StringVar(&category, "category", "", fmt.Sprintf("Category of the item (default %s)", items.DefaultCategory))
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&clock, "time", "", "Time of day as HH:MM")
	cmd.Flags().StringVar(&photo, "photo", "", "Path or file:// URI of a photo to attach")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the item as JSON")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newGetItemCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get [item-id]",
		Short: "Get an item by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			item, err := k.GetItem(cmd.Context(), id)
			if errors.Is(err, items.ErrItemNotFound) {
				return WrapExitError(ExitFailure, "item not found", err)
			}
			if err != nil {
				return fmt.Errorf("failed to get item: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the item as JSON")
	return cmd
}

func newListItemsCommand(opts *rootOptions) *cobra.Command {
	var (
		filter, sortFlag, tab string
		asJSON                bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		Long: `List items filtered by text (title or description, case-insensitive), sorted by
none|title|date|category, restricted to one category tab.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewOpts, err := viewOptions(opts, filter, sortFlag, tab)
			if err != nil {
				return err
			}

			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			result, err := k.ListItems(cmd.Context(), viewOpts)
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result.Items)
			}
			return view.Render(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only items whose title or description contains this text")
	cmd.Flags().StringVar(&sortFlag, "sort", "", "Sort key: none, title, date, category (default from config)")
	cmd.Flags().StringVar(&tab, "category", items.AllCategory, "Category tab to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the items as JSON")
	return cmd
}

func newUpdateItemCommand(opts *rootOptions) *cobra.Command {
	var (
		title, description, category string
		date, clock, photo           string
		clearPhoto, asJSON           bool
	)

	cmd := &cobra.Command{
		Use:   "update [item-id]",
		Short: "Update an item",
		Long: `Update an item's fields. Only the flags given are changed. --photo replaces the
attachment and --clear-photo removes it; the old photo file is deleted either way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			if clearPhoto && photo != "" {
				return NewExitError(ExitCommandError, "--photo and --clear-photo are mutually exclusive")
			}

			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			item, err := k.GetItem(cmd.Context(), id)
			if errors.Is(err, items.ErrItemNotFound) {
				return WrapExitError(ExitFailure, "item not found", err)
			}
			if err != nil {
				return fmt.Errorf("failed to get item: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("title") {
				item.Title = title
			}
			if flags.Changed("description") {
				item.Description = description
			}
			if flags.Changed("category") {
				item.Category = category
			}
			if flags.Changed("date") || flags.Changed("time") {
				ts, err := timestampFlags(date, clock, item.Timestamp.Local())
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid timestamp", err)
				}
				item.Timestamp = ts
			}
			if clearPhoto {
				item.PhotoRef = ""
			}

			updated, err := k.UpdateItem(cmd.Context(), item, photo)
			if errors.Is(err, items.ErrConstraintViolation) {
				return WrapExitError(ExitCommandError, "invalid item", err)
			}
			if err != nil {
				return fmt.Errorf("failed to update item: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), updated)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Item updated successfully!")
			printItem(cmd.OutOrStdout(), updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&date, "date", "", "New date as YYYY-MM-DD")
	cmd.Flags().StringVar(&clock, "time", "", "New time of day as HH:MM")
	cmd.Flags().StringVar(&photo, "photo", "", "Path or file:// URI of a replacement photo")
	cmd.Flags().BoolVar(&clearPhoto, "clear-photo", false, "Remove the attached photo")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the item as JSON")
	return cmd
}

func newDeleteItemCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [item-id]",
		Short: "Delete an item",
		Long:  `Delete an item and its photo. Deleting an item that does not exist succeeds.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			if err := k.DeleteItem(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete item: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %s deleted.\n", id)
			return nil
		},
	}
}

func newTabsCommand(opts *rootOptions) *cobra.Command {
	var asJSON, follow bool

	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List category tabs with item counts",
		Long: `List the category tabs, All first, with the number of items in each.
With --watch the tabs are printed again after every change until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if follow {
				var stop context.CancelFunc
				ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
			}

			k, err := opts.openKeeper(ctx)
			if err != nil {
				return err
			}
			defer k.Close()

			if follow {
				return watchTabs(ctx, k, asJSON, cmd.OutOrStdout())
			}

			tabs, err := k.Categories(ctx)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}
			return printTabs(cmd.OutOrStdout(), tabs, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tabs as JSON")
	cmd.Flags().BoolVar(&follow, "watch", false, "Print the tabs again after every change")
	return cmd
}

func printTabs(w io.Writer, tabs []view.Tab, asJSON bool) error {
	if asJSON {
		return writeJSON(w, tabs)
	}
	for _, tab := range tabs {
		if _, err := fmt.Fprintf(w, "%s (%d)\n", tab.Label, tab.Count); err != nil {
			return err
		}
	}
	return nil
}

// watchTabs prints the tabs now and after every write until ctx ends.
func watchTabs(ctx context.Context, k *keeper.Keeper, asJSON bool, w io.Writer) error {
	sub, err := k.SubscribeTabs(func(tabs []view.Tab) {
		if !asJSON {
			fmt.Fprintf(w, "# tabs at %s\n", time.Now().Format(time.TimeOnly))
		}
		if err := printTabs(w, tabs, asJSON); err != nil {
			k.Logger().Warn("failed to print tabs", "error", err)
		}
	},
		live.WithErrorHandler(func(err error) {
			fmt.Fprintf(w, "# reload failed: %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	return nil
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var filter, sortFlag, tab string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the item list every time it changes",
		Long: `Subscribe to the store and print the derived item list now and after every
change, until interrupted. Bursts of changes are coalesced into one update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewOpts, err := viewOptions(opts, filter, sortFlag, tab)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			k, err := opts.openKeeper(ctx)
			if err != nil {
				return err
			}
			defer k.Close()

			return watch(ctx, k, viewOpts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only items whose title or description contains this text")
	cmd.Flags().StringVar(&sortFlag, "sort", "", "Sort key: none, title, date, category (default from config)")
	cmd.Flags().StringVar(&tab, "category", items.AllCategory, "Category tab to show")
	return cmd
}

// watch prints every delivered snapshot until ctx ends. A category other
// than All subscribes to that category alone, and its tab is the only one
// shown.
func watch(ctx context.Context, k *keeper.Keeper, opts view.Options, w io.Writer) error {
	deliveries := 0
	single := !view.IsAll(opts.Tab)

	show := func(snapshot []items.Item) {
		deliveries++
		if deliveries > 1 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# update %d at %s\n", deliveries, time.Now().Format(time.TimeOnly))

		result := view.Apply(snapshot, opts)
		if single {
			result.Tab = opts.Tab
			result.Tabs = []view.Tab{{Label: opts.Tab, Count: len(snapshot)}}
		}
		if err := view.Render(w, result); err != nil {
			k.Logger().Warn("failed to print update", "update", deliveries, "error", err)
		}
	}

	sub, err := k.SubscribeByCategory(opts.Tab, show,
		live.WithName("watch"),
		live.WithErrorHandler(func(err error) {
			fmt.Fprintf(w, "# reload failed: %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	return nil
}

func parseItemID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, "invalid item ID", err)
	}
	return id, nil
}

// viewOptions builds derived-view options from flags, falling back to the
// configured default sort.
func viewOptions(opts *rootOptions, filter, sortFlag, tab string) (view.Options, error) {
	key := opts.cfg.Sort()
	if sortFlag != "" {
		parsed, err := view.ParseSortKey(sortFlag)
		if err != nil {
			return view.Options{}, WrapExitError(ExitCommandError, "invalid --sort", err)
		}
		key = parsed
	}
	return view.Options{Filter: filter, Sort: key, Tab: tab}, nil
}

// timestampFlags combines --date and --time; whichever is missing is taken
// from base.
func timestampFlags(date, clock string, base time.Time) (time.Time, error) {
	if date == "" && clock == "" {
		return base, nil
	}
	if date == "" {
		date = base.Format(keeper.DateLayout)
	}
	if clock == "" {
		clock = base.Format(keeper.TimeLayout)
	}
	return keeper.ParseDateTime(date, clock, time.Local)
}
