package main

import (
	"github.com/spf13/cobra"

	"github.com/unowned-ai/trove/pkg/tui"
)

func newTUICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Show terminal UI",
		Long:  `Display an interactive terminal UI for browsing and editing items. It follows the store live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			return tui.ShowTUI(k, opts.cfg.Sort())
		},
	}
}
