package main

import (
	"github.com/spf13/cobra"

	"github.com/unowned-ai/trove/pkg/mcp"
)

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the trove MCP server (stdio)",
		Long: `Start a Model Context Protocol (MCP) server that exposes trove items, category
tabs and photos as MCP tools via STDIO.

Logs go to stderr so the JSON-RPC stream on stdout stays clean.

Available tools: ping, add_item, get_item, list_items, update_item, delete_item,
list_categories, import_photo, sweep_photos

Example:
  trove mcp
  trove mcp --db trove.db --photos ./photos`,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			// Run the server (blocks until stdio closes).
			return mcp.NewTroveMCPServer(k, opts.logger).Start()
		},
	}
}
