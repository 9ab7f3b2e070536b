package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/keeper"
	"github.com/unowned-ai/trove/pkg/view"
)

// RegisterPingTool registers the simple ping tool.
func RegisterPingTool(s *server.MCPServer) {
	pingTool := mcp.NewTool("ping",
		mcp.WithDescription("Responds with 'pong_trove' to check if the Trove MCP server is alive."),
	)
	s.AddTool(pingTool, pingHandler)
}

func pingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong_trove"), nil
}

// RegisterAddItemTool registers the add_item tool.
func RegisterAddItemTool(s *server.MCPServer, k *keeper.Keeper) {
	addItemTool := mcp.NewTool("add_item",
		mcp.WithDescription("Adds a new item. The photo, if given, is copied into private storage first."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the item.")),
		mcp.WithString("description", mcp.Description("Optional description.")),
		mcp.WithString("category", mcp.DefaultString(items.DefaultCategory), mcp.Description("Optional category, e.g. Work, Personal, Shopping, Other.")),
		mcp.WithString("date", mcp.Description("Optional date as YYYY-MM-DD. Defaults to today.")),
		mcp.WithString("time", mcp.Description("Optional time of day as HH:MM.")),
		mcp.WithString("photo", mcp.Description("Optional path or file:// URI of a photo to attach.")),
	)
	s.AddTool(addItemTool, addItemHandler(k))
}

func addItemHandler(k *keeper.Keeper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, titleOk := request.Params.Arguments["title"].(string)
		if !titleOk || title == "" {
			return mcp.NewToolResultError("'title' parameter is required and must be a non-empty string."), nil
		}
		description, _ := request.Params.Arguments["description"].(string)
		category, _ := request.Params.Arguments["category"].(string)
		photo, _ := request.Params.Arguments["photo"].(string)

		ts, err := timestampArgs(request, time.Now())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		item, err := k.CreateItem(ctx, keeper.Draft{
			Title:       title,
			Description: description,
			Category:    category,
			Timestamp:   ts,
			PhotoSource: photo,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to add item: %v", err)), nil
		}
		return jsonResult(item)
	}
}

// RegisterGetItemTool registers the get_item tool.
func RegisterGetItemTool(s *server.MCPServer, k *keeper.Keeper) {
	getItemTool := mcp.NewTool("get_item",
		mcp.WithDescription("Retrieves one item by its ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("UUID of the item.")),
	)
	s.AddTool(getItemTool, getItemHandler(k))
}

func getItemHandler(k *keeper.Keeper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := idArg(request)
		if errResult != nil {
			return errResult, nil
		}

		item, err := k.GetItem(ctx, id)
		if errors.Is(err, items.ErrItemNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Item '%s' not found.", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get item '%s': %v", id, err)), nil
		}
		return jsonResult(item)
	}
}

// listResult is the list_items payload.
type listResult struct {
	Tab   string       `json:"tab"`
	Sort  string       `json:"sort"`
	Tabs  []view.Tab   `json:"tabs"`
	Items []items.Item `json:"items"`
}

// RegisterListItemsTool registers the list_items tool.
func RegisterListItemsTool(s *server.MCPServer, k *keeper.Keeper) {
	listItemsTool := mcp.NewTool("list_items",
		mcp.WithDescription("Lists items: filtered by text, sorted, then restricted to one category tab. Tab counts always cover every item."),
		mcp.WithString("filter", mcp.Description("Optional case-insensitive text matched against title and description.")),
		mcp.WithString("sort", mcp.DefaultString("none"), mcp.Description("One of none, title, date, category.")),
		mcp.WithString("category", mcp.DefaultString(items.AllCategory), mcp.Description("Category tab to show. 'All' shows everything.")),
	)
	s.AddTool(listItemsTool, listItemsHandler(k))
}

func listItemsHandler(k *keeper.Keeper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, _ := request.Params.Arguments["filter"].(string)
		sortArg, _ := request.Params.Arguments["sort"].(string)
		category, _ := request.Params.Arguments["category"].(string)

		sortKey, err := view.ParseSortKey(sortArg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := k.ListItems(ctx, view.Options{Filter: filter, Sort: sortKey, Tab: category})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list items: %v", err)), nil
		}
		return jsonResult(listResult{
			Tab:   result.Tab,
			Sort:  sortKey.String(),
			Tabs:  result.Tabs,
			Items: result.Items,
		})
	}
}

// RegisterUpdateItemTool registers the update_item tool.
func RegisterUpdateItemTool(s *server.MCPServer, k *keeper.Keeper) {
	updateItemTool := mcp.NewTool("update_item",
		mcp.WithDescription("Updates an item. Omitted fields keep their current values."),
		mcp.WithString("id", mcp.Required(), mcp.Description("UUID of the item.")),
		mcp.WithString("title", mcp.Description("Optional new title.")),
		mcp.WithString("description", mcp.Description("Optional new description.")),
		mcp.WithString("category", mcp.Description("Optional new category.")),
		mcp.WithString("date", mcp.Description("Optional new date as YYYY-MM-DD.")),
		mcp.WithString("time", mcp.Description("Optional new time of day as HH:MM.")),
		mcp.WithString("photo", mcp.Description("Optional path or file:// URI of a replacement photo.")),
		mcp.WithBoolean("clear_photo", mcp.Description("Remove the current photo.")),
	)
	s.AddTool(updateItemTool, updateItemHandler(k))
}

func updateItemHandler(k *keeper.Keeper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := idArg(request)
		if errResult != nil {
			return errResult, nil
		}

		item, err := k.GetItem(ctx, id)
		if errors.Is(err, items.ErrItemNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Item '%s' not found.", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get item '%s': %v", id, err)), nil
		}

		if v, ok := request.Params.Arguments["title"].(string); ok {
			item.Title = v
		}
		if v, ok := request.Params.Arguments["description"].(string); ok {
			item.Description = v
		}
		if v, ok := request.Params.Arguments["category"].(string); ok {
			item.Category = v
		}
		if clearPhoto, _ := request.Params.Arguments["clear_photo"].(bool); clearPhoto {
			item.PhotoRef = ""
		}
		photo, _ := request.Params.Arguments["photo"].(string)

		item.Timestamp, err = timestampArgs(request, item.Timestamp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		updated, err := k.UpdateItem(ctx, item, photo)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to update item '%s': %v", id, err)), nil
		}
		return jsonResult(updated)
	}
}

// RegisterDeleteItemTool registers the delete_item tool.
func RegisterDeleteItemTool(s *server.MCPServer, k *keeper.Keeper) {
	deleteItemTool := mcp.NewTool("delete_item",
		mcp.WithDescription("Deletes an item and its photo. Deleting an absent item succeeds."),
		mcp.WithString("id", mcp.Required(), mcp.Description("UUID of the item.")),
	)
	s.AddTool(deleteItemTool, deleteItemHandler(k))
}

func deleteItemHandler(k *keeper.Keeper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := idArg(request)
		if errResult != nil {
			return errResult, nil
		}

		if err := k.DeleteItem(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete item '%s': %v", id, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Item '%s' deleted.", id)), nil
	}
}

// RegisterListCategoriesTool registers the list_categories tool.
func RegisterListCategoriesTool(s *server.MCPServer, k *keeper.Keeper) {
	listCategoriesTool := mcp.NewTool("list_categories",
		mcp.WithDescription("Lists category tabs with item counts. 'All' comes first."),
	)
	s.AddTool(listCategoriesTool, listCategoriesHandler(k))
}

func listCategoriesHandler(k *keeper.Keeper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tabs, err := k.Categories(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list categories: %v", err)), nil
		}
		return jsonResult(tabs)
	}
}

// RegisterImportPhotoTool registers the import_photo tool.
func RegisterImportPhotoTool(s *server.MCPServer, k *keeper.Keeper) {
	importPhotoTool := mcp.NewTool("import_photo",
		mcp.WithDescription("Copies a photo into private storage and returns its reference."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path or file:// URI of the photo.")),
	)
	s.AddTool(importPhotoTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, ok := request.Params.Arguments["source"].(string)
		if !ok || source == "" {
			return mcp.NewToolResultError("'source' parameter is required and must be a non-empty string."), nil
		}

		ref, err := k.ImportPhoto(ctx, source)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to import photo: %v", err)), nil
		}
		return mcp.NewToolResultText(ref), nil
	})
}

// RegisterSweepPhotosTool registers the sweep_photos tool.
func RegisterSweepPhotosTool(s *server.MCPServer, k *keeper.Keeper) {
	sweepPhotosTool := mcp.NewTool("sweep_photos",
		mcp.WithDescription("Deletes stored photos that no item references."),
	)
	s.AddTool(sweepPhotosTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := k.SweepPhotos(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Photo sweep incomplete: %v", err)), nil
		}
		return jsonResult(result)
	})
}

func idArg(request mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	idStr, ok := request.Params.Arguments["id"].(string)
	if !ok || idStr == "" {
		return uuid.Nil, mcp.NewToolResultError("'id' parameter is required and must be a non-empty string.")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("Invalid item ID format: %v", err))
	}
	return id, nil
}

// timestampArgs reads the optional date and time arguments. Missing parts
// come from fallback.
func timestampArgs(request mcp.CallToolRequest, fallback time.Time) (time.Time, error) {
	date, _ := request.Params.Arguments["date"].(string)
	clock, _ := request.Params.Arguments["time"].(string)
	if date == "" && clock == "" {
		return fallback, nil
	}

	local := fallback.Local()
	if date == "" {
		date = local.Format(keeper.DateLayout)
	}
	if clock == "" {
		clock = local.Format(keeper.TimeLayout)
	}
	return keeper.ParseDateTime(date, clock, time.Local)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result to JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
