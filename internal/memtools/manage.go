package memtools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/memory"
)

// ─── GetMemoryTool ──────────────────────────────────────────────────────────

// GetMemoryTool handles the get_memory MCP tool.
type GetMemoryTool struct {
	store *memory.Store
}

// NewGetMemoryTool creates a GetMemoryTool.
func NewGetMemoryTool(store *memory.Store) *GetMemoryTool {
	return &GetMemoryTool{store: store}
}

// Definition returns the MCP tool definition for get_memory.
func (t *GetMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_memory",
		mcp.WithDescription("Get the full record of a memory by id, including its metadata."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory id, e.g. rule_<workbase>_<digest> or context_<workbase>"),
		),
	)
}

// Handle processes the get_memory tool call.
func (t *GetMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	rec, err := t.store.Get(ctx, id)
	if errors.Is(err, memory.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("memory %q not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get memory: %v", err)), nil
	}
	return jsonResult(rec), nil
}

// ─── UpdateMemoryTool ───────────────────────────────────────────────────────

// UpdateMemoryTool handles the update_memory MCP tool.
type UpdateMemoryTool struct {
	store *memory.Store
}

// NewUpdateMemoryTool creates an UpdateMemoryTool.
func NewUpdateMemoryTool(store *memory.Store) *UpdateMemoryTool {
	return &UpdateMemoryTool{store: store}
}

// Definition returns the MCP tool definition for update_memory.
func (t *UpdateMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("update_memory",
		mcp.WithDescription(
			"Replace the text of an existing memory in place. The id and metadata are kept; "+
				"conflict detection is not run. Use store_insight with replace_id to re-derive the id instead.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory id to update"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("New text"),
		),
	)
}

// Handle processes the update_memory tool call.
func (t *UpdateMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	err := t.store.Update(ctx, id, content)
	if errors.Is(err, memory.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("memory %q not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update memory: %v", err)), nil
	}
	return jsonResult(map[string]string{"status": "updated", "memory_id": id}), nil
}

// ─── DeleteMemoryTool ───────────────────────────────────────────────────────

// DeleteMemoryTool handles the delete_memory MCP tool.
type DeleteMemoryTool struct {
	store *memory.Store
}

// NewDeleteMemoryTool creates a DeleteMemoryTool.
func NewDeleteMemoryTool(store *memory.Store) *DeleteMemoryTool {
	return &DeleteMemoryTool{store: store}
}

// Definition returns the MCP tool definition for delete_memory.
func (t *DeleteMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_memory",
		mcp.WithDescription("Permanently delete a memory by id. Deleting an unknown id is not an error."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory id to delete"),
		),
	)
}

// Handle processes the delete_memory tool call.
func (t *DeleteMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if err := t.store.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete memory: %v", err)), nil
	}
	return jsonResult(map[string]string{"status": "deleted", "memory_id": id}), nil
}
