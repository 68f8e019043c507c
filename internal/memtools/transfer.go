package memtools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// ExportMemoriesTool handles the export_memories MCP tool.
type ExportMemoriesTool struct {
	store   *memory.Store
	tracker *Tracker
}

// NewExportMemoriesTool creates an ExportMemoriesTool.
func NewExportMemoriesTool(store *memory.Store, tracker *Tracker) *ExportMemoriesTool {
	return &ExportMemoriesTool{store: store, tracker: tracker}
}

// Definition returns the MCP tool definition for export_memories.
func (t *ExportMemoriesTool) Definition() mcp.Tool {
	return mcp.NewTool("export_memories",
		mcp.WithDescription(
			"Export memories as a JSON array of records {id, document, metadata}. "+
				"Omit workbase_id to export every workbase.",
		),
		mcp.WithString("workbase_id",
			mcp.Description("Only export this workbase (id or project path)"),
		),
	)
}

// Handle processes the export_memories tool call.
func (t *ExportMemoriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var filter memory.Filter
	if ref := req.GetString("workbase_id", ""); ref != "" {
		wb, err := t.tracker.Touch(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter = memory.Workbase(wb.ID)
	}

	data, err := t.store.ExportJSON(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ─── ImportMemoriesTool ─────────────────────────────────────────────────────

// ImportMemoriesTool handles the import_memories MCP tool.
type ImportMemoriesTool struct {
	store   *memory.Store
	tracker *Tracker
}

// NewImportMemoriesTool creates an ImportMemoriesTool.
func NewImportMemoriesTool(store *memory.Store, tracker *Tracker) *ImportMemoriesTool {
	return &ImportMemoriesTool{store: store, tracker: tracker}
}

// Definition returns the MCP tool definition for import_memories.
func (t *ImportMemoriesTool) Definition() mcp.Tool {
	return mcp.NewTool("import_memories",
		mcp.WithDescription(
			"Import memories produced by export_memories. Re-importing is idempotent. "+
				"With workbase_id every record is moved into that workbase and its id re-derived there.",
		),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("JSON array of memory records"),
		),
		mcp.WithString("workbase_id",
			mcp.Description("Target workbase (id or project path); omit to keep the records' own workbases"),
		),
	)
}

// Handle processes the import_memories tool call.
func (t *ImportMemoriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := strings.TrimSpace(req.GetString("payload", ""))
	if payload == "" {
		return mcp.NewToolResultError("'payload' is required"), nil
	}

	var target *workbase.Workbase
	if ref := req.GetString("workbase_id", ""); ref != "" {
		wb, err := t.tracker.Touch(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		target = &wb
	}

	res, err := t.store.Import(ctx, []byte(payload), target)
	if errors.Is(err, memory.ErrMalformedInput) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid payload: %v", err)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
	}
	return jsonResult(res), nil
}
