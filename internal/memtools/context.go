package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/analyzer"
	"github.com/HendryAvila/mybrain/internal/identity"
	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// ContextCategory is the category of the per-workbase context record.
const ContextCategory = "project_structure"

// InitializeWorkbaseTool handles the initialize_workbase MCP tool.
type InitializeWorkbaseTool struct {
	store    *memory.Store
	analyzer *analyzer.Analyzer
	tracker  *Tracker
}

// NewInitializeWorkbaseTool creates an InitializeWorkbaseTool.
func NewInitializeWorkbaseTool(store *memory.Store, an *analyzer.Analyzer, tracker *Tracker) *InitializeWorkbaseTool {
	return &InitializeWorkbaseTool{store: store, analyzer: an, tracker: tracker}
}

// Definition returns the MCP tool definition for initialize_workbase.
func (t *InitializeWorkbaseTool) Definition() mcp.Tool {
	return mcp.NewTool("initialize_workbase",
		mcp.WithDescription(
			"Validate, normalize and analyze a project directory. Creates or refreshes the workbase context "+
				"(directory tree and coding style) and makes it the active workbase. Call this once at the start of work on a project.",
		),
		mcp.WithString("root_path",
			mcp.Required(),
			mcp.Description("Path to the project root directory (absolute, relative or ~/...)"),
		),
	)
}

type initializeResult struct {
	WorkbaseID  string         `json:"workbase_id"`
	Status      string         `json:"status"`
	ProjectName string         `json:"project_name"`
	RootPath    string         `json:"root_path"`
	Style       analyzer.Style `json:"style"`
}

// Handle processes the initialize_workbase tool call.
func (t *InitializeWorkbaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rootArg := req.GetString("root_path", "")
	if rootArg == "" {
		return mcp.NewToolResultError("'root_path' is required"), nil
	}

	root, err := analyzer.NormalizePath(rootArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	wb := workbase.Workbase{ID: identity.WorkbaseID(root), RootPath: root, ProjectName: filepath.Base(root)}

	tree, err := t.analyzer.ScanStructure(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scanning structure: %v", err)), nil
	}
	style, err := t.analyzer.DetectStyle(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("detecting style: %v", err)), nil
	}
	styleJSON, err := json.Marshal(style)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding style: %v", err)), nil
	}

	text := fmt.Sprintf("Structure:\n%s\n\nStyle:\n%s", tree, styleJSON)
	meta := memory.Metadata{
		WorkbaseID:  wb.ID,
		ProjectName: wb.ProjectName,
		RootPath:    wb.RootPath,
		Type:        memory.TypeContext,
		Category:    ContextCategory,
		Source:      memory.SourceAgent,
	}
	if err := t.store.Add(ctx, identity.ContextID(wb.ID), text, meta); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storing workbase context: %v", err)), nil
	}

	t.tracker.Publish(wb)

	return jsonResult(initializeResult{
		WorkbaseID:  wb.ID,
		Status:      "linked",
		ProjectName: wb.ProjectName,
		RootPath:    wb.RootPath,
		Style:       style,
	}), nil
}
