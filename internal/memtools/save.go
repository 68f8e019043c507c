package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/memory"
)

// StoreInsightTool handles the store_insight MCP tool.
type StoreInsightTool struct {
	writer  *memory.RuleWriter
	tracker *Tracker
}

// NewStoreInsightTool creates a StoreInsightTool writing through writer.
func NewStoreInsightTool(writer *memory.RuleWriter, tracker *Tracker) *StoreInsightTool {
	return &StoreInsightTool{writer: writer, tracker: tracker}
}

// Definition returns the MCP tool definition for store_insight.
func (t *StoreInsightTool) Definition() mcp.Tool {
	return mcp.NewTool("store_insight",
		mcp.WithDescription(
			"Store a project rule or insight. Runs semantic conflict detection first: if a similar rule already "+
				"exists in the same category the rule is NOT stored and the similar rule is returned. "+
				"Retry with force=true to override it, or with replace_id to replace a specific rule.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The rule text, e.g. 'Never use print in production code'"),
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Rule category: architecture, constraints, coding_style, testing, documentation, ..."),
		),
		mcp.WithString("workbase_id",
			mcp.Required(),
			mcp.Description("Workbase id returned by initialize_workbase, or the project path"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Store even if a conflicting rule exists, deleting the conflicting rule"),
		),
		mcp.WithString("replace_id",
			mcp.Description("Id of a rule to delete before storing this one"),
		),
	)
}

// Handle processes the store_insight tool call.
func (t *StoreInsightTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	category := req.GetString("category", "")
	if category == "" {
		return mcp.NewToolResultError("'category' is required"), nil
	}

	wb, err := t.tracker.Touch(ctx, req.GetString("workbase_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.writer.Save(ctx, memory.SaveParams{
		Content:     content,
		Category:    category,
		WorkbaseID:  wb.ID,
		ProjectName: wb.ProjectName,
		Force:       boolArg(req, "force", false),
		ReplaceID:   req.GetString("replace_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store insight: %v", err)), nil
	}
	return jsonResult(res), nil
}
