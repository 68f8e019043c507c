package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/memory"
)

// DefaultRecallLimit is the number of memories recall_context returns.
const DefaultRecallLimit = 5

// critiqueLimit is the number of rules critique_code surfaces.
const critiqueLimit = 3

// RecallContextTool handles the recall_context MCP tool.
type RecallContextTool struct {
	store   *memory.Store
	tracker *Tracker
}

// NewRecallContextTool creates a RecallContextTool.
func NewRecallContextTool(store *memory.Store, tracker *Tracker) *RecallContextTool {
	return &RecallContextTool{store: store, tracker: tracker}
}

// Definition returns the MCP tool definition for recall_context.
func (t *RecallContextTool) Definition() mcp.Tool {
	return mcp.NewTool("recall_context",
		mcp.WithDescription(
			"Retrieve the project rules and context most relevant to a query, ranked by semantic similarity. "+
				"Call this before writing code in a project to follow its recorded conventions.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What you are about to do, e.g. 'add a database migration'"),
		),
		mcp.WithString("workbase_id",
			mcp.Required(),
			mcp.Description("Workbase id returned by initialize_workbase, or the project path"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 5)"),
		),
		mcp.WithString("detail_level",
			mcp.Description("How much text to return: summary (ids only), standard (truncated, default), full"),
			mcp.Enum(memory.DetailLevelValues()...),
		),
	)
}

type recalled struct {
	ID       string  `json:"id"`
	Text     string  `json:"text,omitempty"`
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Distance float64 `json:"distance"`
}

type recallResult struct {
	Results []recalled `json:"results"`
	Hint    string     `json:"hint,omitempty"`
}

// Handle processes the recall_context tool call.
func (t *RecallContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	wb, err := t.tracker.Touch(ctx, req.GetString("workbase_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := intArg(req, "limit", DefaultRecallLimit)
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	level := memory.ParseDetailLevel(req.GetString("detail_level", ""))

	hits, err := t.store.Query(ctx, query, memory.Workbase(wb.ID), limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failed: %v", err)), nil
	}

	out := recallResult{Results: make([]recalled, 0, len(hits))}
	for _, h := range hits {
		out.Results = append(out.Results, recalled{
			ID:       h.ID,
			Text:     memory.TextForLevel(h.Document, level),
			Category: orUnknown(h.Metadata.Category),
			Type:     orUnknown(h.Metadata.Type),
			Distance: h.Distance,
		})
	}
	if len(hits) == limit {
		if total, err := t.store.GetAll(ctx, memory.Workbase(wb.ID)); err == nil {
			out.Hint = memory.NavigationHint(len(hits), len(total))
		}
	}
	return jsonResult(out), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// ─── CritiqueCodeTool ───────────────────────────────────────────────────────

// CritiqueCodeTool handles the critique_code MCP tool.
type CritiqueCodeTool struct {
	store   *memory.Store
	tracker *Tracker
}

// NewCritiqueCodeTool creates a CritiqueCodeTool.
func NewCritiqueCodeTool(store *memory.Store, tracker *Tracker) *CritiqueCodeTool {
	return &CritiqueCodeTool{store: store, tracker: tracker}
}

// Definition returns the MCP tool definition for critique_code.
func (t *CritiqueCodeTool) Definition() mcp.Tool {
	return mcp.NewTool("critique_code",
		mcp.WithDescription(
			"Find the stored project rules closest to a code snippet so it can be reviewed against them. "+
				"Returns review hints, not verdicts.",
		),
		mcp.WithString("code_snippet",
			mcp.Required(),
			mcp.Description("The code to review"),
		),
		mcp.WithString("workbase_id",
			mcp.Required(),
			mcp.Description("Workbase id returned by initialize_workbase, or the project path"),
		),
	)
}

// Violation is a review hint produced by critique_code.
type Violation struct {
	RuleID   string `json:"rule_id"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

const critiqueMessage = "Review this snippet against the found project pattern."

// Handle processes the critique_code tool call.
func (t *CritiqueCodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snippet := req.GetString("code_snippet", "")
	if snippet == "" {
		return mcp.NewToolResultError("'code_snippet' is required"), nil
	}
	wb, err := t.tracker.Touch(ctx, req.GetString("workbase_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hits, err := t.store.Query(ctx, snippet, memory.RulesOf(wb.ID), critiqueLimit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("critique failed: %v", err)), nil
	}

	violations := make([]Violation, 0, len(hits))
	for _, h := range hits {
		violations = append(violations, Violation{
			RuleID:   h.ID,
			Rule:     h.Document,
			Severity: "info",
			Message:  critiqueMessage,
		})
	}
	return jsonResult(map[string]any{"violations": violations}), nil
}
