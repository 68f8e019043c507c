package memtools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/analyzer"
	"github.com/HendryAvila/mybrain/internal/identity"
	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// AuditCodebaseTool handles the audit_codebase MCP tool.
type AuditCodebaseTool struct {
	store    *memory.Store
	analyzer *analyzer.Analyzer
	tracker  *Tracker
}

// NewAuditCodebaseTool creates an AuditCodebaseTool.
func NewAuditCodebaseTool(store *memory.Store, an *analyzer.Analyzer, tracker *Tracker) *AuditCodebaseTool {
	return &AuditCodebaseTool{store: store, analyzer: an, tracker: tracker}
}

// Definition returns the MCP tool definition for audit_codebase.
func (t *AuditCodebaseTool) Definition() mcp.Tool {
	return mcp.NewTool("audit_codebase",
		mcp.WithDescription(
			"Scan a project for drift against its stored architecture, constraints and coding_style rules. "+
				"Returns every finding with file, rule and evidence.",
		),
		mcp.WithString("directory_path",
			mcp.Description("Project root to audit (default: the server's working directory)"),
		),
	)
}

type auditResult struct {
	Status       string                  `json:"status"`
	Summary      string                  `json:"summary"`
	Drifts       []analyzer.DriftFinding `json:"drifts"`
	Report       string                  `json:"report"`
	CheckedFiles int                     `json:"checked_files"`
	SkippedFiles int                     `json:"skipped_files"`
	SkipReasons  map[string]int          `json:"skip_reasons,omitempty"`
}

// Handle processes the audit_codebase tool call.
func (t *AuditCodebaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("directory_path", "")
	if dir == "" {
		dir = "."
	}
	root, err := analyzer.NormalizePath(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	wb := t.tracker.Publish(workbase.Workbase{
		ID:          identity.WorkbaseID(root),
		RootPath:    root,
		ProjectName: filepath.Base(root),
	})

	recs, err := t.store.GetAll(ctx, memory.RulesOf(wb.ID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading rules: %v", err)), nil
	}
	rules := analyzer.ArchitecturalRules(analyzer.RulesFromRecords(recs))
	if len(rules) == 0 {
		return jsonResult(map[string]string{
			"status":  "info",
			"message": "No architectural rules found for this workbase.",
		}), nil
	}

	sum, err := t.analyzer.Audit(ctx, root, rules, nil, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("audit failed: %v", err)), nil
	}

	drifts := sum.Findings
	if drifts == nil {
		drifts = []analyzer.DriftFinding{}
	}
	return jsonResult(auditResult{
		Status:       "success",
		Summary:      sum.Summary(),
		Drifts:       drifts,
		Report:       sum.Report(),
		CheckedFiles: sum.CheckedFiles,
		SkippedFiles: sum.SkippedFiles,
		SkipReasons:  sum.SkipReasons,
	}), nil
}
