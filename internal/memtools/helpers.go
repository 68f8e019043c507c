// Package memtools provides the MCP tool handlers agents use to talk to the
// memory store.
//
// Each tool follows the same pattern:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Results are JSON documents carried as text content. Business outcomes such
// as a rule conflict are ordinary results; only bad input and storage
// failures are reported with mcp.NewToolResultError.
package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/HendryAvila/mybrain/internal/analyzer"
	"github.com/HendryAvila/mybrain/internal/identity"
	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// Tracker resolves the workbase a tool call refers to and publishes it as
// the active workbase for the drift observer.
type Tracker struct {
	store  *memory.Store
	active *workbase.Active
	log    zerolog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(store *memory.Store, active *workbase.Active, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, active: active, log: log}
}

// Touch resolves ref (a workbase id or a project path), fills in the root
// path and project name from the stored context record when the call does
// not carry them, and publishes the result.
func (t *Tracker) Touch(ctx context.Context, ref string) (workbase.Workbase, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return workbase.Workbase{}, fmt.Errorf("'workbase_id' is required")
	}

	wb := ResolveWorkbase(ref)
	if wb.RootPath == "" {
		rec, err := t.store.Get(ctx, identity.ContextID(wb.ID))
		switch {
		case err == nil:
			wb.RootPath = rec.Metadata.RootPath
			wb.ProjectName = rec.Metadata.ProjectName
		case !memory.IsNotFound(err):
			t.log.Debug().Err(err).Str("workbase", wb.ID).Msg("context lookup failed")
		}
	}

	return t.Publish(wb), nil
}

// ResolveWorkbase turns a workbase id or a project path into a workbase.
// Paths that exist are resolved to their canonical root so they hash to the
// same id as initialize_workbase; anything else goes through identity.Resolve.
func ResolveWorkbase(ref string) workbase.Workbase {
	ref = strings.TrimSpace(ref)
	if !identity.IsWorkbaseID(ref) {
		if root, err := analyzer.NormalizePath(ref); err == nil {
			return workbase.Workbase{ID: identity.WorkbaseID(root), RootPath: root, ProjectName: filepath.Base(root)}
		}
	}
	return workbase.Workbase{ID: identity.Resolve(ref)}
}

// Publish makes wb the active workbase.
func (t *Tracker) Publish(wb workbase.Workbase) workbase.Workbase {
	wb = t.active.Publish(wb)
	t.log.Debug().Str("workbase", wb.ID).Str("project", wb.ProjectName).Msg("active workbase")
	return wb
}
