package memtools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/observer"
)

// ObserverStatusTool handles the observer_status MCP tool.
type ObserverStatusTool struct {
	store      *memory.Store
	statusFile string
}

// NewObserverStatusTool creates an ObserverStatusTool reading statusFile.
func NewObserverStatusTool(store *memory.Store, statusFile string) *ObserverStatusTool {
	return &ObserverStatusTool{store: store, statusFile: statusFile}
}

// Definition returns the MCP tool definition for observer_status.
func (t *ObserverStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("observer_status",
		mcp.WithDescription(
			"Show the background drift observer's status: last run, files checked, whether drift was detected "+
				"and its most recent log lines, plus the total number of stored memories.",
		),
	)
}

type statusResult struct {
	Observer *observer.State `json:"observer"`
	Running  bool            `json:"running"`
	Memories int             `json:"memories"`
}

// Handle processes the observer_status tool call.
func (t *ObserverStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := t.store.Count(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count memories: %v", err)), nil
	}

	res := statusResult{Memories: count}
	st, err := observer.ReadState(t.statusFile)
	switch {
	case err == nil:
		res.Observer = &st
		res.Running = !st.Stopped()
	case errors.Is(err, os.ErrNotExist):
	default:
		return mcp.NewToolResultError(fmt.Sprintf("failed to read observer status: %v", err)), nil
	}
	return jsonResult(res), nil
}
