// Package resources implements read-only MCP resources.
//
// Resources provide data that the host can consume for context.
// They use URI-based addressing (mybrain://...) following MCP conventions.
package resources

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/mybrain/internal/observer"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// Resource URIs.
const (
	ObserverStatusURI  = "mybrain://observer/status"
	ActiveWorkbaseURI  = "mybrain://workbase/active"
	noActiveWorkbase   = "No active workbase. Call initialize_workbase first."
	observerNotRunning = "Observer has not written a status file yet."
)

// Handler serves the mybrain resources.
type Handler struct {
	statusFile string
	active     *workbase.Active
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(statusFile string, active *workbase.Active) *Handler {
	return &Handler{statusFile: statusFile, active: active}
}

// StatusResource returns the MCP resource definition for the observer status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		ObserverStatusURI,
		"Drift Observer Status",
		mcp.WithResourceDescription("Background drift observer state: status, last run, files checked, drift flag and recent log lines"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the persisted observer state as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := observer.ReadState(h.statusFile)
	if errors.Is(err, os.ErrNotExist) {
		return errorResource(req.Params.URI, observerNotRunning), nil
	}
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, st)
}

// ActiveWorkbaseResource returns the MCP resource definition for the active workbase.
func (h *Handler) ActiveWorkbaseResource() mcp.Resource {
	return mcp.NewResource(
		ActiveWorkbaseURI,
		"Active Workbase",
		mcp.WithResourceDescription("The workbase the drift observer is currently tracking"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleActiveWorkbase returns the active workbase as JSON.
func (h *Handler) HandleActiveWorkbase(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	wb, ok := h.active.Get()
	if !ok {
		return errorResource(req.Params.URI, noActiveWorkbase), nil
	}
	return jsonResource(req.Params.URI, wb)
}
