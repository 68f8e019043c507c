// Package server wires all components and creates the MCP server instance.
//
// This is the composition root: it creates concrete implementations from the
// configuration and injects them into the tools, prompts, resources and the
// drift observer. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/HendryAvila/mybrain/internal/analyzer"
	"github.com/HendryAvila/mybrain/internal/config"
	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/memtools"
	"github.com/HendryAvila/mybrain/internal/observer"
	"github.com/HendryAvila/mybrain/internal/prompts"
	"github.com/HendryAvila/mybrain/internal/resources"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the MCP server name.
const Name = "myBrAIn"

// App is the wired process: the MCP server plus the background observer it
// shares the active workbase with.
type App struct {
	MCP      *server.MCPServer
	Store    *memory.Store
	Active   *workbase.Active
	Observer *observer.Observer // nil when the observer is disabled
}

// Close releases the store. It is safe to call once Run has returned.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenStore opens the memory store described by cfg.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*memory.Store, error) {
	emb, err := memory.NewEmbedder(cfg.EmbeddingProvider)
	if err != nil {
		return nil, err
	}
	return memory.New(ctx, memory.Config{
		DataDir:    cfg.DataDir,
		Collection: cfg.Collection,
		Embedder:   emb,
		Retry:      memory.RetryPolicy{Budget: cfg.RetryBudget(), Interval: cfg.RetryInterval()},
		Logger:     log,
	})
}

// NewAnalyzer creates the project analyzer described by cfg.
func NewAnalyzer(cfg *config.Config, log zerolog.Logger) *analyzer.Analyzer {
	return analyzer.New(analyzer.Options{
		MaxTreeLines:     cfg.MaxTreeLines,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes,
		MaxSampleFiles:   cfg.MaxStyleSampleFiles,
	}, log)
}

// New creates the store, the analyzer, the observer and the MCP server with
// all tools, prompts and resources registered. The active workbase always
// starts empty; the first tool call that names a workbase sets it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}

	an := NewAnalyzer(cfg, log)
	active := workbase.NewActive()

	var obs *observer.Observer
	if cfg.Observer.Enabled {
		sched, err := observer.ParseSchedule(cfg.Observer.Schedule)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		obs, err = observer.New(observer.Config{
			StatusFile:     cfg.StatusFile(),
			Schedule:       sched,
			ErrorCooldown:  cfg.Observer.ErrorCooldown(),
			FilesPerSecond: cfg.Observer.FilesPerSecond,
			WatchChanges:   cfg.Observer.WatchChanges,
		}, store, an, active, log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("creating observer: %w", err)
		}
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerMemoryTools(s, deps{
		store:      store,
		analyzer:   an,
		tracker:    memtools.NewTracker(store, active, log.With().Str("component", "tools").Logger()),
		writer:     memory.NewRuleWriter(store, memory.NewDetector(store, cfg.ConflictThreshold)),
		statusFile: cfg.StatusFile(),
	})

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	auditPrompt := prompts.NewAuditPrompt()
	s.AddPrompt(auditPrompt.Definition(), auditPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(cfg.StatusFile(), active)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)
	s.AddResource(resourceHandler.ActiveWorkbaseResource(), resourceHandler.HandleActiveWorkbase)

	return &App{MCP: s, Store: store, Active: active, Observer: obs}, nil
}

type deps struct {
	store      *memory.Store
	analyzer   *analyzer.Analyzer
	tracker    *memtools.Tracker
	writer     *memory.RuleWriter
	statusFile string
}

// registerMemoryTools registers all 11 agent tools with the server.
func registerMemoryTools(s *server.MCPServer, d deps) {
	// --- Workbase ---
	initTool := memtools.NewInitializeWorkbaseTool(d.store, d.analyzer, d.tracker)
	s.AddTool(initTool.Definition(), initTool.Handle)

	// --- Rules ---
	storeInsight := memtools.NewStoreInsightTool(d.writer, d.tracker)
	s.AddTool(storeInsight.Definition(), storeInsight.Handle)

	recall := memtools.NewRecallContextTool(d.store, d.tracker)
	s.AddTool(recall.Definition(), recall.Handle)

	critique := memtools.NewCritiqueCodeTool(d.store, d.tracker)
	s.AddTool(critique.Definition(), critique.Handle)

	// --- Drift ---
	audit := memtools.NewAuditCodebaseTool(d.store, d.analyzer, d.tracker)
	s.AddTool(audit.Definition(), audit.Handle)

	status := memtools.NewObserverStatusTool(d.store, d.statusFile)
	s.AddTool(status.Definition(), status.Handle)

	// --- Management ---
	getTool := memtools.NewGetMemoryTool(d.store)
	s.AddTool(getTool.Definition(), getTool.Handle)

	updateTool := memtools.NewUpdateMemoryTool(d.store)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	deleteTool := memtools.NewDeleteMemoryTool(d.store)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// --- Transfer ---
	exportTool := memtools.NewExportMemoriesTool(d.store, d.tracker)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	importTool := memtools.NewImportMemoriesTool(d.store, d.tracker)
	s.AddTool(importTool.Definition(), importTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use myBrAIn effectively.
func serverInstructions() string {
	return `You have access to myBrAIn, a persistent memory of project rules, context and constraints.

## WHEN TO USE IT

- At the start of work on a project: call initialize_workbase with the project root.
  Keep the returned workbase_id; every other tool takes it (a project path works too).
- Before writing code: call recall_context with what you are about to do.
- When the user states or you agree on a convention: call store_insight.
- When reviewing code: call critique_code with the snippet.
- Periodically, or when asked: call audit_codebase, and observer_status to see
  what the background observer found.

## RULES

Rules carry a category. The drift checks use architecture, constraints and
coding_style; other categories (testing, documentation, ...) are recall-only.

store_insight refuses to store a rule that is too similar to an existing rule of
the same category and returns "status": "conflict" with the similar rule. That is
not an error. Decide with the user:
- the new rule supersedes the old one: retry with force=true
- the new rule replaces a specific rule: retry with replace_id=<id>
- it is a duplicate: do nothing

## DRIFT

Drift findings are heuristic triage signals, not verdicts. Check each finding
against the code before changing anything, and prefer updating an outdated rule
over bending code to fit it.
`
}
