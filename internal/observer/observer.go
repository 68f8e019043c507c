// Package observer runs the background drift observer: a single worker that
// periodically audits the active workbase against its stored rules and
// persists a small status snapshot after every state transition.
package observer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/HendryAvila/mybrain/internal/analyzer"
	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// ErrUnreachable marks an active workbase whose root is gone. It is logged,
// never returned from Run.
var ErrUnreachable = errors.New("observer: workbase root unreachable")

// RuleSource provides the stored rules of a workbase.
type RuleSource interface {
	GetAll(ctx context.Context, filter memory.Filter) ([]memory.Record, error)
}

// Config configures an Observer.
type Config struct {
	StatusFile     string
	Schedule       cron.Schedule
	ErrorCooldown  time.Duration
	FilesPerSecond float64 // <= 0 means unthrottled
	WatchChanges   bool
	WatchDebounce  time.Duration
}

// ParseSchedule accepts "@every 5m", descriptors like "@hourly" and
// standard five-field cron expressions.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("observer: schedule %q: %w", spec, err)
	}
	return s, nil
}

// Observer is the drift observer worker.
type Observer struct {
	cfg      Config
	rules    RuleSource
	analyzer *analyzer.Analyzer
	active   *workbase.Active
	log      zerolog.Logger
	limiter  *rate.Limiter
	nudge    chan struct{}

	mu    sync.Mutex
	state State
}

// New creates an Observer. Run starts it.
func New(cfg Config, rules RuleSource, an *analyzer.Analyzer, active *workbase.Active, log zerolog.Logger) (*Observer, error) {
	if cfg.StatusFile == "" {
		return nil, errors.New("observer: status file is required")
	}
	if cfg.Schedule == nil {
		s, err := ParseSchedule("@every 5m")
		if err != nil {
			return nil, err
		}
		cfg.Schedule = s
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = time.Minute
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = 2 * time.Second
	}

	limit := rate.Inf
	if cfg.FilesPerSecond > 0 {
		limit = rate.Limit(cfg.FilesPerSecond)
	}

	return &Observer{
		cfg:      cfg,
		rules:    rules,
		analyzer: an,
		active:   active,
		log:      log.With().Str("component", "observer").Logger(),
		limiter:  rate.NewLimiter(limit, 1),
		nudge:    make(chan struct{}, 1),
		state:    initialState(),
	}, nil
}

// State returns a copy of the current state.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Nudge asks a sleeping observer to start its next cycle early.
func (o *Observer) Nudge() {
	select {
	case o.nudge <- struct{}{}:
	default:
	}
}

// Run executes cycles until ctx is cancelled. Scan failures put the observer
// in the Error state for ErrorCooldown and never end the loop.
func (o *Observer) Run(ctx context.Context) {
	o.mu.Lock()
	o.state = initialState()
	o.mu.Unlock()
	o.persist()
	o.logf("Observer daemon started.")

	var w *watcher
	defer func() {
		if w != nil {
			w.close()
		}
	}()

	for {
		if o.cfg.WatchChanges {
			w = o.follow(w)
		}

		wait, err := o.cycle(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			o.transition(func(s *State) { s.Status = StatusError }, fmt.Sprintf("Error in scan loop: %v", err))
			o.log.Error().Err(err).Msg("scan cycle failed")
			wait = o.cfg.ErrorCooldown
		}
		if !o.sleep(ctx, wait) {
			break
		}
	}

	o.logf("%s", stoppedMsg)
	o.persist()
}

// cycle runs one Running -> scan -> Sleeping pass and returns the wait until
// the next scheduled activation.
func (o *Observer) cycle(ctx context.Context) (time.Duration, error) {
	o.transition(func(s *State) { s.Status = StatusRunning }, "")

	if err := o.scan(ctx); err != nil {
		return 0, err
	}

	now := timeNow()
	o.transition(func(s *State) {
		s.Status = StatusSleeping
		s.LastRun = now.Format(time.RFC3339)
	}, "")
	return o.cfg.Schedule.Next(now).Sub(now), nil
}

// scan audits the active workbase once.
func (o *Observer) scan(ctx context.Context) error {
	o.logf("Starting codebase scan...")

	wb, ok := o.active.Get()
	if !ok || wb.ID == "" {
		o.idle("No active workbase yet. Waiting for first tool call.", "")
		return nil
	}
	name := wb.ProjectName
	if name == "" {
		name = "Unknown"
	}
	if wb.RootPath == "" {
		o.idle(fmt.Sprintf("Active workbase '%s' has no root_path. Skipping.", name), wb.ID)
		return nil
	}
	if info, err := os.Stat(wb.RootPath); err != nil || !info.IsDir() {
		o.unreachable(name, wb)
		return nil
	}

	recs, err := o.rules.GetAll(ctx, memory.RulesOf(wb.ID))
	if err != nil {
		return fmt.Errorf("fetch rules: %w", err)
	}
	if len(recs) == 0 {
		o.idle(fmt.Sprintf("No rules for '%s'. Skipping.", name), wb.ID)
		return nil
	}

	o.logf("Scanning '%s' (%d rules)...", name, len(recs))
	sum, err := o.analyzer.Audit(ctx, wb.RootPath, analyzer.RulesFromRecords(recs), o.limiter.Wait,
		func(_ analyzer.FileResult, findings []analyzer.DriftFinding) {
			for _, d := range findings {
				o.logf("Drift in %s/%s: %s", name, d.File, d.DriftType)
			}
		})
	if errors.Is(err, analyzer.ErrInvalidPath) {
		o.unreachable(name, wb)
		return nil
	}
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.Workbase = wb.ID
	o.state.CheckedFiles = sum.CheckedFiles
	o.state.SkippedFiles = sum.SkippedFiles
	o.state.DriftCount = sum.DriftCount()
	o.state.DriftDetected = sum.DriftCount() > 0
	o.mu.Unlock()

	o.logf("Scan complete. %d files, %d drifts.", sum.CheckedFiles, sum.DriftCount())
	return nil
}

// idle records a pass that had nothing to check.
func (o *Observer) idle(msg, workbaseID string) {
	o.mu.Lock()
	o.state.Workbase = workbaseID
	o.state.CheckedFiles = 0
	o.state.SkippedFiles = 0
	o.state.DriftDetected = false
	o.state.DriftCount = 0
	o.mu.Unlock()
	o.logf("%s", msg)
}

func (o *Observer) unreachable(name string, wb workbase.Workbase) {
	o.log.Warn().Err(ErrUnreachable).Str("root", wb.RootPath).Msg("skipping scan")
	o.idle(fmt.Sprintf("Path for '%s' not accessible. Skipping.", name), wb.ID)
}

// sleep waits d, an early nudge, or cancellation. It returns false on cancellation.
func (o *Observer) sleep(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		d = 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-o.nudge:
		o.logf("Change detected, scanning early.")
		return true
	}
}

// transition mutates the state, optionally logs, and persists.
func (o *Observer) transition(mut func(*State), msg string) {
	o.mu.Lock()
	mut(&o.state)
	o.mu.Unlock()
	if msg != "" {
		o.logf("%s", msg)
	}
	o.persist()
}

func (o *Observer) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.mu.Lock()
	o.state.appendLog(timeNow(), msg)
	o.mu.Unlock()
	o.log.Info().Msg(msg)
}

func (o *Observer) persist() {
	o.mu.Lock()
	o.state.UpdatedAt = timeNow().Format(time.RFC3339)
	snap := o.state.clone()
	o.mu.Unlock()
	if err := writeState(o.cfg.StatusFile, snap); err != nil {
		o.log.Error().Err(err).Str("path", o.cfg.StatusFile).Msg("failed to write observer state")
	}
}
