package observer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/mybrain/internal/analyzer"
	"github.com/HendryAvila/mybrain/internal/identity"
	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type fakeRules struct {
	mu    sync.Mutex
	recs  []memory.Record
	fail  int // number of leading calls that fail
	calls atomic.Int32
}

func (f *fakeRules) GetAll(_ context.Context, filter memory.Filter) ([]memory.Record, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= f.fail {
		return nil, errors.New("boom")
	}
	var out []memory.Record
	for _, r := range f.recs {
		if r.Metadata.WorkbaseID == filter["workbase_id"] {
			out = append(out, r)
		}
	}
	return out, nil
}

func rule(wb, text, category string) memory.Record {
	return memory.Record{
		ID:       identity.MemoryID(memory.TypeRule, wb, text),
		Document: text,
		Metadata: memory.Metadata{WorkbaseID: wb, Type: memory.TypeRule, Category: category},
	}
}

func project(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "proj")
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	require.NoError(t, os.MkdirAll(root, 0755))
	return root
}

type harness struct {
	obs    *Observer
	active *workbase.Active
	status string
	cancel context.CancelFunc
	done   chan struct{}
}

func start(t *testing.T, cfg Config, rules RuleSource, active *workbase.Active) *harness {
	t.Helper()
	if cfg.StatusFile == "" {
		cfg.StatusFile = filepath.Join(t.TempDir(), "observer_state.json")
	}
	if cfg.Schedule == nil {
		cfg.Schedule = every(time.Hour)
	}
	obs, err := New(cfg, rules, analyzer.New(analyzer.DefaultOptions(), zerolog.Nop()), active, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{obs: obs, active: active, status: cfg.StatusFile, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		obs.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) waitSleeping(t *testing.T) State {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.obs.State().Status == StatusSleeping
	}, 5*time.Second, 10*time.Millisecond)
	return h.obs.State()
}

func logText(s State) string { return strings.Join(s.Logs, "\n") }

// ─── Cycles ─────────────────────────────────────────────────────────────────

func TestRun_NoActiveWorkbase(t *testing.T) {
	h := start(t, Config{}, &fakeRules{}, workbase.NewActive())

	st := h.waitSleeping(t)
	assert.False(t, st.DriftDetected)
	assert.NotEqual(t, NeverRun, st.LastRun)
	assert.Contains(t, logText(st), "No active workbase yet. Waiting for first tool call.")

	onDisk, err := ReadState(h.status)
	require.NoError(t, err)
	assert.Equal(t, StatusSleeping, onDisk.Status)
	assert.Contains(t, logText(onDisk), "No active workbase yet")
}

func TestRun_DetectsDrift(t *testing.T) {
	root := project(t, map[string]string{
		"app.py":   "def main():\n    print('hi')\n",
		"clean.py": "x = 1\n",
	})
	wbID := identity.WorkbaseID(root)
	active := workbase.NewActive()
	active.Set(workbase.Workbase{ID: wbID, RootPath: root, ProjectName: "proj"})
	rules := &fakeRules{recs: []memory.Record{
		rule(wbID, "Never use `print` in production code", "constraints"),
		rule("other", "Never use `x` at all", "constraints"),
	}}

	h := start(t, Config{}, rules, active)
	st := h.waitSleeping(t)

	assert.True(t, st.DriftDetected)
	assert.Equal(t, 1, st.DriftCount)
	assert.Equal(t, 2, st.CheckedFiles)
	assert.Equal(t, wbID, st.Workbase)
	require.NotEmpty(t, st.Logs)
	assert.Contains(t, st.Logs[0], "Scan complete. 2 files, 1 drifts.")
	assert.Contains(t, logText(st), "Drift in proj/app.py: forbidden_usage")
	assert.Contains(t, logText(st), "Scanning 'proj' (1 rules)...")
}

func TestRun_SkipsWithoutRootOrRules(t *testing.T) {
	tests := []struct {
		name string
		wb   func(t *testing.T) workbase.Workbase
		want string
	}{
		{
			name: "no root path",
			wb: func(*testing.T) workbase.Workbase {
				return workbase.Workbase{ID: identity.WorkbaseID("/x"), ProjectName: "x"}
			},
			want: "Active workbase 'x' has no root_path. Skipping.",
		},
		{
			name: "unreachable root",
			wb: func(t *testing.T) workbase.Workbase {
				return workbase.Workbase{ID: identity.WorkbaseID("/gone"), RootPath: filepath.Join(t.TempDir(), "gone"), ProjectName: "gone"}
			},
			want: "Path for 'gone' not accessible. Skipping.",
		},
		{
			name: "no rules",
			wb: func(t *testing.T) workbase.Workbase {
				root := project(t, map[string]string{"a.py": "print(1)\n"})
				return workbase.Workbase{ID: identity.WorkbaseID(root), RootPath: root, ProjectName: "proj"}
			},
			want: "No rules for 'proj'. Skipping.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active := workbase.NewActive()
			active.Set(tt.wb(t))
			h := start(t, Config{}, &fakeRules{}, active)

			st := h.waitSleeping(t)
			assert.False(t, st.DriftDetected)
			assert.Contains(t, logText(st), tt.want)
		})
	}
}

func TestRun_SkipResetsCountsOfPreviousWorkbase(t *testing.T) {
	root := project(t, map[string]string{
		"app.py":   "def main():\n    print('hi')\n",
		"clean.py": "x = 1\n",
	})
	wbID := identity.WorkbaseID(root)
	active := workbase.NewActive()
	active.Set(workbase.Workbase{ID: wbID, RootPath: root, ProjectName: "proj"})
	rules := &fakeRules{recs: []memory.Record{rule(wbID, "Never use `print` in production code", "constraints")}}

	h := start(t, Config{}, rules, active)
	st := h.waitSleeping(t)
	require.Equal(t, 2, st.CheckedFiles)
	require.True(t, st.DriftDetected)

	other := identity.WorkbaseID("/elsewhere")
	active.Set(workbase.Workbase{ID: other, ProjectName: "elsewhere"})
	h.obs.Nudge()

	require.Eventually(t, func() bool {
		s := h.obs.State()
		return s.Status == StatusSleeping && len(s.Logs) > 0 &&
			strings.Contains(s.Logs[0], "Active workbase 'elsewhere' has no root_path. Skipping.")
	}, 5*time.Second, 10*time.Millisecond)

	st = h.obs.State()
	assert.Equal(t, other, st.Workbase)
	assert.Zero(t, st.CheckedFiles)
	assert.Zero(t, st.SkippedFiles)
	assert.Zero(t, st.DriftCount)
	assert.False(t, st.DriftDetected)
}

func TestRun_ErrorThenRecovery(t *testing.T) {
	root := project(t, map[string]string{"a.py": "x = 1\n"})
	active := workbase.NewActive()
	active.Set(workbase.Workbase{ID: identity.WorkbaseID(root), RootPath: root, ProjectName: "proj"})
	rules := &fakeRules{fail: 1}

	h := start(t, Config{ErrorCooldown: 20 * time.Millisecond}, rules, active)
	st := h.waitSleeping(t)

	assert.Equal(t, int32(2), rules.calls.Load(), "one failed cycle, one recovered cycle")
	assert.Contains(t, logText(st), "Error in scan loop: fetch rules: boom")
	assert.Contains(t, st.Logs[0], "No rules for 'proj'. Skipping.")
}

func TestRun_NudgeWakesSleepingObserver(t *testing.T) {
	rules := &fakeRules{}
	root := project(t, map[string]string{"a.py": "x = 1\n"})
	active := workbase.NewActive()
	active.Set(workbase.Workbase{ID: identity.WorkbaseID(root), RootPath: root, ProjectName: "proj"})

	h := start(t, Config{}, rules, active)
	h.waitSleeping(t)
	require.Equal(t, int32(1), rules.calls.Load())

	h.obs.Nudge()
	require.Eventually(t, func() bool { return rules.calls.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestRun_WatchTriggersRescan(t *testing.T) {
	rules := &fakeRules{}
	root := project(t, map[string]string{"a.py": "x = 1\n"})
	active := workbase.NewActive()
	active.Set(workbase.Workbase{ID: identity.WorkbaseID(root), RootPath: root, ProjectName: "proj"})

	h := start(t, Config{WatchChanges: true, WatchDebounce: 20 * time.Millisecond}, rules, active)
	h.waitSleeping(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte("y = 2\n"), 0644))
	require.Eventually(t, func() bool { return rules.calls.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := start(t, Config{}, &fakeRules{}, workbase.NewActive())
	h.waitSleeping(t)

	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not stop")
	}

	st, err := ReadState(h.status)
	require.NoError(t, err)
	assert.Contains(t, st.Logs[0], "Observer daemon stopped.")
	assert.True(t, st.Stopped())
}

func TestNew_RequiresStatusFile(t *testing.T) {
	_, err := New(Config{}, &fakeRules{}, nil, workbase.NewActive(), zerolog.Nop())
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 5m")
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, now.Add(5*time.Minute).Equal(s.Next(now)))

	s, err = ParseSchedule("*/10 * * * *")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC).Equal(s.Next(now)))

	_, err = ParseSchedule("whenever")
	assert.Error(t, err)
}

// ─── State ──────────────────────────────────────────────────────────────────

func TestAppendLog_NewestFirstCapped(t *testing.T) {
	s := initialState()
	at := time.Date(2026, 1, 1, 9, 5, 7, 0, time.Local)
	for i := 0; i < 7; i++ {
		s.appendLog(at, string(rune('a'+i)))
	}
	require.Len(t, s.Logs, maxLogs)
	assert.Equal(t, "[09:05:07] g", s.Logs[0])
	assert.Equal(t, "[09:05:07] c", s.Logs[4])
}

func TestWriteState_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "observer_state.json")

	require.NoError(t, writeState(path, initialState()))
	next := initialState()
	next.Status = StatusSleeping
	next.CheckedFiles = 4
	require.NoError(t, writeState(path, next))

	got, err := ReadState(path)
	require.NoError(t, err)
	assert.Equal(t, StatusSleeping, got.Status)
	assert.Equal(t, 4, got.CheckedFiles)
	assert.Equal(t, NeverRun, got.LastRun)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadState_Errors(t *testing.T) {
	_, err := ReadState(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))
	_, err = ReadState(bad)
	assert.Error(t, err)
}
