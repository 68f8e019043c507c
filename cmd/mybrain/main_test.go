package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/mybrain/internal/identity"
	"github.com/HendryAvila/mybrain/internal/memtools"
)

// sandbox points the config at a fresh data directory and an empty home.
func sandbox(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MYBRAIN_DATA_DIR", dataDir)
	t.Setenv("MYBRAIN_LOG_LEVEL", "error")
	return dataDir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "mybrain vdev\n", out)

	out, err = execute(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "mybrain vdev\n", out)
}

func TestImportThenExport_RemapsIntoWorkbase(t *testing.T) {
	sandbox(t)
	project := t.TempDir()
	wb := memtools.ResolveWorkbase(project)

	payload := `[{"id": "old-id", "document": "Use the repository pattern",
		"metadata": {"type": "rule", "category": "architecture", "workbase_id": "elsewhere"}}]`
	file := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(file, []byte(payload), 0o644))

	out, err := execute(t, "", "import", file, "--workbase", project)
	require.NoError(t, err)
	assert.Contains(t, out, `"imported": 1`)
	assert.Contains(t, out, `"remapped": true`)

	out, err = execute(t, "", "export", "--workbase", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Use the repository pattern")
	assert.Contains(t, out, identity.MemoryID("rule", wb.ID, "Use the repository pattern"))
	assert.NotContains(t, out, "old-id")

	out, err = execute(t, "", "export", "--workbase", "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestImport_FromStdinKeepsIDs(t *testing.T) {
	sandbox(t)
	payload := `[{"id": "keep-me", "document": "No globals",
		"metadata": {"type": "rule", "category": "coding_style", "workbase_id": "wb-1"}}]`

	_, err := execute(t, payload, "import", "-")
	require.NoError(t, err)

	out, err := execute(t, "", "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"keep-me"`)
}

func TestImport_RejectsMalformedPayload(t *testing.T) {
	sandbox(t)
	_, err := execute(t, `[{"document": "no id"}]`, "import", "-")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	dataDir := sandbox(t)

	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Observer has not run yet")

	state := `{"status": "Sleeping", "last_run": "2026-01-02T03:04:05Z", "checked_files": 4,
		"drift_detected": true, "logs": ["[03:04:05] Scan complete. 4 files, 1 drifts."]}`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "observer_state.json"), []byte(state), 0o644))

	out, err = execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "Sleeping"`)
	assert.Contains(t, out, "Scan complete. 4 files, 1 drifts.")
}

func TestConfigFlag_MissingFile(t *testing.T) {
	sandbox(t)
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "status")
	assert.Error(t, err)
}
