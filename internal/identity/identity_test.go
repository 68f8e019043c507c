package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkbaseID_Deterministic(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, WorkbaseID(dir), WorkbaseID(dir))
	assert.Len(t, WorkbaseID(dir), 64)
}

func TestWorkbaseID_CaseInsensitive(t *testing.T) {
	assert.Equal(t, WorkbaseID("/Projects/MyApp"), WorkbaseID("/projects/myapp"))
}

func TestWorkbaseID_RedundantSegments(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, WorkbaseID("a"), WorkbaseID("./a/../a"))
	assert.Equal(t, WorkbaseID(filepath.Join(cwd, "a")), WorkbaseID("a"))
	assert.Equal(t, WorkbaseID("/proj/"), WorkbaseID("/proj"))
}

func TestWorkbaseID_DistinctPaths(t *testing.T) {
	assert.NotEqual(t, WorkbaseID("/proj/a"), WorkbaseID("/proj/b"))
}

func TestResolve(t *testing.T) {
	id := WorkbaseID("/proj")
	assert.Equal(t, id, Resolve(id), "an id passes through unchanged")
	assert.Equal(t, id, Resolve("/proj"), "a path is hashed")
	assert.Equal(t, id, Resolve("  /proj  "))
	assert.False(t, IsWorkbaseID(strings.ToUpper(id)))
}

func TestMemoryID(t *testing.T) {
	wb := WorkbaseID("/proj")

	first := MemoryID("rule", wb, "use snake_case")
	assert.Equal(t, first, MemoryID("rule", wb, "use snake_case"))
	assert.True(t, strings.HasPrefix(first, "rule_"+wb+"_"))
	assert.Len(t, strings.TrimPrefix(first, "rule_"+wb+"_"), 32)

	assert.NotEqual(t, first, MemoryID("rule", wb, "use snake_case "), "any content change changes the id")
	assert.NotEqual(t, first, MemoryID("constraint", wb, "use snake_case"))
	assert.NotEqual(t, first, MemoryID("rule", WorkbaseID("/other"), "use snake_case"))
}

func TestContextID(t *testing.T) {
	wb := WorkbaseID("/proj")
	assert.Equal(t, "context_"+wb, ContextID(wb))
}
