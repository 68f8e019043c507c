package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/mybrain/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func rpc(t *testing.T, app *App, method string) string {
	t.Helper()
	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":{}}`)
	resp := app.MCP.HandleMessage(context.Background(), msg)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(data)
}

func TestNew_RegistersEverything(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.NotNil(t, app.Observer)
	_, ok := app.Active.Get()
	assert.False(t, ok, "the active workbase starts empty")

	tools := rpc(t, app, "tools/list")
	for _, name := range []string{
		"initialize_workbase", "store_insight", "recall_context", "critique_code", "audit_codebase",
		"get_memory", "update_memory", "delete_memory", "export_memories", "import_memories", "observer_status",
	} {
		assert.Contains(t, tools, `"`+name+`"`)
	}

	assert.Contains(t, rpc(t, app, "prompts/list"), `"brain-audit"`)
	assert.Contains(t, rpc(t, app, "resources/list"), "mybrain://observer/status")
}

func TestNew_ObserverDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observer.Enabled = false

	app, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	assert.Nil(t, app.Observer)
}

func TestNew_BadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observer.Schedule = "every now and then"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenStore_UnknownEmbedder(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbeddingProvider = "telepathy"

	_, err := OpenStore(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
