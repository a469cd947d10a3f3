package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivermist/shopflow/pkg/schema"
)

func newTestBackend(t *testing.T) *LibSQLBackend {
	t.Helper()
	b, err := NewLibSQLBackend(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestLibSQLBackendRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	state := NewState()
	state.UserProfile["user_id"] = "u-1"
	state.Preferences["payment_method"] = "visa"
	state.OrderHistory = append(state.OrderHistory, map[string]any{"order_id": "ORD-1"})
	state.EpisodicNotes = []string{"reason: damaged"}
	state.RecentTurns = []Turn{{Role: "user", Content: "hi"}}
	state.LastToolOutputs = []schema.ToolResult{{Tool: "pricing_tool", Output: `{"price": 10}`}}
	state.CurrentPlan = &schema.Plan{Steps: []schema.PlanStep{{Text: "checkout"}}}

	require.NoError(t, b.Save("sess-1", state))

	loaded, err := b.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", loaded.UserProfile["user_id"])
	assert.Equal(t, "visa", loaded.Preferences["payment_method"])
	require.Len(t, loaded.OrderHistory, 1)
	assert.Equal(t, "ORD-1", loaded.OrderHistory[0]["order_id"])
	assert.Equal(t, []string{"reason: damaged"}, loaded.EpisodicNotes)
	require.Len(t, loaded.RecentTurns, 1)
	require.NotNil(t, loaded.CurrentPlan)
	assert.Equal(t, "checkout", loaded.CurrentPlan.Steps[0].Text)
}

func TestLibSQLBackendUpsert(t *testing.T) {
	b := newTestBackend(t)

	state := NewState()
	state.UserProfile["user_id"] = "first"
	require.NoError(t, b.Save("sess-1", state))

	state.UserProfile["user_id"] = "second"
	require.NoError(t, b.Save("sess-1", state))

	loaded, err := b.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.UserProfile["user_id"])
}

func TestLibSQLBackendUnknownSession(t *testing.T) {
	b := newTestBackend(t)
	loaded, err := b.Load("never-seen")
	require.NoError(t, err)
	assert.Empty(t, loaded.UserProfile)
	assert.Empty(t, loaded.RecentTurns)
}

func TestBackendFromEnvNoop(t *testing.T) {
	t.Setenv("MEMORY_BACKEND", "noop")
	b, err := BackendFromEnv()
	require.NoError(t, err)
	_, ok := b.(NoopBackend)
	assert.True(t, ok)
}

func TestBackendFromEnvUnknown(t *testing.T) {
	t.Setenv("MEMORY_BACKEND", "redis")
	_, err := BackendFromEnv()
	assert.Error(t, err)
}
