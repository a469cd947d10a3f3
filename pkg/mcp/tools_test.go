package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivermist/shopflow/internal/executor"
	"github.com/rivermist/shopflow/internal/trace"
	"github.com/rivermist/shopflow/pkg/schema"
)

// --- Mocks ---

type mockExecutor struct {
	requests []executor.Request
}

func (m *mockExecutor) Execute(_ context.Context, req executor.Request) (*schema.Execution, error) {
	m.requests = append(m.requests, req)
	return &schema.Execution{
		Content:   "Found two matching headsets.",
		ToolCalls: []schema.ToolCall{{Name: "catalog_search_tool"}},
	}, nil
}

type mockEvents struct {
	events []trace.Event
	err    error
}

func (m *mockEvents) Events(_ context.Context, _ string) ([]trace.Event, error) {
	return m.events, m.err
}

// --- Helper ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func decodeText(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text := mcp.GetTextFromContent(result.Content[0])
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	return payload
}

// --- Tests ---

func TestRunTool(t *testing.T) {
	exec := &mockExecutor{}
	s := NewWorkflowServer(WorkflowServerDeps{Executor: exec})

	req := buildRequest("shopflow.run", map[string]any{
		"task":       "find wireless earbuds under 3500",
		"session_id": "sess-run",
	})

	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	payload := decodeText(t, result)
	assert.Equal(t, "sess-run", payload["session_id"])
	assert.Equal(t, "product_search", payload["intent"])
	run := payload["run"].(map[string]any)
	assert.Equal(t, string(schema.RunStatusSuccess), run["status"])
	assert.NotEmpty(t, exec.requests)
}

func TestRunToolMissingTask(t *testing.T) {
	s := NewWorkflowServer(WorkflowServerDeps{Executor: &mockExecutor{}})

	result, err := s.handleRun(context.Background(), buildRequest("shopflow.run", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunToolPassesEntities(t *testing.T) {
	exec := &mockExecutor{}
	s := NewWorkflowServer(WorkflowServerDeps{Executor: exec})

	req := buildRequest("shopflow.run", map[string]any{
		"task":     "track my order",
		"entities": map[string]any{"order_id": "ord_7"},
	})

	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := decodeText(t, result)
	run := payload["run"].(map[string]any)
	entities := run["entities"].(map[string]any)
	assert.Equal(t, "ord_7", entities["order_id"])
}

func TestTraceTool(t *testing.T) {
	events := &mockEvents{events: []trace.Event{
		{SessionID: "sess-1", Step: "PRICING", Event: trace.EventVerification, Status: "success", Sequence: 1},
	}}
	s := NewWorkflowServer(WorkflowServerDeps{Events: events})

	result, err := s.handleTrace(context.Background(), buildRequest("shopflow.trace", map[string]any{
		"session_id": "sess-1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := decodeText(t, result)
	recorded := payload["events"].([]any)
	require.Len(t, recorded, 1)
}

func TestTraceToolUnconfigured(t *testing.T) {
	s := NewWorkflowServer(WorkflowServerDeps{})

	result, err := s.handleTrace(context.Background(), buildRequest("shopflow.trace", map[string]any{
		"session_id": "sess-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCatalogToolListsIntents(t *testing.T) {
	s := NewWorkflowServer(WorkflowServerDeps{})

	result, err := s.handleCatalog(context.Background(), buildRequest("shopflow.catalog", map[string]any{}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := decodeText(t, result)
	intents := payload["intents"].([]any)
	assert.Contains(t, intents, "purchase")
	assert.Contains(t, intents, "track_order")
}

func TestCatalogToolResolvesAliases(t *testing.T) {
	s := NewWorkflowServer(WorkflowServerDeps{})

	result, err := s.handleCatalog(context.Background(), buildRequest("shopflow.catalog", map[string]any{
		"intent": "order_status",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload := decodeText(t, result)
	assert.Equal(t, "track_order", payload["intent"])
	assert.NotEmpty(t, payload["steps"])
}

func TestCatalogToolUnknownIntent(t *testing.T) {
	s := NewWorkflowServer(WorkflowServerDeps{})

	result, err := s.handleCatalog(context.Background(), buildRequest("shopflow.catalog", map[string]any{
		"intent": "time_travel",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
