package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivermist/shopflow/internal/guardrails"
	"github.com/rivermist/shopflow/internal/tools"
	"github.com/rivermist/shopflow/pkg/schema"
)

func newRunner(t *testing.T, guards *guardrails.Chain) *ToolRunner {
	t.Helper()
	registry := tools.CommerceRegistry(tools.NewCommerceStore())
	registry.Register(tools.NewRagTool(nil, 2))
	router := tools.NewRouter(tools.DefaultSpecs(), 4, 8, 1)
	return NewToolRunner(registry, router, guards)
}

func TestExecuteRoutesAndCallsTools(t *testing.T) {
	r := newRunner(t, nil)

	exec, err := r.Execute(context.Background(), Request{
		Task:         "search the catalog for a headset",
		AllowedTools: schema.UnrestrictedTools(),
		Args:         map[string]string{"query": "headset"},
	})
	require.NoError(t, err)
	assert.Empty(t, exec.Error)
	require.NotEmpty(t, exec.ToolCalls)
	assert.Equal(t, "catalog_search_tool", exec.ToolCalls[0].Name)
	require.NotEmpty(t, exec.ToolOutputs)
	assert.Contains(t, exec.Content, "catalog_search_tool:")
	assert.Contains(t, exec.Content, "Nimbus Wireless Headset")
}

func TestExecuteRespectsAllowedTools(t *testing.T) {
	r := newRunner(t, nil)

	exec, err := r.Execute(context.Background(), Request{
		Task:         "search the catalog and check the price of the product",
		AllowedTools: schema.ExactlyTools("pricing_tool"),
		Args:         map[string]string{"sku": "sku_1001"},
	})
	require.NoError(t, err)
	for _, call := range exec.ToolCalls {
		assert.Equal(t, "pricing_tool", call.Name)
	}
}

func TestExecuteNoToolsStillProducesContent(t *testing.T) {
	r := newRunner(t, nil)

	exec, err := r.Execute(context.Background(), Request{
		Task:         "search for products",
		AllowedTools: schema.ExactlyTools(),
	})
	require.NoError(t, err)
	assert.Empty(t, exec.ToolCalls)
	assert.Contains(t, exec.Content, "No tools applied")
}

func TestExecuteInputGuardrailBlocks(t *testing.T) {
	blocklist, err := guardrails.NewRegexBlocklist(`(?i)password`)
	require.NoError(t, err)
	r := newRunner(t, guardrails.NewChain(blocklist))

	exec, err := r.Execute(context.Background(), Request{
		Task:         "find my password please",
		AllowedTools: schema.UnrestrictedTools(),
	})
	require.NoError(t, err)
	assert.Contains(t, exec.Error, "regex_blocklist")
	assert.Empty(t, exec.ToolCalls, "blocked tasks never reach tools")
}

func TestExecuteOutputGuardrailBlocks(t *testing.T) {
	blocklist, err := guardrails.NewRegexBlocklist(`Nimbus`)
	require.NoError(t, err)
	r := newRunner(t, guardrails.NewChain(blocklist))

	exec, err := r.Execute(context.Background(), Request{
		Task:         "search the catalog for a headset",
		AllowedTools: schema.UnrestrictedTools(),
		Args:         map[string]string{"query": "headset"},
	})
	require.NoError(t, err)
	assert.Contains(t, exec.Error, "blocked the output")
	assert.NotEmpty(t, exec.ToolOutputs, "outputs were produced before the block")
}
