// Package executor runs a step's task against the tool surface. The Executor
// interface is what the workflow runner consumes; ToolRunner is the
// deterministic in-process implementation used for local runs and tests.
// An LLM-backed implementation satisfies the same interface externally.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivermist/shopflow/internal/guardrails"
	"github.com/rivermist/shopflow/internal/tools"
	"github.com/rivermist/shopflow/pkg/schema"
)

// Request is one execution of a step's task.
type Request struct {
	Task         string
	Context      string
	Instructions []string
	AllowedTools schema.ToolPolicy
	Args         map[string]string
}

// Executor performs a request and reports what happened. Failures that
// should drive a retry are reported in Execution.Error, not the Go error;
// the Go error is for infrastructure faults only.
type Executor interface {
	Execute(ctx context.Context, req Request) (*schema.Execution, error)
}

// ToolRunner routes the task to relevant tools and aggregates their JSON
// outputs. Guardrails run on the task before execution and on the combined
// output after.
type ToolRunner struct {
	registry *tools.Registry
	router   *tools.Router
	guards   *guardrails.Chain
}

// NewToolRunner creates a runner; a nil chain disables guardrails.
func NewToolRunner(registry *tools.Registry, router *tools.Router, guards *guardrails.Chain) *ToolRunner {
	if guards == nil {
		guards = guardrails.NewChain()
	}
	return &ToolRunner{registry: registry, router: router, guards: guards}
}

func (r *ToolRunner) Execute(ctx context.Context, req Request) (*schema.Execution, error) {
	if verdict := r.guards.Check(ctx, guardrails.Input{
		Stage: guardrails.StageInput,
		Task:  req.Task,
		Text:  req.Task,
	}); !verdict.Allowed {
		return &schema.Execution{
			Error: fmt.Sprintf("Guardrail %s blocked the task: %s", verdict.Rule, verdict.Reason),
		}, nil
	}

	selected := r.router.Select(req.Task, req.Context)
	var invocable []string
	for _, name := range selected {
		if req.AllowedTools.Allows(name) {
			invocable = append(invocable, name)
		}
	}

	exec := &schema.Execution{}
	args := make(map[string]any, len(req.Args))
	for k, v := range req.Args {
		args[k] = v
	}
	var lines []string
	for _, name := range invocable {
		exec.ToolCalls = append(exec.ToolCalls, schema.ToolCall{Name: name, Arguments: args})
		result, err := r.registry.Call(ctx, name, req.Args)
		if err != nil {
			exec.Error = fmt.Sprintf("Tool %s failed: %s", name, err.Error())
			return exec, nil
		}
		exec.ToolOutputs = append(exec.ToolOutputs, result)
		lines = append(lines, fmt.Sprintf("%s: %s", name, result.Output))
	}

	if len(lines) == 0 {
		exec.Content = fmt.Sprintf("No tools applied; task noted: %s", req.Task)
	} else {
		exec.Content = strings.Join(lines, "\n")
	}

	if verdict := r.guards.Check(ctx, guardrails.Input{
		Stage: guardrails.StageOutput,
		Task:  req.Task,
		Text:  exec.Content,
	}); !verdict.Allowed {
		exec.Error = fmt.Sprintf("Guardrail %s blocked the output: %s", verdict.Rule, verdict.Reason)
	}
	return exec, nil
}
