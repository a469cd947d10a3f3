package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rivermist/shopflow/internal/approvals"
	"github.com/rivermist/shopflow/internal/catalog"
	"github.com/rivermist/shopflow/internal/inputs"
	"github.com/rivermist/shopflow/internal/memory"
	"github.com/rivermist/shopflow/internal/rules"
	"github.com/rivermist/shopflow/internal/runner"
	"github.com/rivermist/shopflow/pkg/schema"
)

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("shopflow.run",
		mcp.WithDescription("Execute a conversational commerce task as a sequenced workflow"),
		mcp.WithString("task", mcp.Required(), mcp.Description("The user's request in natural language")),
		mcp.WithString("session_id", mcp.Description("Session to resume (default: a fresh session)")),
		mcp.WithObject("entities", mcp.Description("Known entity values, e.g. order_id or user_id")),
	)
}

func traceTool() mcp.Tool {
	return mcp.NewTool("shopflow.trace",
		mcp.WithDescription("Read the recorded trace events of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session whose events to read")),
	)
}

func catalogTool() mcp.Tool {
	return mcp.NewTool("shopflow.catalog",
		mcp.WithDescription("Inspect the step catalog: known intents and their step sequences"),
		mcp.WithString("intent", mcp.Description("Intent whose step sequence to return (default: list all intents)")),
	)
}

// --- Handlers ---

// handleRun classifies the task, evaluates policy, and executes the
// sequenced workflow against the session's memory.
func (s *WorkflowServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError("task is required"), nil
	}
	session := req.GetString("session_id", "")
	if session == "" {
		session = uuid.New().String()
	}
	entities := make(map[string]string)
	for key, value := range mcp.ParseStringMap(req, "entities", nil) {
		entities[key] = fmt.Sprintf("%v", value)
	}

	intent := s.deps.Classifier.Classify(task)
	decision := s.deps.Engine.Evaluate(rules.Context{Task: task, Intent: intent})
	if !decision.Allow {
		return mcp.NewToolResultError(fmt.Sprintf("task not allowed by policy: %s", strings.Join(decision.Notes, "; "))), nil
	}

	store, storeErr := memory.NewStore(session, s.deps.Settings, s.deps.Backend)
	if storeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open session memory: %v", storeErr)), nil
	}
	if turnErr := store.AddTurn("user", task); turnErr != nil {
		s.logger.Warn("memory rejected user turn", "session_id", session, "error", turnErr)
	}

	workflow := catalog.NewSequencer(s.deps.Catalog).Build(intent.Name, schema.Plan{Goal: task})

	r := runner.New(runner.Config{
		Executor:       s.deps.Executor,
		Verifier:       s.deps.Verifier,
		Memory:         store,
		Trace:          s.deps.Recorder,
		Approvals:      approvals.AutoProvider{},
		Inputs:         inputs.AutoProvider{},
		Retriever:      s.deps.Retriever,
		Logger:         s.logger,
		MaxRetries:     s.deps.MaxRetries,
		ForceRetrieval: s.deps.ForceRetrieval,
		InsightRounds:  s.deps.InsightRounds,
	})

	result := r.Run(ctx, task, intent.Name, workflow, decision, session, entities)
	return marshalResult(map[string]any{
		"session_id": session,
		"intent":     intent.Name,
		"run":        result,
	})
}

// handleTrace returns the recorded events of a session in order.
func (s *WorkflowServer) handleTrace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	if s.deps.Events == nil {
		return mcp.NewToolResultError("trace querying is not configured on this server"), nil
	}
	events, eventsErr := s.deps.Events.Events(ctx, session)
	if eventsErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trace query failed: %v", eventsErr)), nil
	}
	return marshalResult(map[string]any{
		"session_id": session,
		"events":     events,
	})
}

// handleCatalog lists intents, or the step sequence for one intent.
func (s *WorkflowServer) handleCatalog(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	intent := req.GetString("intent", "")
	if intent == "" {
		return marshalResult(map[string]any{"intents": s.deps.Catalog.IntentNames()})
	}
	steps := s.deps.Catalog.Sequence(intent)
	if steps == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown intent %q", intent)), nil
	}
	return marshalResult(map[string]any{
		"intent": s.deps.Catalog.Normalize(intent),
		"steps":  steps,
	})
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
