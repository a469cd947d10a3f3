// Package mcp exposes the workflow engine to agents over the Model Context
// Protocol. Agents run tasks, read back session traces, and inspect the step
// catalog through three tools on a stdio transport.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rivermist/shopflow/internal/catalog"
	"github.com/rivermist/shopflow/internal/executor"
	"github.com/rivermist/shopflow/internal/memory"
	"github.com/rivermist/shopflow/internal/rules"
	"github.com/rivermist/shopflow/internal/runner"
	"github.com/rivermist/shopflow/internal/trace"
	"github.com/rivermist/shopflow/internal/verify"
)

// EventSource reads back recorded trace events for a session.
type EventSource interface {
	Events(ctx context.Context, sessionID string) ([]trace.Event, error)
}

// WorkflowServerDeps holds the dependencies for creating a WorkflowServer.
type WorkflowServerDeps struct {
	Executor   executor.Executor
	Backend    memory.Backend
	Settings   memory.Settings
	Recorder   trace.Recorder
	Events     EventSource
	Catalog    *catalog.Catalog
	Classifier rules.Classifier
	Engine     *rules.Engine
	Verifier   verify.Verifier
	Retriever  runner.Retriever
	Logger     *slog.Logger

	MaxRetries     int
	ForceRetrieval bool
	InsightRounds  int
}

// WorkflowServer wraps an MCP server with workflow-specific tool handlers.
// Runs are unattended: confirmation gates auto-approve and missing inputs
// come only from the entities argument and session memory.
type WorkflowServer struct {
	deps      WorkflowServerDeps
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewWorkflowServer creates a WorkflowServer with all 3 tools registered.
func NewWorkflowServer(deps WorkflowServerDeps) *WorkflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Builtin()
	}
	if deps.Classifier == nil {
		deps.Classifier, _ = rules.ForRuleset("commerce")
	}
	if deps.Engine == nil {
		deps.Engine = rules.NewEngine(rules.CommerceRules()...)
	}
	if deps.Backend == nil {
		deps.Backend = memory.NoopBackend{}
	}
	if deps.Settings == (memory.Settings{}) {
		deps.Settings = memory.DefaultSettings()
	}
	if deps.Recorder == nil {
		deps.Recorder = trace.NoopRecorder{}
	}
	if deps.Verifier == nil {
		deps.Verifier = verify.ContentChecker{}
	}

	s := &WorkflowServer{deps: deps, logger: logger}

	mcpSrv := server.NewMCPServer(
		"shopflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Shopflow executes multi-step conversational commerce workflows. Use shopflow.run to execute a task, shopflow.trace to read a session's recorded events, and shopflow.catalog to inspect known intents and their step sequences."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes.
func (s *WorkflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *WorkflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *WorkflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: traceTool(), Handler: s.handleTrace},
		{Tool: catalogTool(), Handler: s.handleCatalog},
	}
}
