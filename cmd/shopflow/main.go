package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/rivermist/shopflow/internal/approvals"
	"github.com/rivermist/shopflow/internal/catalog"
	"github.com/rivermist/shopflow/internal/config"
	"github.com/rivermist/shopflow/internal/executor"
	"github.com/rivermist/shopflow/internal/guardrails"
	"github.com/rivermist/shopflow/internal/inputs"
	"github.com/rivermist/shopflow/internal/logging"
	"github.com/rivermist/shopflow/internal/memory"
	"github.com/rivermist/shopflow/internal/rules"
	"github.com/rivermist/shopflow/internal/runner"
	"github.com/rivermist/shopflow/internal/tools"
	"github.com/rivermist/shopflow/internal/trace"
	"github.com/rivermist/shopflow/internal/verify"
	"github.com/rivermist/shopflow/pkg/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shopflow:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sessionID   = flag.String("session", "", "session ID; a fresh UUID when empty")
		catalogPath = flag.String("catalog", "", "path to a step catalog JSON file; built-in catalog when empty")
		entities    = map[string]string{}
	)
	flag.Func("entity", "known entity as key=value (repeatable)", func(raw string) error {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return fmt.Errorf("entity %q is not key=value", raw)
		}
		entities[key] = value
		return nil
	})
	flag.Parse()

	task := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if task == "" {
		return fmt.Errorf("usage: shopflow [flags] <task>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	session := *sessionID
	if session == "" {
		session = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithSessionID(ctx, session)

	backend, err := newMemoryBackend(cfg)
	if err != nil {
		return fmt.Errorf("memory backend: %w", err)
	}
	defer closeQuietly(backend, logger, "memory backend")

	store, err := memory.NewStore(session, memory.SettingsFromEnv(), backend)
	if err != nil {
		return fmt.Errorf("memory store: %w", err)
	}

	recorder, err := newTraceRecorder(cfg)
	if err != nil {
		return fmt.Errorf("trace recorder: %w", err)
	}
	defer closeQuietly(recorder, logger, "trace recorder")

	guards, err := newGuardrails(cfg)
	if err != nil {
		return fmt.Errorf("guardrails: %w", err)
	}

	classifier, ruleList := rules.ForRuleset(cfg.Ruleset)
	engine := rules.NewEngine(ruleList...)

	intent := classifier.Classify(task)
	decision := engine.Evaluate(rules.Context{Task: task, Intent: intent})
	log := logging.LogWith(logging.WithIntent(ctx, intent.Name), logger)
	log.Info("policy evaluated",
		"ruleset", cfg.Ruleset,
		"confidence", intent.Confidence,
		"allow", decision.Allow,
		"require_approval", decision.RequireApproval)

	if !decision.Allow {
		fmt.Println("Task not allowed by policy.")
		for _, note := range decision.Notes {
			fmt.Println("  -", note)
		}
		return nil
	}

	approver := approvals.FromEnv()
	if decision.RequireApproval {
		approval, err := approver.Request(schema.ApprovalRequest{
			Task:   task,
			Intent: intent.Name,
			Notes:  decision.Notes,
		})
		if err != nil {
			return fmt.Errorf("approval: %w", err)
		}
		if !approval.Approved {
			fmt.Println("Task requires approval and was rejected:", approval.Notes)
			return nil
		}
	}

	commerce := tools.NewCommerceStore()
	registry := tools.CommerceRegistry(commerce)
	rag := tools.NewRagTool(nil, 2)
	registry.Register(rag)
	if err := connectMCP(ctx, registry, logger); err != nil {
		return err
	}
	router := tools.NewRouter(tools.DefaultSpecs(), 4, 8, 1)

	cat, err := loadCatalog(*catalogPath)
	if err != nil {
		return err
	}
	workflow := catalog.NewSequencer(cat).Build(intent.Name, schema.Plan{Goal: task})

	if err := store.AddTurn("user", task); err != nil {
		log.Warn("memory rejected user turn", "error", err)
	}

	r := runner.New(runner.Config{
		Executor:       executor.NewToolRunner(registry, router, guards),
		Verifier:       verify.ContentChecker{},
		Memory:         store,
		Trace:          recorder,
		Approvals:      approver,
		Inputs:         inputs.FromEnv(),
		Retriever:      ragRetriever{tool: rag},
		Logger:         logger,
		MaxRetries:     cfg.MaxRetries,
		ForceRetrieval: cfg.ForceRetrieval,
		InsightRounds:  cfg.InsightRounds,
	})

	result := r.Run(ctx, task, intent.Name, workflow, decision, session, entities)
	printResult(os.Stdout, session, intent.Name, result)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func newMemoryBackend(cfg config.Config) (memory.Backend, error) {
	if cfg.MemoryBackend == "noop" {
		return memory.NoopBackend{}, nil
	}
	return memory.NewLibSQLBackend(cfg.MemoryDBPath)
}

func newTraceRecorder(cfg config.Config) (trace.Recorder, error) {
	switch cfg.TraceRecorder {
	case "jsonl":
		return trace.NewJSONLRecorder(cfg.TracePath)
	case "noop":
		return trace.NoopRecorder{}, nil
	default:
		return trace.NewLibSQLRecorder(cfg.TraceDBPath)
	}
}

func newGuardrails(cfg config.Config) (*guardrails.Chain, error) {
	var checks []guardrails.Guardrail
	if cfg.GuardrailMaxChars > 0 {
		checks = append(checks, guardrails.MaxLength{Limit: cfg.GuardrailMaxChars})
	}
	if len(cfg.GuardrailBlocklist) > 0 {
		blocklist, err := guardrails.NewRegexBlocklist(cfg.GuardrailBlocklist...)
		if err != nil {
			return nil, err
		}
		checks = append(checks, blocklist)
	}
	if cfg.GuardrailCEL != "" {
		celCheck, err := guardrails.NewCELGuardrail(cfg.GuardrailCEL)
		if err != nil {
			return nil, err
		}
		checks = append(checks, celCheck)
	}
	return guardrails.NewChain(checks...), nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		path = os.Getenv("CATALOG_PATH")
	}
	if path == "" {
		return catalog.Builtin(), nil
	}
	return catalog.Load(path)
}

// connectMCP attaches remote tool servers declared in MCP_SERVERS, a
// semicolon-separated list of "name=command arg1 arg2" entries.
func connectMCP(ctx context.Context, registry *tools.Registry, logger *slog.Logger) error {
	raw := os.Getenv("MCP_SERVERS")
	if raw == "" {
		return nil
	}
	gateway := tools.NewGateway()
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, command, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("MCP_SERVERS entry %q is not name=command", entry)
		}
		parts := strings.Fields(command)
		if len(parts) == 0 {
			return fmt.Errorf("MCP_SERVERS entry %q has an empty command", entry)
		}
		if err := gateway.Connect(ctx, name, parts[0], parts[1:]...); err != nil {
			return fmt.Errorf("connect MCP server %s: %w", name, err)
		}
		logger.Info("connected MCP server", "server", name)
	}
	tools.RegisterRemote(registry, gateway)
	return nil
}

// ragRetriever adapts the retrieval tool to the runner's forced-lookup hook.
type ragRetriever struct {
	tool *tools.RagTool
}

func (r ragRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	return r.tool.Call(ctx, map[string]string{"query": query})
}

func closeQuietly(v any, logger *slog.Logger, what string) {
	if closer, ok := v.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("close failed", "component", what, "error", err)
		}
	}
}

func printResult(w io.Writer, session, intent string, result *schema.RunResult) {
	fmt.Fprintf(w, "session: %s\nintent:  %s\nstatus:  %s\n\n", session, intent, result.Status)
	for i, state := range result.StepStates {
		fmt.Fprintf(w, "%d. %s [%s] attempts=%d\n", i+1, state.Step.Name, state.Status, state.Attempts)
		if state.LastOutput != "" {
			fmt.Fprintln(w, indent(state.LastOutput))
		}
		if state.Error != "" {
			fmt.Fprintf(w, "   error: %s\n", state.Error)
		}
	}
	if len(result.Entities) > 0 {
		fmt.Fprintf(w, "\nentities: %v\n", result.Entities)
	}
}

func indent(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := range lines {
		lines[i] = "   " + lines[i]
	}
	return strings.Join(lines, "\n")
}
