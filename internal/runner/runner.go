// Package runner executes sequenced workflow steps one at a time, enforcing
// input completeness, confirmation gates, tool policy, and a bounded
// retry-with-verification loop per step.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/rivermist/shopflow/internal/approvals"
	"github.com/rivermist/shopflow/internal/executor"
	"github.com/rivermist/shopflow/internal/inputs"
	"github.com/rivermist/shopflow/internal/logging"
	"github.com/rivermist/shopflow/internal/trace"
	"github.com/rivermist/shopflow/internal/verify"
	"github.com/rivermist/shopflow/pkg/schema"
)

// Memory is the conversational state the runner reads and feeds.
type Memory interface {
	CachedValue(key string) (string, bool)
	AddToolResult(result schema.ToolResult) error
	AddTurn(role, content string) error
	StoreInput(field, value string) error
	CompileContext(task, intent, currentStep string, entities map[string]string) string
}

// Retriever performs the forced document lookup when retrieval is toggled on.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Config wires the runner's collaborators. Executor, Verifier, and Memory
// are required; nil optional collaborators fall back to environment-driven
// defaults (approvals, inputs) or no-ops (trace, retriever).
type Config struct {
	Executor  executor.Executor
	Verifier  verify.Verifier
	Memory    Memory
	Trace     trace.Recorder
	Approvals approvals.Provider
	Inputs    inputs.Provider
	Retriever Retriever
	Logger    *slog.Logger

	// MaxRetries bounds each step at MaxRetries+1 attempts. Negative means
	// read WORKFLOW_MAX_RETRIES (default 1).
	MaxRetries int

	// ForceRetrieval runs a document lookup before every step regardless of
	// the step's declared needs.
	ForceRetrieval bool

	// InsightRounds dispatches that many rounds of parallel advisory
	// sub-tasks before each step's execution loop. Zero disables insights.
	InsightRounds int
}

// Runner drives one workflow run at a time. Steps execute strictly in
// order; the run halts at the first step that does not verify.
type Runner struct {
	executor       executor.Executor
	verifier       verify.Verifier
	memory         Memory
	trace          trace.Recorder
	approvals      approvals.Provider
	inputs         inputs.Provider
	retriever      Retriever
	logger         *slog.Logger
	maxRetries     int
	forceRetrieval bool
	insightRounds  int
}

// New creates a Runner from the config, applying defaults for absent
// collaborators.
func New(cfg Config) *Runner {
	if cfg.Trace == nil {
		cfg.Trace = trace.NoopRecorder{}
	}
	if cfg.Approvals == nil {
		cfg.Approvals = approvals.FromEnv()
	}
	if cfg.Inputs == nil {
		cfg.Inputs = inputs.FromEnv()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 1
		if raw := os.Getenv("WORKFLOW_MAX_RETRIES"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				cfg.MaxRetries = n
			}
		}
	}
	return &Runner{
		executor:       cfg.Executor,
		verifier:       cfg.Verifier,
		memory:         cfg.Memory,
		trace:          cfg.Trace,
		approvals:      cfg.Approvals,
		inputs:         cfg.Inputs,
		retriever:      cfg.Retriever,
		logger:         cfg.Logger,
		maxRetries:     cfg.MaxRetries,
		forceRetrieval: cfg.ForceRetrieval,
		insightRounds:  cfg.InsightRounds,
	}
}

// Run executes the steps in order, threading one mutable entity map through
// all of them. The result carries the terminal status, every step state
// produced, and the final entities.
func (r *Runner) Run(
	ctx context.Context,
	task, intent string,
	steps schema.Workflow,
	policy schema.PolicyDecision,
	sessionID string,
	entities map[string]string,
) *schema.RunResult {
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx = logging.WithIntent(ctx, intent)

	runtime := make(map[string]string, len(entities))
	for k, v := range entities {
		runtime[k] = v
	}

	result := &schema.RunResult{Status: schema.RunStatusSuccess, Entities: runtime}
	for i := range steps {
		step := steps[i]
		stepCtx := logging.WithStep(ctx, step.Name)
		state := &schema.StepState{Step: step, Status: schema.StepStatusRunning}
		result.StepStates = append(result.StepStates, state)

		status, failure := r.runStep(stepCtx, task, intent, step, policy, sessionID, runtime, state)
		if status != schema.RunStatusSuccess {
			result.Status = status
			result.Failure = failure
			return result
		}
	}
	return result
}

// runStep performs the per-step procedure: input check, confirmation gate,
// context assembly, then the bounded execution-and-verification loop.
// Returns RunSuccess when the step verified, otherwise the terminal run
// status the step forced plus the coded error describing it.
func (r *Runner) runStep(
	ctx context.Context,
	task, intent string,
	step schema.StepDefinition,
	policy schema.PolicyDecision,
	sessionID string,
	entities map[string]string,
	state *schema.StepState,
) (schema.RunStatus, *schema.FlowError) {
	log := logging.LogWith(ctx, r.logger)

	if missing := r.collectInputs(ctx, task, step, entities, sessionID); len(missing) > 0 {
		state.Status = schema.StepStatusFailed
		state.Error = "Missing required inputs: " + strings.Join(missing, ", ")
		state.VerificationNotes = state.Error
		log.Warn("step blocked on missing inputs", "missing", missing)
		r.recordVerification(ctx, sessionID, step.Name, state)
		failure := schema.NewError(schema.ErrCodeMissingInput, state.Error).
			WithStep(step.Name).
			WithDetails(map[string]any{"fields": missing})
		return schema.RunStatusBlocked, failure
	}

	if step.RequiresConfirmation {
		if !r.requestConfirmation(ctx, task, step, sessionID) {
			state.Status = schema.StepStatusFailed
			state.Error = "Approval rejected."
			state.VerificationNotes = state.Error
			log.Warn("step blocked on rejected approval")
			r.recordVerification(ctx, sessionID, step.Name, state)
			failure := schema.NewError(schema.ErrCodeApprovalRejected, state.Error).WithStep(step.Name)
			return schema.RunStatusBlocked, failure
		}
	}

	retrieved := r.maybeRetrieve(ctx, task, step, entities, sessionID)
	insights := r.collectInsights(ctx, task, step, entities)

	allowed := r.stepAllowedTools(step, policy)
	stepTask := fmt.Sprintf("%s: %s\nUser goal: %s", step.Name, step.Description, task)

	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		state.Attempts = attempt
		retryNote := ""
		if state.Error != "" {
			retryNote = "Previous attempt failed: " + state.Error
		}
		stepContext := r.buildStepContext(task, intent, step.Name, retryNote, entities, retrieved, insights)

		execution, err := r.executor.Execute(ctx, executor.Request{
			Task:         stepTask,
			Context:      stepContext,
			Instructions: policy.SystemInstructions,
			AllowedTools: allowed,
			Args:         entities,
		})
		if err != nil {
			execution = &schema.Execution{Error: err.Error()}
		}

		for _, output := range execution.ToolOutputs {
			if err := r.memory.AddToolResult(output); err != nil {
				log.Warn("memory rejected tool result", "tool", output.Tool, "error", err)
			}
		}
		if err := r.memory.AddTurn("assistant", execution.Content); err != nil {
			log.Warn("memory rejected transcript turn", "error", err)
		}

		state.LastOutput = execution.Content
		state.Error = execution.Error
		state.Status = schema.StepStatusRunning

		verification := r.verifyStep(ctx, step, stepTask, execution)
		state.Verified = verification.IsValid
		state.VerificationNotes = verification.Notes
		if !verification.IsValid {
			state.Error = verification.Notes
		}
		r.recordVerification(ctx, sessionID, step.Name, state)

		if verification.IsValid {
			state.Status = schema.StepStatusVerified
			log.Info("step verified", "attempts", attempt)
			return schema.RunStatusSuccess, nil
		}
		state.Status = schema.StepStatusRetrying
		log.Info("step attempt failed", "attempt", attempt, "notes", verification.Notes)
	}

	state.Status = schema.StepStatusFailed
	log.Warn("step failed after exhausting retries", "attempts", state.Attempts)
	failure := schema.NewErrorf(schema.ErrCodeRetryExhausted, "Step failed after %d attempts.", state.Attempts).
		WithStep(step.Name).
		WithCause(schema.NewError(schema.ErrCodeVerification, state.VerificationNotes).WithStep(step.Name))
	return schema.RunStatusFailed, failure
}

// verifyStep applies the verification precedence: an execution error fails
// outright, a tool-requiring step with no tool calls fails outright, and
// only then does the verifier judge the output.
func (r *Runner) verifyStep(ctx context.Context, step schema.StepDefinition, stepTask string, execution *schema.Execution) schema.Verification {
	if execution.Error != "" {
		return schema.Verification{IsValid: false, Notes: "Execution error: " + execution.Error}
	}
	if len(step.RequiredTools) > 0 && len(execution.ToolCalls) == 0 {
		return schema.Verification{IsValid: false, Notes: "Required tool call missing."}
	}
	verification, err := r.verifier.Verify(ctx, stepTask, step.Name, execution)
	if err != nil {
		return schema.Verification{IsValid: false, Notes: "Verifier error: " + err.Error()}
	}
	return verification
}

// stepAllowedTools computes the effective tool set for a step. A step with
// no required tools gets no restriction. Otherwise the step's tools are
// narrowed by the policy allowlist (intersection) and the retrieval tool is
// appended so retrieval stays available even under restrictive policy.
func (r *Runner) stepAllowedTools(step schema.StepDefinition, policy schema.PolicyDecision) schema.ToolPolicy {
	if len(step.RequiredTools) == 0 {
		return schema.UnrestrictedTools()
	}
	stepTools := schema.ExactlyTools(step.RequiredTools...)
	effective := stepTools.Intersect(policy.AllowedTools)
	return effective.WithTool("rag_tool")
}

// collectInputs resolves required fields: entity map first, then the memory
// cache, then one human-input request covering every still-missing field.
// Returns the fields that remain missing afterwards.
func (r *Runner) collectInputs(
	ctx context.Context,
	task string,
	step schema.StepDefinition,
	entities map[string]string,
	sessionID string,
) []string {
	var missing []string
	for _, field := range step.InputFields {
		if entities[field] != "" {
			continue
		}
		if cached, ok := r.memory.CachedValue(field); ok && cached != "" {
			entities[field] = cached
			continue
		}
		missing = append(missing, field)
	}
	if len(missing) == 0 {
		return nil
	}

	provided, err := r.inputs.RequestInputs(schema.InputRequest{
		Task:   task,
		Step:   step.Name,
		Fields: missing,
	})
	if err != nil {
		logging.LogWith(ctx, r.logger).Warn("input provider failed", "error", err)
		provided = nil
	}
	r.record(ctx, trace.Event{
		SessionID: sessionID,
		Step:      step.Name,
		Event:     trace.EventInputRequest,
		Status:    "success",
		Data:      map[string]any{"required": missing, "provided": provided},
	})

	for field, value := range provided {
		if value == "" {
			continue
		}
		entities[field] = value
		if err := r.memory.StoreInput(field, value); err != nil {
			logging.LogWith(ctx, r.logger).Warn("memory rejected input", "field", field, "error", err)
		}
	}

	var unresolved []string
	for _, field := range missing {
		if entities[field] == "" {
			unresolved = append(unresolved, field)
		}
	}
	return unresolved
}

// requestConfirmation asks the approval provider once. A provider error
// counts as a rejection; sensitive steps fail closed.
func (r *Runner) requestConfirmation(ctx context.Context, task string, step schema.StepDefinition, sessionID string) bool {
	decision, err := r.approvals.Request(schema.ApprovalRequest{
		Task:   task,
		Intent: step.Name,
		Notes:  []string{step.Description},
	})
	if err != nil {
		logging.LogWith(ctx, r.logger).Warn("approval provider failed", "error", err)
		decision = schema.ApprovalDecision{Approved: false, Notes: "Approval provider error: " + err.Error()}
	}
	status := "success"
	if !decision.Approved {
		status = "rejected"
	}
	r.record(ctx, trace.Event{
		SessionID: sessionID,
		Step:      step.Name,
		Event:     trace.EventApproval,
		Status:    status,
		Data:      map[string]any{"notes": decision.Notes},
	})
	return decision.Approved
}

// maybeRetrieve performs the forced document lookup, feeding the result to
// memory as a tool output. Retrieval failures degrade to empty context.
func (r *Runner) maybeRetrieve(
	ctx context.Context,
	task string,
	step schema.StepDefinition,
	entities map[string]string,
	sessionID string,
) string {
	if !r.forceRetrieval || r.retriever == nil {
		return ""
	}
	query := fmt.Sprintf("%s\nStep: %s - %s\nEntities: %v", task, step.Name, step.Description, entities)
	output, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		logging.LogWith(ctx, r.logger).Warn("retrieval failed", "error", err)
		return ""
	}
	if err := r.memory.AddToolResult(schema.ToolResult{Tool: "rag_tool", Output: output}); err != nil {
		logging.LogWith(ctx, r.logger).Warn("memory rejected retrieval result", "error", err)
	}
	r.record(ctx, trace.Event{
		SessionID: sessionID,
		Step:      step.Name,
		Event:     trace.EventRagLookup,
		Status:    "success",
		Data:      map[string]any{"query": query, "output": output},
	})
	return output
}

// buildStepContext assembles the instruction context for one attempt.
func (r *Runner) buildStepContext(
	task, intent, stepName, retryNote string,
	entities map[string]string,
	retrieved string,
	insights []string,
) string {
	context := r.memory.CompileContext(task, intent, stepName, entities)
	if retryNote != "" {
		context += "\nRetry note: " + retryNote
	}
	if retrieved != "" {
		context += "\n\nRetrieved context:\n" + retrieved
	}
	if len(insights) > 0 {
		context += "\n\nAdvisory insights:\n" + strings.Join(insights, "\n")
	}
	return context
}

func (r *Runner) recordVerification(ctx context.Context, sessionID, stepName string, state *schema.StepState) {
	status := "error"
	if state.Verified {
		status = "success"
	}
	r.record(ctx, trace.Event{
		SessionID: sessionID,
		Step:      stepName,
		Event:     trace.EventVerification,
		Status:    status,
		Data: map[string]any{
			"attempts":           state.Attempts,
			"output":             state.LastOutput,
			"verification_notes": state.VerificationNotes,
		},
	})
}

// record writes a trace event; recorder failures are logged, never surfaced.
func (r *Runner) record(ctx context.Context, event trace.Event) {
	if err := r.trace.Record(ctx, event); err != nil {
		logging.LogWith(ctx, r.logger).Warn("trace recorder failed", "event", event.Event, "error", err)
	}
}
