package schema

// StepDefinition describes one unit of work in a workflow: its declared tool
// needs, whether a human must confirm it, and which entity fields it requires
// before it can run. Definitions are built once from the catalog and never
// mutated afterwards.
type StepDefinition struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	RequiredTools        []string `json:"required_tools,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation,omitempty"`
	InputFields          []string `json:"input_fields,omitempty"`
}

// Workflow is an ordered sequence of step definitions, unique by step name.
type Workflow []StepDefinition

// StepStatus enumerates the lifecycle states of a single step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusRunning  StepStatus = "running"
	StepStatusRetrying StepStatus = "retrying"
	StepStatusVerified StepStatus = "verified"
	StepStatusFailed   StepStatus = "failed"
)

// RunStatus enumerates terminal outcomes of a workflow run.
// Blocked is distinct from failed: it means the run halted on missing input
// or a rejected confirmation rather than exhausting execution retries.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusBlocked RunStatus = "blocked"
	RunStatusFailed  RunStatus = "failed"
)

// StepState is the mutable per-step record produced while a run executes.
// It is finalized to verified or failed when the step's retry loop exits.
type StepState struct {
	Step              StepDefinition `json:"step"`
	Status            StepStatus     `json:"status"`
	Attempts          int            `json:"attempts"`
	LastOutput        string         `json:"last_output,omitempty"`
	Verified          bool           `json:"verified"`
	VerificationNotes string         `json:"verification_notes,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// RunResult aggregates a workflow run: the overall status, the ordered step
// states produced so far, and the final entity map. A blocked or failed run
// carries a prefix of completed states plus exactly one terminal failing
// state, and Failure holds the coded error for that terminal state.
type RunResult struct {
	Status     RunStatus         `json:"status"`
	StepStates []*StepState      `json:"step_states"`
	Entities   map[string]string `json:"entities,omitempty"`
	Failure    *FlowError        `json:"failure,omitempty"`
}

// PlanStep is a single loosely-structured phrase from a plan.
type PlanStep struct {
	Text string `json:"step"`
}

// Plan is the ordered list of short phrases the sequencer maps onto
// catalog steps.
type Plan struct {
	Goal  string     `json:"goal"`
	Steps []PlanStep `json:"steps"`
}

// Phrases returns the plan's raw step phrases in order.
func (p Plan) Phrases() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Text)
	}
	return out
}
