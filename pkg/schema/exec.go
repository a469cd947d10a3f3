package schema

// ToolCall is a single tool invocation requested during execution.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the recorded output of one tool invocation.
type ToolResult struct {
	Tool     string         `json:"tool"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Execution is the outcome of a single executor attempt: the textual answer,
// the tool calls made, their recorded outputs, and an execution error if the
// attempt itself failed.
type Execution struct {
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolOutputs []ToolResult `json:"tool_outputs,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Verification is the pass/fail judgment on whether an output satisfies
// a step task.
type Verification struct {
	IsValid bool   `json:"is_valid"`
	Notes   string `json:"notes"`
}

// ApprovalRequest asks a human (or policy automation) to confirm a gated step.
type ApprovalRequest struct {
	Task          string   `json:"task"`
	Intent        string   `json:"intent"`
	Notes         []string `json:"notes,omitempty"`
	ResultPreview string   `json:"result_preview,omitempty"`
}

// ApprovalDecision is the answer to an approval request.
type ApprovalDecision struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

// InputRequest asks for the values of missing entity fields, once per step.
type InputRequest struct {
	Task   string   `json:"task"`
	Step   string   `json:"step"`
	Fields []string `json:"fields"`
	Notes  string   `json:"notes,omitempty"`
}
