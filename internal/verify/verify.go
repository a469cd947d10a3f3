// Package verify checks step outputs before a step counts as done.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Verifier judges whether an execution satisfies its step.
type Verifier interface {
	Verify(ctx context.Context, task, stepName string, exec *schema.Execution) (schema.Verification, error)
}

// ContentChecker is a deterministic verifier for local runs: the output must
// be non-empty, meet a minimum length, and mention every required term.
type ContentChecker struct {
	MinLength   int
	MustMention []string
}

func (c ContentChecker) Verify(_ context.Context, _ string, _ string, exec *schema.Execution) (schema.Verification, error) {
	content := strings.TrimSpace(exec.Content)
	if content == "" && len(exec.ToolOutputs) == 0 {
		return schema.Verification{IsValid: false, Notes: "Output is empty."}, nil
	}
	if c.MinLength > 0 && len(content) < c.MinLength {
		return schema.Verification{
			IsValid: false,
			Notes:   fmt.Sprintf("Output shorter than %d characters.", c.MinLength),
		}, nil
	}
	haystack := strings.ToLower(content)
	for _, out := range exec.ToolOutputs {
		haystack += " " + strings.ToLower(out.Output)
	}
	for _, term := range c.MustMention {
		if !strings.Contains(haystack, strings.ToLower(term)) {
			return schema.Verification{
				IsValid: false,
				Notes:   fmt.Sprintf("Output does not mention %q.", term),
			}, nil
		}
	}
	return schema.Verification{IsValid: true, Notes: "Output accepted."}, nil
}

// AlwaysValid accepts every execution. Useful when verification is delegated
// to an external reviewer.
type AlwaysValid struct{}

func (AlwaysValid) Verify(context.Context, string, string, *schema.Execution) (schema.Verification, error) {
	return schema.Verification{IsValid: true}, nil
}
