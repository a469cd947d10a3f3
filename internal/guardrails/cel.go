package guardrails

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELGuardrail evaluates a boolean CEL expression over the check input.
// The expression sees three string variables:
//
//	stage   — "input" or "output"
//	task    — the raw task text
//	text    — the text under check
//
// A result of true allows the text. Thread-safe: the program is compiled
// once at construction.
type CELGuardrail struct {
	expression string
	program    cel.Program
}

// NewCELGuardrail compiles the expression in a sandboxed environment.
func NewCELGuardrail(expression string) (*CELGuardrail, error) {
	env, err := cel.NewEnv(
		cel.Variable("stage", cel.StringType),
		cel.Variable("task", cel.StringType),
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", expression, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("CEL guardrail %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error for %q: %w", expression, err)
	}

	return &CELGuardrail{expression: expression, program: prg}, nil
}

func (g *CELGuardrail) Name() string { return "cel" }

func (g *CELGuardrail) Check(_ context.Context, in Input) (Verdict, error) {
	out, _, err := g.program.Eval(map[string]any{
		"stage": string(in.Stage),
		"task":  in.Task,
		"text":  in.Text,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("CEL evaluation failed for %q: %w", g.expression, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return Verdict{}, fmt.Errorf("CEL guardrail %q returned non-bool result", g.expression)
	}
	if !allowed {
		return Block(g.Name(), fmt.Sprintf("expression %q rejected the text", g.expression)), nil
	}
	return Allow(), nil
}
