package rules

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rivermist/shopflow/pkg/schema"
)

// ExprRule applies its decision when a boolean expr-lang condition holds over
// the rule context. The environment exposes:
//
//	task       string  — the raw task text
//	intent     string  — the classified intent name
//	confidence float64 — classifier confidence
//	tags       []string
//	metadata   map[string]string
//
// Compiled programs are cached and reused across goroutines.
type ExprRule struct {
	Condition string
	Decision  schema.PolicyDecision

	once    sync.Once
	program *vm.Program
	compErr error
}

// NewExprRule creates a rule gated on the given expr-lang condition.
func NewExprRule(condition string, decision schema.PolicyDecision) *ExprRule {
	return &ExprRule{Condition: condition, Decision: decision}
}

func (r *ExprRule) Apply(ctx Context) *schema.PolicyDecision {
	env := map[string]any{
		"task":       ctx.Task,
		"intent":     ctx.Intent.Name,
		"confidence": ctx.Intent.Confidence,
		"tags":       ctx.Intent.Tags,
		"metadata":   ctx.Metadata,
	}

	r.once.Do(func() {
		r.program, r.compErr = expr.Compile(r.Condition, expr.Env(env), expr.AsBool())
	})
	if r.compErr != nil {
		// A rule that cannot compile never applies; authoring errors surface
		// through Validate, not at evaluation time.
		return nil
	}

	out, err := vm.Run(r.program, env)
	if err != nil {
		return nil
	}
	matched, ok := out.(bool)
	if !ok || !matched {
		return nil
	}
	d := r.Decision
	return &d
}

// Validate compiles the condition eagerly and reports authoring errors.
func (r *ExprRule) Validate() error {
	env := map[string]any{
		"task":       "",
		"intent":     "",
		"confidence": 0.0,
		"tags":       []string{},
		"metadata":   map[string]string{},
	}
	r.once.Do(func() {
		r.program, r.compErr = expr.Compile(r.Condition, expr.Env(env), expr.AsBool())
	})
	if r.compErr != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "rule condition %q does not compile", r.Condition).WithCause(r.compErr)
	}
	return nil
}
