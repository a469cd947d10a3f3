// Package guardrails provides content checks applied around task execution:
// inputs are checked before a step runs, outputs after. Checks are chained
// and the first blocking verdict wins.
package guardrails

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Stage identifies where in the execution a check runs.
type Stage string

const (
	StageInput  Stage = "input"
	StageOutput Stage = "output"
)

// Verdict is the outcome of a single guardrail check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns the passing verdict.
func Allow() Verdict {
	return Verdict{Allowed: true}
}

// Block returns a blocking verdict with the rule name and reason.
func Block(rule, reason string) Verdict {
	return Verdict{Allowed: false, Rule: rule, Reason: reason}
}

// Input carries the text under check plus the surrounding task context.
type Input struct {
	Stage   Stage
	Task    string
	Context string
	Text    string
}

// Guardrail is a single content check.
type Guardrail interface {
	Name() string
	Check(ctx context.Context, in Input) (Verdict, error)
}

// Chain runs guardrails in order and stops at the first block. A check
// error blocks with the error message; guardrails fail closed.
type Chain struct {
	checks []Guardrail
}

// NewChain creates a chain over the given checks, applied in order.
func NewChain(checks ...Guardrail) *Chain {
	return &Chain{checks: checks}
}

// Check runs every guardrail until one blocks or errors.
func (c *Chain) Check(ctx context.Context, in Input) Verdict {
	for _, g := range c.checks {
		verdict, err := g.Check(ctx, in)
		if err != nil {
			return Block(g.Name(), fmt.Sprintf("check failed: %s", err.Error()))
		}
		if !verdict.Allowed {
			if verdict.Rule == "" {
				verdict.Rule = g.Name()
			}
			return verdict
		}
	}
	return Allow()
}

// Empty reports whether the chain carries no checks.
func (c *Chain) Empty() bool {
	return len(c.checks) == 0
}

// MaxLength blocks text longer than Limit runes. Zero or negative limits
// disable the check.
type MaxLength struct {
	Limit int
}

func (m MaxLength) Name() string { return "max_length" }

func (m MaxLength) Check(_ context.Context, in Input) (Verdict, error) {
	if m.Limit <= 0 {
		return Allow(), nil
	}
	if n := len([]rune(in.Text)); n > m.Limit {
		return Block(m.Name(), fmt.Sprintf("text length %d exceeds limit %d", n, m.Limit)), nil
	}
	return Allow(), nil
}

// RegexBlocklist blocks text matching any of its patterns.
type RegexBlocklist struct {
	patterns []*regexp.Regexp
}

// NewRegexBlocklist compiles the given patterns. Invalid patterns are
// rejected up front so a typo never silently disables a check.
func NewRegexBlocklist(patterns ...string) (*RegexBlocklist, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile blocklist pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &RegexBlocklist{patterns: compiled}, nil
}

func (r *RegexBlocklist) Name() string { return "regex_blocklist" }

func (r *RegexBlocklist) Check(_ context.Context, in Input) (Verdict, error) {
	for _, re := range r.patterns {
		if re.MatchString(in.Text) {
			return Block(r.Name(), fmt.Sprintf("text matches blocked pattern %q", re.String())), nil
		}
	}
	return Allow(), nil
}

// FromEnv builds a chain from environment configuration:
//
//	GUARDRAIL_MAX_CHARS  — max text length (integer, 0 disables)
//	GUARDRAIL_BLOCKLIST  — comma-separated regex patterns
//	GUARDRAIL_CEL        — CEL boolean expression; true means allowed
func FromEnv() (*Chain, error) {
	var checks []Guardrail

	if raw := os.Getenv("GUARDRAIL_MAX_CHARS"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse GUARDRAIL_MAX_CHARS: %w", err)
		}
		checks = append(checks, MaxLength{Limit: limit})
	}

	if raw := os.Getenv("GUARDRAIL_BLOCKLIST"); raw != "" {
		var patterns []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		blocklist, err := NewRegexBlocklist(patterns...)
		if err != nil {
			return nil, err
		}
		checks = append(checks, blocklist)
	}

	if expr := os.Getenv("GUARDRAIL_CEL"); expr != "" {
		celCheck, err := NewCELGuardrail(expr)
		if err != nil {
			return nil, err
		}
		checks = append(checks, celCheck)
	}

	return NewChain(checks...), nil
}
