package schema

// ToolPolicy is a tagged tool allowlist: either unrestricted, or exactly a
// set of tool names. The tagged form avoids the empty-set ambiguity — an
// empty restricted policy allows nothing, while the zero value allows
// everything.
type ToolPolicy struct {
	restricted bool
	names      []string
}

// UnrestrictedTools returns the policy that imposes no tool restriction.
func UnrestrictedTools() ToolPolicy {
	return ToolPolicy{}
}

// ExactlyTools returns a policy allowing exactly the given tool names,
// deduplicated with first occurrence winning.
func ExactlyTools(names ...string) ToolPolicy {
	seen := make(map[string]bool, len(names))
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		kept = append(kept, n)
	}
	return ToolPolicy{restricted: true, names: kept}
}

// Restricted reports whether the policy carries an explicit allowlist.
func (p ToolPolicy) Restricted() bool {
	return p.restricted
}

// Names returns a copy of the allowed tool names, or nil when unrestricted.
func (p ToolPolicy) Names() []string {
	if !p.restricted {
		return nil
	}
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Allows reports whether the named tool passes the policy.
func (p ToolPolicy) Allows(name string) bool {
	if !p.restricted {
		return true
	}
	for _, n := range p.names {
		if n == name {
			return true
		}
	}
	return false
}

// WithTool returns a policy that also allows the named tool. Unrestricted
// policies are unchanged; restricted policies gain the name unless already
// present.
func (p ToolPolicy) WithTool(name string) ToolPolicy {
	if !p.restricted || p.Allows(name) {
		return p
	}
	names := make([]string, len(p.names), len(p.names)+1)
	copy(names, p.names)
	return ToolPolicy{restricted: true, names: append(names, name)}
}

// Intersect combines two policies: if both restrict, the result is the
// set intersection (order taken from p); otherwise whichever side restricts
// wins, and two unrestricted sides stay unrestricted.
func (p ToolPolicy) Intersect(q ToolPolicy) ToolPolicy {
	if !p.restricted {
		return q
	}
	if !q.restricted {
		return p
	}
	kept := make([]string, 0, len(p.names))
	for _, n := range p.names {
		if q.Allows(n) {
			kept = append(kept, n)
		}
	}
	return ToolPolicy{restricted: true, names: kept}
}

// PolicyDecision is the merged outcome of rule evaluation for a run. It is
// computed once by the rules engine and read-only during execution.
type PolicyDecision struct {
	Allow              bool       `json:"allow"`
	RequireApproval    bool       `json:"require_approval"`
	Notes              []string   `json:"notes,omitempty"`
	SystemInstructions []string   `json:"system_instructions,omitempty"`
	AllowedTools       ToolPolicy `json:"-"`
}

// NewPolicyDecision returns the neutral decision: allowed, no approval
// requirement, no tool restriction.
func NewPolicyDecision() PolicyDecision {
	return PolicyDecision{Allow: true}
}

// Merge folds another partial decision into this one: allow is ANDed,
// require-approval is ORed, notes and instructions are appended in order,
// and tool allowlists intersect.
func (d PolicyDecision) Merge(update PolicyDecision) PolicyDecision {
	d.Allow = d.Allow && update.Allow
	d.RequireApproval = d.RequireApproval || update.RequireApproval
	d.Notes = append(d.Notes, update.Notes...)
	d.SystemInstructions = append(d.SystemInstructions, update.SystemInstructions...)
	d.AllowedTools = d.AllowedTools.Intersect(update.AllowedTools)
	return d
}
