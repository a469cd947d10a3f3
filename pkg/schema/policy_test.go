package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolPolicy_ZeroValueIsUnrestricted(t *testing.T) {
	var p ToolPolicy
	assert.False(t, p.Restricted())
	assert.Nil(t, p.Names())
	assert.True(t, p.Allows("anything"))
}

func TestToolPolicy_ExactlyDeduplicates(t *testing.T) {
	p := ExactlyTools("a", "b", "a", "c", "b")
	assert.True(t, p.Restricted())
	assert.Equal(t, []string{"a", "b", "c"}, p.Names())
}

func TestToolPolicy_EmptyRestrictedAllowsNothing(t *testing.T) {
	p := ExactlyTools()
	assert.True(t, p.Restricted())
	assert.False(t, p.Allows("a"))
}

func TestToolPolicy_Intersect(t *testing.T) {
	tests := []struct {
		name string
		a, b ToolPolicy
		want ToolPolicy
	}{
		{"both unrestricted", UnrestrictedTools(), UnrestrictedTools(), UnrestrictedTools()},
		{"left restricts", ExactlyTools("a", "b"), UnrestrictedTools(), ExactlyTools("a", "b")},
		{"right restricts", UnrestrictedTools(), ExactlyTools("b"), ExactlyTools("b")},
		{"both restrict", ExactlyTools("a", "b", "c"), ExactlyTools("b", "c", "d"), ExactlyTools("b", "c")},
		{"disjoint", ExactlyTools("a"), ExactlyTools("b"), ExactlyTools()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Intersect(tt.b)
			assert.Equal(t, tt.want.Restricted(), got.Restricted())
			assert.Equal(t, tt.want.Names(), got.Names())
		})
	}
}

func TestPolicyDecision_MergeAllowAndApproval(t *testing.T) {
	base := NewPolicyDecision()
	merged := base.Merge(PolicyDecision{Allow: true, RequireApproval: true})
	assert.True(t, merged.Allow)
	assert.True(t, merged.RequireApproval)

	merged = merged.Merge(PolicyDecision{Allow: false})
	assert.False(t, merged.Allow)
	// Approval requirement is sticky once set.
	assert.True(t, merged.RequireApproval)
}

func TestPolicyDecision_MergePreservesNoteOrder(t *testing.T) {
	d := NewPolicyDecision()
	d = d.Merge(PolicyDecision{Allow: true, Notes: []string{"first"}, SystemInstructions: []string{"i1"}})
	d = d.Merge(PolicyDecision{Allow: true, Notes: []string{"second", "third"}, SystemInstructions: []string{"i2"}})
	assert.Equal(t, []string{"first", "second", "third"}, d.Notes)
	assert.Equal(t, []string{"i1", "i2"}, d.SystemInstructions)
}

func TestPolicyDecision_MergeIntersectsAllowlists(t *testing.T) {
	d := NewPolicyDecision()
	d = d.Merge(PolicyDecision{Allow: true, AllowedTools: ExactlyTools("a", "b")})
	assert.Equal(t, []string{"a", "b"}, d.AllowedTools.Names())

	d = d.Merge(PolicyDecision{Allow: true, AllowedTools: ExactlyTools("b", "c")})
	assert.Equal(t, []string{"b"}, d.AllowedTools.Names())

	// Unrestricted updates never widen an established allowlist.
	d = d.Merge(PolicyDecision{Allow: true})
	assert.Equal(t, []string{"b"}, d.AllowedTools.Names())
}
