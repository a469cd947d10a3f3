package approvals

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivermist/shopflow/pkg/schema"
)

func TestAutoProviderApproves(t *testing.T) {
	decision, err := AutoProvider{}.Request(schema.ApprovalRequest{Task: "refund", Intent: "refund_request"})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, "Auto-approved.", decision.Notes)
}

func TestConsoleProviderApprove(t *testing.T) {
	var out bytes.Buffer
	p := &ConsoleProvider{In: strings.NewReader("y\n"), Out: &out}

	decision, err := p.Request(schema.ApprovalRequest{
		Task:   "refund order ORD-1",
		Intent: "refund_request",
		Notes:  []string{"Refunds require human approval before responding."},
	})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, "Approved by operator.", decision.Notes)
	assert.Contains(t, out.String(), "Approval required")
	assert.Contains(t, out.String(), "refund_request")
}

func TestConsoleProviderPreviewCapKeepsRunesIntact(t *testing.T) {
	var out bytes.Buffer
	p := &ConsoleProvider{In: strings.NewReader("y\n"), Out: &out}

	_, err := p.Request(schema.ApprovalRequest{
		Task:          "t",
		Intent:        "i",
		ResultPreview: strings.Repeat("ü", 600),
	})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(out.String()))
	assert.Contains(t, out.String(), "Preview: "+strings.Repeat("ü", 500)+"\n")
	assert.NotContains(t, out.String(), strings.Repeat("ü", 501))
}

func TestConsoleProviderRejectsByDefault(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", "yes\n", ""} {
		var out bytes.Buffer
		p := &ConsoleProvider{In: strings.NewReader(answer), Out: &out}
		decision, err := p.Request(schema.ApprovalRequest{Task: "t", Intent: "i"})
		require.NoError(t, err)
		assert.False(t, decision.Approved, "answer %q must not approve", answer)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("APPROVAL_MODE", "manual")
	_, ok := FromEnv().(*ConsoleProvider)
	assert.True(t, ok)

	t.Setenv("APPROVAL_MODE", "auto")
	_, ok = FromEnv().(AutoProvider)
	assert.True(t, ok)
}
