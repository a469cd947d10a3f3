package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivermist/shopflow/pkg/schema"
)

func TestExprRuleMatches(t *testing.T) {
	rule := NewExprRule(
		`intent == "refund_request" && confidence >= 0.5`,
		schema.PolicyDecision{Allow: true, RequireApproval: true},
	)

	got := rule.Apply(Context{Intent: Intent{Name: "refund_request", Confidence: 0.8}})
	require.NotNil(t, got)
	assert.True(t, got.RequireApproval)

	got = rule.Apply(Context{Intent: Intent{Name: "refund_request", Confidence: 0.2}})
	assert.Nil(t, got)

	got = rule.Apply(Context{Intent: Intent{Name: "order_status", Confidence: 0.9}})
	assert.Nil(t, got)
}

func TestExprRuleTaskAndMetadata(t *testing.T) {
	rule := NewExprRule(
		`task contains "urgent" || metadata["channel"] == "phone"`,
		schema.PolicyDecision{Allow: true, Notes: []string{"escalate"}},
	)

	got := rule.Apply(Context{Task: "URGENT refund", Intent: Intent{Name: "general"}})
	assert.Nil(t, got, "contains is case sensitive")

	got = rule.Apply(Context{Task: "urgent refund", Intent: Intent{Name: "general"}})
	require.NotNil(t, got)
	assert.Equal(t, []string{"escalate"}, got.Notes)

	got = rule.Apply(Context{
		Task:     "call me back",
		Intent:   Intent{Name: "general"},
		Metadata: map[string]string{"channel": "phone"},
	})
	assert.NotNil(t, got)
}

func TestExprRuleInvalidConditionNeverApplies(t *testing.T) {
	rule := NewExprRule(`intent ==`, schema.PolicyDecision{Allow: false})

	assert.Nil(t, rule.Apply(Context{Intent: Intent{Name: "general"}}))

	err := rule.Validate()
	require.Error(t, err)
	var flowErr *schema.FlowError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
}

func TestExprRuleValidateAcceptsBooleanCondition(t *testing.T) {
	rule := NewExprRule(`confidence > 0.1`, schema.PolicyDecision{Allow: true})
	assert.NoError(t, rule.Validate())
}
