package guardrails

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxLength(t *testing.T) {
	check := MaxLength{Limit: 5}

	verdict, err := check.Check(context.Background(), Input{Text: "short"})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)

	verdict, err = check.Check(context.Background(), Input{Text: "too long here"})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "max_length", verdict.Rule)
	assert.Contains(t, verdict.Reason, "exceeds limit 5")
}

func TestMaxLengthDisabled(t *testing.T) {
	check := MaxLength{Limit: 0}
	verdict, err := check.Check(context.Background(), Input{Text: strings.Repeat("x", 10000)})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestRegexBlocklist(t *testing.T) {
	check, err := NewRegexBlocklist(`(?i)password`, `\b\d{16}\b`)
	require.NoError(t, err)

	verdict, err := check.Check(context.Background(), Input{Text: "normal request"})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)

	verdict, err = check.Check(context.Background(), Input{Text: "my PASSWORD is hunter2"})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)

	verdict, err = check.Check(context.Background(), Input{Text: "card 4111111111111111 please"})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
}

func TestRegexBlocklistRejectsInvalidPattern(t *testing.T) {
	_, err := NewRegexBlocklist(`[unclosed`)
	assert.Error(t, err)
}

func TestChainFirstBlockWins(t *testing.T) {
	blocklist, err := NewRegexBlocklist(`blocked`)
	require.NoError(t, err)
	chain := NewChain(MaxLength{Limit: 100}, blocklist)

	verdict := chain.Check(context.Background(), Input{Text: "fine"})
	assert.True(t, verdict.Allowed)

	verdict = chain.Check(context.Background(), Input{Text: "this is blocked content"})
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "regex_blocklist", verdict.Rule)

	verdict = chain.Check(context.Background(), Input{Text: strings.Repeat("blocked ", 20)})
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "max_length", verdict.Rule, "chain order decides which rule reports")
}

func TestChainEmptyAllowsEverything(t *testing.T) {
	chain := NewChain()
	assert.True(t, chain.Empty())
	verdict := chain.Check(context.Background(), Input{Text: "anything"})
	assert.True(t, verdict.Allowed)
}

func TestCELGuardrail(t *testing.T) {
	check, err := NewCELGuardrail(`!text.contains("forbidden") || stage == "input"`)
	require.NoError(t, err)
	assert.Equal(t, "cel", check.Name())

	verdict, err := check.Check(context.Background(), Input{Stage: StageOutput, Text: "all good"})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)

	verdict, err = check.Check(context.Background(), Input{Stage: StageOutput, Text: "forbidden word"})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "rejected")

	verdict, err = check.Check(context.Background(), Input{Stage: StageInput, Text: "forbidden word"})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed, "the expression exempts the input stage")
}

func TestCELGuardrailCompileErrors(t *testing.T) {
	_, err := NewCELGuardrail(`text ==`)
	assert.Error(t, err)

	_, err = NewCELGuardrail(`text`)
	assert.Error(t, err, "non-bool expressions are rejected at construction")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GUARDRAIL_MAX_CHARS", "10")
	t.Setenv("GUARDRAIL_BLOCKLIST", "secret, token")
	t.Setenv("GUARDRAIL_CEL", `!text.contains("cel-block")`)

	chain, err := FromEnv()
	require.NoError(t, err)
	require.False(t, chain.Empty())

	assert.False(t, chain.Check(context.Background(), Input{Text: "way past the ten char limit"}).Allowed)
	assert.False(t, chain.Check(context.Background(), Input{Text: "a secret"}).Allowed)
	assert.False(t, chain.Check(context.Background(), Input{Text: "cel-block"}).Allowed)
	assert.True(t, chain.Check(context.Background(), Input{Text: "ok"}).Allowed)
}

func TestFromEnvBadValues(t *testing.T) {
	t.Setenv("GUARDRAIL_MAX_CHARS", "not-a-number")
	_, err := FromEnv()
	assert.Error(t, err)
}
