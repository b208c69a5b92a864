package claude

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delegation "github.com/armatrix/agent-delegation-go"
)

// fakeMessages captures the params of each New call and replies with a
// scripted message.
type fakeMessages struct {
	lastParams anthropic.MessageNewParams
	reply      *anthropic.Message
	err        error
}

func (f *fakeMessages) New(_ context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func textReply(text string, in, out int64) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
		Usage: anthropic.Usage{InputTokens: in, OutputTokens: out},
	}
}

func testAgent() *delegation.Agent {
	return &delegation.Agent{
		ID:       "billing",
		TenantID: "acme",
		Tier:     delegation.TierSubagent,
		Name:     "billing-specialist",
	}
}

func testEC(budget string) delegation.ExecutionContext {
	return delegation.ExecutionContext{
		TenantID:           "acme",
		RemainingBudgetUSD: decimal.RequireFromString(budget),
		Scope: delegation.Scope{
			Namespace: "acme/support/billing",
			Tools:     []string{"invoice_lookup", "kb_read"},
		},
		DepthRemaining: 2,
	}
}

func TestRun_AnswerAndCost(t *testing.T) {
	fake := &fakeMessages{reply: textReply("the invoice is paid", 1000, 200)}
	rt := NewRuntimeWithMessages(fake, WithModel(anthropic.ModelClaudeSonnet4_5))

	got, err := rt.Run(context.Background(), testAgent(), delegation.Input{Query: "invoice status?"}, testEC("1.00"))
	require.NoError(t, err)

	assert.Equal(t, "the invoice is paid", got.Answer)
	assert.Equal(t, int64(1000), got.Usage.InputTokens)
	assert.Equal(t, int64(200), got.Usage.OutputTokens)
	// Sonnet: 1000 in × $3/MTok + 200 out × $15/MTok.
	assert.True(t, decimal.RequireFromString("0.006").Equal(got.CostUSD), "got %s", got.CostUSD)
}

func TestRun_SystemPromptCarriesScope(t *testing.T) {
	fake := &fakeMessages{reply: textReply("ok", 1, 1)}
	rt := NewRuntimeWithMessages(fake)

	_, err := rt.Run(context.Background(), testAgent(), delegation.Input{Query: "q"}, testEC("1.00"))
	require.NoError(t, err)

	require.Len(t, fake.lastParams.System, 1)
	system := fake.lastParams.System[0].Text
	assert.Contains(t, system, "billing-specialist")
	assert.Contains(t, system, "acme/support/billing")
	assert.Contains(t, system, "invoice_lookup, kb_read")
}

func TestRun_SynthesisPromptEmbedsChildAnswers(t *testing.T) {
	fake := &fakeMessages{reply: textReply("combined", 1, 1)}
	rt := NewRuntimeWithMessages(fake)

	input := delegation.Input{
		Query: "what happened?",
		ChildAnswers: []delegation.ChildAnswer{
			{AgentID: "search", Answer: "found three incidents"},
			{AgentID: "logs", Answer: "errors spiked at noon"},
		},
	}
	_, err := rt.Run(context.Background(), testAgent(), input, testEC("1.00"))
	require.NoError(t, err)

	require.Len(t, fake.lastParams.Messages, 1)
	prompt := fake.lastParams.Messages[0].Content[0].OfText.Text
	assert.Contains(t, prompt, "found three incidents")
	assert.Contains(t, prompt, "errors spiked at noon")
	assert.Contains(t, prompt, "what happened?")
	// Child answers come before the synthesis instruction, in order.
	assert.Less(t, strings.Index(prompt, "search"), strings.Index(prompt, "logs"))
}

func TestRun_BudgetTightensMaxTokens(t *testing.T) {
	fake := &fakeMessages{reply: textReply("ok", 1, 1)}
	rt := NewRuntimeWithMessages(fake,
		WithModel(anthropic.ModelClaudeSonnet4_5),
		WithMaxOutputTokens(4096))

	// $0.003 buys 200 output tokens at $15/MTok, well under the configured
	// ceiling.
	_, err := rt.Run(context.Background(), testAgent(), delegation.Input{Query: "q"}, testEC("0.003"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), fake.lastParams.MaxTokens)

	// A rich budget keeps the configured ceiling.
	_, err = rt.Run(context.Background(), testAgent(), delegation.Input{Query: "q"}, testEC("100"))
	require.NoError(t, err)
	assert.Equal(t, int64(4096), fake.lastParams.MaxTokens)
}

func TestRun_NoAffordableTokensFails(t *testing.T) {
	fake := &fakeMessages{reply: textReply("ok", 1, 1)}
	rt := NewRuntimeWithMessages(fake)

	_, err := rt.Run(context.Background(), testAgent(), delegation.Input{Query: "q"}, testEC("0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buys no output tokens")
}

func TestRun_APIErrorPropagates(t *testing.T) {
	fake := &fakeMessages{err: errors.New("overloaded")}
	rt := NewRuntimeWithMessages(fake)

	_, err := rt.Run(context.Background(), testAgent(), delegation.Input{Query: "q"}, testEC("1.00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestRun_ConcatenatesTextBlocksOnly(t *testing.T) {
	fake := &fakeMessages{reply: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "part one"},
			{Type: "tool_use", Name: "noise"},
			{Type: "text", Text: "part two"},
		},
	}}
	rt := NewRuntimeWithMessages(fake)

	got, err := rt.Run(context.Background(), testAgent(), delegation.Input{Query: "q"}, testEC("1.00"))
	require.NoError(t, err)
	assert.Equal(t, "part one\npart two", got.Answer)
}

func TestDefaultPricingCost(t *testing.T) {
	p := DefaultPricing[anthropic.ModelClaudeHaiku4_5]
	// 1M input at $1 + 1M output at $5.
	assert.True(t, decimal.NewFromInt(6).Equal(p.Cost(1_000_000, 1_000_000)))
	assert.True(t, p.Cost(0, 0).IsZero())
}
