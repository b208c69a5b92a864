// Package claude provides a delegation.Runtime backed by the Anthropic
// Messages API. The effective scope shapes the system prompt, and token
// usage is priced into the USD cost the engine aggregates into traces.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"

	delegation "github.com/armatrix/agent-delegation-go"
)

// MessageCreator abstracts the Anthropic Messages API so the runtime can be
// tested with a mock. Production code passes the real client.Messages.
type MessageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type messageServiceAdapter struct {
	svc *anthropic.MessageService
}

func (a *messageServiceAdapter) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return a.svc.New(ctx, params)
}

// Option configures a Runtime via the functional options pattern.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	model           anthropic.Model
	maxOutputTokens int64
	pricing         map[anthropic.Model]ModelPricing
}

func (o *runtimeOptions) applyDefaults() {
	if o.model == "" {
		o.model = anthropic.ModelClaudeSonnet4_5
	}
	if o.maxOutputTokens == 0 {
		o.maxOutputTokens = 4096
	}
	if o.pricing == nil {
		o.pricing = DefaultPricing
	}
}

// WithModel sets the Claude model to use.
func WithModel(model anthropic.Model) Option {
	return func(o *runtimeOptions) { o.model = model }
}

// WithMaxOutputTokens sets the maximum output tokens per invocation.
func WithMaxOutputTokens(tokens int64) Option {
	return func(o *runtimeOptions) { o.maxOutputTokens = tokens }
}

// WithPricing overrides the built-in pricing table.
func WithPricing(pricing map[anthropic.Model]ModelPricing) Option {
	return func(o *runtimeOptions) { o.pricing = pricing }
}

// Runtime invokes the Anthropic API for one agent at a time. It is
// stateless and safe for concurrent use across branches.
type Runtime struct {
	messages MessageCreator
	opts     runtimeOptions
}

var _ delegation.Runtime = (*Runtime)(nil)

// NewRuntime creates a Runtime with a real Anthropic client. Credentials
// come from the environment, as the SDK resolves them.
func NewRuntime(opts ...Option) *Runtime {
	client := anthropic.NewClient()
	return NewRuntimeWithMessages(&messageServiceAdapter{svc: &client.Messages}, opts...)
}

// NewRuntimeWithMessages creates a Runtime over a custom MessageCreator
// (for testing).
func NewRuntimeWithMessages(messages MessageCreator, opts ...Option) *Runtime {
	var o runtimeOptions
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return &Runtime{messages: messages, opts: o}
}

// Run produces the agent's answer for one branch. The output token limit is
// tightened to what the branch's allocated budget can pay for, so a child
// cannot overspend its allocation by more than the in-flight call.
func (r *Runtime) Run(ctx context.Context, agent *delegation.Agent, input delegation.Input, ec delegation.ExecutionContext) (*delegation.RunResult, error) {
	maxTokens := r.opts.maxOutputTokens
	if pricing, ok := r.opts.pricing[r.opts.model]; ok && pricing.OutputPerMTok.IsPositive() {
		affordable := ec.RemainingBudgetUSD.Div(pricing.OutputPerMTok).Mul(million).IntPart()
		if affordable < maxTokens {
			maxTokens = affordable
		}
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("claude: allocated budget %s USD buys no output tokens", ec.RemainingBudgetUSD)
	}

	msg, err := r.messages.New(ctx, anthropic.MessageNewParams{
		Model:     r.opts.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(agent, ec)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(input))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	cost := decimal.Zero
	if pricing, ok := r.opts.pricing[r.opts.model]; ok {
		cost = pricing.Cost(msg.Usage.InputTokens, msg.Usage.OutputTokens)
	}

	return &delegation.RunResult{
		Answer:  answerText(msg),
		CostUSD: cost,
		Usage: delegation.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

// systemPrompt renders the agent's identity and effective scope. The scope
// is the composed one for this branch, not the agent's full policy.
func systemPrompt(agent *delegation.Agent, ec delegation.ExecutionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an agent operating in the %q namespace.\n", agent.Name, ec.Scope.Namespace)
	if len(ec.Scope.Tools) > 0 {
		fmt.Fprintf(&b, "Tools available to you: %s.\n", strings.Join(ec.Scope.Tools, ", "))
	}
	b.WriteString("Answer only within your namespace. Say so when a request falls outside it.")
	return b.String()
}

// userPrompt renders the request, prefixed by delegated child answers when
// the engine calls back for synthesis.
func userPrompt(input delegation.Input) string {
	if len(input.ChildAnswers) == 0 {
		return input.Query
	}
	var b strings.Builder
	b.WriteString("Specialist agents have contributed partial answers.\n\n")
	for _, a := range input.ChildAnswers {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", a.AgentID, a.Answer)
	}
	fmt.Fprintf(&b, "Synthesize a single answer to the original request:\n%s", input.Query)
	return b.String()
}

func answerText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
