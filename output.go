package delegation

import (
	"github.com/shopspring/decimal"
)

// Input carries the user request handed to an agent.
type Input struct {
	// Query is the request text.
	Query string

	// Metadata is optional caller-supplied context passed through to the
	// Runtime untouched.
	Metadata map[string]string

	// ChildAnswers holds the successful child results, in selection order,
	// when the Executor invokes an agent for synthesis after fan-out. Empty
	// for direct answers.
	ChildAnswers []ChildAnswer
}

// ChildAnswer is one delegated child's contribution handed back to the
// parent agent for synthesis.
type ChildAnswer struct {
	AgentID string
	Answer  string
}

// Usage holds token counts for one agent invocation.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add sums another usage into this one, field by field.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Source is one citation contributed by an agent's answer.
type Source struct {
	AgentID string
	URI     string
	Title   string
}

// Output is the aggregated result of one agent handling a request,
// including whatever its delegated children contributed.
type Output struct {
	// Answer is the agent's textual response.
	Answer string

	// Escalated is true when every branch failed or was skipped and the
	// agent's policy requested human fallback. The output is then a
	// handoff sentinel, not an answer.
	Escalated bool

	// Sources are citations in child-invocation order, children first in
	// selection order, then the agent's own.
	Sources []Source

	// CostUSD is the total spend of this agent and all its children.
	CostUSD decimal.Decimal

	// Usage is the summed token usage of this agent and all its children.
	Usage Usage
}
