package delegation

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentCall is one agent's entry in a request trace. Exactly one of the
// outcome fields is meaningful: a Skip reason when the child was never
// invoked, an Error when its invocation failed, otherwise cost/latency.
type AgentCall struct {
	AgentID   string          `json:"agent_id"`
	CostUSD   decimal.Decimal `json:"cost_usd"`
	Tokens    Usage           `json:"tokens"`
	LatencyMs int64           `json:"latency_ms"`
	Skip      SkipReason      `json:"skip,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Trace is the append-only audit record of one completed top-level request.
// It is written once and never mutated.
type Trace struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`

	// RouterDecision is the ordered child selection the router returned at
	// the root, before the fan-out cap.
	RouterDecision []string `json:"router_decision"`

	// AgentsCalled lists every agent the request touched, in invocation
	// order, including skipped and failed branches.
	AgentsCalled []AgentCall `json:"agents_called"`

	Sources []Source `json:"sources"`

	TotalCostUSD   decimal.Decimal `json:"total_cost_usd"`
	TotalLatencyMs int64           `json:"total_latency_ms"`
	Escalated      bool            `json:"escalated"`
}
