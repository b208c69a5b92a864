package delegation

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Tier distinguishes root agents from subagents.
type Tier string

const (
	// TierRoot marks an agent that owns a domain namespace and receives
	// top-level requests.
	TierRoot Tier = "root"

	// TierSubagent marks an agent reachable only via delegation edges.
	TierSubagent Tier = "subagent"
)

// Policy bounds what an agent may do regardless of who delegates to it.
// The recognized fields are enumerated here; unknown fields are rejected at
// the admin-write boundary, not discovered at execution time.
type Policy struct {
	// AllowedTools is the set of tool name patterns this agent may ever use.
	// Patterns are doublestar globs, e.g. "search/**" or "kb_read".
	AllowedTools []string `json:"allowed_tools,omitempty"`

	// AllowedNamespaces is the set of namespace path patterns this agent may
	// ever operate in. Patterns are doublestar globs.
	AllowedNamespaces []string `json:"allowed_namespaces,omitempty"`

	// PerRequestBudgetUSD is the agent's own spend ceiling for one request.
	// Allocation never exceeds it, whatever the parent's share implies.
	PerRequestBudgetUSD decimal.Decimal `json:"per_request_budget_usd"`

	// MaxAgentsFanOut caps how many children this agent invokes concurrently
	// in one request. Excess router candidates are dropped, not queued.
	MaxAgentsFanOut int `json:"max_agents_fan_out"`

	// FallbackHuman selects the escalation behavior when every branch fails:
	// true yields a human-handoff sentinel output, false a terminal failure.
	FallbackHuman bool `json:"fallback_human"`

	// EscalationRules is an opaque blob interpreted by external escalation
	// tooling. The engine carries it, it never reads it.
	EscalationRules json.RawMessage `json:"escalation_rules,omitempty"`
}

// Validate checks policy invariants at the admin-write boundary.
func (p Policy) Validate() error {
	if p.PerRequestBudgetUSD.IsNegative() {
		return &ValidationError{Field: "policy.per_request_budget_usd", Reason: "must be >= 0"}
	}
	if p.MaxAgentsFanOut < 0 {
		return &ValidationError{Field: "policy.max_agents_fan_out", Reason: "must be >= 0"}
	}
	return nil
}

// Agent is a named capability unit. It can answer a request directly or
// delegate to children over edges.
type Agent struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Tier     Tier   `json:"tier"`
	Name     string `json:"name"`

	// AssignedNamespaces is the ordered namespace paths this agent starts
	// from. Root agents carry exactly one; subagents carry one or more
	// sub-paths.
	AssignedNamespaces []string `json:"assigned_namespaces"`

	Policy Policy `json:"policy"`

	// Enabled is the soft-delete flag. Disabled agents keep their record and
	// edges for audit history but are never invoked.
	Enabled bool `json:"enabled"`
}

// Validate checks agent invariants at creation/update time.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if a.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	switch a.Tier {
	case TierRoot:
		if len(a.AssignedNamespaces) != 1 {
			return &ValidationError{Field: "assigned_namespaces", Reason: "root agents take exactly one namespace"}
		}
	case TierSubagent:
		if len(a.AssignedNamespaces) == 0 {
			return &ValidationError{Field: "assigned_namespaces", Reason: "subagents take at least one namespace"}
		}
	default:
		return &ValidationError{Field: "tier", Reason: `must be "root" or "subagent"`}
	}
	return a.Policy.Validate()
}
