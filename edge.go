package delegation

import (
	"github.com/shopspring/decimal"
)

// DelegationMode selects how an edge is exercised.
type DelegationMode string

const (
	// ModeStatic edges are always candidates when the parent delegates.
	ModeStatic DelegationMode = "static"

	// ModeDynamic edges are candidates only when the router selects them
	// for the request at hand.
	ModeDynamic DelegationMode = "dynamic"
)

// ToolDelta widens or narrows the tool set an edge passes down.
// The child's own policy remains the outer bound either way.
type ToolDelta struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// Edge is a directed, tenant-scoped delegation relationship from a parent
// agent to a child agent. Edges are hard-deleted: presence in the store is
// the only notion of "active".
type Edge struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	ParentAgentID string         `json:"parent_agent_id"`
	ChildAgentID  string         `json:"child_agent_id"`
	Mode          DelegationMode `json:"delegation_mode"`

	// BudgetShare is the fraction of the parent's remaining budget offered
	// to the child. The stored value is always in [0,1]; see NormalizeShare.
	BudgetShare decimal.Decimal `json:"budget_share"`

	// MaxDepth bounds further delegation below this child. Must be >= 1.
	MaxDepth int `json:"max_depth"`

	ToolDelta ToolDelta `json:"tool_delta"`

	// NamespaceSuffix, when set, is appended to the parent's effective
	// namespace to form the child's. Empty means the child inherits the
	// parent's namespace unchanged.
	NamespaceSuffix string `json:"namespace_suffix,omitempty"`
}

var one = decimal.NewFromInt(1)

// NormalizeShare maps a raw budget share input to its canonical stored form:
// the value clamped to [0,1]. Out-of-range inputs, whether sloppy percent
// entry like 150 or an overshoot like 1.5, land on the same stored value 1.
// Normalization happens exactly once, at edge creation/update; readers can
// rely on the stored value being canonical.
func NormalizeShare(raw decimal.Decimal) decimal.Decimal {
	if raw.GreaterThan(one) {
		return one
	}
	if raw.IsNegative() {
		return decimal.Zero
	}
	return raw
}

// Normalize applies canonical share normalization and defaults in place.
func (e *Edge) Normalize() {
	e.BudgetShare = NormalizeShare(e.BudgetShare)
	if e.Mode == "" {
		e.Mode = ModeStatic
	}
}

// Validate checks edge invariants that are user-correctable at the
// admin-write boundary. Cycle detection is the store's job: it needs the
// full edge set and a serialized read-then-insert.
func (e *Edge) Validate() error {
	if e.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if e.ParentAgentID == "" {
		return &ValidationError{Field: "parent_agent_id", Reason: "required"}
	}
	if e.ChildAgentID == "" {
		return &ValidationError{Field: "child_agent_id", Reason: "required"}
	}
	if e.ParentAgentID == e.ChildAgentID {
		return ErrSelfLoop
	}
	if e.MaxDepth < 1 {
		return &ValidationError{Field: "max_depth", Reason: "must be >= 1"}
	}
	switch e.Mode {
	case ModeStatic, ModeDynamic:
	default:
		return &ValidationError{Field: "delegation_mode", Reason: `must be "static" or "dynamic"`}
	}
	return nil
}
