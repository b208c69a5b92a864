package delegation

import (
	"github.com/shopspring/decimal"
)

// ExecutionContext is the per-branch execution state of one in-flight
// request. It is owned by the Executor, copied for every child invocation,
// never shared across concurrent branches and never persisted.
type ExecutionContext struct {
	TenantID  string
	SessionID string

	// RemainingBudgetUSD is what this branch may still spend.
	RemainingBudgetUSD decimal.Decimal

	// Scope is the effective namespace and tool set for this branch.
	Scope Scope

	// DepthRemaining is how many further delegation hops this branch may
	// make. 0 means the agent must answer directly.
	DepthRemaining int
}

// child derives the execution context for one child invocation. The budget
// and depth are already resolved by the Executor; the copy keeps branch
// state isolated without any locking.
func (ec ExecutionContext) child(scope Scope, allocated decimal.Decimal, depthRemaining int) ExecutionContext {
	return ExecutionContext{
		TenantID:           ec.TenantID,
		SessionID:          ec.SessionID,
		RemainingBudgetUSD: allocated,
		Scope:              scope,
		DepthRemaining:     depthRemaining,
	}
}
