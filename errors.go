package delegation

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine and its stores.
var (
	// ErrCycleRejected is returned when inserting an edge would close a
	// directed cycle in the tenant's delegation graph. It is an
	// admin-time validation failure, never a runtime one.
	ErrCycleRejected = errors.New("delegation: edge would create a cycle")

	// ErrSelfLoop is returned when an edge's parent and child are the
	// same agent.
	ErrSelfLoop = errors.New("delegation: edge parent and child are the same agent")

	// ErrNoViableBranch is returned when every delegated branch failed or
	// was skipped and the agent's policy does not allow human fallback.
	ErrNoViableBranch = errors.New("delegation: no branch produced a result")

	// ErrAgentNotFound is returned by registries for unknown agent IDs.
	ErrAgentNotFound = errors.New("delegation: agent not found")

	// ErrEdgeNotFound is returned by edge stores for unknown edge IDs.
	ErrEdgeNotFound = errors.New("delegation: edge not found")

	// ErrAgentDisabled is returned when a request targets a soft-deleted agent.
	ErrAgentDisabled = errors.New("delegation: agent is disabled")
)

// SkipReason classifies why a selected child was not invoked.
type SkipReason string

const (
	// SkipBudgetExhausted means the parent had no budget left to allocate.
	SkipBudgetExhausted SkipReason = "budget-exhausted"

	// SkipDepthExceeded means the delegation chain hit its depth bound.
	SkipDepthExceeded SkipReason = "depth-exceeded"

	// SkipAgentDisabled means the child agent is soft-deleted.
	SkipAgentDisabled SkipReason = "agent-disabled"
)

// ValidationError reports a malformed field on an agent or edge at the
// admin-write boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("delegation: invalid %s: %s", e.Field, e.Reason)
}

// BranchError wraps a single child invocation failure. It is recorded in the
// trace and aggregation metadata; it never propagates as the top-level error
// while at least one sibling succeeded.
type BranchError struct {
	AgentID string
	Err     error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("delegation: branch %s: %v", e.AgentID, e.Err)
}

func (e *BranchError) Unwrap() error { return e.Err }
