package delegation

import (
	"context"

	"github.com/shopspring/decimal"
)

// AgentRegistry is the external record of agents. The engine only reads it.
type AgentRegistry interface {
	// GetAgent returns an agent by ID. Returns ErrAgentNotFound for unknown
	// IDs. Disabled agents are returned as-is; callers check Enabled.
	GetAgent(ctx context.Context, tenantID, agentID string) (*Agent, error)

	// ListEnabledAgents returns every enabled agent in the tenant.
	ListEnabledAgents(ctx context.Context, tenantID string) ([]*Agent, error)
}

// EdgeStore is the durable record of delegation edges. Mutations happen on
// the admin path only; the Executor reads it during Routing.
//
// InsertEdge must provide insert-if-no-cycle atomicity: the cycle check and
// the insertion are applied under one per-tenant serializing section, so two
// concurrent insertions can never both pass the check against a graph state
// the other has already changed.
type EdgeStore interface {
	// ListEdges returns every edge in the tenant.
	ListEdges(ctx context.Context, tenantID string) ([]Edge, error)

	// EdgesFrom returns edges whose parent is the given agent.
	EdgesFrom(ctx context.Context, tenantID, parentAgentID string) ([]Edge, error)

	// EdgesTo returns edges whose child is the given agent.
	EdgesTo(ctx context.Context, tenantID, childAgentID string) ([]Edge, error)

	// InsertEdge validates, normalizes, and atomically inserts an edge.
	// Returns ErrCycleRejected when the edge would close a cycle; the graph
	// is unchanged afterward.
	InsertEdge(ctx context.Context, edge *Edge) error

	// UpdateEdge replaces an edge's mutable attributes (share, deltas, mode,
	// depth, suffix) in place. Endpoints are immutable: re-parenting is a
	// delete plus insert so the cycle guard always runs.
	UpdateEdge(ctx context.Context, edge *Edge) error

	// DeleteEdge hard-deletes an edge. No tombstone remains.
	DeleteEdge(ctx context.Context, tenantID, edgeID string) error
}

// Router is the injected decision function that picks which children to
// consult for a request. Candidates are already restricted to agents
// reachable via stored edges; the router orders and filters, it cannot add.
// The returned slice is priority-ordered, highest first.
type Router interface {
	SelectChildren(ctx context.Context, ec ExecutionContext, input Input, candidates []string) ([]string, error)
}

// RunResult is what one agent's own invocation produced, before any child
// aggregation.
type RunResult struct {
	Answer  string
	Sources []Source
	CostUSD decimal.Decimal
	Usage   Usage
}

// Runtime is the opaque capability that actually produces an agent's answer.
// The engine treats it as a black box; retries, if any, live inside it.
type Runtime interface {
	Run(ctx context.Context, agent *Agent, input Input, ec ExecutionContext) (*RunResult, error)
}

// TraceRecorder appends audit records. From the Executor's perspective it is
// fire-and-forget: a failed append is logged and never fails the response.
type TraceRecorder interface {
	Append(ctx context.Context, trace *Trace) error
}
