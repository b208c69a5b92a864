package delegation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-delegation-go/internal/budget"
	"github.com/armatrix/agent-delegation-go/internal/graph"
)

// Request is one top-level delegation request entering at a root agent.
type Request struct {
	TenantID    string
	RootAgentID string

	// SessionID groups the request in traces. Generated when empty.
	SessionID string

	Input Input
}

// Executor drives the per-request delegation state machine:
// Routing → Selecting → Delegating → Awaiting → Aggregating →
// {Completed | Escalated | Failed}. A single Executor is safe for
// concurrent use; all per-request state lives in ExecutionContext copies.
type Executor struct {
	registry AgentRegistry
	edges    EdgeStore
	router   Router
	runtime  Runtime
	opts     executorOptions
}

// NewExecutor creates an Executor over the given collaborators.
func NewExecutor(registry AgentRegistry, edges EdgeStore, router Router, runtime Runtime, opts ...ExecutorOption) *Executor {
	return &Executor{
		registry: registry,
		edges:    edges,
		router:   router,
		runtime:  runtime,
		opts:     resolveOptions(opts),
	}
}

// Execute runs one request to completion and returns the aggregated output.
//
// The returned error is terminal: every delegated branch failed or was
// skipped and the root agent's policy forbids human fallback. Branch-level
// failures never surface here; they are metadata in the trace. An escalated
// request returns a handoff sentinel Output with a nil error.
func (x *Executor) Execute(ctx context.Context, req Request) (*Output, error) {
	started := time.Now()

	root, err := x.registry.GetAgent(ctx, req.TenantID, req.RootAgentID)
	if err != nil {
		return nil, err
	}
	if !root.Enabled {
		return nil, ErrAgentDisabled
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = GenerateID(PrefixRequest)
	}

	rootScope := Scope{Tools: append([]string(nil), root.Policy.AllowedTools...)}
	if len(root.AssignedNamespaces) > 0 {
		rootScope.Namespace = root.AssignedNamespaces[0]
	}

	ec := ExecutionContext{
		TenantID:           req.TenantID,
		SessionID:          sessionID,
		RemainingBudgetUSD: root.Policy.PerRequestBudgetUSD,
		Scope:              rootScope,
		DepthRemaining:     x.opts.maxDepth,
	}

	tracker := budget.NewSpendTracker(root.Policy.PerRequestBudgetUSD)
	logger := x.opts.logger.With().
		Str("tenant_id", req.TenantID).
		Str("session_id", sessionID).
		Str("root_agent_id", root.ID).
		Logger()

	node := x.runNode(ctx, logger, root, req.Input, ec, tracker)

	x.record(ctx, logger, &Trace{
		ID:             GenerateID(PrefixTrace),
		TenantID:       req.TenantID,
		SessionID:      sessionID,
		CreatedAt:      started.UTC(),
		RouterDecision: node.routerDecision,
		AgentsCalled:   node.calls,
		Sources:        node.sources(),
		TotalCostUSD:   tracker.TotalCost(),
		TotalLatencyMs: time.Since(started).Milliseconds(),
		Escalated:      node.output != nil && node.output.Escalated,
	})

	if node.err != nil {
		return nil, node.err
	}
	return node.output, nil
}

// nodeResult is everything one node of the delegation tree hands back to
// its parent: the aggregated output (or terminal error), the flat list of
// per-agent trace entries in deterministic order, and the router decision
// made at this node.
type nodeResult struct {
	output         *Output
	err            error
	calls          []AgentCall
	routerDecision []string
}

func (n *nodeResult) sources() []Source {
	if n.output == nil {
		return nil
	}
	return n.output.Sources
}

// branch is one selected child plus everything needed to invoke it. reserved
// is the hold placed on the parent's tracker; it is released at settle time.
type branch struct {
	edge     Edge
	child    *Agent
	ec       ExecutionContext
	reserved decimal.Decimal
	skip     SkipReason
}

// runNode executes the state machine for one agent in the tree. Children
// that delegate further recurse through the same machine, bounded by
// DepthRemaining.
func (x *Executor) runNode(ctx context.Context, logger zerolog.Logger, ag *Agent, input Input, ec ExecutionContext, tracker *budget.SpendTracker) *nodeResult {
	res := &nodeResult{}

	// Routing: the stored edge set is the single source of truth for who
	// may be delegated to; the router orders and filters, it cannot add.
	selected, decision, err := x.selectChildren(ctx, ag, input, ec)
	if err != nil {
		// A routing failure degrades to a direct answer; the graph told us
		// nothing reliable about children.
		logger.Warn().Err(err).Str("agent_id", ag.ID).Msg("router failed, answering directly")
		selected = nil
	}
	res.routerDecision = decision

	// Delegating: resolve each selected child's execution context up front
	// so skips are decided deterministically against this node's state.
	branches := x.resolveBranches(ctx, logger, ag, ec, tracker, selected)

	// Fan-out and Awaiting: every non-skipped branch runs in its own
	// goroutine; one child's failure never cancels siblings. Results land
	// in selection order regardless of completion order. Each branch gets a
	// tracker over its own allocation; whatever it really spent is settled
	// against this node's hold when it finishes.
	type branchOutcome struct {
		node *nodeResult
	}
	outcomes := make([]branchOutcome, len(branches))
	done := make(chan int)
	running := 0
	for i := range branches {
		if branches[i].skip != "" {
			continue
		}
		running++
		go func(i int) {
			b := branches[i]
			sub := budget.NewSpendTracker(b.ec.RemainingBudgetUSD)
			outcomes[i].node = x.runNode(ctx, logger, b.child, input, b.ec, sub)
			tracker.Settle(b.reserved, sub.TotalCost(), sub.TotalUsage())
			done <- i
		}(i)
	}
	for ; running > 0; running-- {
		<-done
	}

	// Aggregating: walk branches in original selection order.
	var childAnswers []ChildAnswer
	var sources []Source
	totalCost := decimal.Zero
	var usage Usage
	invoked := 0
	budgetSkips := 0

	for i := range branches {
		b := branches[i]
		if b.skip != "" {
			if b.skip == SkipBudgetExhausted {
				budgetSkips++
			}
			res.calls = append(res.calls, AgentCall{
				AgentID: b.edge.ChildAgentID,
				CostUSD: decimal.Zero,
				Skip:    b.skip,
			})
			continue
		}
		invoked++
		child := outcomes[i].node
		res.calls = append(res.calls, child.calls...)
		if child.err != nil {
			logger.Debug().Err(child.err).Str("agent_id", b.child.ID).Msg("branch failed")
			res.calls = append(res.calls, AgentCall{
				AgentID: b.child.ID,
				Error:   child.err.Error(),
			})
			continue
		}
		out := child.output
		childAnswers = append(childAnswers, ChildAnswer{AgentID: b.child.ID, Answer: out.Answer})
		sources = append(sources, out.Sources...)
		totalCost = totalCost.Add(out.CostUSD)
		usage.Add(out.Usage)
	}

	// NoViableBranch: every invoked branch failed, or the budget was gone
	// before anything could run. Depth and disabled skips alone are
	// non-fatal: the agent still answers directly.
	if len(childAnswers) == 0 && (invoked > 0 || (len(branches) > 0 && budgetSkips == len(branches))) {
		return x.escalate(logger, ag, res)
	}

	// The agent's own invocation: a direct answer when nothing was
	// delegated, a synthesis call over the child answers otherwise. It runs
	// against whatever the children left over, so the node budget stays a
	// hard ceiling end to end.
	ownEC := ec
	ownEC.RemainingBudgetUSD = tracker.Remaining()
	if ownEC.RemainingBudgetUSD.LessThanOrEqual(decimal.Zero) {
		if len(childAnswers) > 0 {
			logger.Warn().Str("agent_id", ag.ID).Msg("budget exhausted before synthesis, concatenating child answers")
			res.output = &Output{
				Answer:  joinAnswers(childAnswers),
				Sources: sources,
				CostUSD: totalCost,
				Usage:   usage,
			}
			return res
		}
		return x.escalate(logger, ag, res)
	}

	ownInput := input
	ownInput.ChildAnswers = childAnswers
	ownStarted := time.Now()
	own, ownErr := x.runtime.Run(ctx, ag, ownInput, ownEC)
	if ownErr != nil {
		if len(childAnswers) == 0 {
			res.calls = append(res.calls, AgentCall{AgentID: ag.ID, Error: ownErr.Error()})
			return x.escalate(logger, ag, res)
		}
		// Children answered; losing the synthesis step must not lose their
		// results. Degrade to concatenation and record the failure.
		logger.Warn().Err(ownErr).Str("agent_id", ag.ID).Msg("synthesis failed, concatenating child answers")
		res.calls = append(res.calls, AgentCall{AgentID: ag.ID, Error: ownErr.Error()})
		res.output = &Output{
			Answer:  joinAnswers(childAnswers),
			Sources: sources,
			CostUSD: totalCost,
			Usage:   usage,
		}
		return res
	}

	tracker.Record(own.CostUSD, budget.Usage{
		InputTokens:  own.Usage.InputTokens,
		OutputTokens: own.Usage.OutputTokens,
	})
	res.calls = append(res.calls, AgentCall{
		AgentID:   ag.ID,
		CostUSD:   own.CostUSD,
		Tokens:    own.Usage,
		LatencyMs: time.Since(ownStarted).Milliseconds(),
	})

	totalCost = totalCost.Add(own.CostUSD)
	usage.Add(own.Usage)
	for i := range own.Sources {
		if own.Sources[i].AgentID == "" {
			own.Sources[i].AgentID = ag.ID
		}
	}
	res.output = &Output{
		Answer:  own.Answer,
		Sources: append(sources, own.Sources...),
		CostUSD: totalCost,
		Usage:   usage,
	}
	return res
}

// selectChildren runs the Routing and Selecting states: candidates come
// from the stored edges, static edges are always candidates, dynamic edges
// go through the router, and the result is capped at the agent's fan-out.
func (x *Executor) selectChildren(ctx context.Context, ag *Agent, input Input, ec ExecutionContext) ([]Edge, []string, error) {
	edges, err := x.edges.EdgesFrom(ctx, ec.TenantID, ag.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(edges) == 0 {
		return nil, nil, nil
	}

	byChild := make(map[string]Edge, len(edges))
	var candidates []string
	for _, e := range edges {
		byChild[e.ChildAgentID] = e
		candidates = append(candidates, e.ChildAgentID)
	}

	picked, err := x.router.SelectChildren(ctx, ec, input, candidates)
	if err != nil {
		return nil, nil, err
	}

	// Router output first, in its priority order, dropping anything that is
	// not actually reachable via an edge. Static edges the router omitted
	// are appended after: they delegate unconditionally.
	var ordered []Edge
	seen := make(map[string]bool, len(picked))
	for _, id := range picked {
		e, ok := byChild[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, e)
	}
	for _, e := range edges {
		if e.Mode == ModeStatic && !seen[e.ChildAgentID] {
			seen[e.ChildAgentID] = true
			ordered = append(ordered, e)
		}
	}

	decision := make([]string, 0, len(ordered))
	for _, e := range ordered {
		decision = append(decision, e.ChildAgentID)
	}

	// Fan-out is a hard cap, not a throttle: excess candidates are dropped.
	if limit := ag.Policy.MaxAgentsFanOut; len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, decision, nil
}

// resolveBranches computes each selected child's execution context and the
// deterministic skip decisions (disabled, depth, budget).
func (x *Executor) resolveBranches(ctx context.Context, logger zerolog.Logger, parent *Agent, ec ExecutionContext, tracker *budget.SpendTracker, selected []Edge) []branch {
	branches := make([]branch, 0, len(selected))
	for _, e := range selected {
		b := branch{edge: e}

		child, err := x.registry.GetAgent(ctx, ec.TenantID, e.ChildAgentID)
		if err != nil || !child.Enabled {
			b.skip = SkipAgentDisabled
			branches = append(branches, b)
			continue
		}
		b.child = child

		depth := min(ec.DepthRemaining, e.MaxDepth) - 1
		if depth < 0 {
			b.skip = SkipDepthExceeded
			branches = append(branches, b)
			continue
		}

		// Shares are fractions of this node's budget and may overlap-allocate
		// across siblings; the reservation clamps each grant to what no other
		// branch is holding, which keeps real spend under the node budget.
		allocated := budget.Allocate(ec.RemainingBudgetUSD, e.BudgetShare, child.Policy.PerRequestBudgetUSD)
		granted := tracker.Reserve(allocated)
		if granted.LessThanOrEqual(decimal.Zero) {
			b.skip = SkipBudgetExhausted
			branches = append(branches, b)
			continue
		}
		b.reserved = granted

		scope := ComposeScope(ec.Scope, e, child.Policy)
		b.ec = ec.child(scope, granted, depth)
		logger.Debug().
			Str("agent_id", child.ID).
			Str("allocated_usd", granted.String()).
			Int("depth_remaining", depth).
			Msg("delegating")
		branches = append(branches, b)
	}
	return branches
}

// escalate resolves the NoViableBranch outcome per the agent's policy:
// a human-handoff sentinel when FallbackHuman is set, a terminal failure
// otherwise.
func (x *Executor) escalate(logger zerolog.Logger, ag *Agent, res *nodeResult) *nodeResult {
	if ag.Policy.FallbackHuman {
		logger.Info().Str("agent_id", ag.ID).Msg("all branches failed, escalating to human")
		res.output = &Output{
			Escalated: true,
			Answer:    fmt.Sprintf("request escalated to a human operator for agent %s", ag.Name),
			CostUSD:   decimal.Zero,
		}
		return res
	}
	res.err = ErrNoViableBranch
	return res
}

// record appends the trace. Fire-and-forget: the user-facing response never
// waits on, or fails because of, the audit path.
func (x *Executor) record(ctx context.Context, logger zerolog.Logger, trace *Trace) {
	if x.opts.recorder == nil {
		return
	}
	if err := x.opts.recorder.Append(context.WithoutCancel(ctx), trace); err != nil {
		logger.Error().Err(err).Str("trace_id", trace.ID).Msg("trace append failed")
	}
}

// joinAnswers concatenates child answers in selection order, the fallback
// shape when the synthesis step fails after children already answered.
func joinAnswers(answers []ChildAnswer) string {
	parts := make([]string, 0, len(answers))
	for _, a := range answers {
		parts = append(parts, a.Answer)
	}
	return strings.Join(parts, "\n\n")
}

// WouldCreateCycle reports whether inserting parentID→childID into the edge
// set would close a directed cycle. Exposed for store implementations; runs
// a pure BFS from childID.
func WouldCreateCycle(edges []Edge, parentID, childID string) bool {
	ge := make([]graph.Edge, len(edges))
	for i, e := range edges {
		ge[i] = graph.Edge{ParentID: e.ParentAgentID, ChildID: e.ChildAgentID}
	}
	return graph.WouldCreateCycle(ge, parentID, childID)
}
