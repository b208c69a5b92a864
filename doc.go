// Package delegation implements a budget- and scope-aware delegation engine
// for trees of cooperating agents.
//
// A root agent owns a namespace and may delegate parts of a request to
// subagents over directed edges. Each edge carries a budget share, a tool
// delta, an optional namespace suffix, and a depth bound. The engine
// guarantees the edge graph stays acyclic under concurrent edits, partitions
// the per-request budget deterministically down the tree, composes namespace
// and tool scopes, and fans out child invocations with partial-failure
// isolation and auditable cost aggregation.
//
// # Quick Start
//
//	exec := delegation.NewExecutor(registry, edges, router, runtime,
//	    delegation.WithRecorder(recorder))
//	out, err := exec.Execute(ctx, delegation.Request{
//	    TenantID:    "acme",
//	    RootAgentID: root.ID,
//	    Input:       delegation.Input{Query: "summarize last week"},
//	})
//
// # Sub-packages
//
//   - [store] provides EdgeStore, AgentRegistry and TraceRecorder backends
//     (in-memory and SQLite).
//   - [router] provides a rule-based default Router.
//   - [runtime/claude] provides a Runtime backed by the Anthropic API.
package delegation
