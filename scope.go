package delegation

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Scope is an agent's effective namespace and tool access for one request.
// Scopes compose down the delegation tree: the same subagent reached from
// two different parents may present two different effective scopes.
type Scope struct {
	// Namespace is the effective namespace path, e.g. "acme/support/billing".
	Namespace string

	// Tools is the effective tool set, sorted for deterministic traces.
	Tools []string
}

// ComposeScope derives a child's effective scope from its parent's scope, the
// edge connecting them, and the child's own policy.
//
// Namespace: parent namespace + "/" + edge suffix when the suffix is set,
// otherwise the parent's namespace unchanged.
//
// Tools: (parent tools ∪ edge.ToolDelta.Add) \ edge.ToolDelta.Remove,
// then intersected with the child's Policy.AllowedTools patterns. The child's
// own policy is always the outer bound: an edge can widen or narrow within
// it, never past it.
func ComposeScope(parent Scope, edge Edge, childPolicy Policy) Scope {
	child := Scope{Namespace: parent.Namespace}
	if edge.NamespaceSuffix != "" {
		child.Namespace = parent.Namespace + "/" + edge.NamespaceSuffix
	}

	tools := make(map[string]struct{}, len(parent.Tools)+len(edge.ToolDelta.Add))
	for _, t := range parent.Tools {
		tools[t] = struct{}{}
	}
	for _, t := range edge.ToolDelta.Add {
		tools[t] = struct{}{}
	}
	for _, t := range edge.ToolDelta.Remove {
		delete(tools, t)
	}

	for t := range tools {
		if matchesAny(childPolicy.AllowedTools, t) {
			child.Tools = append(child.Tools, t)
		}
	}
	sort.Strings(child.Tools)
	return child
}

// NamespaceAllowed reports whether a namespace path is inside the policy's
// allowed set. An empty pattern list allows nothing.
func NamespaceAllowed(policy Policy, namespace string) bool {
	return matchesAny(policy.AllowedNamespaces, namespace)
}

// matchesAny matches a name against doublestar glob patterns. A literal
// pattern with no metacharacters matches only itself.
func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
