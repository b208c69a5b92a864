package delegation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	delegation "github.com/armatrix/agent-delegation-go"
)

func TestComposeScope(t *testing.T) {
	parent := delegation.Scope{
		Namespace: "acme/support",
		Tools:     []string{"kb_read", "search", "ticket_update"},
	}
	openPolicy := delegation.Policy{AllowedTools: []string{"**"}}

	t.Run("suffix appends to namespace", func(t *testing.T) {
		edge := delegation.Edge{NamespaceSuffix: "billing"}
		got := delegation.ComposeScope(parent, edge, openPolicy)
		assert.Equal(t, "acme/support/billing", got.Namespace)
	})

	t.Run("empty suffix inherits namespace", func(t *testing.T) {
		got := delegation.ComposeScope(parent, delegation.Edge{}, openPolicy)
		assert.Equal(t, "acme/support", got.Namespace)
	})

	t.Run("delta add and remove", func(t *testing.T) {
		edge := delegation.Edge{ToolDelta: delegation.ToolDelta{
			Add:    []string{"invoice_lookup"},
			Remove: []string{"ticket_update"},
		}}
		got := delegation.ComposeScope(parent, edge, openPolicy)
		assert.Equal(t, []string{"invoice_lookup", "kb_read", "search"}, got.Tools)
	})

	t.Run("remove wins over add", func(t *testing.T) {
		edge := delegation.Edge{ToolDelta: delegation.ToolDelta{
			Add:    []string{"shell"},
			Remove: []string{"shell"},
		}}
		got := delegation.ComposeScope(parent, edge, openPolicy)
		assert.NotContains(t, got.Tools, "shell")
	})

	t.Run("child policy is the outer bound", func(t *testing.T) {
		edge := delegation.Edge{ToolDelta: delegation.ToolDelta{
			Add: []string{"invoice_lookup", "shell"},
		}}
		narrow := delegation.Policy{AllowedTools: []string{"kb_read", "invoice_*"}}
		got := delegation.ComposeScope(parent, edge, narrow)
		// An edge can add within the child's policy, never past it.
		assert.Equal(t, []string{"invoice_lookup", "kb_read"}, got.Tools)
	})

	t.Run("glob patterns in child policy", func(t *testing.T) {
		p := delegation.Scope{Namespace: "n", Tools: []string{"mcp__math__add", "mcp__fs__read", "shell"}}
		narrow := delegation.Policy{AllowedTools: []string{"mcp__math__*"}}
		got := delegation.ComposeScope(p, delegation.Edge{}, narrow)
		assert.Equal(t, []string{"mcp__math__add"}, got.Tools)
	})

	t.Run("empty child policy allows nothing", func(t *testing.T) {
		got := delegation.ComposeScope(parent, delegation.Edge{}, delegation.Policy{})
		assert.Empty(t, got.Tools)
	})

	t.Run("tools are sorted", func(t *testing.T) {
		p := delegation.Scope{Tools: []string{"zeta", "alpha", "mid"}}
		got := delegation.ComposeScope(p, delegation.Edge{}, openPolicy)
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, got.Tools)
	})
}

func TestNamespaceAllowed(t *testing.T) {
	policy := delegation.Policy{AllowedNamespaces: []string{"acme/support/**", "acme/docs"}}

	assert.True(t, delegation.NamespaceAllowed(policy, "acme/support/billing"))
	assert.True(t, delegation.NamespaceAllowed(policy, "acme/support/billing/refunds"))
	assert.True(t, delegation.NamespaceAllowed(policy, "acme/docs"))
	assert.False(t, delegation.NamespaceAllowed(policy, "acme/hr"))
	assert.False(t, delegation.NamespaceAllowed(delegation.Policy{}, "acme/support"))
}
