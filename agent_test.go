package delegation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	delegation "github.com/armatrix/agent-delegation-go"
)

func validAgent() *delegation.Agent {
	return &delegation.Agent{
		ID:                 "agt_1",
		TenantID:           "acme",
		Tier:               delegation.TierRoot,
		Name:               "support",
		AssignedNamespaces: []string{"acme/support"},
		Policy: delegation.Policy{
			PerRequestBudgetUSD: d("1.00"),
			MaxAgentsFanOut:     2,
		},
		Enabled: true,
	}
}

func TestAgentValidate(t *testing.T) {
	t.Run("valid root agent", func(t *testing.T) {
		assert.NoError(t, validAgent().Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		a := validAgent()
		a.ID = ""
		assert.Error(t, a.Validate())
	})

	t.Run("missing tenant", func(t *testing.T) {
		a := validAgent()
		a.TenantID = ""
		assert.Error(t, a.Validate())
	})

	t.Run("root takes exactly one namespace", func(t *testing.T) {
		a := validAgent()
		a.AssignedNamespaces = []string{"acme/a", "acme/b"}
		assert.Error(t, a.Validate())

		a.AssignedNamespaces = nil
		assert.Error(t, a.Validate())
	})

	t.Run("subagent takes one or more namespaces", func(t *testing.T) {
		a := validAgent()
		a.Tier = delegation.TierSubagent
		a.AssignedNamespaces = []string{"acme/a", "acme/b"}
		assert.NoError(t, a.Validate())

		a.AssignedNamespaces = nil
		assert.Error(t, a.Validate())
	})

	t.Run("unknown tier", func(t *testing.T) {
		a := validAgent()
		a.Tier = "superagent"
		assert.Error(t, a.Validate())
	})
}

func TestPolicyValidate(t *testing.T) {
	t.Run("zero budget is legal", func(t *testing.T) {
		p := delegation.Policy{PerRequestBudgetUSD: decimal.Zero}
		assert.NoError(t, p.Validate())
	})

	t.Run("negative budget", func(t *testing.T) {
		p := delegation.Policy{PerRequestBudgetUSD: d("-0.01")}
		assert.Error(t, p.Validate())
	})

	t.Run("negative fan-out", func(t *testing.T) {
		p := delegation.Policy{MaxAgentsFanOut: -1}
		assert.Error(t, p.Validate())
	})
}
