package delegation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-delegation-go/internal/schema"
)

// policyDocument is the wire form of Policy accepted at the admin boundary.
// The budget travels as a JSON string so decimal precision survives the trip.
type policyDocument struct {
	AllowedTools        []string        `json:"allowed_tools,omitempty"`
	AllowedNamespaces   []string        `json:"allowed_namespaces,omitempty"`
	PerRequestBudgetUSD string          `json:"per_request_budget_usd" jsonschema:"required,description=Per-request spend ceiling in USD as a decimal string"`
	MaxAgentsFanOut     int             `json:"max_agents_fan_out" jsonschema:"minimum=0"`
	FallbackHuman       bool            `json:"fallback_human"`
	EscalationRules     json.RawMessage `json:"escalation_rules,omitempty"`
}

var (
	policyValidatorOnce sync.Once
	policyValidator     *schema.Validator
	policyValidatorErr  error
)

// ParsePolicy validates a raw admin-supplied policy document against the
// generated JSON Schema and converts it to a Policy. Unknown fields and
// malformed values are rejected here, synchronously, never discovered later
// during execution.
func ParsePolicy(raw json.RawMessage) (Policy, error) {
	policyValidatorOnce.Do(func() {
		policyValidator, policyValidatorErr = schema.NewValidator[policyDocument]("policy")
	})
	if policyValidatorErr != nil {
		return Policy{}, policyValidatorErr
	}
	if err := policyValidator.Validate(raw); err != nil {
		return Policy{}, &ValidationError{Field: "policy", Reason: err.Error()}
	}

	var doc policyDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Policy{}, &ValidationError{Field: "policy", Reason: err.Error()}
	}

	budget, err := decimal.NewFromString(doc.PerRequestBudgetUSD)
	if err != nil {
		return Policy{}, &ValidationError{Field: "policy.per_request_budget_usd", Reason: fmt.Sprintf("not a decimal: %v", err)}
	}

	p := Policy{
		AllowedTools:        doc.AllowedTools,
		AllowedNamespaces:   doc.AllowedNamespaces,
		PerRequestBudgetUSD: budget,
		MaxAgentsFanOut:     doc.MaxAgentsFanOut,
		FallbackHuman:       doc.FallbackHuman,
		EscalationRules:     doc.EscalationRules,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
