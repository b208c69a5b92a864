// Package router provides the batteries-included Router: a declarative rule
// table matched against the request text and the effective namespace, first
// match wins. Deployments with real routing models inject their own Router;
// this one gets a delegation tree working without one.
package router

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	delegation "github.com/armatrix/agent-delegation-go"
)

// Match defines rule matching conditions. Empty fields match everything of
// their kind; a rule with no conditions at all never matches.
type Match struct {
	// Patterns are case-insensitive substrings matched against the query.
	Patterns []string

	// Namespaces are doublestar globs matched against the branch's
	// effective namespace.
	Namespaces []string
}

// Rule maps matching requests to an ordered preference of child agents.
type Rule struct {
	Name    string
	Match   Match
	Targets []string // child agent IDs, highest priority first
}

// Config configures a RuleRouter.
type Config struct {
	Rules []Rule

	// Fallback orders candidates when no rule matches. Candidates absent
	// from Fallback keep their store order after the listed ones.
	Fallback []string
}

// RuleRouter selects children by first-match-wins rule evaluation.
type RuleRouter struct {
	rules    []Rule
	fallback []string
}

var _ delegation.Router = (*RuleRouter)(nil)

// New creates a RuleRouter.
func New(cfg Config) *RuleRouter {
	return &RuleRouter{rules: cfg.Rules, fallback: cfg.Fallback}
}

// SelectChildren orders and filters the candidate children for one node.
// A matched rule returns only its targets that are actual candidates, in
// target order. Otherwise candidates are reordered by the fallback
// preference and returned in full.
func (r *RuleRouter) SelectChildren(_ context.Context, ec delegation.ExecutionContext, input delegation.Input, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	for _, rule := range r.rules {
		if ruleMatches(rule.Match, input.Query, ec.Scope.Namespace) {
			return intersect(rule.Targets, candidates), nil
		}
	}
	return preferOrder(r.fallback, candidates), nil
}

func ruleMatches(match Match, query, namespace string) bool {
	if len(match.Patterns) == 0 && len(match.Namespaces) == 0 {
		return false
	}

	if len(match.Patterns) > 0 {
		queryLower := strings.ToLower(query)
		found := false
		for _, p := range match.Patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && strings.Contains(queryLower, p) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(match.Namespaces) > 0 {
		for _, pattern := range match.Namespaces {
			if ok, err := doublestar.Match(pattern, namespace); err == nil && ok {
				return true
			}
		}
		return false
	}
	return true
}

// intersect keeps the preferred IDs that are actual candidates, in
// preference order.
func intersect(preferred, candidates []string) []string {
	valid := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		valid[c] = true
	}
	var out []string
	for _, id := range preferred {
		if valid[id] {
			out = append(out, id)
			valid[id] = false
		}
	}
	return out
}

// preferOrder returns every candidate, listed preferences first.
func preferOrder(preferred, candidates []string) []string {
	out := intersect(preferred, candidates)
	picked := make(map[string]bool, len(out))
	for _, id := range out {
		picked[id] = true
	}
	for _, c := range candidates {
		if !picked[c] {
			out = append(out, c)
		}
	}
	return out
}
