package domain

// Rule priority tiers. The label is operator-facing; the evaluator runs
// rules in declared position order and does not re-sort by tier.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// RuleConfig defines one fraud detection rule: a named, prioritized,
// activatable boolean predicate over a transaction, expressed in CEL.
type RuleConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Priority string `json:"priority"`

	// Condition is a CEL expression over transaction fields that must
	// evaluate to a boolean.
	Condition string `json:"condition"`

	// Reason is the operator-facing explanation attached to a match.
	Reason string `json:"reason"`

	Active bool `json:"active"`

	// Position orders evaluation; lower runs first. Declaration order
	// encodes priority regardless of the Priority label.
	Position int `json:"position"`
}

// RuleMatch is the verdict of the first matching rule for a transaction.
type RuleMatch struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Reason   string `json:"reason"`
}
