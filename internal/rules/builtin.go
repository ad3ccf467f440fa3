package rules

import "github.com/finwatch/kestrel/internal/domain"

// SeedRules returns the default rule set, written to the database on
// first start when no rules exist. Operators manage rules via the API
// afterwards.
func SeedRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:        "rule-high-amount",
			Name:      "High Amount Transaction",
			Priority:  domain.PriorityHigh,
			Condition: "amount > 10000.0",
			Reason:    "Transaction amount exceeds threshold",
			Active:    true,
			Position:  1,
		},
		{
			ID:        "rule-velocity",
			Name:      "Multiple Transactions",
			Priority:  domain.PriorityMedium,
			Condition: "velocity_count > 5",
			Reason:    "Multiple transactions in short time period",
			Active:    true,
			Position:  2,
		},
	}
}
