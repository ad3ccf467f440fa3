package rules

import (
	"context"
	"testing"
	"time"

	"github.com/finwatch/kestrel/internal/domain"
)

func TestEvaluatorCreation(t *testing.T) {
	ev, err := NewEvaluator(nil, time.Hour)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	defer ev.Close()

	if ev.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", ev.RulesCount())
	}
}

func TestLoadRules(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	err := ev.LoadRules([]*domain.RuleConfig{
		{
			ID:        "test-rule-001",
			Name:      "Test Rule",
			Condition: "amount > 100.0",
			Reason:    "Amount over limit",
			Active:    true,
			Position:  1,
		},
	})
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	if ev.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", ev.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	err := ev.LoadRules([]*domain.RuleConfig{
		{
			ID:        "invalid-rule",
			Name:      "Invalid Rule",
			Condition: "this is not valid CEL !!!",
			Active:    true,
		},
	})
	if err == nil {
		t.Error("expected error for invalid CEL condition")
	}
}

func TestValidateRejectsNonBoolCondition(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	err := ev.ValidateRule(&domain.RuleConfig{
		ID:        "non-bool",
		Name:      "Non Bool",
		Condition: "amount + 1.0",
		Active:    true,
	})
	if err == nil {
		t.Error("expected error for non-bool condition")
	}
}

func TestInactiveRuleSkipped(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	err := ev.LoadRules([]*domain.RuleConfig{
		{ID: "active", Name: "Active", Condition: "amount > 0.0", Active: true, Position: 1},
		{ID: "inactive", Name: "Inactive", Condition: "amount > 0.0", Active: false, Position: 2},
	})
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	if ev.RulesCount() != 1 {
		t.Errorf("expected 1 active rule, got %d", ev.RulesCount())
	}
}

func TestEvaluateHighAmount(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	if err := ev.LoadRules(SeedRules()); err != nil {
		t.Fatalf("failed to load seed rules: %v", err)
	}

	ctx := context.Background()

	match, err := ev.Evaluate(ctx, &domain.Transaction{
		ID:          "tx-001",
		Amount:      15000,
		Channel:     domain.ChannelWeb,
		PaymentMode: domain.PaymentModeCard,
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected high-amount rule to match")
	}
	if match.RuleID != "rule-high-amount" {
		t.Errorf("expected rule-high-amount, got %s", match.RuleID)
	}
	if match.Reason != "Transaction amount exceeds threshold" {
		t.Errorf("unexpected reason: %s", match.Reason)
	}

	// Below the threshold no rule should match
	match, err = ev.Evaluate(ctx, &domain.Transaction{
		ID:     "tx-002",
		Amount: 9999,
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if match != nil {
		t.Errorf("expected no match for amount 9999, got %s", match.RuleID)
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	// Both conditions match; position decides
	err := ev.LoadRules([]*domain.RuleConfig{
		{ID: "second", Name: "Second", Condition: "amount > 10.0", Reason: "second", Active: true, Position: 2},
		{ID: "first", Name: "First", Condition: "amount > 100.0", Reason: "first", Active: true, Position: 1},
	})
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	match, err := ev.Evaluate(context.Background(), &domain.Transaction{ID: "tx-001", Amount: 500})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if match == nil || match.RuleID != "first" {
		t.Fatalf("expected first rule by position to win, got %+v", match)
	}
}

func TestEvaluateVelocityRule(t *testing.T) {
	getter := func(ctx context.Context, payerKey string, window time.Duration) (int64, error) {
		if payerKey != "payer@example.com" {
			t.Errorf("unexpected payer key %q", payerKey)
		}
		return 6, nil
	}

	ev, err := NewEvaluator(getter, time.Hour)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	defer ev.Close()

	if err := ev.LoadRules(SeedRules()); err != nil {
		t.Fatalf("failed to load seed rules: %v", err)
	}

	match, err := ev.Evaluate(context.Background(), &domain.Transaction{
		ID:         "tx-001",
		Amount:     100,
		PayerEmail: "payer@example.com",
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected velocity rule to match at count 6")
	}
	if match.RuleID != "rule-velocity" {
		t.Errorf("expected rule-velocity, got %s", match.RuleID)
	}
}

func TestEvaluateVelocityWithoutGetter(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	if err := ev.LoadRules(SeedRules()); err != nil {
		t.Fatalf("failed to load seed rules: %v", err)
	}

	// velocity_count defaults to zero without a getter
	match, err := ev.Evaluate(context.Background(), &domain.Transaction{
		ID:         "tx-001",
		Amount:     100,
		PayerEmail: "payer@example.com",
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if match != nil {
		t.Errorf("expected no match, got %s", match.RuleID)
	}
}

func TestReloadReplacesRules(t *testing.T) {
	ev, _ := NewEvaluator(nil, time.Hour)
	defer ev.Close()

	first := []*domain.RuleConfig{
		{ID: "a", Name: "A", Condition: "amount > 1.0", Active: true, Position: 1},
		{ID: "b", Name: "B", Condition: "amount > 2.0", Active: true, Position: 2},
	}
	if err := ev.LoadRules(first); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	second := []*domain.RuleConfig{
		{ID: "c", Name: "C", Condition: "channel == \"web\"", Active: true, Position: 1},
	}
	if err := ev.LoadRules(second); err != nil {
		t.Fatalf("failed to reload rules: %v", err)
	}

	if ev.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", ev.RulesCount())
	}
	loaded := ev.LoadedRules()
	if len(loaded) != 1 || loaded[0].ID != "c" {
		t.Errorf("unexpected loaded rules: %+v", loaded)
	}
}
