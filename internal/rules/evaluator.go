// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/finwatch/kestrel/internal/domain"
)

// VelocityGetter returns the recent transaction count for a payer
// within the given window.
type VelocityGetter func(ctx context.Context, payerKey string, window time.Duration) (int64, error)

// Evaluator holds an ordered list of compiled rule conditions and
// returns the first active match for a transaction. Declaration order
// (RuleConfig.Position) encodes priority; the operator-facing priority
// tier is a label only.
type Evaluator struct {
	mu             sync.RWMutex
	env            *cel.Env
	rules          []*CompiledRule
	velocityGetter VelocityGetter
	velocityWindow time.Duration
}

// CompiledRule holds a pre-compiled CEL program for one rule.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEvaluator creates a rule evaluator. The velocity getter may be nil,
// in which case velocity_count evaluates to zero for every rule.
func NewEvaluator(velocityGetter VelocityGetter, velocityWindow time.Duration) (*Evaluator, error) {
	if velocityWindow <= 0 {
		velocityWindow = time.Hour
	}

	// CEL environment exposing transaction fields to rule conditions
	env, err := cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("payment_mode", cel.StringType),
		cel.Variable("gateway_bank", cel.StringType),
		cel.Variable("payer_email", cel.StringType),
		cel.Variable("payer_device", cel.StringType),
		cel.Variable("payee_id", cel.StringType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		env:            env,
		velocityGetter: velocityGetter,
		velocityWindow: velocityWindow,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Evaluator) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRules compiles and loads the active subset of configs, replacing
// any previously loaded rules. Rules are ordered by Position, ties
// broken by load order.
func (e *Evaluator) LoadRules(configs []*domain.RuleConfig) error {
	compiled := make([]*CompiledRule, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Config.Position < compiled[j].Config.Position
	})

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()

	return nil
}

// Evaluate returns the first active rule matching the transaction, in
// declared order, or nil when no rule matches. Evaluation is total: a
// condition that fails to evaluate counts as false, never as a fault.
func (e *Evaluator) Evaluate(ctx context.Context, tx *domain.Transaction) (*domain.RuleMatch, error) {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	var velocityCount int64
	if e.velocityGetter != nil {
		if key := tx.PayerKey(); key != "" {
			count, err := e.velocityGetter(ctx, key, e.velocityWindow)
			if err == nil {
				velocityCount = count
			}
		}
	}

	activation := map[string]any{
		"tx": map[string]any{
			"id":           tx.ID,
			"amount":       tx.Amount,
			"channel":      tx.Channel,
			"payment_mode": tx.PaymentMode,
			"gateway_bank": tx.GatewayBank,
			"payer_email":  tx.PayerEmail,
			"payer_device": tx.PayerDevice,
			"payee_id":     tx.PayeeID,
		},
		"amount":         tx.Amount,
		"channel":        tx.Channel,
		"payment_mode":   tx.PaymentMode,
		"gateway_bank":   tx.GatewayBank,
		"payer_email":    tx.PayerEmail,
		"payer_device":   tx.PayerDevice,
		"payee_id":       tx.PayeeID,
		"velocity_count": velocityCount,
	}

	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			// Condition-false, not a fault
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			return &domain.RuleMatch{
				RuleID:   rule.Config.ID,
				RuleName: rule.Config.Name,
				Reason:   rule.Config.Reason,
			}, nil
		}
	}

	return nil, nil
}

// RulesCount returns the number of loaded rules.
func (e *Evaluator) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// LoadedRules returns the currently loaded rule configurations in
// evaluation order.
func (e *Evaluator) LoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.RuleConfig, 0, len(e.rules))
	for _, r := range e.rules {
		configs = append(configs, r.Config)
	}
	return configs
}

// Close clears the loaded rules.
func (e *Evaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = nil
	return nil
}

func (e *Evaluator) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: condition must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
