// Package scoring provides the model-based scorers used when no rule
// matches a transaction.
package scoring

import (
	"context"
	"fmt"

	"github.com/finwatch/kestrel/internal/domain"
)

// Scorer maps a transaction to a bounded fraud prediction. Both the
// heuristic scorer and the linear model implement this; the pipeline
// selects one via configuration.
type Scorer interface {
	Score(ctx context.Context, tx *domain.Transaction) domain.Prediction
	Name() string
}

// New creates a scorer from configuration.
func New(cfg domain.ScoringConfig) (Scorer, error) {
	switch cfg.Scorer {
	case "", domain.ScorerHeuristic:
		return NewHeuristicScorer(cfg.FraudThreshold, nil), nil
	case domain.ScorerLinear:
		return NewLinearScorer(cfg.FraudThreshold), nil
	default:
		return nil, fmt.Errorf("unsupported scorer: %s", cfg.Scorer)
	}
}
