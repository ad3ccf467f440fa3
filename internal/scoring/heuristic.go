package scoring

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/finwatch/kestrel/internal/domain"
)

// Score contributions of the heuristic model.
const (
	amountHighContribution = 0.3 // amount > 5000
	amountMidContribution  = 0.1 // amount > 1000
	cardContribution       = 0.1
	webContribution        = 0.1
	jitterMax              = 0.2
)

const heuristicFraudReason = "AI model detected suspicious pattern"

// HeuristicScorer is the additive fallback scorer: fixed contributions
// per transaction attribute plus a bounded random jitter, clamped to
// [0,1]. The jitter source is injectable so tests can pin it; the
// contract (bounds and threshold consistency) holds for any source
// returning values in [0,1).
type HeuristicScorer struct {
	threshold float64
	jitter    func() float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeuristicScorer creates the scorer. A nil jitter installs a
// time-seeded uniform source.
func NewHeuristicScorer(threshold float64, jitter func() float64) *HeuristicScorer {
	if threshold <= 0 {
		threshold = 0.7
	}

	s := &HeuristicScorer{
		threshold: threshold,
		jitter:    jitter,
	}
	if s.jitter == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		s.jitter = s.lockedFloat64
	}
	return s
}

func (s *HeuristicScorer) lockedFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Name identifies the scorer in configuration and logs.
func (s *HeuristicScorer) Name() string { return domain.ScorerHeuristic }

// Score computes the additive risk score for a transaction.
func (s *HeuristicScorer) Score(ctx context.Context, tx *domain.Transaction) domain.Prediction {
	var score float64

	switch {
	case tx.Amount > 5000:
		score += amountHighContribution
	case tx.Amount > 1000:
		score += amountMidContribution
	}

	if tx.PaymentMode == domain.PaymentModeCard {
		score += cardContribution
	}

	if tx.Channel == domain.ChannelWeb {
		score += webContribution
	}

	score += s.jitter() * jitterMax

	if score > 1.0 {
		score = 1.0
	}

	isFraud := score > s.threshold
	reason := ""
	if isFraud {
		reason = heuristicFraudReason
	}

	return domain.Prediction{
		IsFraud: isFraud,
		Score:   score,
		Reason:  reason,
	}
}
