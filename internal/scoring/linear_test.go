package scoring

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/finwatch/kestrel/internal/domain"
)

func TestLinearDeterministic(t *testing.T) {
	s := NewLinearScorer(0.7)
	tx := &domain.Transaction{
		ID:          "t1",
		Amount:      4200,
		Channel:     domain.ChannelMobile,
		PaymentMode: domain.PaymentModeUPI,
	}

	a := s.Score(context.Background(), tx)
	b := s.Score(context.Background(), tx)
	if a.Score != b.Score {
		t.Errorf("linear scorer must be deterministic: %v vs %v", a.Score, b.Score)
	}
}

func TestLinearHighRiskTransaction(t *testing.T) {
	s := NewLinearScorer(0.7)

	// Capped amount (1.0 * 0.8) + web (0.3) + card (0.4) = z 1.5
	pred := s.Score(context.Background(), &domain.Transaction{
		ID:          "t1",
		Amount:      15000,
		Channel:     domain.ChannelWeb,
		PaymentMode: domain.PaymentModeCard,
	})

	want := sigmoid(1.5)
	if math.Abs(pred.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", pred.Score, want)
	}
	if !pred.IsFraud {
		t.Errorf("expected fraud at score %v", pred.Score)
	}
	if !strings.Contains(pred.Reason, "High transaction amount") {
		t.Errorf("reason missing amount factor: %q", pred.Reason)
	}
	if !strings.Contains(pred.Reason, "Web channel has higher risk") {
		t.Errorf("reason missing channel factor: %q", pred.Reason)
	}
	if !strings.Contains(pred.Reason, "Card payment has higher risk") {
		t.Errorf("reason missing payment factor: %q", pred.Reason)
	}
}

func TestLinearLowRiskTransaction(t *testing.T) {
	s := NewLinearScorer(0.7)

	pred := s.Score(context.Background(), &domain.Transaction{
		ID:          "t2",
		Amount:      100,
		Channel:     domain.ChannelMobile,
		PaymentMode: domain.PaymentModeUPI,
	})

	if pred.IsFraud {
		t.Errorf("expected clean verdict, got fraud at score %v", pred.Score)
	}
	if pred.Reason != "" {
		t.Errorf("expected empty reason for clean verdict, got %q", pred.Reason)
	}
	if pred.Score <= 0 || pred.Score >= 1 {
		t.Errorf("score %v outside (0,1)", pred.Score)
	}
}

func TestExtractFeatures(t *testing.T) {
	tx := &domain.Transaction{
		ID:          "t1",
		Date:        "2026-01-15T12:00:00Z",
		Amount:      5000,
		Channel:     domain.ChannelAPI,
		PaymentMode: domain.PaymentModeIMPS,
	}

	features := extractFeatures(tx)
	if len(features) != len(linearWeights) {
		t.Fatalf("feature vector length %d, want %d", len(features), len(linearWeights))
	}

	if math.Abs(features[0]-0.5) > 1e-9 {
		t.Errorf("amount feature = %v, want 0.5", features[0])
	}

	// One-hot channel: slot 3 is api
	wantChannel := []float64{0, 0, 1, 0}
	for i, want := range wantChannel {
		if features[1+i] != want {
			t.Errorf("channel slot %d = %v, want %v", i, features[1+i], want)
		}
	}

	// One-hot payment mode: slot 4 is imps
	wantMode := []float64{0, 0, 0, 1}
	for i, want := range wantMode {
		if features[5+i] != want {
			t.Errorf("payment slot %d = %v, want %v", i, features[5+i], want)
		}
	}

	if math.Abs(features[9]-0.5) > 1e-9 {
		t.Errorf("hour feature = %v, want 0.5", features[9])
	}
}

func TestExtractFeaturesCapsAmount(t *testing.T) {
	features := extractFeatures(&domain.Transaction{ID: "t1", Amount: 1000000})
	if features[0] != 1 {
		t.Errorf("amount feature = %v, want cap at 1", features[0])
	}
}

func TestExtractFeaturesUnknownValues(t *testing.T) {
	// Unknown channel and mode leave the one-hot blocks at zero;
	// malformed date leaves the hour at zero
	features := extractFeatures(&domain.Transaction{
		ID:          "t1",
		Date:        "not a date",
		Amount:      100,
		Channel:     "carrier-pigeon",
		PaymentMode: "barter",
	})

	for i := 1; i <= 9; i++ {
		if features[i] != 0 {
			t.Errorf("slot %d = %v, want 0", i, features[i])
		}
	}
}

func TestScorerFactory(t *testing.T) {
	s, err := New(domain.ScoringConfig{Scorer: domain.ScorerLinear, FraudThreshold: 0.7})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if s.Name() != domain.ScorerLinear {
		t.Errorf("expected linear scorer, got %s", s.Name())
	}

	s, err = New(domain.ScoringConfig{Scorer: domain.ScorerHeuristic, FraudThreshold: 0.7})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if s.Name() != domain.ScorerHeuristic {
		t.Errorf("expected heuristic scorer, got %s", s.Name())
	}

	if _, err := New(domain.ScoringConfig{Scorer: "oracle"}); err == nil {
		t.Error("expected error for unknown scorer")
	}
}
