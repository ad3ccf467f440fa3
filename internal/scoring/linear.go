package scoring

import (
	"context"
	"math"
	"strings"

	"github.com/finwatch/kestrel/internal/domain"
)

// linearWeights are the pretrained weights of the logistic model, one
// per feature slot: normalized amount, one-hot channel (web, mobile,
// api, pos), one-hot payment mode (card, upi, neft, imps), and
// normalized hour of day.
var linearWeights = []float64{
	0.8, // amount
	0.3, // web channel
	0.1, // mobile channel
	0.5, // api channel
	0.2, // pos channel
	0.4, // card payment
	0.1, // upi payment
	0.2, // neft payment
	0.3, // imps payment
	0.2, // time of day
}

// LinearScorer applies a fixed-weight logistic function over a
// fixed-length feature vector. Deterministic, unlike the heuristic
// scorer.
type LinearScorer struct {
	threshold float64
	weights   []float64
}

// NewLinearScorer creates the linear model scorer.
func NewLinearScorer(threshold float64) *LinearScorer {
	if threshold <= 0 {
		threshold = 0.7
	}
	return &LinearScorer{
		threshold: threshold,
		weights:   linearWeights,
	}
}

// Name identifies the scorer in configuration and logs.
func (s *LinearScorer) Name() string { return domain.ScorerLinear }

// Score extracts the feature vector, applies the weights, and squashes
// through the logistic function to a score in (0,1).
func (s *LinearScorer) Score(ctx context.Context, tx *domain.Transaction) domain.Prediction {
	features := extractFeatures(tx)

	var z float64
	for i, f := range features {
		z += f * s.weights[i]
	}
	score := sigmoid(z)

	isFraud := score > s.threshold

	return domain.Prediction{
		IsFraud: isFraud,
		Score:   score,
		Reason:  s.explain(tx, isFraud),
	}
}

// explain assembles the reason text from the individually contributing
// conditions, falling back to a generic message when no single factor
// qualifies on its own.
func (s *LinearScorer) explain(tx *domain.Transaction, isFraud bool) string {
	if !isFraud {
		return ""
	}

	var b strings.Builder
	if tx.Amount > 5000 {
		b.WriteString("High transaction amount. ")
	}
	if tx.Channel == domain.ChannelWeb {
		b.WriteString("Web channel has higher risk. ")
	}
	if tx.PaymentMode == domain.PaymentModeCard {
		b.WriteString("Card payment has higher risk. ")
	}

	reason := strings.TrimSpace(b.String())
	if reason == "" {
		reason = "Multiple risk factors combined."
	}
	return reason
}

// extractFeatures maps a transaction to the model's fixed-length
// numeric vector. Unknown channels and payment modes leave their
// one-hot block at zero.
func extractFeatures(tx *domain.Transaction) []float64 {
	features := make([]float64, 0, len(linearWeights))

	// Amount, normalized and capped
	features = append(features, math.Min(tx.Amount/10000, 1))

	// Channel one-hot
	for _, ch := range []string{domain.ChannelWeb, domain.ChannelMobile, domain.ChannelAPI, domain.ChannelPOS} {
		if tx.Channel == ch {
			features = append(features, 1)
		} else {
			features = append(features, 0)
		}
	}

	// Payment mode one-hot
	for _, mode := range []string{domain.PaymentModeCard, domain.PaymentModeUPI, domain.PaymentModeNEFT, domain.PaymentModeIMPS} {
		if tx.PaymentMode == mode {
			features = append(features, 1)
		} else {
			features = append(features, 0)
		}
	}

	// Hour of day on a 0-1 scale; zero when the date is absent or
	// malformed
	features = append(features, float64(tx.Timestamp().Hour())/24)

	return features
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
