package domain

import (
	"time"
)

// Channel values accepted on the wire.
const (
	ChannelWeb    = "web"
	ChannelMobile = "mobile"
	ChannelAPI    = "api"
	ChannelPOS    = "pos"
)

// Payment mode values accepted on the wire.
const (
	PaymentModeCard = "card"
	PaymentModeUPI  = "upi"
	PaymentModeNEFT = "neft"
	PaymentModeIMPS = "imps"
)

// Transaction represents one payment event submitted for scoring.
// The caller supplies the identifier; the record is immutable once
// submitted except for the fields the scoring pipeline attaches.
type Transaction struct {
	ID   string `json:"transaction_id"`
	Date string `json:"transaction_date,omitempty"`

	Amount      float64 `json:"transaction_amount"`
	Channel     string  `json:"transaction_channel,omitempty"`
	PaymentMode string  `json:"transaction_payment_mode,omitempty"`
	GatewayBank string  `json:"payment_gateway_bank,omitempty"`

	// Payer contact and fingerprint fields
	PayerEmail     string `json:"payer_email,omitempty"`
	PayerMobile    string `json:"payer_mobile,omitempty"`
	PayerCardBrand string `json:"payer_card_brand,omitempty"`
	PayerDevice    string `json:"payer_device,omitempty"`
	PayerBrowser   string `json:"payer_browser,omitempty"`

	PayeeID string `json:"payee_id,omitempty"`
}

// Timestamp parses the transaction date, falling back to the zero time
// when the field is absent or malformed. Scoring must stay total over
// malformed input, so no error is surfaced here.
func (t *Transaction) Timestamp() time.Time {
	if t.Date == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, t.Date); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// PayerKey identifies the payer for velocity counting. Email is the
// primary key; device fingerprint and payee are weaker fallbacks.
func (t *Transaction) PayerKey() string {
	switch {
	case t.PayerEmail != "":
		return t.PayerEmail
	case t.PayerMobile != "":
		return t.PayerMobile
	case t.PayerDevice != "":
		return t.PayerDevice
	default:
		return ""
	}
}

// Fraud verdict sources.
const (
	SourceRule  = "rule"
	SourceModel = "model"
)

// Prediction is the outcome of a scorer over a single transaction.
type Prediction struct {
	IsFraud bool    `json:"is_fraud"`
	Score   float64 `json:"fraud_score"`
	Reason  string  `json:"fraud_reason"`
}

// Detection is the persisted record: the original transaction fields
// merged with the scoring outcome. Created exactly once per scoring run;
// a rescoring produces a new record rather than updating in place. The
// reported flag is the only field mutated after creation, by the
// reporting endpoint.
type Detection struct {
	Transaction

	IsFraudPredicted bool      `json:"is_fraud_predicted"`
	FraudSource      string    `json:"fraud_source"`
	FraudReason      string    `json:"fraud_reason"`
	FraudScore       float64   `json:"fraud_score"`
	IsFraudReported  bool      `json:"is_fraud_reported"`
	DetectionTime    time.Time `json:"detection_time"`
	LatencyMs        int64     `json:"latency_ms"`
}

// DetectionResult is the API response for a single scoring call.
type DetectionResult struct {
	TransactionID string  `json:"transaction_id"`
	IsFraud       bool    `json:"is_fraud"`
	FraudSource   string  `json:"fraud_source"`
	FraudReason   string  `json:"fraud_reason"`
	FraudScore    float64 `json:"fraud_score"`
	LatencyMs     int64   `json:"latency_ms"`
}

// BatchItemResult is one entry of the batch response map. Error is set
// only for items whose individual scoring failed.
type BatchItemResult struct {
	IsFraud     bool    `json:"is_fraud"`
	FraudReason string  `json:"fraud_reason"`
	FraudScore  float64 `json:"fraud_score"`
	Error       string  `json:"error,omitempty"`
}
