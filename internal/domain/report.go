package domain

import (
	"time"
)

// FraudReport is an operator attestation that a previously scored
// transaction was fraudulent. Reports are append-only; filing one also
// flips the detection record's reported flag.
type FraudReport struct {
	ID                string    `json:"id"`
	TransactionID     string    `json:"transaction_id"`
	ReportingEntityID string    `json:"reporting_entity_id"`
	FraudDetails      string    `json:"fraud_details"`
	ReportingTime     time.Time `json:"reporting_time"`
}

// Reporting failure codes surfaced on the wire.
const (
	ReportOK               = 0
	ReportUnknownTx        = 404
	ReportPersistenceError = 500
)

// ReportOutcome is the API response for a reporting call. FailureCode is
// zero on success, 404 for an unknown transaction, 500 on a persistence
// failure.
type ReportOutcome struct {
	TransactionID string `json:"transaction_id"`
	Acknowledged  bool   `json:"reporting_acknowledged"`
	FailureCode   int    `json:"failure_code"`
	Message       string `json:"message,omitempty"`
}
