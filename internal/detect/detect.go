// Package detect implements the transaction scoring pipeline: rule
// evaluation, fallback scoring, persistence, and event publication.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finwatch/kestrel/internal/domain"
	"github.com/finwatch/kestrel/internal/metrics"
	"github.com/finwatch/kestrel/internal/repository"
	"github.com/finwatch/kestrel/internal/rules"
	"github.com/finwatch/kestrel/internal/scoring"
)

// ErrMissingID is returned when a transaction carries no identifier.
// Callers surface it as a client error before any scoring work.
var ErrMissingID = errors.New("missing transaction_id")

const detectionCacheTTL = 10 * time.Minute

// Service orchestrates scoring for one transaction: rules first, the
// model scorer when no rule matches, then persistence. Dependencies
// are injected; repository, cache, and bus may be nil in tests.
type Service struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	evaluator *rules.Evaluator
	scorer    scoring.Scorer
}

// NewService creates a scoring service.
func NewService(repo domain.Repository, cache domain.Cache, bus domain.EventBus, evaluator *rules.Evaluator, scorer scoring.Scorer) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		evaluator: evaluator,
		scorer:    scorer,
	}
}

// Score evaluates one transaction and persists the outcome. The rule
// verdict wins when a rule matches; the model scorer runs otherwise.
// A persistence failure is logged and swallowed so the caller still
// receives the verdict.
func (s *Service) Score(ctx context.Context, tx *domain.Transaction) (*domain.DetectionResult, error) {
	if tx == nil || tx.ID == "" {
		return nil, ErrMissingID
	}

	start := time.Now()

	var (
		isFraud bool
		source  string
		reason  string
		score   float64
	)

	match, err := s.evaluator.Evaluate(ctx, tx)
	if err != nil {
		slog.Error("rule evaluation failed", "tx_id", tx.ID, "error", err)
	}

	if match != nil {
		// Rules express a boolean condition, not a magnitude: the
		// score stays zero on the rule path.
		isFraud = true
		source = domain.SourceRule
		reason = match.Reason
	} else {
		pred := s.scorer.Score(ctx, tx)
		isFraud = pred.IsFraud
		source = domain.SourceModel
		reason = pred.Reason
		score = pred.Score
	}

	latency := time.Since(start)

	// The source is reported only for fraud verdicts
	wireSource := ""
	if isFraud {
		wireSource = source
	}

	det := &domain.Detection{
		Transaction:      *tx,
		IsFraudPredicted: isFraud,
		FraudSource:      wireSource,
		FraudReason:      reason,
		FraudScore:       score,
		DetectionTime:    time.Now().UTC(),
		LatencyMs:        latency.Milliseconds(),
	}

	// Availability over durability: the verdict is returned even when
	// the write fails.
	if s.repo != nil {
		if err := s.repo.SaveDetection(ctx, det); err != nil {
			slog.Error("failed to save detection", "tx_id", tx.ID, "error", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.SetDetection(ctx, det, detectionCacheTTL); err != nil {
			slog.Warn("failed to cache detection", "tx_id", tx.ID, "error", err)
		}
	}

	metrics.DetectionLatency.Observe(latency.Seconds())
	if isFraud {
		metrics.DetectionsTotal.WithLabelValues(source).Inc()
		metrics.FraudsTotal.Inc()
	} else {
		metrics.DetectionsTotal.WithLabelValues("none").Inc()
	}

	result := &domain.DetectionResult{
		TransactionID: tx.ID,
		IsFraud:       isFraud,
		FraudSource:   wireSource,
		FraudReason:   reason,
		FraudScore:    score,
		LatencyMs:     latency.Milliseconds(),
	}

	s.publishVerdict(ctx, result)

	return result, nil
}

// publishVerdict emits the scored event, plus an alert for fraud
// verdicts. Publication failures never affect the response.
func (s *Service) publishVerdict(ctx context.Context, result *domain.DetectionResult) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	if err := s.bus.Publish(ctx, domain.TopicDetectionScored, payload); err != nil {
		slog.Warn("failed to publish scored event", "tx_id", result.TransactionID, "error", err)
	}

	if result.IsFraud {
		if err := s.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Warn("failed to publish alert", "tx_id", result.TransactionID, "error", err)
		}
	}
}

// GetDetection retrieves a persisted detection, cache first.
func (s *Service) GetDetection(ctx context.Context, txID string) (*domain.Detection, error) {
	if s.cache != nil {
		if det, err := s.cache.GetDetection(ctx, txID); err == nil && det != nil {
			return det, nil
		}
	}

	if s.repo == nil {
		return nil, repository.ErrNotFound
	}

	det, err := s.repo.GetDetection(ctx, txID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.SetDetection(ctx, det, detectionCacheTTL)
	}

	return det, nil
}

// Report files an operator fraud report against a scored transaction
// and flips its reported flag. The outcome always carries the wire
// failure code: 0 on success, 404 for an unknown transaction, 500 on a
// persistence failure.
func (s *Service) Report(ctx context.Context, txID, reportingEntityID, details string) *domain.ReportOutcome {
	report := &domain.FraudReport{
		ID:                uuid.New().String(),
		TransactionID:     txID,
		ReportingEntityID: reportingEntityID,
		FraudDetails:      details,
		ReportingTime:     time.Now().UTC(),
	}

	if s.repo == nil {
		metrics.ReportsTotal.WithLabelValues("error").Inc()
		return &domain.ReportOutcome{
			TransactionID: txID,
			Acknowledged:  false,
			FailureCode:   domain.ReportPersistenceError,
			Message:       "Database error",
		}
	}

	if err := s.repo.FileReport(ctx, report); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.ReportsTotal.WithLabelValues("not_found").Inc()
			return &domain.ReportOutcome{
				TransactionID: txID,
				Acknowledged:  false,
				FailureCode:   domain.ReportUnknownTx,
				Message:       "Transaction not found",
			}
		}

		slog.Error("failed to file fraud report", "tx_id", txID, "error", err)
		metrics.ReportsTotal.WithLabelValues("error").Inc()
		return &domain.ReportOutcome{
			TransactionID: txID,
			Acknowledged:  false,
			FailureCode:   domain.ReportPersistenceError,
			Message:       "Database error",
		}
	}

	// The cached copy is stale once the reported flag flips
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "det:"+txID)
	}

	if s.bus != nil {
		if payload, err := json.Marshal(report); err == nil {
			if err := s.bus.Publish(ctx, domain.TopicReportFiled, payload); err != nil {
				slog.Warn("failed to publish report event", "tx_id", txID, "error", err)
			}
		}
	}

	metrics.ReportsTotal.WithLabelValues("ok").Inc()
	return &domain.ReportOutcome{
		TransactionID: txID,
		Acknowledged:  true,
		FailureCode:   domain.ReportOK,
	}
}
