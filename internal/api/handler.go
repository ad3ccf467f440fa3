package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finwatch/kestrel/internal/detect"
	"github.com/finwatch/kestrel/internal/domain"
	"github.com/finwatch/kestrel/internal/repository"
	"github.com/finwatch/kestrel/internal/rules"
	"github.com/finwatch/kestrel/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	service   *detect.Service
	pool      *worker.Pool
	evaluator *rules.Evaluator
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, service *detect.Service, pool *worker.Pool, evaluator *rules.Evaluator, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		service:   service,
		pool:      pool,
		evaluator: evaluator,
		version:   version,
	}
}

// Detect handles POST /detect requests.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if tx.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction_id is required",
		})
		return
	}

	result, err := h.service.Score(ctx, &tx)
	if err != nil {
		slog.Error("scoring failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to process transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BatchRequest is the request body for POST /detect/batch.
type BatchRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// DetectBatch handles POST /detect/batch requests. Each transaction is
// scored independently; a failed item degrades to an error marker in
// the response instead of failing the whole batch.
func (h *Handler) DetectBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions array is required",
		})
		return
	}

	results := h.pool.ScoreBatch(ctx, req.Transactions)

	writeJSON(w, http.StatusOK, results)
}

// ReportRequest is the request body for POST /report.
type ReportRequest struct {
	TransactionID     string `json:"transaction_id"`
	ReportingEntityID string `json:"reporting_entity_id"`
	FraudDetails      string `json:"fraud_details"`
}

// Report handles POST /report requests. The HTTP status mirrors the
// failure code in the body: 404 for an unknown transaction, 500 for a
// persistence failure, 200 on success.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.TransactionID == "" || req.ReportingEntityID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction_id and reporting_entity_id are required",
		})
		return
	}

	outcome := h.service.Report(ctx, req.TransactionID, req.ReportingEntityID, req.FraudDetails)

	status := http.StatusOK
	if outcome.FailureCode != domain.ReportOK {
		status = outcome.FailureCode
	}

	writeJSON(w, status, outcome)
}

// GetDetection retrieves a stored detection by transaction ID.
func (h *Handler) GetDetection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	det, err := h.service.GetDetection(ctx, txID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get detection", "id", txID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "detection not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, det)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all stored rules, active and inactive.
// The evaluator picks up changes via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	// The stored configs include inactive rules, unlike the evaluator's
	// active-only snapshot, so operators see rules awaiting a reload
	configs, err := h.repo.ListRuleConfigs(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  configs,
		"count":  len(configs),
		"source": "database",
	})
}

// GetRule retrieves a stored rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	configs, err := h.repo.ListRuleConfigs(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	for _, rule := range configs {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Priority  string `json:"priority,omitempty"`
	Condition string `json:"condition"`
	Reason    string `json:"reason"`
	Active    bool   `json:"active"`
	Position  int    `json:"position"`
}

// CreateRule validates and saves a new rule to the database.
// After saving, call POST /rules/reload to hot-reload into the evaluator.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Condition == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and condition are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:        req.ID,
		Name:      req.Name,
		Priority:  req.Priority,
		Condition: req.Condition,
		Reason:    req.Reason,
		Active:    req.Active,
		Position:  req.Position,
	}

	// Validate CEL expression by compiling it
	if err := h.evaluator.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL condition: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all active rules from the database into the
// evaluator. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.evaluator.LoadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into evaluator", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", h.evaluator.RulesCount())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   h.evaluator.RulesCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
