// Package worker fans a batch of transactions out to the scoring
// service with a bounded level of concurrency.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finwatch/kestrel/internal/detect"
	"github.com/finwatch/kestrel/internal/domain"
	"github.com/finwatch/kestrel/internal/metrics"
)

const batchItemError = "Failed to process transaction"

// Pool scores batches concurrently. Concurrency is capped by a
// semaphore and each item gets its own deadline so one slow
// transaction cannot stall the whole batch.
type Pool struct {
	service     *detect.Service
	maxWorkers  int
	itemTimeout time.Duration
}

// NewPool creates a batch pool. Non-positive limits fall back to the
// defaults from DefaultConfig.
func NewPool(service *detect.Service, cfg domain.BatchConfig) *Pool {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 16
	}
	itemTimeout := cfg.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = 10 * time.Second
	}
	return &Pool{
		service:     service,
		maxWorkers:  maxWorkers,
		itemTimeout: itemTimeout,
	}
}

// ScoreBatch scores every transaction in the batch and returns results
// keyed by transaction ID. Items without an ID are dropped. A failed
// item is reported with an error marker instead of failing the batch.
func (p *Pool) ScoreBatch(ctx context.Context, txs []domain.Transaction) map[string]domain.BatchItemResult {
	results := make(map[string]domain.BatchItemResult, len(txs))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.maxWorkers)
	)

	for i := range txs {
		tx := txs[i]
		if tx.ID == "" {
			metrics.BatchItemsTotal.WithLabelValues("dropped").Inc()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			itemCtx, cancel := context.WithTimeout(ctx, p.itemTimeout)
			defer cancel()

			res := p.scoreOne(itemCtx, &tx)

			mu.Lock()
			results[tx.ID] = res
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

func (p *Pool) scoreOne(ctx context.Context, tx *domain.Transaction) domain.BatchItemResult {
	result, err := p.service.Score(ctx, tx)
	if err != nil || ctx.Err() != nil {
		slog.Warn("batch item failed", "tx_id", tx.ID, "error", err)
		metrics.BatchItemsTotal.WithLabelValues("error").Inc()
		return domain.BatchItemResult{Error: batchItemError}
	}

	metrics.BatchItemsTotal.WithLabelValues("ok").Inc()
	return domain.BatchItemResult{
		IsFraud:     result.IsFraud,
		FraudReason: result.FraudReason,
		FraudScore:  result.FraudScore,
	}
}
