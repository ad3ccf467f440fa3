// Package alerts consumes fraud alert events from the event bus. With
// the default channel bus this is the in-process subscriber for the
// alerts the scoring pipeline publishes; with NATS it runs alongside
// any external consumers.
package alerts

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/finwatch/kestrel/internal/domain"
	"github.com/finwatch/kestrel/internal/metrics"
)

// Consumer subscribes to fraud alert events and records them as
// metrics and structured log lines.
type Consumer struct {
	bus domain.EventBus
	sub domain.Subscription
}

// NewConsumer creates an alert consumer on the given bus.
func NewConsumer(bus domain.EventBus) *Consumer {
	return &Consumer{bus: bus}
}

// Start subscribes to the alert topic. Call Stop to unsubscribe.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.bus.Subscribe(ctx, domain.TopicAlert, c.handleAlert)
	if err != nil {
		return err
	}
	c.sub = sub

	slog.Info("alert consumer started", "topic", domain.TopicAlert)
	return nil
}

// Stop cancels the subscription.
func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
}

func (c *Consumer) handleAlert(ctx context.Context, msg *domain.Message) error {
	metrics.AlertEventsTotal.Inc()

	var result domain.DetectionResult
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		slog.Warn("malformed alert payload", "msg_id", msg.ID, "error", err)
		return nil
	}

	slog.Warn("fraud alert",
		"tx_id", result.TransactionID,
		"fraud_source", result.FraudSource,
		"fraud_reason", result.FraudReason,
		"fraud_score", result.FraudScore,
	)
	return nil
}
