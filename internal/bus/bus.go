package bus

import (
	"fmt"

	"github.com/finwatch/kestrel/internal/domain"
)

// New creates a new event bus based on configuration: Go channels for
// single-node deploys, NATS when external consumers subscribe.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
