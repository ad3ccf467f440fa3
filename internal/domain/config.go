package domain

import (
	"time"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring pipeline
	Scoring ScoringConfig `json:"scoring"`
	Batch   BatchConfig   `json:"batch"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// Scorer selection for the fallback path.
const (
	ScorerHeuristic = "heuristic"
	ScorerLinear    = "linear"
)

// ScoringConfig holds settings for the scoring pipeline.
type ScoringConfig struct {
	// Scorer selects the fallback scorer: "heuristic" (additive score
	// with jitter) or "linear" (logistic model over a feature vector).
	Scorer string `json:"scorer"`

	// FraudThreshold is the cut line above which a score is fraud.
	FraudThreshold float64 `json:"fraudThreshold"`

	// VelocityWindow bounds the payer velocity counter exposed to rules.
	VelocityWindow time.Duration `json:"velocityWindow"`
}

// BatchConfig bounds the batch endpoint's fan-out.
type BatchConfig struct {
	// MaxWorkers caps concurrent per-item scoring within one batch.
	MaxWorkers int `json:"maxWorkers"`

	// ItemTimeout bounds each item's scoring, persistence included.
	ItemTimeout time.Duration `json:"itemTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns a single-node configuration: SQLite, in-memory
// cache, channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:            "sqlite",
			SQLitePath:        "./kestrel.db",
			SQLiteBusyTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: ScoringConfig{
			Scorer:         ScorerHeuristic,
			FraudThreshold: 0.7,
			VelocityWindow: time.Hour,
		},
		Batch: BatchConfig{
			MaxWorkers:  16,
			ItemTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
