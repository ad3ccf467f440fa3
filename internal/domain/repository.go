// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. The handle is
// constructed once at startup, injected into the components that need
// it, and closed explicitly on shutdown.
type Repository interface {
	// Detection records
	SaveDetection(ctx context.Context, det *Detection) error
	GetDetection(ctx context.Context, txID string) (*Detection, error)
	CountRecentByPayer(ctx context.Context, payerKey string, since time.Time) (int64, error)

	// FileReport inserts a fraud report and sets the referenced
	// detection's reported flag in a single database transaction.
	// Returns ErrNotFound when the transaction was never scored.
	FileReport(ctx context.Context, report *FraudReport) error
	GetReport(ctx context.Context, reportID string) (*FraudReport, error)

	// Rule configuration
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath        string
	SQLiteBusyTimeout time.Duration

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
