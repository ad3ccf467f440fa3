// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finwatch/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDetection stores a detection record: the transaction fields
// merged with the scoring outcome.
func (r *SQLRepository) SaveDetection(ctx context.Context, det *domain.Detection) error {
	if det.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO detections (
			transaction_id, transaction_date, amount, channel, payment_mode,
			gateway_bank, payer_email, payer_mobile, payer_card_brand,
			payer_device, payer_browser, payee_id,
			is_fraud_predicted, fraud_source, fraud_reason, fraud_score,
			is_fraud_reported, detection_time, latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		det.ID, det.Date, det.Amount, det.Channel, det.PaymentMode,
		det.GatewayBank, det.PayerEmail, det.PayerMobile, det.PayerCardBrand,
		det.PayerDevice, det.PayerBrowser, det.PayeeID,
		boolToInt(det.IsFraudPredicted), det.FraudSource, det.FraudReason, det.FraudScore,
		boolToInt(det.IsFraudReported), det.DetectionTime, det.LatencyMs,
	)
	return err
}

// GetDetection retrieves a detection record by transaction ID.
func (r *SQLRepository) GetDetection(ctx context.Context, txID string) (*domain.Detection, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		SELECT transaction_id, transaction_date, amount, channel, payment_mode,
			   gateway_bank, payer_email, payer_mobile, payer_card_brand,
			   payer_device, payer_browser, payee_id,
			   is_fraud_predicted, fraud_source, fraud_reason, fraud_score,
			   is_fraud_reported, detection_time, latency_ms
		FROM detections
		WHERE transaction_id = ?
	`

	det, err := scanDetection(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return det, nil
}

// CountRecentByPayer counts detections for a payer key since the given
// time. The key matches email, mobile, or device fingerprint; this
// backs the velocity rule when the cache counter is unavailable.
func (r *SQLRepository) CountRecentByPayer(ctx context.Context, payerKey string, since time.Time) (int64, error) {
	if payerKey == "" {
		return 0, fmt.Errorf("%w: payer key is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM detections
		WHERE (payer_email = ? OR payer_mobile = ? OR payer_device = ?)
		  AND detection_time >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), payerKey, payerKey, payerKey, since).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FileReport inserts a fraud report and flips the referenced
// detection's reported flag inside one database transaction. Returns
// ErrNotFound, with nothing written, when the transaction was never
// scored.
func (r *SQLRepository) FileReport(ctx context.Context, report *domain.FraudReport) error {
	if report.TransactionID == "" || report.ReportingEntityID == "" {
		return fmt.Errorf("%w: transaction and reporting entity ids are required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	query := `SELECT COUNT(*) FROM detections WHERE transaction_id = ?`
	if err := tx.QueryRowContext(ctx, r.rebind(query), report.TransactionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	query = `
		INSERT INTO fraud_reports (id, transaction_id, reporting_entity_id, fraud_details, reporting_time)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(query),
		report.ID, report.TransactionID, report.ReportingEntityID,
		report.FraudDetails, report.ReportingTime,
	); err != nil {
		return err
	}

	query = `UPDATE detections SET is_fraud_reported = 1 WHERE transaction_id = ?`
	if _, err := tx.ExecContext(ctx, r.rebind(query), report.TransactionID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetReport retrieves a fraud report by ID.
func (r *SQLRepository) GetReport(ctx context.Context, reportID string) (*domain.FraudReport, error) {
	if reportID == "" {
		return nil, fmt.Errorf("%w: report id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, transaction_id, reporting_entity_id, fraud_details, reporting_time
		FROM fraud_reports
		WHERE id = ?
	`

	var report domain.FraudReport
	err := r.db.QueryRowContext(ctx, r.rebind(query), reportID).Scan(
		&report.ID, &report.TransactionID, &report.ReportingEntityID,
		&report.FraudDetails, &report.ReportingTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveRuleConfig stores a rule configuration, updating in place when
// the ID already exists.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (id, name, priority, condition, reason, active, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			condition = excluded.condition,
			reason = excluded.reason,
			active = excluded.active,
			position = excluded.position,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Priority, rule.Condition, rule.Reason,
		boolToInt(rule.Active), rule.Position, now, now,
	)
	return err
}

// ListRuleConfigs retrieves all rule configurations in evaluation
// order, inactive rules included so operators can review them.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, priority, condition, reason, active, position
		FROM rule_configs
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var active int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Priority, &cfg.Condition,
			&cfg.Reason, &active, &cfg.Position,
		); err != nil {
			return nil, err
		}

		cfg.Active = active == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(row rowScanner) (*domain.Detection, error) {
	var det domain.Detection
	var predicted, reported int

	err := row.Scan(
		&det.ID, &det.Date, &det.Amount, &det.Channel, &det.PaymentMode,
		&det.GatewayBank, &det.PayerEmail, &det.PayerMobile, &det.PayerCardBrand,
		&det.PayerDevice, &det.PayerBrowser, &det.PayeeID,
		&predicted, &det.FraudSource, &det.FraudReason, &det.FraudScore,
		&reported, &det.DetectionTime, &det.LatencyMs,
	)
	if err != nil {
		return nil, err
	}

	det.IsFraudPredicted = predicted == 1
	det.IsFraudReported = reported == 1
	return &det, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
