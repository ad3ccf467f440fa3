package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finwatch/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleDetection(txID string) *domain.Detection {
	return &domain.Detection{
		Transaction: domain.Transaction{
			ID:          txID,
			Date:        "2026-01-15T12:00:00Z",
			Amount:      15000,
			Channel:     domain.ChannelWeb,
			PaymentMode: domain.PaymentModeCard,
			GatewayBank: "hdfc",
			PayerEmail:  "payer@example.com",
			PayeeID:     "merchant-1",
		},
		IsFraudPredicted: true,
		FraudSource:      domain.SourceRule,
		FraudReason:      "Transaction amount exceeds threshold",
		FraudScore:       0,
		DetectionTime:    time.Now().UTC(),
		LatencyMs:        3,
	}
}

func TestSaveAndGetDetection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	det := sampleDetection("tx-001")
	if err := repo.SaveDetection(ctx, det); err != nil {
		t.Fatalf("failed to save detection: %v", err)
	}

	got, err := repo.GetDetection(ctx, "tx-001")
	if err != nil {
		t.Fatalf("failed to get detection: %v", err)
	}

	if got.ID != "tx-001" {
		t.Errorf("ID = %s, want tx-001", got.ID)
	}
	if got.Amount != 15000 {
		t.Errorf("Amount = %v, want 15000", got.Amount)
	}
	if !got.IsFraudPredicted {
		t.Error("IsFraudPredicted = false, want true")
	}
	if got.FraudSource != domain.SourceRule {
		t.Errorf("FraudSource = %s, want rule", got.FraudSource)
	}
	if got.IsFraudReported {
		t.Error("new detection must not be marked reported")
	}
}

func TestGetDetectionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetDetection(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileReportUnknownTransaction(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.FileReport(context.Background(), &domain.FraudReport{
		ID:                "rep-001",
		TransactionID:     "missing",
		ReportingEntityID: "ops-1",
		FraudDetails:      "chargeback",
		ReportingTime:     time.Now().UTC(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unscored transaction, got %v", err)
	}
}

func TestFileReportMarksDetection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveDetection(ctx, sampleDetection("tx-002")); err != nil {
		t.Fatalf("failed to save detection: %v", err)
	}

	report := &domain.FraudReport{
		ID:                "rep-002",
		TransactionID:     "tx-002",
		ReportingEntityID: "ops-1",
		FraudDetails:      "customer dispute",
		ReportingTime:     time.Now().UTC(),
	}
	if err := repo.FileReport(ctx, report); err != nil {
		t.Fatalf("failed to file report: %v", err)
	}

	// Both writes land together: the report row and the flag flip
	got, err := repo.GetReport(ctx, "rep-002")
	if err != nil {
		t.Fatalf("failed to get report: %v", err)
	}
	if got.TransactionID != "tx-002" {
		t.Errorf("TransactionID = %s, want tx-002", got.TransactionID)
	}
	if got.FraudDetails != "customer dispute" {
		t.Errorf("FraudDetails = %q", got.FraudDetails)
	}

	det, err := repo.GetDetection(ctx, "tx-002")
	if err != nil {
		t.Fatalf("failed to get detection: %v", err)
	}
	if !det.IsFraudReported {
		t.Error("detection must be marked reported after filing")
	}
}

func TestCountRecentByPayer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"tx-a", "tx-b", "tx-c"} {
		det := sampleDetection(id)
		if err := repo.SaveDetection(ctx, det); err != nil {
			t.Fatalf("failed to save detection: %v", err)
		}
	}

	// Different payer should not count
	other := sampleDetection("tx-d")
	other.PayerEmail = "someone-else@example.com"
	if err := repo.SaveDetection(ctx, other); err != nil {
		t.Fatalf("failed to save detection: %v", err)
	}

	count, err := repo.CountRecentByPayer(ctx, "payer@example.com", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	// Window in the future excludes everything
	count, err = repo.CountRecentByPayer(ctx, "payer@example.com", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestRuleConfigRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.RuleConfig{
		ID:        "rule-test",
		Name:      "Test Rule",
		Priority:  domain.PriorityHigh,
		Condition: "amount > 100.0",
		Reason:    "test reason",
		Active:    true,
		Position:  5,
	}
	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("failed to save rule: %v", err)
	}

	// Upsert updates in place
	rule.Condition = "amount > 200.0"
	rule.Position = 1
	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("failed to upsert rule: %v", err)
	}

	rules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		t.Fatalf("failed to list rules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if rules[0].Condition != "amount > 200.0" {
		t.Errorf("Condition = %q, want updated value", rules[0].Condition)
	}
	if rules[0].Position != 1 {
		t.Errorf("Position = %d, want 1", rules[0].Position)
	}
}

func TestListRuleConfigsOrderedByPosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	configs := []*domain.RuleConfig{
		{ID: "rule-b", Name: "B", Condition: "amount > 1.0", Active: true, Position: 2},
		{ID: "rule-a", Name: "A", Condition: "amount > 2.0", Active: true, Position: 1},
		{ID: "rule-c", Name: "C", Condition: "amount > 3.0", Active: false, Position: 3},
	}
	for _, cfg := range configs {
		if err := repo.SaveRuleConfig(ctx, cfg); err != nil {
			t.Fatalf("failed to save rule %s: %v", cfg.ID, err)
		}
	}

	rules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		t.Fatalf("failed to list rules: %v", err)
	}

	// Inactive rules are listed too; the evaluator filters them
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[0].ID != "rule-a" || rules[1].ID != "rule-b" || rules[2].ID != "rule-c" {
		t.Errorf("unexpected order: %s, %s, %s", rules[0].ID, rules[1].ID, rules[2].ID)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &SQLRepository{driver: "sqlite"}
	pg := &SQLRepository{driver: "postgres"}

	q := "SELECT 1 FROM t WHERE a = ? AND b = ?"

	if got := sqlite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := "SELECT 1 FROM t WHERE a = $1 AND b = $2"
	if got := pg.rebind(q); got != want {
		t.Errorf("postgres rebind = %s, want %s", got, want)
	}
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/data/kestrel.db", 2500*time.Millisecond)

	if !strings.HasPrefix(dsn, "file:/data/kestrel.db?") {
		t.Errorf("unexpected prefix: %s", dsn)
	}
	for _, pragma := range []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=busy_timeout(2500)",
		"_pragma=foreign_keys(ON)",
	} {
		if !strings.Contains(dsn, pragma) {
			t.Errorf("dsn missing %s: %s", pragma, dsn)
		}
	}

	// Zero falls back to the default busy timeout
	if dsn := sqliteDSN("x.db", 0); !strings.Contains(dsn, "busy_timeout(5000)") {
		t.Errorf("default busy timeout not applied: %s", dsn)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{
		PostgresHost:     "db.internal",
		PostgresPort:     5433,
		PostgresUser:     "kestrel",
		PostgresPassword: "secret",
		PostgresDB:       "fraud",
		PostgresSSLMode:  "require",
	})
	want := "host=db.internal port=5433 user=kestrel password=secret dbname=fraud sslmode=require"
	if dsn != want {
		t.Errorf("dsn = %s, want %s", dsn, want)
	}

	// Empty fields fall back to single-node defaults
	dsn = postgresDSN(domain.RepositoryConfig{PostgresUser: "kestrel"})
	want = "host=localhost port=5432 user=kestrel password= dbname=kestrel sslmode=disable"
	if dsn != want {
		t.Errorf("dsn = %s, want %s", dsn, want)
	}
}
