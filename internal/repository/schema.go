package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaDetections = `
CREATE TABLE IF NOT EXISTS detections (
    transaction_id TEXT PRIMARY KEY,
    transaction_date TEXT,
    amount REAL NOT NULL,
    channel TEXT,
    payment_mode TEXT,
    gateway_bank TEXT,
    payer_email TEXT,
    payer_mobile TEXT,
    payer_card_brand TEXT,
    payer_device TEXT,
    payer_browser TEXT,
    payee_id TEXT,
    is_fraud_predicted INTEGER NOT NULL DEFAULT 0,
    fraud_source TEXT NOT NULL DEFAULT '',
    fraud_reason TEXT NOT NULL DEFAULT '',
    fraud_score REAL NOT NULL DEFAULT 0,
    is_fraud_reported INTEGER NOT NULL DEFAULT 0,
    detection_time TIMESTAMP NOT NULL,
    latency_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_detections_payer_email ON detections(payer_email, detection_time);
CREATE INDEX IF NOT EXISTS idx_detections_fraud ON detections(is_fraud_predicted, detection_time);
`

const schemaFraudReports = `
CREATE TABLE IF NOT EXISTS fraud_reports (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    reporting_entity_id TEXT NOT NULL,
    fraud_details TEXT,
    reporting_time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_reports_tx ON fraud_reports(transaction_id);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    priority TEXT NOT NULL,
    condition TEXT NOT NULL,
    reason TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    position INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_active ON rule_configs(active, position);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDetections,
		schemaFraudReports,
		schemaRuleConfigs,
	}
}
