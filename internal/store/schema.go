package store

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Change ledger: one row per distinct path, keyed on content hash
CREATE TABLE IF NOT EXISTS processed_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT UNIQUE NOT NULL,
  content_hash TEXT NOT NULL,
  file_kind TEXT,
  status TEXT NOT NULL DEFAULT 'processing',
  records_processed INTEGER DEFAULT 0,
  error_message TEXT,
  processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_processed_files_status ON processed_files(status);

-- Known clients and their contacts
CREATE TABLE IF NOT EXISTS clients (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  contact_name TEXT,
  contact_email TEXT
);

CREATE INDEX IF NOT EXISTS idx_clients_contact_email ON clients(contact_email);

-- Periodic metric snapshots, one row per client per export date
CREATE TABLE IF NOT EXISTS client_metrics (
  client_id INTEGER REFERENCES clients(id) ON DELETE CASCADE,
  metric_date TEXT NOT NULL,
  escalations INTEGER DEFAULT 0,
  support_score REAL DEFAULT 0,
  backlog INTEGER DEFAULT 0,
  delivered INTEGER DEFAULT 0,
  response_days REAL DEFAULT 0,
  PRIMARY KEY (client_id, metric_date)
);

-- Conversation turns imported from interaction files
CREATE TABLE IF NOT EXISTS conversations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  client_id INTEGER REFERENCES clients(id) ON DELETE SET NULL,
  body TEXT NOT NULL,
  occurred_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  analyzed INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conversations_analyzed ON conversations(analyzed);

-- Ingested mailbox messages, deduplicated by message id
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  message_id TEXT UNIQUE NOT NULL,
  account TEXT NOT NULL,
  client_id INTEGER REFERENCES clients(id) ON DELETE SET NULL,
  subject TEXT,
  body TEXT,
  sender TEXT,
  recipient TEXT,
  received_at DATETIME,
  processed INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_emails_processed ON emails(processed);
CREATE INDEX IF NOT EXISTS idx_emails_client_id ON emails(client_id);

-- Sentiment results, at most one per content unit
CREATE TABLE IF NOT EXISTS sentiment_analyses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  content_id INTEGER NOT NULL,
  content_type TEXT NOT NULL,
  sentiment_score REAL NOT NULL,
  sentiment_label TEXT NOT NULL,
  confidence REAL NOT NULL,
  method TEXT NOT NULL,
  key_phrases TEXT,
  cluster_id INTEGER,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (content_type, content_id)
);

CREATE INDEX IF NOT EXISTS idx_sentiment_cluster ON sentiment_analyses(cluster_id);

-- Client risk alerts
CREATE TABLE IF NOT EXISTS alerts (
  id TEXT PRIMARY KEY,
  client_id INTEGER REFERENCES clients(id) ON DELETE CASCADE,
  trigger_type TEXT NOT NULL,
  description TEXT,
  severity TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  detected_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  resolved_at DATETIME,
  analysis_payload TEXT,
  data_snapshot TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
CREATE INDEX IF NOT EXISTS idx_alerts_client_trigger ON alerts(client_id, trigger_type);
CREATE INDEX IF NOT EXISTS idx_alerts_detected_at ON alerts(detected_at);

-- Append-only audit trail, one row per alert status transition
CREATE TABLE IF NOT EXISTS email_notifications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  alert_id TEXT REFERENCES alerts(id) ON DELETE CASCADE,
  subject TEXT,
  recipient TEXT,
  body TEXT,
  status TEXT,
  sent_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_alert_id ON email_notifications(alert_id);
`

// Schema v2 - Re-import dedup and analysis retry accounting
//
// Conversation turns gain a natural key (source file, line hash) so
// re-importing a grown transcript only adds the new lines. Both content
// tables gain an attempt counter so items that keep failing classification
// stop occupying the batch window.
const schemaV2 = `
ALTER TABLE conversations ADD COLUMN source TEXT;
ALTER TABLE conversations ADD COLUMN line_hash TEXT;
ALTER TABLE conversations ADD COLUMN analysis_attempts INTEGER NOT NULL DEFAULT 0;
ALTER TABLE emails ADD COLUMN analysis_attempts INTEGER NOT NULL DEFAULT 0;

-- Partial index: rows inserted without a source (mail resolution, tests)
-- are exempt from the natural key
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_source_line
  ON conversations(source, line_hash)
  WHERE source IS NOT NULL AND line_hash IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_conversations_attempts ON conversations(analyzed, analysis_attempts);
CREATE INDEX IF NOT EXISTS idx_emails_attempts ON emails(processed, analysis_attempts);
`
