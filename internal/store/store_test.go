package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreOpenAndMigrate(t *testing.T) {
	s := openTestStore(t)

	version, err := s.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	tables := []string{
		"processed_files", "clients", "client_metrics", "conversations",
		"emails", "sentiment_analyses", "alerts", "email_notifications",
		"schema_version",
	}
	for _, table := range tables {
		var count int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestProcessedFileLedger(t *testing.T) {
	s := openTestStore(t)

	f, err := s.GetProcessedFile("/data/retention.csv")
	if err != nil {
		t.Fatalf("failed to get processed file: %v", err)
	}
	if f != nil {
		t.Fatal("expected nil for unknown path")
	}

	if err := s.RecordProcessing("/data/retention.csv", "abc123", "metrics"); err != nil {
		t.Fatalf("failed to record processing: %v", err)
	}

	f, err = s.GetProcessedFile("/data/retention.csv")
	if err != nil {
		t.Fatalf("failed to get processed file: %v", err)
	}
	if f == nil {
		t.Fatal("expected ledger row")
	}
	if f.ContentHash != "abc123" {
		t.Errorf("expected hash abc123, got %s", f.ContentHash)
	}
	if f.Status != FileStatusProcessing {
		t.Errorf("expected status processing, got %s", f.Status)
	}

	if err := s.MarkFileCompleted("/data/retention.csv", 42); err != nil {
		t.Fatalf("failed to mark completed: %v", err)
	}
	f, _ = s.GetProcessedFile("/data/retention.csv")
	if f.Status != FileStatusCompleted || f.RecordsProcessed != 42 {
		t.Errorf("unexpected row after completion: %+v", f)
	}

	// Re-recording with a new hash resets to processing
	if err := s.RecordProcessing("/data/retention.csv", "def456", "metrics"); err != nil {
		t.Fatalf("failed to re-record: %v", err)
	}
	f, _ = s.GetProcessedFile("/data/retention.csv")
	if f.ContentHash != "def456" || f.Status != FileStatusProcessing {
		t.Errorf("unexpected row after re-record: %+v", f)
	}

	if err := s.MarkFileError("/data/retention.csv", "parse failed"); err != nil {
		t.Fatalf("failed to mark error: %v", err)
	}
	f, _ = s.GetProcessedFile("/data/retention.csv")
	if f.Status != FileStatusError || f.ErrorMessage != "parse failed" {
		t.Errorf("unexpected row after error: %+v", f)
	}
}

func TestEmailDedupByMessageID(t *testing.T) {
	s := openTestStore(t)

	e := &Email{
		MessageID:  "abc123",
		Account:    "support@example.com",
		Subject:    "Renewal question",
		Body:       "We are thinking about our options.",
		Sender:     "jane@acme.com",
		Recipient:  "support@example.com",
		ReceivedAt: time.Now(),
	}

	id, err := s.InsertEmail(e)
	if err != nil {
		t.Fatalf("failed to insert email: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id for first insert")
	}

	// Re-fetch of the same message id must not create a second row
	dup := &Email{MessageID: "abc123", Account: "support@example.com", ReceivedAt: time.Now()}
	dupID, err := s.InsertEmail(dup)
	if err != nil {
		t.Fatalf("failed to insert duplicate email: %v", err)
	}
	if dupID != 0 {
		t.Errorf("expected duplicate insert to be a no-op, got id %d", dupID)
	}

	count, err := s.CountEmails()
	if err != nil {
		t.Fatalf("failed to count emails: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one email record, got %d", count)
	}
}

func TestSentimentIdempotentInsert(t *testing.T) {
	s := openTestStore(t)

	a := &SentimentAnalysis{
		ContentID:   7,
		ContentType: ContentTypeEmail,
		Score:       0.82,
		Label:       LabelPositive,
		Confidence:  0.9,
		Method:      MethodLocal,
		KeyPhrases:  []string{"renewal", "pricing"},
	}

	inserted, err := s.InsertSentiment(a)
	if err != nil {
		t.Fatalf("failed to insert sentiment: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to succeed")
	}

	inserted, err = s.InsertSentiment(a)
	if err != nil {
		t.Fatalf("failed on second insert: %v", err)
	}
	if inserted {
		t.Error("expected second insert to be a no-op")
	}

	count, _ := s.CountSentiments()
	if count != 1 {
		t.Errorf("expected exactly one analysis record, got %d", count)
	}

	got, err := s.GetSentiment(ContentTypeEmail, 7)
	if err != nil {
		t.Fatalf("failed to get sentiment: %v", err)
	}
	if got.Score != 0.82 || got.Label != LabelPositive {
		t.Errorf("unexpected stored result: %+v", got)
	}
	if len(got.KeyPhrases) != 2 || got.KeyPhrases[0] != "renewal" {
		t.Errorf("unexpected key phrases: %v", got.KeyPhrases)
	}
}

func TestClientsWithLatestMetrics(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertClient(&Client{Name: "Acme", ContactName: "Jane", ContactEmail: "jane@acme.com"})
	if err != nil {
		t.Fatalf("failed to insert client: %v", err)
	}

	for _, m := range []*ClientMetrics{
		{ClientID: id, MetricDate: "2026-08-01", Escalations: 1, SupportScore: 90},
		{ClientID: id, MetricDate: "2026-08-15", Escalations: 5, SupportScore: 60},
	} {
		if err := s.UpsertClientMetrics(m); err != nil {
			t.Fatalf("failed to upsert metrics: %v", err)
		}
	}

	// Client without metrics should be excluded from the join
	if _, err := s.InsertClient(&Client{Name: "NoData"}); err != nil {
		t.Fatalf("failed to insert second client: %v", err)
	}

	results, err := s.GetClientsWithLatestMetrics()
	if err != nil {
		t.Fatalf("failed to get clients with metrics: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Metrics.MetricDate != "2026-08-15" {
		t.Errorf("expected latest snapshot, got %s", results[0].Metrics.MetricDate)
	}
	if results[0].Metrics.Escalations != 5 {
		t.Errorf("expected escalations 5, got %d", results[0].Metrics.Escalations)
	}
}

func TestUpsertClientMetricsReplacesSameDate(t *testing.T) {
	s := openTestStore(t)

	id, _ := s.InsertClient(&Client{Name: "Acme"})
	if err := s.UpsertClientMetrics(&ClientMetrics{ClientID: id, MetricDate: "2026-08-20", Backlog: 10}); err != nil {
		t.Fatalf("failed first upsert: %v", err)
	}
	if err := s.UpsertClientMetrics(&ClientMetrics{ClientID: id, MetricDate: "2026-08-20", Backlog: 20}); err != nil {
		t.Fatalf("failed second upsert: %v", err)
	}

	m, err := s.GetLatestMetrics(id)
	if err != nil {
		t.Fatalf("failed to get metrics: %v", err)
	}
	if m.Backlog != 20 {
		t.Errorf("expected upsert to replace backlog, got %d", m.Backlog)
	}
}
