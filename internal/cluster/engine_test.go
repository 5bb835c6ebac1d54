package cluster

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fhagen/clientpulse/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(&Config{Store: s}), s
}

func insertAnalysis(t *testing.T, s *store.Store, contentID int64, phrases []string) int64 {
	t.Helper()
	a := &store.SentimentAnalysis{
		ContentID:   contentID,
		ContentType: store.ContentTypeConversation,
		Score:       0.1,
		Label:       store.LabelNeutral,
		Confidence:  0.5,
		Method:      store.MethodLocal,
		KeyPhrases:  phrases,
	}
	if _, err := s.InsertSentiment(a); err != nil {
		t.Fatalf("failed to insert analysis: %v", err)
	}
	return a.ID
}

func TestEngineSkipsUnderData(t *testing.T) {
	e, s := newTestEngine(t)

	insertAnalysis(t, s, 1, []string{"renewal", "pricing"})
	insertAnalysis(t, s, 2, []string{"outage"})

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Skipped {
		t.Error("expected cycle to be skipped with fewer than 3 documents")
	}
}

func TestEngineAssignsClusters(t *testing.T) {
	e, s := newTestEngine(t)

	ids := []int64{
		insertAnalysis(t, s, 1, []string{"renewal", "pricing", "contract"}),
		insertAnalysis(t, s, 2, []string{"renewal", "pricing"}),
		insertAnalysis(t, s, 3, []string{"outage", "incident", "downtime"}),
		insertAnalysis(t, s, 4, []string{"outage", "incident"}),
	}

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected cycle to run")
	}
	if result.Documents != 4 {
		t.Errorf("expected 4 documents, got %d", result.Documents)
	}

	analyses, err := s.GetSentimentsWithPhrases()
	if err != nil {
		t.Fatalf("failed to load analyses: %v", err)
	}
	byID := make(map[int64]*store.SentimentAnalysis)
	for _, a := range analyses {
		byID[a.ID] = a
	}
	for _, id := range ids {
		if byID[id].ClusterID == nil {
			t.Errorf("record %d has no cluster assignment", id)
		}
	}
}

func TestEngineNeverClustersEmptyPhraseRecords(t *testing.T) {
	e, s := newTestEngine(t)

	// One record with an empty phrase set, mixed in with usable ones
	emptyID := insertAnalysis(t, s, 1, nil)
	insertAnalysis(t, s, 2, []string{"renewal", "pricing"})
	insertAnalysis(t, s, 3, []string{"outage", "incident"})
	insertAnalysis(t, s, 4, []string{"invoice", "billing"})

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	a, err := s.GetSentiment(store.ContentTypeConversation, 1)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if a.ClusterID != nil {
		t.Errorf("record %d with empty phrase set must not get a cluster id", emptyID)
	}
}

func TestEngineRecomputesEachRun(t *testing.T) {
	e, s := newTestEngine(t)

	for i := int64(1); i <= 3; i++ {
		insertAnalysis(t, s, i, []string{"renewal", "pricing"})
	}

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result.Skipped || result.Documents != 3 {
		t.Errorf("unexpected second-run result: %+v", result)
	}
}
