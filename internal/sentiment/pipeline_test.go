package sentiment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fhagen/clientpulse/internal/ai"
	"github.com/fhagen/clientpulse/internal/store"
)

type fakeRemote struct {
	result *ai.Classification
	err    error
	calls  int
}

func (f *fakeRemote) ClassifyText(ctx context.Context, text string) (*ai.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestPipeline(t *testing.T, local *LocalClassifier, remote RemoteClassifier) (*Pipeline, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return New(&Config{Store: s, Local: local, Remote: remote}), s
}

func TestClassifyLocalPath(t *testing.T) {
	remote := &fakeRemote{}
	p, _ := newTestPipeline(t, &LocalClassifier{}, remote)

	a, err := p.Classify(context.Background(), 1, store.ContentTypeConversation,
		"The migration went great, thanks for the excellent support.")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if a.Method != store.MethodLocal {
		t.Errorf("expected local method, got %s", a.Method)
	}
	if a.Label != store.LabelPositive {
		t.Errorf("expected positive label, got %s", a.Label)
	}
	if remote.calls != 0 {
		t.Errorf("remote should not be called when local succeeds, got %d calls", remote.calls)
	}
	if len(a.KeyPhrases) == 0 {
		t.Error("expected key phrases to be extracted")
	}
}

func TestClassifyFallsBackToRemote(t *testing.T) {
	remote := &fakeRemote{result: &ai.Classification{Score: 0.82, Label: "positive", Confidence: 0.95}}
	p, _ := newTestPipeline(t, &LocalClassifier{}, remote)

	// No lexicon evidence: local declines, remote takes over
	a, err := p.Classify(context.Background(), 2, store.ContentTypeEmail,
		"Quarterly business review scheduled for Thursday.")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if a.Method != store.MethodRemote {
		t.Errorf("expected remote method, got %s", a.Method)
	}
	if a.Score != 0.82 {
		t.Errorf("expected stored score 0.82, got %f", a.Score)
	}
	if a.Label != store.LabelPositive {
		t.Errorf("expected stored label positive, got %s", a.Label)
	}
	if remote.calls != 1 {
		t.Errorf("expected one remote call, got %d", remote.calls)
	}
}

func TestClassifyNoLocalClassifier(t *testing.T) {
	remote := &fakeRemote{result: &ai.Classification{Score: -0.4, Label: "negative", Confidence: 0.8}}
	p, _ := newTestPipeline(t, nil, remote)

	a, err := p.Classify(context.Background(), 3, store.ContentTypeEmail, "anything")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if a.Method != store.MethodRemote {
		t.Errorf("expected remote method, got %s", a.Method)
	}
}

func TestClassifyRemoteFailure(t *testing.T) {
	remote := &fakeRemote{err: errors.New("malformed response")}
	p, s := newTestPipeline(t, nil, remote)

	_, err := p.Classify(context.Background(), 4, store.ContentTypeEmail, "anything")
	if err == nil {
		t.Fatal("expected error when remote fails")
	}

	// Failed classification persists nothing; the item is retried next cycle
	count, _ := s.CountSentiments()
	if count != 0 {
		t.Errorf("expected no analysis record after failure, got %d", count)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	remote := &fakeRemote{result: &ai.Classification{Score: 0.5, Label: "positive", Confidence: 0.9}}
	p, s := newTestPipeline(t, nil, remote)

	for i := 0; i < 2; i++ {
		if _, err := p.Classify(context.Background(), 9, store.ContentTypeConversation, "anything"); err != nil {
			t.Fatalf("Classify call %d failed: %v", i+1, err)
		}
	}

	count, _ := s.CountSentiments()
	if count != 1 {
		t.Errorf("expected exactly one analysis record, got %d", count)
	}
	if remote.calls != 1 {
		t.Errorf("expected remote called once, got %d", remote.calls)
	}
}

func TestProcessPendingSkipsRepeatedFailures(t *testing.T) {
	// Local-only pipeline: items without lexicon evidence fail every cycle
	p, s := newTestPipeline(t, &LocalClassifier{}, nil)

	for i := 0; i < ConversationBatchSize; i++ {
		if _, err := s.InsertConversation(&store.Conversation{
			Body:       "Quarterly business review scheduled for Thursday.",
			OccurredAt: time.Now(),
		}); err != nil {
			t.Fatalf("failed to insert conversation: %v", err)
		}
	}
	id, err := s.InsertConversation(&store.Conversation{
		Body:       "The migration went great, thanks for the excellent support.",
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to insert conversation: %v", err)
	}

	// First cycle fills the batch with failing items; by the second,
	// they have moved behind the fresh item and it gets classified
	for i := 0; i < 2; i++ {
		if _, err := p.ProcessPendingConversations(context.Background()); err != nil {
			t.Fatalf("cycle %d failed: %v", i+1, err)
		}
	}

	a, err := s.GetSentiment(store.ContentTypeConversation, id)
	if err != nil {
		t.Fatalf("failed to load analysis: %v", err)
	}
	if a == nil {
		t.Fatal("classifiable conversation was never analyzed behind failing backlog")
	}
	if a.Label != store.LabelPositive {
		t.Errorf("expected positive label, got %s", a.Label)
	}

	// Failing items hit the attempt cap and leave the queue entirely
	for i := 0; i < store.MaxAnalysisAttempts; i++ {
		if _, err := p.ProcessPendingConversations(context.Background()); err != nil {
			t.Fatalf("drain cycle %d failed: %v", i+1, err)
		}
	}
	pending, err := s.GetUnanalyzedConversations(ConversationBatchSize)
	if err != nil {
		t.Fatalf("failed to load pending conversations: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected exhausted items to drop out of the queue, %d still pending", len(pending))
	}
}

func TestProcessPendingBatches(t *testing.T) {
	remote := &fakeRemote{result: &ai.Classification{Score: 0.1, Label: "neutral", Confidence: 0.6}}
	p, s := newTestPipeline(t, &LocalClassifier{}, remote)

	for i := 0; i < 3; i++ {
		if _, err := s.InsertConversation(&store.Conversation{
			Body:       "We are very happy with the excellent rollout.",
			OccurredAt: time.Now(),
		}); err != nil {
			t.Fatalf("failed to insert conversation: %v", err)
		}
	}
	if _, err := s.InsertEmail(&store.Email{
		MessageID:  "m-1",
		Account:    "support@example.com",
		Subject:    "Feedback",
		Body:       "The delays are frustrating and unacceptable.",
		ReceivedAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to insert email: %v", err)
	}

	n, err := p.ProcessPendingConversations(context.Background())
	if err != nil {
		t.Fatalf("ProcessPendingConversations failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 conversations processed, got %d", n)
	}

	n, err = p.ProcessPendingEmails(context.Background())
	if err != nil {
		t.Fatalf("ProcessPendingEmails failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 email processed, got %d", n)
	}

	// Second pass finds nothing pending
	n, _ = p.ProcessPendingConversations(context.Background())
	if n != 0 {
		t.Errorf("expected no pending conversations on second pass, got %d", n)
	}

	count, _ := s.CountSentiments()
	if count != 4 {
		t.Errorf("expected 4 analysis records, got %d", count)
	}
}
