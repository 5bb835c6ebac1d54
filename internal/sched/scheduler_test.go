package sched

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fhagen/clientpulse/internal/ingest"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/track"
)

func newTestScheduler(t *testing.T, watchDirs []string) (*Scheduler, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sched, err := New(&Config{
		Importer:  ingest.New(&ingest.Config{Store: s}),
		Tracker:   track.New(s),
		WatchDirs: watchDirs,
	})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	return sched, s
}

func TestDispatchSkipsBusyJob(t *testing.T) {
	sched, _ := newTestScheduler(t, nil)
	defer sched.Stop()

	var runs atomic.Int32
	release := make(chan struct{})
	j := &job{name: "slow", run: func(ctx context.Context) {
		runs.Add(1)
		<-release
	}}

	sched.dispatch(j)
	// Second dispatch while the first is still running must be a no-op
	sched.dispatch(j)
	close(release)
	sched.wg.Wait()

	if got := runs.Load(); got != 1 {
		t.Errorf("expected 1 run, got %d", got)
	}

	// Once idle the job is dispatchable again
	sched.dispatch(j)
	sched.wg.Wait()
	if got := runs.Load(); got != 2 {
		t.Errorf("expected 2 runs after job went idle, got %d", got)
	}
}

func TestHandleFileImportsOnce(t *testing.T) {
	sched, s := newTestScheduler(t, nil)
	defer sched.Stop()

	path := filepath.Join(t.TempDir(), "metrics-export.csv")
	content := "client,date,escalations,support_score,backlog,delivered,response_days\nAcme,2026-08-01,2,88,3,12,1.0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	sched.HandleFile(path)
	sched.HandleFile(path) // unchanged content: ledger short-circuits

	client, err := s.GetClientByName("Acme")
	if err != nil || client == nil {
		t.Fatalf("expected client imported, got %v, %v", client, err)
	}
	m, err := s.GetLatestMetrics(client.ID)
	if err != nil || m == nil {
		t.Fatalf("expected metrics imported, got %v, %v", m, err)
	}

	rec, err := s.GetProcessedFile(path)
	if err != nil || rec == nil {
		t.Fatalf("expected ledger row, got %v, %v", rec, err)
	}
	if rec.Status != store.FileStatusCompleted {
		t.Errorf("expected completed ledger status, got %s", rec.Status)
	}
	if rec.RecordsProcessed != 1 {
		t.Errorf("expected 1 record processed, got %d", rec.RecordsProcessed)
	}
}

func TestHandleFileMarksErrors(t *testing.T) {
	sched, s := newTestScheduler(t, nil)
	defer sched.Stop()

	// csv without the metrics naming convention is unclassifiable
	path := filepath.Join(t.TempDir(), "payload.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	sched.HandleFile(path)

	rec, err := s.GetProcessedFile(path)
	if err != nil || rec == nil {
		t.Fatalf("expected ledger row, got %v, %v", rec, err)
	}
	if rec.Status != store.FileStatusError {
		t.Errorf("expected error ledger status, got %s", rec.Status)
	}
	if rec.ErrorMessage == "" {
		t.Error("expected error message recorded")
	}
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	sched, _ := newTestScheduler(t, []string{dir})

	if err := sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not complete")
	}
}
