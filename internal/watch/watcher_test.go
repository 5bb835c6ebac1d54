package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func newTestWatcher(t *testing.T, debounce time.Duration) (*Watcher, *recorder, string) {
	t.Helper()
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(&Config{Debounce: debounce, Handler: rec.handle})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := w.Watch(dir); err != nil {
		t.Fatalf("failed to watch dir: %v", err)
	}
	w.Start()
	return w, rec, dir
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcherDispatchesSupportedFile(t *testing.T) {
	_, rec, dir := newTestWatcher(t, 50*time.Millisecond)

	path := filepath.Join(dir, "metrics.csv")
	if err := os.WriteFile(path, []byte("client,date\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 }) {
		t.Fatalf("expected 1 dispatch, got %d", rec.count())
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	_, rec, dir := newTestWatcher(t, 100*time.Millisecond)

	path := filepath.Join(dir, "metrics.csv")
	// Rapid repeated writes to the same path must coalesce into one dispatch
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("client,date\nrow\n"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 }) {
		t.Fatal("expected at least one dispatch")
	}

	// Allow any stray timers to fire, then verify coalescing
	time.Sleep(300 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("expected 1 coalesced dispatch, got %d", rec.count())
	}
}

func TestWatcherIgnoresUnsupportedAndHidden(t *testing.T) {
	_, rec, dir := newTestWatcher(t, 50*time.Millisecond)

	for _, name := range []string{"archive.zip", ".hidden.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	time.Sleep(300 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("expected no dispatches, got %d", rec.count())
	}
}

func TestWatcherPicksUpNewSubdirectory(t *testing.T) {
	_, rec, dir := newTestWatcher(t, 50*time.Millisecond)

	sub := filepath.Join(dir, "exports")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	// Give the watcher a moment to add the new directory
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "retention.csv")
	if err := os.WriteFile(path, []byte("client,date\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 }) {
		t.Fatalf("expected dispatch from new subdirectory, got %d", rec.count())
	}
}
