// Package watch observes configured directories for interaction data and
// metric exports, coalescing rapid event bursts before dispatching imports.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fhagen/clientpulse/internal/ingest"
	"github.com/fhagen/clientpulse/internal/util"
)

// DefaultDebounce is how long a path must stay quiet before it is dispatched.
// Editors and exporters often write a file several times in quick succession;
// dispatching on the last write avoids importing half-written content.
const DefaultDebounce = 2 * time.Second

// Handler receives debounced change notifications
type Handler func(path string)

// Watcher observes directory trees and emits debounced per-path events
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	handler  Handler

	mu     sync.Mutex
	timers map[string]*time.Timer
	done   chan struct{}
	wg     sync.WaitGroup
}

// Config holds watcher configuration
type Config struct {
	Debounce time.Duration // zero means DefaultDebounce
	Handler  Handler
}

// New creates a Watcher. Call Watch to add directory trees, then Start.
func New(cfg *Config) (*Watcher, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%w: watcher requires a handler", util.ErrInvalidConfig)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		handler:  cfg.Handler,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Watch adds a directory and all of its subdirectories to the watch set
func (w *Watcher) Watch(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		util.DebugLog("Watcher: watching %s", path)
		return nil
	})
}

// Start begins processing events in a background goroutine
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
	util.InfoLog("Watcher: started (debounce %v)", w.debounce)
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Errors never stop the watcher; log and keep observing
			util.ErrorLog("Watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	// New directories under a watched root join the watch set
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !strings.HasPrefix(filepath.Base(event.Name), ".") {
			if err := w.fsw.Add(event.Name); err != nil {
				util.WarnLog("Watcher: failed to watch new directory %s: %v", event.Name, err)
			}
		}
		return
	}

	if !ingest.IsSupported(event.Name) {
		return
	}

	w.schedule(event.Name)
}

// schedule resets the debounce timer for a path; the handler fires only
// after the path has been quiet for the debounce window
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		util.DebugLog("Watcher: dispatching %s", path)
		w.handler(path)
	})
}

// Close stops the watcher and waits for the event loop to exit. Pending
// debounce timers are cancelled.
func (w *Watcher) Close() error {
	close(w.done)

	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
