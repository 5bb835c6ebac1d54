// Package sched owns the pipeline's recurring work: interval timers,
// per-job in-flight guards and startup/shutdown sequencing. Overlapping
// invocations of a job are skipped, never queued, so each table keeps a
// single logical writer.
package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fhagen/clientpulse/internal/cluster"
	"github.com/fhagen/clientpulse/internal/ingest"
	"github.com/fhagen/clientpulse/internal/mail"
	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/sentiment"
	"github.com/fhagen/clientpulse/internal/track"
	"github.com/fhagen/clientpulse/internal/trigger"
	"github.com/fhagen/clientpulse/internal/util"
	"github.com/fhagen/clientpulse/internal/watch"
)

// Default job intervals
const (
	DefaultMailInterval     = 5 * time.Minute
	DefaultClusterInterval  = 30 * time.Minute
	DefaultTriggerInterval  = time.Minute
	DefaultAnalysisInterval = time.Minute

	// MinTriggerInterval is the cooldown floor between threshold scans
	MinTriggerInterval = time.Minute
)

// Intervals configures job periods; zero values take the defaults
type Intervals struct {
	Mail     time.Duration
	Cluster  time.Duration
	Trigger  time.Duration
	Analysis time.Duration
}

// Config holds scheduler configuration. Fetcher and Trigger may be nil when
// their credentials are not configured; the corresponding jobs degrade to
// no-ops with a warning at startup.
type Config struct {
	Importer  *ingest.Importer
	Tracker   *track.Tracker
	Fetcher   *mail.Fetcher
	Pipeline  *sentiment.Pipeline
	Clusterer *cluster.Engine
	Trigger   *trigger.Engine
	Logger    *report.EventLogger
	WatchDirs []string
	Debounce  time.Duration // watcher debounce; zero means watch.DefaultDebounce
	Intervals Intervals
}

// job is one recurring unit of work with its skip-if-busy guard
type job struct {
	name     string
	interval time.Duration
	busy     atomic.Bool
	run      func(ctx context.Context)
}

// Scheduler composes the pipeline stages and drives them on tickers
type Scheduler struct {
	cfg     *Config
	watcher *watch.Watcher
	jobs    []*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. Call Start to begin and Stop to shut down.
func New(cfg *Config) (*Scheduler, error) {
	if cfg.Importer == nil || cfg.Tracker == nil {
		return nil, fmt.Errorf("%w: scheduler requires importer and tracker", util.ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cfg: cfg, ctx: ctx, cancel: cancel}

	iv := cfg.Intervals
	if iv.Mail <= 0 {
		iv.Mail = DefaultMailInterval
	}
	if iv.Cluster <= 0 {
		iv.Cluster = DefaultClusterInterval
	}
	if iv.Analysis <= 0 {
		iv.Analysis = DefaultAnalysisInterval
	}
	if iv.Trigger < MinTriggerInterval {
		iv.Trigger = MinTriggerInterval
	}

	s.jobs = []*job{
		{name: "mail", interval: iv.Mail, run: s.runMail},
		{name: "analysis", interval: iv.Analysis, run: s.runAnalysis},
		{name: "cluster", interval: iv.Cluster, run: s.runCluster},
		{name: "trigger", interval: iv.Trigger, run: s.runTrigger},
	}

	if len(cfg.WatchDirs) > 0 {
		watcher, err := watch.New(&watch.Config{Debounce: cfg.Debounce, Handler: s.HandleFile})
		if err != nil {
			cancel()
			return nil, err
		}
		s.watcher = watcher
	}

	return s, nil
}

// Start watches the configured directories, runs an immediate mail fetch and
// starts all job tickers
func (s *Scheduler) Start() error {
	if s.watcher != nil {
		for _, dir := range s.cfg.WatchDirs {
			if err := s.watcher.Watch(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
		s.watcher.Start()
	}

	// Catch up on mail before the first tick
	for _, j := range s.jobs {
		if j.name == "mail" {
			s.dispatch(j)
		}
	}

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.tick(j)
	}

	util.InfoLog("Scheduler: started (%d jobs, %d watched dirs)", len(s.jobs), len(s.cfg.WatchDirs))
	return nil
}

func (s *Scheduler) tick(j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(j)
		}
	}
}

// dispatch runs a job in its own goroutine unless a previous invocation is
// still in flight, in which case this tick is skipped
func (s *Scheduler) dispatch(j *job) {
	if !j.busy.CompareAndSwap(false, true) {
		util.DebugLog("Scheduler: %s still running, skipping tick", j.name)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.busy.Store(false)

		// Coarse cancellation: shutdown stops the tickers and waits, it
		// does not abort a job mid-request
		start := time.Now()
		j.run(context.Background())
		util.DebugLog("Scheduler: %s finished in %v", j.name, time.Since(start))
	}()
}

// HandleFile is the debounced file-event entry point shared by the watcher
// and one-shot scans: consult the change ledger, import, and hand changed
// metric exports to the trigger engine
func (s *Scheduler) HandleFile(path string) {
	changed, err := s.cfg.Tracker.HasChanged(path, ingest.ClassifyPath(path))
	if err != nil {
		util.ErrorLog("Scheduler: %v", err)
		return
	}
	if !changed {
		return
	}

	n, err := s.cfg.Importer.Import(path)
	if err != nil {
		util.ErrorLog("Scheduler: import of %s failed: %v", path, err)
		if markErr := s.cfg.Tracker.MarkError(path, err); markErr != nil {
			util.ErrorLog("Scheduler: %v", markErr)
		}
		s.cfg.Logger.Log(&report.Event{
			Level: report.LevelError,
			Event: report.EventError,
			Path:  path,
			Error: err.Error(),
		})
		return
	}

	if err := s.cfg.Tracker.MarkCompleted(path, n); err != nil {
		util.ErrorLog("Scheduler: %v", err)
	}

	if s.cfg.Trigger != nil && ingest.ClassifyPath(path) == ingest.KindMetrics {
		if _, err := s.cfg.Trigger.ProcessMetricsFile(context.Background(), path); err != nil {
			util.ErrorLog("Scheduler: trigger analysis of %s failed: %v", path, err)
		}
	}
}

func (s *Scheduler) runMail(ctx context.Context) {
	if s.cfg.Fetcher == nil {
		return
	}
	s.cfg.Fetcher.FetchAll()
}

func (s *Scheduler) runAnalysis(ctx context.Context) {
	if s.cfg.Pipeline == nil {
		return
	}
	if _, err := s.cfg.Pipeline.ProcessPendingConversations(ctx); err != nil {
		util.ErrorLog("Scheduler: conversation analysis failed: %v", err)
	}
	if _, err := s.cfg.Pipeline.ProcessPendingEmails(ctx); err != nil {
		util.ErrorLog("Scheduler: email analysis failed: %v", err)
	}
}

func (s *Scheduler) runCluster(ctx context.Context) {
	if s.cfg.Clusterer == nil {
		return
	}
	if _, err := s.cfg.Clusterer.Run(ctx); err != nil {
		util.ErrorLog("Scheduler: clustering failed: %v", err)
	}
}

func (s *Scheduler) runTrigger(ctx context.Context) {
	if s.cfg.Trigger == nil {
		return
	}
	if _, err := s.cfg.Trigger.ScanMetrics(ctx); err != nil {
		util.ErrorLog("Scheduler: threshold scan failed: %v", err)
	}
}

// Stop cancels the tickers, closes the watcher and waits for in-flight jobs.
// In-flight AI calls are awaited, not aborted mid-request.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			util.WarnLog("Scheduler: watcher close: %v", err)
		}
	}
	s.wg.Wait()
	util.InfoLog("Scheduler: stopped")
}
