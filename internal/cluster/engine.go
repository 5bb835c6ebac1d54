// Package cluster groups analyzed content into thematic clusters using
// TF-IDF weight vectors over each item's key phrases.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

const (
	// minDocuments is the smallest corpus worth clustering; cycles with
	// fewer usable documents are skipped, not failed
	minDocuments = 3

	// maxClusters caps k; small corpora get k = document count
	maxClusters = 3
)

// Engine periodically reclusters all analysis records with key phrases.
// Clustering is stateless: each run recomputes from scratch.
type Engine struct {
	store  *store.Store
	logger *report.EventLogger
}

// Config holds engine configuration
type Config struct {
	Store  *store.Store
	Logger *report.EventLogger
}

// New creates a new clustering Engine
func New(cfg *Config) *Engine {
	return &Engine{store: cfg.Store, logger: cfg.Logger}
}

// Result represents one clustering cycle's outcome
type Result struct {
	Documents int
	Clusters  int
	Skipped   bool
}

// Run performs one clustering cycle
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	analyses, err := e.store.GetSentimentsWithPhrases()
	if err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}

	// Filter again defensively: records can carry an empty decoded set even
	// when the stored JSON was non-empty. The side table maps each corpus
	// position back to its originating record id; positions do NOT line up
	// with the unfiltered record list once anything is excluded.
	var phraseSets [][]string
	var docToRecordID []int64
	for _, a := range analyses {
		if len(a.KeyPhrases) == 0 {
			continue
		}
		phraseSets = append(phraseSets, a.KeyPhrases)
		docToRecordID = append(docToRecordID, a.ID)
	}

	if len(phraseSets) < minDocuments {
		util.InfoLog("Clustering: only %d usable document(s), skipping cycle", len(phraseSets))
		e.logger.Log(&report.Event{
			Level: report.LevelInfo,
			Event: report.EventSkip,
			Count: len(phraseSets),
			Extra: map[string]string{"reason": "under-data"},
		})
		return &Result{Documents: len(phraseSets), Skipped: true}, nil
	}

	c := buildCorpus(phraseSets)
	vectors := c.vectors()

	k := maxClusters
	if len(vectors) < k {
		k = len(vectors)
	}

	assignments := kmeans(vectors, k)
	if len(assignments) != len(docToRecordID) {
		return nil, fmt.Errorf("assignment count %d does not match document count %d",
			len(assignments), len(docToRecordID))
	}

	for i, clusterID := range assignments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := e.store.SetClusterID(docToRecordID[i], clusterID); err != nil {
			return nil, fmt.Errorf("failed to persist cluster for record %d: %w", docToRecordID[i], err)
		}
	}

	util.InfoLog("Clustering: grouped %d document(s) into %d cluster(s) in %v",
		len(vectors), k, time.Since(start).Round(time.Millisecond))
	e.logger.Log(&report.Event{
		Level:    report.LevelInfo,
		Event:    report.EventCluster,
		Count:    len(vectors),
		Duration: time.Since(start).Milliseconds(),
		Extra:    map[string]string{"clusters": fmt.Sprintf("%d", k)},
	})

	return &Result{Documents: len(vectors), Clusters: k}, nil
}
