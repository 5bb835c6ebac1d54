// Package track implements the content-hash change ledger that keeps the
// pipeline from reprocessing unchanged files.
package track

import (
	"fmt"

	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

// Tracker decides whether a file's content has changed since it was last
// processed. The ledger is hash-keyed: mtime churn with identical bytes is
// not a change.
type Tracker struct {
	store *store.Store
}

// New creates a new Tracker backed by the given store
func New(s *store.Store) *Tracker {
	return &Tracker{store: s}
}

// HasChanged computes the content hash of the file at path and compares it
// against the last recorded hash. If the hash differs or no ledger row
// exists, the ledger is updated (status processing) and true is returned.
//
// A crash between the compare and the caller completing its import leaves
// the row in processing, so the next cycle reprocesses: at-least-once, not
// exactly-once.
func (t *Tracker) HasChanged(path, fileKind string) (bool, error) {
	hash, err := util.HashFileContent(path)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	existing, err := t.store.GetProcessedFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read ledger for %s: %w", path, err)
	}

	if existing != nil && existing.ContentHash == hash && existing.Status == store.FileStatusCompleted {
		util.DebugLog("Tracker: %s unchanged (hash %.12s)", path, hash)
		return false, nil
	}

	if err := t.store.RecordProcessing(path, hash, fileKind); err != nil {
		return false, fmt.Errorf("failed to update ledger for %s: %w", path, err)
	}

	util.DebugLog("Tracker: %s changed (hash %.12s)", path, hash)
	return true, nil
}

// MarkCompleted finalizes the ledger row for a successfully imported file
func (t *Tracker) MarkCompleted(path string, recordsProcessed int) error {
	return t.store.MarkFileCompleted(path, recordsProcessed)
}

// MarkError finalizes the ledger row for a failed import
func (t *Tracker) MarkError(path string, err error) error {
	return t.store.MarkFileError(path, err.Error())
}
