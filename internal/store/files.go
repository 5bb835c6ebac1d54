package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetProcessedFile retrieves the ledger row for a path, or nil if absent
func (s *Store) GetProcessedFile(path string) (*ProcessedFile, error) {
	f := &ProcessedFile{}
	err := s.db.QueryRow(`
		SELECT id, path, content_hash, COALESCE(file_kind, ''), status,
		       records_processed, COALESCE(error_message, ''), processed_at
		FROM processed_files WHERE path = ?
	`, path).Scan(
		&f.ID, &f.Path, &f.ContentHash, &f.FileKind, &f.Status,
		&f.RecordsProcessed, &f.ErrorMessage, &f.ProcessedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processed file: %w", err)
	}

	return f, nil
}

// RecordProcessing upserts the ledger row for a path with a new content hash
// and marks it processing. Called before import so a crash mid-import leaves
// the row in a state that the next cycle reprocesses.
func (s *Store) RecordProcessing(path, contentHash, fileKind string) error {
	_, err := s.db.Exec(`
		INSERT INTO processed_files (path, content_hash, file_kind, status, processed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			file_kind = excluded.file_kind,
			status = excluded.status,
			error_message = NULL,
			processed_at = excluded.processed_at
	`, path, contentHash, fileKind, FileStatusProcessing, time.Now())

	if err != nil {
		return fmt.Errorf("failed to record processing: %w", err)
	}

	return nil
}

// MarkFileCompleted finalizes a ledger row after a successful import
func (s *Store) MarkFileCompleted(path string, recordsProcessed int) error {
	_, err := s.db.Exec(`
		UPDATE processed_files
		SET status = ?, records_processed = ?, error_message = NULL, processed_at = ?
		WHERE path = ?
	`, FileStatusCompleted, recordsProcessed, time.Now(), path)

	if err != nil {
		return fmt.Errorf("failed to mark file completed: %w", err)
	}

	return nil
}

// MarkFileError finalizes a ledger row after a failed import
func (s *Store) MarkFileError(path string, errorMsg string) error {
	_, err := s.db.Exec(`
		UPDATE processed_files
		SET status = ?, error_message = ?, processed_at = ?
		WHERE path = ?
	`, FileStatusError, errorMsg, time.Now(), path)

	if err != nil {
		return fmt.Errorf("failed to mark file error: %w", err)
	}

	return nil
}

// CountProcessedFiles returns ledger row counts by status
func (s *Store) CountProcessedFiles() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*) FROM processed_files GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count processed files: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
