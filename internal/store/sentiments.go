package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SentimentExists reports whether an analysis record exists for a content unit.
// This existence check is the pipeline's idempotency guard.
func (s *Store) SentimentExists(contentType string, contentID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sentiment_analyses WHERE content_type = ? AND content_id = ?",
		contentType, contentID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check sentiment existence: %w", err)
	}
	return count > 0, nil
}

// InsertSentiment inserts an analysis record if none exists for the content
// unit. Returns false if a record was already present (idempotent no-op).
func (s *Store) InsertSentiment(a *SentimentAnalysis) (bool, error) {
	phrases, err := json.Marshal(a.KeyPhrases)
	if err != nil {
		return false, fmt.Errorf("failed to marshal key phrases: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO sentiment_analyses
			(content_id, content_type, sentiment_score, sentiment_label, confidence, method, key_phrases)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_type, content_id) DO NOTHING
	`, a.ContentID, a.ContentType, a.Score, a.Label, a.Confidence, a.Method, string(phrases))

	if err != nil {
		return false, fmt.Errorf("failed to insert sentiment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err == nil {
		a.ID = id
	}
	return true, nil
}

// GetSentiment retrieves the analysis record for a content unit, or nil
func (s *Store) GetSentiment(contentType string, contentID int64) (*SentimentAnalysis, error) {
	row := s.db.QueryRow(`
		SELECT id, content_id, content_type, sentiment_score, sentiment_label,
		       confidence, method, COALESCE(key_phrases, '[]'), cluster_id, created_at
		FROM sentiment_analyses WHERE content_type = ? AND content_id = ?
	`, contentType, contentID)

	a, err := scanSentiment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sentiment: %w", err)
	}
	return a, nil
}

// GetSentimentsWithPhrases retrieves all analysis records whose key-phrase
// set is non-empty, in insertion order. The clustering engine builds its
// corpus from these.
func (s *Store) GetSentimentsWithPhrases() ([]*SentimentAnalysis, error) {
	rows, err := s.db.Query(`
		SELECT id, content_id, content_type, sentiment_score, sentiment_label,
		       confidence, method, COALESCE(key_phrases, '[]'), cluster_id, created_at
		FROM sentiment_analyses
		WHERE key_phrases IS NOT NULL AND key_phrases != '[]' AND key_phrases != 'null'
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiments: %w", err)
	}
	defer rows.Close()

	var analyses []*SentimentAnalysis
	for rows.Next() {
		a, err := scanSentiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sentiment: %w", err)
		}
		analyses = append(analyses, a)
	}

	return analyses, rows.Err()
}

// SetClusterID persists the cluster assignment for an analysis record
func (s *Store) SetClusterID(analysisID int64, clusterID int) error {
	_, err := s.db.Exec(
		"UPDATE sentiment_analyses SET cluster_id = ? WHERE id = ?",
		clusterID, analysisID,
	)
	if err != nil {
		return fmt.Errorf("failed to set cluster ID: %w", err)
	}
	return nil
}

// CountSentiments returns the total number of analysis records
func (s *Store) CountSentiments() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sentiment_analyses").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sentiments: %w", err)
	}
	return count, nil
}

// CountClusters returns the number of distinct cluster ids currently assigned
func (s *Store) CountClusters() (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(DISTINCT cluster_id) FROM sentiment_analyses WHERE cluster_id IS NOT NULL",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clusters: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSentiment(row rowScanner) (*SentimentAnalysis, error) {
	a := &SentimentAnalysis{}
	var phrasesJSON string
	var clusterID sql.NullInt64

	err := row.Scan(
		&a.ID, &a.ContentID, &a.ContentType, &a.Score, &a.Label,
		&a.Confidence, &a.Method, &phrasesJSON, &clusterID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if clusterID.Valid {
		id := clusterID.Int64
		a.ClusterID = &id
	}
	if err := json.Unmarshal([]byte(phrasesJSON), &a.KeyPhrases); err != nil {
		// Tolerate legacy or hand-edited rows; treat as no phrases
		a.KeyPhrases = nil
	}

	return a, nil
}
