package store

import (
	"database/sql"
	"fmt"
)

// InsertConversation inserts a conversation turn. Turns carrying a
// (source, line_hash) natural key are insert-if-absent: re-importing a
// transcript returns 0 for lines already present instead of duplicating
// them. Turns without a source always insert.
func (s *Store) InsertConversation(c *Conversation) (int64, error) {
	var clientID interface{}
	if c.ClientID != nil {
		clientID = *c.ClientID
	}

	var source, lineHash interface{}
	if c.Source != "" && c.LineHash != "" {
		source = c.Source
		lineHash = c.LineHash
	}

	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO conversations (client_id, body, source, line_hash, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, clientID, c.Body, source, lineHash, c.OccurredAt)

	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check conversation insert: %w", err)
	}
	if affected == 0 {
		return 0, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get conversation ID: %w", err)
	}
	c.ID = id
	return id, nil
}

// GetUnanalyzedConversations retrieves conversations awaiting sentiment
// analysis, bounded to limit rows. Items with fewer failed attempts come
// first so repeat failures cannot starve the batch window; items at the
// attempt cap are excluded entirely.
func (s *Store) GetUnanalyzedConversations(limit int) ([]*Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, client_id, body, COALESCE(source, ''), COALESCE(line_hash, ''),
		       occurred_at, analyzed, analysis_attempts
		FROM conversations
		WHERE analyzed = 0 AND analysis_attempts < ?
		ORDER BY analysis_attempts, id
		LIMIT ?
	`, MaxAnalysisAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		c := &Conversation{}
		var clientID sql.NullInt64
		var analyzed int
		err := rows.Scan(&c.ID, &clientID, &c.Body, &c.Source, &c.LineHash,
			&c.OccurredAt, &analyzed, &c.AnalysisAttempts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if clientID.Valid {
			id := clientID.Int64
			c.ClientID = &id
		}
		c.Analyzed = analyzed == 1
		conversations = append(conversations, c)
	}

	return conversations, rows.Err()
}

// MarkConversationAnalyzed sets the analyzed flag on a conversation
func (s *Store) MarkConversationAnalyzed(id int64) error {
	_, err := s.db.Exec("UPDATE conversations SET analyzed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark conversation analyzed: %w", err)
	}
	return nil
}

// MarkConversationAttempt records one failed classification attempt
func (s *Store) MarkConversationAttempt(id int64) error {
	_, err := s.db.Exec(
		"UPDATE conversations SET analysis_attempts = analysis_attempts + 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to record conversation attempt: %w", err)
	}
	return nil
}

// CountConversations returns the total number of conversation turns
func (s *Store) CountConversations() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}
