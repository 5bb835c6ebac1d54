package store

import (
	"database/sql"
	"fmt"
)

// EmailExists reports whether a message id has already been ingested
func (s *Store) EmailExists(messageID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM emails WHERE message_id = ?", messageID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// InsertEmail inserts an email if its message id is not already recorded.
// Returns the row id, or 0 if the message was a duplicate.
func (s *Store) InsertEmail(e *Email) (int64, error) {
	var clientID interface{}
	if e.ClientID != nil {
		clientID = *e.ClientID
	}

	result, err := s.db.Exec(`
		INSERT INTO emails (message_id, account, client_id, subject, body, sender, recipient, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING
	`, e.MessageID, e.Account, clientID, e.Subject, e.Body, e.Sender, e.Recipient, e.ReceivedAt)

	if err != nil {
		return 0, fmt.Errorf("failed to insert email: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return 0, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get email ID: %w", err)
	}
	e.ID = id
	return id, nil
}

// GetUnprocessedEmails retrieves emails awaiting sentiment analysis,
// bounded to limit rows to cap per-cycle latency. Repeat failures sort
// last and are dropped once they reach the attempt cap.
func (s *Store) GetUnprocessedEmails(limit int) ([]*Email, error) {
	rows, err := s.db.Query(`
		SELECT id, message_id, account, client_id, COALESCE(subject, ''),
		       COALESCE(body, ''), COALESCE(sender, ''), COALESCE(recipient, ''),
		       received_at, processed, analysis_attempts
		FROM emails
		WHERE processed = 0 AND analysis_attempts < ?
		ORDER BY analysis_attempts, id
		LIMIT ?
	`, MaxAnalysisAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed emails: %w", err)
	}
	defer rows.Close()

	var emails []*Email
	for rows.Next() {
		e := &Email{}
		var clientID sql.NullInt64
		var processed int
		err := rows.Scan(
			&e.ID, &e.MessageID, &e.Account, &clientID, &e.Subject,
			&e.Body, &e.Sender, &e.Recipient, &e.ReceivedAt, &processed,
			&e.AnalysisAttempts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		if clientID.Valid {
			id := clientID.Int64
			e.ClientID = &id
		}
		e.Processed = processed == 1
		emails = append(emails, e)
	}

	return emails, rows.Err()
}

// MarkEmailProcessed sets the processed flag on an email
func (s *Store) MarkEmailProcessed(id int64) error {
	_, err := s.db.Exec("UPDATE emails SET processed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark email processed: %w", err)
	}
	return nil
}

// MarkEmailAttempt records one failed classification attempt
func (s *Store) MarkEmailAttempt(id int64) error {
	_, err := s.db.Exec(
		"UPDATE emails SET analysis_attempts = analysis_attempts + 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to record email attempt: %w", err)
	}
	return nil
}

// CountEmails returns the total number of ingested emails
func (s *Store) CountEmails() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM emails").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return count, nil
}
