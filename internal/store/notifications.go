package store

import (
	"fmt"
	"time"
)

// InsertNotification appends one row to the notification audit trail
func (s *Store) InsertNotification(n *EmailNotification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO email_notifications (alert_id, subject, recipient, body, status, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.AlertID, n.Subject, n.Recipient, n.Body, n.Status, n.SentAt)

	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		n.ID = id
	}
	return nil
}

// GetNotificationsForAlert retrieves the audit trail for one alert, oldest first
func (s *Store) GetNotificationsForAlert(alertID string) ([]*EmailNotification, error) {
	rows, err := s.db.Query(`
		SELECT id, alert_id, COALESCE(subject, ''), COALESCE(recipient, ''),
		       COALESCE(body, ''), COALESCE(status, ''), sent_at
		FROM email_notifications
		WHERE alert_id = ?
		ORDER BY id
	`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*EmailNotification
	for rows.Next() {
		n := &EmailNotification{}
		err := rows.Scan(&n.ID, &n.AlertID, &n.Subject, &n.Recipient, &n.Body, &n.Status, &n.SentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
