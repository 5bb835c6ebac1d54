package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertAlert inserts a new alert
func (s *Store) InsertAlert(a *Alert) error {
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO alerts (id, client_id, trigger_type, description, severity, status,
		                    detected_at, analysis_payload, data_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ClientID, a.TriggerType, a.Description, a.Severity, a.Status,
		a.DetectedAt, a.AnalysisPayload, a.DataSnapshot)

	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id, or nil
func (s *Store) GetAlert(id string) (*Alert, error) {
	row := s.db.QueryRow(alertSelect+" WHERE id = ?", id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// FindPendingAlert retrieves a pending alert for (client, trigger type), or nil
func (s *Store) FindPendingAlert(clientID int64, triggerType string) (*Alert, error) {
	row := s.db.QueryRow(
		alertSelect+" WHERE client_id = ? AND trigger_type = ? AND status = ? LIMIT 1",
		clientID, triggerType, AlertPending,
	)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending alert: %w", err)
	}
	return a, nil
}

// FindAlertSince retrieves any alert for (client, trigger type) detected at or
// after the cutoff regardless of status, or nil. The trailing-window check
// keeps a just-resolved condition from immediately re-firing.
func (s *Store) FindAlertSince(clientID int64, triggerType string, cutoff time.Time) (*Alert, error) {
	row := s.db.QueryRow(
		alertSelect+" WHERE client_id = ? AND trigger_type = ? AND detected_at >= ? LIMIT 1",
		clientID, triggerType, cutoff,
	)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recent alert: %w", err)
	}
	return a, nil
}

// CountAlertsSince counts alerts raised for a client at or after the cutoff
func (s *Store) CountAlertsSince(clientID int64, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM alerts WHERE client_id = ? AND detected_at >= ?",
		clientID, cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent alerts: %w", err)
	}
	return count, nil
}

// UpdateAlertStatus updates an alert's status; resolvedAt is set only when
// transitioning to resolved
func (s *Store) UpdateAlertStatus(id string, status string, resolvedAt *time.Time) error {
	var resolved interface{}
	if resolvedAt != nil {
		resolved = *resolvedAt
	}

	_, err := s.db.Exec(
		"UPDATE alerts SET status = ?, resolved_at = ? WHERE id = ?",
		status, resolved, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	return nil
}

// GetAlertsByStatus retrieves alerts with the given status, newest first
func (s *Store) GetAlertsByStatus(status string) ([]*Alert, error) {
	rows, err := s.db.Query(
		alertSelect+" WHERE status = ? ORDER BY detected_at DESC", status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// CountAlertsByStatus returns alert counts grouped by status
func (s *Store) CountAlertsByStatus() (map[string]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM alerts GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
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

const alertSelect = `
	SELECT id, client_id, trigger_type, COALESCE(description, ''), severity, status,
	       detected_at, resolved_at, COALESCE(analysis_payload, ''), COALESCE(data_snapshot, '')
	FROM alerts`

func scanAlert(row rowScanner) (*Alert, error) {
	a := &Alert{}
	var resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.ClientID, &a.TriggerType, &a.Description, &a.Severity, &a.Status,
		&a.DetectedAt, &resolvedAt, &a.AnalysisPayload, &a.DataSnapshot,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return a, nil
}
