package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// InsertClient inserts a client and returns its id
func (s *Store) InsertClient(c *Client) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO clients (name, contact_name, contact_email)
		VALUES (?, ?, ?)
	`, c.Name, c.ContactName, strings.ToLower(c.ContactEmail))

	if err != nil {
		return 0, fmt.Errorf("failed to insert client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get client ID: %w", err)
	}
	c.ID = id
	return id, nil
}

// GetClient retrieves a client by id, or nil
func (s *Store) GetClient(id int64) (*Client, error) {
	c := &Client{}
	err := s.db.QueryRow(`
		SELECT id, name, COALESCE(contact_name, ''), COALESCE(contact_email, '')
		FROM clients WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// GetClientByName retrieves a client by exact name, or nil
func (s *Store) GetClientByName(name string) (*Client, error) {
	c := &Client{}
	err := s.db.QueryRow(`
		SELECT id, name, COALESCE(contact_name, ''), COALESCE(contact_email, '')
		FROM clients WHERE name = ?
	`, name).Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client by name: %w", err)
	}
	return c, nil
}

// GetAllClients retrieves all known clients
func (s *Store) GetAllClients() ([]*Client, error) {
	rows, err := s.db.Query(`
		SELECT id, name, COALESCE(contact_name, ''), COALESCE(contact_email, '')
		FROM clients ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c := &Client{}
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}

	return clients, rows.Err()
}

// UpsertClientMetrics inserts or replaces one metric snapshot row
func (s *Store) UpsertClientMetrics(m *ClientMetrics) error {
	_, err := s.db.Exec(`
		INSERT INTO client_metrics (client_id, metric_date, escalations, support_score, backlog, delivered, response_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, metric_date) DO UPDATE SET
			escalations = excluded.escalations,
			support_score = excluded.support_score,
			backlog = excluded.backlog,
			delivered = excluded.delivered,
			response_days = excluded.response_days
	`, m.ClientID, m.MetricDate, m.Escalations, m.SupportScore, m.Backlog, m.Delivered, m.ResponseDays)

	if err != nil {
		return fmt.Errorf("failed to upsert client metrics: %w", err)
	}
	return nil
}

// GetLatestMetrics retrieves the most recent metric snapshot for a client, or nil
func (s *Store) GetLatestMetrics(clientID int64) (*ClientMetrics, error) {
	m := &ClientMetrics{}
	err := s.db.QueryRow(`
		SELECT client_id, metric_date, escalations, support_score, backlog, delivered, response_days
		FROM client_metrics
		WHERE client_id = ?
		ORDER BY metric_date DESC
		LIMIT 1
	`, clientID).Scan(
		&m.ClientID, &m.MetricDate, &m.Escalations, &m.SupportScore,
		&m.Backlog, &m.Delivered, &m.ResponseDays,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest metrics: %w", err)
	}
	return m, nil
}

// ClientWithMetrics pairs a client with its latest metric snapshot
type ClientWithMetrics struct {
	Client  *Client
	Metrics *ClientMetrics
}

// GetClientsWithLatestMetrics joins all clients with their most recent
// metric snapshot; clients without any snapshot are excluded
func (s *Store) GetClientsWithLatestMetrics() ([]*ClientWithMetrics, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, COALESCE(c.contact_name, ''), COALESCE(c.contact_email, ''),
		       m.metric_date, m.escalations, m.support_score, m.backlog, m.delivered, m.response_days
		FROM clients c
		JOIN client_metrics m ON m.client_id = c.id
		WHERE m.metric_date = (
			SELECT MAX(metric_date) FROM client_metrics WHERE client_id = c.id
		)
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients with metrics: %w", err)
	}
	defer rows.Close()

	var results []*ClientWithMetrics
	for rows.Next() {
		c := &Client{}
		m := &ClientMetrics{}
		err := rows.Scan(
			&c.ID, &c.Name, &c.ContactName, &c.ContactEmail,
			&m.MetricDate, &m.Escalations, &m.SupportScore,
			&m.Backlog, &m.Delivered, &m.ResponseDays,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client with metrics: %w", err)
		}
		m.ClientID = c.ID
		results = append(results, &ClientWithMetrics{Client: c, Metrics: m})
	}

	return results, rows.Err()
}
