package store

import (
	"testing"
	"time"
)

func TestAlertInsertAndFindPending(t *testing.T) {
	s := openTestStore(t)

	clientID, _ := s.InsertClient(&Client{Name: "Acme"})

	a := &Alert{
		ID:          "alert-1",
		ClientID:    clientID,
		TriggerType: "HIGH_ESCALATIONS",
		Description: "Escalations above threshold",
		Severity:    SeverityHigh,
		Status:      AlertPending,
	}
	if err := s.InsertAlert(a); err != nil {
		t.Fatalf("failed to insert alert: %v", err)
	}

	found, err := s.FindPendingAlert(clientID, "HIGH_ESCALATIONS")
	if err != nil {
		t.Fatalf("failed to find pending alert: %v", err)
	}
	if found == nil {
		t.Fatal("expected to find pending alert")
	}
	if found.ID != "alert-1" {
		t.Errorf("expected alert-1, got %s", found.ID)
	}

	// Different trigger type has no pending alert
	found, err = s.FindPendingAlert(clientID, "LOW_SUPPORT_SCORE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != nil {
		t.Error("expected no pending alert for other trigger type")
	}
}

func TestFindAlertSinceIncludesResolved(t *testing.T) {
	s := openTestStore(t)

	clientID, _ := s.InsertClient(&Client{Name: "Acme"})

	a := &Alert{
		ID:          "alert-2",
		ClientID:    clientID,
		TriggerType: "LOW_SUPPORT_SCORE",
		Severity:    SeverityMedium,
		Status:      AlertPending,
		DetectedAt:  time.Now().Add(-10 * time.Minute),
	}
	if err := s.InsertAlert(a); err != nil {
		t.Fatalf("failed to insert alert: %v", err)
	}

	now := time.Now()
	if err := s.UpdateAlertStatus("alert-2", AlertResolved, &now); err != nil {
		t.Fatalf("failed to resolve alert: %v", err)
	}

	// Resolved alerts still count inside the trailing window
	found, err := s.FindAlertSince(clientID, "LOW_SUPPORT_SCORE", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to find alert: %v", err)
	}
	if found == nil {
		t.Fatal("expected resolved alert inside trailing window")
	}

	// But not outside it
	found, err = s.FindAlertSince(clientID, "LOW_SUPPORT_SCORE", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != nil {
		t.Error("expected no alert after cutoff")
	}
}

func TestCountAlertsSince(t *testing.T) {
	s := openTestStore(t)

	clientID, _ := s.InsertClient(&Client{Name: "Acme"})

	for i, tt := range []string{"A", "B", "C"} {
		a := &Alert{
			ID:          "spam-" + tt,
			ClientID:    clientID,
			TriggerType: tt,
			Severity:    SeverityLow,
			Status:      AlertPending,
			DetectedAt:  time.Now().Add(-time.Duration(i) * time.Minute),
		}
		if err := s.InsertAlert(a); err != nil {
			t.Fatalf("failed to insert alert: %v", err)
		}
	}

	count, err := s.CountAlertsSince(clientID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to count alerts: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 recent alerts, got %d", count)
	}
}

func TestNotificationAuditTrail(t *testing.T) {
	s := openTestStore(t)

	clientID, _ := s.InsertClient(&Client{Name: "Acme"})
	a := &Alert{
		ID:          "alert-3",
		ClientID:    clientID,
		TriggerType: "HIGH_ESCALATIONS",
		Severity:    SeverityHigh,
		Status:      AlertPending,
	}
	if err := s.InsertAlert(a); err != nil {
		t.Fatalf("failed to insert alert: %v", err)
	}

	for _, status := range []string{"created", "acknowledged"} {
		err := s.InsertNotification(&EmailNotification{
			AlertID:   "alert-3",
			Subject:   "Alert " + status,
			Recipient: "ops@example.com",
			Status:    status,
		})
		if err != nil {
			t.Fatalf("failed to insert notification: %v", err)
		}
	}

	trail, err := s.GetNotificationsForAlert("alert-3")
	if err != nil {
		t.Fatalf("failed to get notifications: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(trail))
	}
	if trail[0].Status != "created" || trail[1].Status != "acknowledged" {
		t.Errorf("unexpected trail order: %+v", trail)
	}
}
