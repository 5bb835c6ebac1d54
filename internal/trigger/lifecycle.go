package trigger

import (
	"fmt"
	"time"

	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

// Alert lifecycle: pending -> acknowledged -> resolved, or pending ->
// resolved directly. Nothing leaves resolved. Every transition appends one
// notification row; dispatch is simulated (logged), not a live transport.

var allowedTransitions = map[string][]string{
	store.AlertPending:      {store.AlertAcknowledged, store.AlertResolved},
	store.AlertAcknowledged: {store.AlertResolved},
	store.AlertResolved:     {},
}

// Transition moves an alert to a new status, appending a notification row.
// Returns util.ErrInvalidTransition for disallowed moves and util.ErrNotFound
// for unknown alerts.
func (e *Engine) Transition(alertID, newStatus string) error {
	alert, err := e.store.GetAlert(alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return fmt.Errorf("%w: alert %s", util.ErrNotFound, alertID)
	}

	if !transitionAllowed(alert.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", util.ErrInvalidTransition, alert.Status, newStatus)
	}

	var resolvedAt *time.Time
	if newStatus == store.AlertResolved {
		now := time.Now()
		resolvedAt = &now
	}

	if err := e.store.UpdateAlertStatus(alertID, newStatus, resolvedAt); err != nil {
		return err
	}

	e.notify(alert, newStatus)
	util.InfoLog("Alert %s: %s -> %s", alertID, alert.Status, newStatus)
	e.logger.Log(&report.Event{
		Level:       report.LevelInfo,
		Event:       report.EventAlert,
		AlertID:     alertID,
		ClientID:    alert.ClientID,
		TriggerType: alert.TriggerType,
		Extra:       map[string]string{"status": newStatus},
	})
	return nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// notify appends one audit row for a status change and logs the simulated
// dispatch
func (e *Engine) notify(alert *store.Alert, status string) {
	subject := fmt.Sprintf("[clientpulse] %s alert %s: %s",
		alert.Severity, status, alert.TriggerType)
	body := fmt.Sprintf("Alert %s for client %d is now %s.\n\n%s",
		alert.ID, alert.ClientID, status, alert.Description)

	n := &store.EmailNotification{
		AlertID:   alert.ID,
		Subject:   subject,
		Recipient: e.notifyAddress,
		Body:      body,
		Status:    status,
	}
	if err := e.store.InsertNotification(n); err != nil {
		util.ErrorLog("Alert %s: failed to record notification: %v", alert.ID, err)
		return
	}

	util.InfoLog("Notification (simulated) to %s: %s", e.notifyAddress, subject)
}
