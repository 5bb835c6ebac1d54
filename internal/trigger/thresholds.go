package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

const thresholdPrompt = `Evaluate whether this client's latest support metrics warrant an alert.

Concerning thresholds:
- escalations greater than 3
- support score below 70
- backlog above 15 while delivered below 5 and response time above 5 days

Respond with ONLY a JSON object, no other text:
{"alert": <true|false>, "triggerType": "<SCREAMING_SNAKE_CASE condition>", "description": "<one sentence>", "severity": "<low|medium|high|critical>", "reasoning": "<brief justification>"}

If nothing is concerning, respond {"alert": false}.

Client %q latest metrics (JSON):
%s`

// verdict is the strict boolean-gated response contract for a threshold check
type verdict struct {
	Alert       bool   `json:"alert"`
	TriggerType string `json:"triggerType"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Reasoning   string `json:"reasoning"`
}

// ScanMetrics runs the metrics-threshold alert path over every client's
// latest metric snapshot. Clients with too many recent alerts are skipped
// before any AI call, and AI calls are paced by the engine's rate limiter.
// Returns the number of alerts raised.
func (e *Engine) ScanMetrics(ctx context.Context) (int, error) {
	if e.analyzer == nil {
		util.DebugLog("Trigger: no analyzer configured, skipping threshold scan")
		return 0, nil
	}

	clients, err := e.store.GetClientsWithLatestMetrics()
	if err != nil {
		return 0, err
	}

	raised := 0
	for _, cm := range clients {
		created, err := e.scanClient(ctx, cm)
		if err != nil {
			if ctx.Err() != nil {
				return raised, ctx.Err()
			}
			util.ErrorLog("Trigger: threshold check for client %d failed: %v", cm.Client.ID, err)
			continue
		}
		if created {
			raised++
		}
	}

	e.logger.Log(&report.Event{
		Level: report.LevelInfo,
		Event: report.EventTrigger,
		Count: raised,
		Extra: map[string]string{"path_kind": "threshold", "clients": fmt.Sprintf("%d", len(clients))},
	})
	return raised, nil
}

func (e *Engine) scanClient(ctx context.Context, cm *store.ClientWithMetrics) (bool, error) {
	recent, err := e.store.CountAlertsSince(cm.Client.ID, time.Now().Add(-time.Hour))
	if err != nil {
		return false, err
	}
	if recent >= spamGuardLimit {
		util.DebugLog("Trigger: client %d has %d alerts in the last hour, skipping", cm.Client.ID, recent)
		return false, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return false, err
	}

	data, err := json.Marshal(cm.Metrics)
	if err != nil {
		return false, fmt.Errorf("failed to encode metrics: %w", err)
	}

	raw, err := e.analyzer.Analyze(ctx, fmt.Sprintf(thresholdPrompt, cm.Client.Name, string(data)))
	if err != nil {
		return false, err
	}

	var v verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		// fail safe: an unparseable verdict raises nothing
		util.WarnLog("Trigger: unusable verdict for client %d: %v (payload: %s)", cm.Client.ID, err, truncate(string(raw), 200))
		return false, nil
	}
	if !v.Alert {
		return false, nil
	}

	item := analysisItem{
		ClientID:    cm.Client.ID,
		TriggerType: v.TriggerType,
		Description: v.Description,
		Severity:    v.Severity,
		Reasoning:   v.Reasoning,
	}
	created, err := e.raiseAlert(item, string(raw), string(data), true)
	if err != nil {
		// fail safe applies to malformed item fields too
		util.WarnLog("Trigger: verdict for client %d rejected: %v", cm.Client.ID, err)
		return false, nil
	}
	return created, nil
}
