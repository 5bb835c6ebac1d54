// Package trigger raises client-risk alerts along two independent paths: an
// AI review of changed metric exports, and a periodic threshold scan over the
// latest stored metrics. Both share the same dedup discipline and alert
// lifecycle.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fhagen/clientpulse/internal/ingest"
	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

const (
	// DefaultNotifyAddress receives simulated alert notifications when no
	// recipient is configured
	DefaultNotifyAddress = "ops@localhost"

	// analysisInterval paces AI analysis calls inside a threshold scan
	analysisInterval = 2 * time.Second

	// dedupWindow is the trailing window in which a (client, trigger type)
	// pair will not re-fire regardless of alert status
	dedupWindow = time.Hour

	// spamGuardLimit skips a client once it has this many alerts in the
	// trailing hour
	spamGuardLimit = 3
)

// Analyzer produces a structured-JSON analysis for a prompt. Satisfied by
// ai.Client.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (json.RawMessage, error)
}

// Engine raises, deduplicates and transitions alerts
type Engine struct {
	store         *store.Store
	analyzer      Analyzer
	logger        *report.EventLogger
	notifyAddress string
	limiter       *rate.Limiter
}

// Config holds trigger engine configuration
type Config struct {
	Store         *store.Store
	Analyzer      Analyzer
	Logger        *report.EventLogger
	NotifyAddress string
}

// New creates a new trigger engine
func New(cfg *Config) *Engine {
	addr := cfg.NotifyAddress
	if addr == "" {
		addr = DefaultNotifyAddress
	}
	return &Engine{
		store:         cfg.Store,
		analyzer:      cfg.Analyzer,
		logger:        cfg.Logger,
		notifyAddress: addr,
		limiter:       rate.NewLimiter(rate.Every(analysisInterval), 1),
	}
}

// analysisItem is one concerning client in an AI file-change analysis
type analysisItem struct {
	ClientID    int64  `json:"clientId"`
	TriggerType string `json:"triggerType"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Reasoning   string `json:"reasoning"`
}

const fileChangePrompt = `A client metrics export has changed. Review the data below and identify
clients in concerning states (rising escalations, low support scores, growing
backlog with low delivery, slow response times).

Respond with ONLY a JSON array, no other text. Each element:
{"clientId": <number>, "triggerType": "<SCREAMING_SNAKE_CASE condition>", "description": "<one sentence>", "severity": "<low|medium|high|critical>", "reasoning": "<brief justification>"}

Return an empty array [] if nothing is concerning.

Client metrics (JSON):
%s`

// fileChangeRecord pairs a parsed export row with its resolved client for
// the AI prompt
type fileChangeRecord struct {
	ClientID int64            `json:"clientId"`
	Name     string           `json:"name"`
	Metrics  ingest.MetricRow `json:"metrics"`
}

// ProcessMetricsFile runs the file-change alert path on a changed metrics
// export: parse rows, join known client profiles, ask the analyzer for
// concerning clients, and insert deduplicated Pending alerts. Returns the
// number of alerts raised.
func (e *Engine) ProcessMetricsFile(ctx context.Context, path string) (int, error) {
	if e.analyzer == nil {
		util.DebugLog("Trigger: no analyzer configured, skipping %s", path)
		return 0, nil
	}

	rows, err := ingest.ParseMetricsFile(path)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	records := make([]fileChangeRecord, 0, len(rows))
	byClient := make(map[int64]ingest.MetricRow, len(rows))
	for _, row := range rows {
		client, err := e.store.GetClientByName(row.Client)
		if err != nil {
			return 0, err
		}
		if client == nil {
			// importer runs first and creates unknown clients; a miss
			// here means the row never imported
			util.WarnLog("Trigger: unknown client %q in %s, skipping row", row.Client, path)
			continue
		}
		records = append(records, fileChangeRecord{ClientID: client.ID, Name: client.Name, Metrics: row})
		byClient[client.ID] = row
	}
	if len(records) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metrics for analysis: %w", err)
	}

	raw, err := e.analyzer.Analyze(ctx, fmt.Sprintf(fileChangePrompt, string(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to analyze %s: %w", path, err)
	}

	var items []analysisItem
	if err := json.Unmarshal(raw, &items); err != nil {
		// fail safe: an unparseable verdict raises nothing
		util.WarnLog("Trigger: unusable analysis for %s: %v (payload: %s)", path, err, truncate(string(raw), 200))
		return 0, nil
	}

	raised := 0
	for _, item := range items {
		row, known := byClient[item.ClientID]
		if !known {
			util.WarnLog("Trigger: analysis names client %d not present in %s, skipping", item.ClientID, path)
			continue
		}
		snapshot, _ := json.Marshal(row)

		created, err := e.raiseAlert(item, string(raw), string(snapshot), false)
		if err != nil {
			util.ErrorLog("Trigger: client %d: %v", item.ClientID, err)
			continue
		}
		if created {
			raised++
		}
	}

	if raised > 0 {
		util.InfoLog("Trigger: %s -> %d alert(s)", path, raised)
	}
	e.logger.Log(&report.Event{
		Level: report.LevelInfo,
		Event: report.EventTrigger,
		Path:  path,
		Count: raised,
		Extra: map[string]string{"path_kind": "file-change"},
	})
	return raised, nil
}

// raiseAlert inserts a Pending alert unless deduplicated away. The Pending
// dedup always applies; recentWindow additionally suppresses any alert for
// the pair within the trailing hour, resolved or not.
func (e *Engine) raiseAlert(item analysisItem, payload, snapshot string, recentWindow bool) (bool, error) {
	item.TriggerType = normalizeTriggerType(item.TriggerType)
	if item.TriggerType == "" {
		return false, fmt.Errorf("analysis item missing trigger type")
	}
	severity, ok := normalizeSeverity(item.Severity)
	if !ok {
		// fail safe: an unknown severity is an untrusted verdict
		return false, fmt.Errorf("analysis item has unknown severity %q", item.Severity)
	}

	existing, err := e.store.FindPendingAlert(item.ClientID, item.TriggerType)
	if err != nil {
		return false, err
	}
	if existing != nil {
		util.DebugLog("Trigger: client %d already has pending %s alert", item.ClientID, item.TriggerType)
		return false, nil
	}

	if recentWindow {
		recent, err := e.store.FindAlertSince(item.ClientID, item.TriggerType, time.Now().Add(-dedupWindow))
		if err != nil {
			return false, err
		}
		if recent != nil {
			util.DebugLog("Trigger: client %d had %s alert within the hour, suppressing", item.ClientID, item.TriggerType)
			return false, nil
		}
	}

	alert := &store.Alert{
		ID:              uuid.New().String(),
		ClientID:        item.ClientID,
		TriggerType:     item.TriggerType,
		Description:     item.Description,
		Severity:        severity,
		Status:          store.AlertPending,
		DetectedAt:      time.Now(),
		AnalysisPayload: payload,
		DataSnapshot:    snapshot,
	}
	if err := e.store.InsertAlert(alert); err != nil {
		return false, err
	}

	e.notify(alert, store.AlertPending)
	util.WarnLog("Alert raised: client %d %s (%s): %s", alert.ClientID, alert.TriggerType, alert.Severity, alert.Description)
	e.logger.Log(&report.Event{
		Level:       report.LevelWarning,
		Event:       report.EventAlert,
		AlertID:     alert.ID,
		ClientID:    alert.ClientID,
		TriggerType: alert.TriggerType,
		Extra:       map[string]string{"severity": alert.Severity, "status": store.AlertPending},
	})
	return true, nil
}

func normalizeTriggerType(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
	return s
}

func normalizeSeverity(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case store.SeverityLow:
		return store.SeverityLow, true
	case store.SeverityMedium:
		return store.SeverityMedium, true
	case store.SeverityHigh:
		return store.SeverityHigh, true
	case store.SeverityCritical:
		return store.SeverityCritical, true
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
