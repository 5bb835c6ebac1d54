// Package ingest turns files dropped on disk into store records: tabular
// metric exports become client metric snapshots, interaction transcripts
// become conversation rows awaiting sentiment analysis.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

// SupportedExtensions are the file extensions the watcher and scanner import
var SupportedExtensions = []string{".csv", ".txt", ".json"}

// FileKind classifications recorded in the change ledger
const (
	KindMetrics       = "metrics"
	KindConversations = "conversations"
	KindUnknown       = "unknown"
)

// Importer re-derives structured rows from a file and upserts them
type Importer struct {
	store  *store.Store
	logger *report.EventLogger
}

// Config holds importer configuration
type Config struct {
	Store  *store.Store
	Logger *report.EventLogger
}

// New creates a new Importer
func New(cfg *Config) *Importer {
	return &Importer{store: cfg.Store, logger: cfg.Logger}
}

// ClassifyPath reports the import kind for a path based on its name
func ClassifyPath(path string) string {
	name := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(name)

	switch ext {
	case ".csv":
		if strings.Contains(name, "metric") || strings.Contains(name, "retention") {
			return KindMetrics
		}
		return KindUnknown
	case ".txt", ".json":
		return KindConversations
	}
	return KindUnknown
}

// IsSupported reports whether a path has a supported extension and is not
// a hidden file
func IsSupported(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Import re-derives rows from the file at path and upserts them into the
// store. Returns the number of records imported.
func (im *Importer) Import(path string) (int, error) {
	kind := ClassifyPath(path)

	var n int
	var err error
	switch kind {
	case KindMetrics:
		n, err = im.importMetrics(path)
	case KindConversations:
		n, err = im.importConversations(path)
	default:
		return 0, fmt.Errorf("%w: cannot import %s", util.ErrUnsupported, path)
	}

	if err != nil {
		return 0, err
	}

	im.logger.Log(&report.Event{
		Level: report.LevelInfo,
		Event: report.EventImport,
		Path:  path,
		Count: n,
		Extra: map[string]string{"kind": kind},
	})
	return n, nil
}

// MetricRow is one parsed row of a tabular metrics/retention export. The
// json tags define the serialization used in alert data snapshots.
type MetricRow struct {
	Client       string  `json:"client"`
	Date         string  `json:"date"`
	Escalations  int     `json:"escalations"`
	SupportScore float64 `json:"support_score"`
	Backlog      int     `json:"backlog"`
	Delivered    int     `json:"delivered"`
	ResponseDays float64 `json:"response_days"`
}

// ParseMetricsFile parses a tabular metrics/retention export. Expected header:
// client,date,escalations,support_score,backlog,delivered,response_days
// Rows with an empty client or date are logged and skipped so one bad row
// does not abort the file.
func ParseMetricsFile(path string) ([]MetricRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"client", "date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column in %s", required, path)
		}
	}

	var rows []MetricRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			util.WarnLog("Import: %s line %d unreadable: %v", path, line, err)
			continue
		}

		get := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		row := MetricRow{
			Client:       get("client"),
			Date:         get("date"),
			Escalations:  parseInt(get("escalations")),
			SupportScore: parseFloat(get("support_score")),
			Backlog:      parseInt(get("backlog")),
			Delivered:    parseInt(get("delivered")),
			ResponseDays: parseFloat(get("response_days")),
		}
		if row.Client == "" || row.Date == "" {
			util.WarnLog("Import: %s line %d skipped: missing client or date", path, line)
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// importMetrics upserts every parsed metric row, creating unknown clients
// on the fly
func (im *Importer) importMetrics(path string) (int, error) {
	rows, err := ParseMetricsFile(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, row := range rows {
		if err := im.importMetricRow(row); err != nil {
			util.WarnLog("Import: %s row for %q skipped: %v", path, row.Client, err)
			continue
		}
		imported++
	}

	util.InfoLog("Import: %s -> %d metric snapshot(s)", path, imported)
	return imported, nil
}

func (im *Importer) importMetricRow(row MetricRow) error {
	client, err := im.store.GetClientByName(row.Client)
	if err != nil {
		return err
	}
	if client == nil {
		client = &store.Client{Name: row.Client}
		if _, err := im.store.InsertClient(client); err != nil {
			return err
		}
	}

	m := &store.ClientMetrics{
		ClientID:     client.ID,
		MetricDate:   row.Date,
		Escalations:  row.Escalations,
		SupportScore: row.SupportScore,
		Backlog:      row.Backlog,
		Delivered:    row.Delivered,
		ResponseDays: row.ResponseDays,
	}

	return im.store.UpsertClientMetrics(m)
}

// importConversations inserts each parsed transcript turn keyed on
// (source path, turn hash), so re-importing a grown file only adds the new
// turns instead of duplicating the whole transcript
func (im *Importer) importConversations(path string) (int, error) {
	turns, err := parseTranscript(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for i, body := range turns {
		id, err := im.store.InsertConversation(&store.Conversation{
			Body:       body,
			Source:     path,
			LineHash:   util.HashText(fmt.Sprintf("%d:%s", i, body)),
			OccurredAt: time.Now(),
		})
		if err != nil {
			util.WarnLog("Import: failed to store conversation from %s: %v", path, err)
			continue
		}
		if id == 0 {
			// turn already imported on a previous pass
			continue
		}
		imported++
	}

	util.InfoLog("Import: %s -> %d new conversation turn(s)", path, imported)
	return imported, nil
}

// parseTranscript extracts conversation turns from an interaction file:
// plain text files yield one turn per non-empty line, JSON files are
// decoded structurally
func parseTranscript(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSONTranscript(path, data)
	}

	var turns []string
	for _, line := range strings.Split(string(data), "\n") {
		if body := strings.TrimSpace(line); body != "" {
			turns = append(turns, body)
		}
	}
	return turns, nil
}

// parseJSONTranscript accepts an array of turns, each either a plain string
// or an object carrying the text in a body/text/message field. Elements
// without usable text are logged and skipped.
func parseJSONTranscript(path string, data []byte) ([]string, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var turns []string
	for i, el := range elements {
		var s string
		if err := json.Unmarshal(el, &s); err == nil {
			if body := strings.TrimSpace(s); body != "" {
				turns = append(turns, body)
			}
			continue
		}

		var obj struct {
			Body    string `json:"body"`
			Text    string `json:"text"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(el, &obj); err != nil {
			util.WarnLog("Import: %s element %d is neither string nor object, skipping", path, i)
			continue
		}

		body := strings.TrimSpace(obj.Body)
		if body == "" {
			body = strings.TrimSpace(obj.Text)
		}
		if body == "" {
			body = strings.TrimSpace(obj.Message)
		}
		if body == "" {
			util.WarnLog("Import: %s element %d has no text field, skipping", path, i)
			continue
		}
		turns = append(turns, body)
	}
	return turns, nil
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
