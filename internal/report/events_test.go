package report

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
)

func TestEventLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewEventLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("failed to create event logger: %v", err)
	}

	events := []*Event{
		{Level: LevelInfo, Event: EventImport, Path: "/data/retention.csv", Count: 12},
		{Level: LevelDebug, Event: EventClassify, ContentID: 1}, // filtered out
		{Level: LevelError, Event: EventError, Error: "mailbox connect failed"},
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("failed to log event: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		lines = append(lines, e)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 events (debug filtered), got %d", len(lines))
	}
	if lines[0].Event != EventImport || lines[0].Count != 12 {
		t.Errorf("unexpected first event: %+v", lines[0])
	}
	if lines[1].Event != EventError {
		t.Errorf("unexpected second event: %+v", lines[1])
	}
	if lines[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestEventLoggerNilSafe(t *testing.T) {
	var logger *EventLogger
	if err := logger.Log(&Event{Level: LevelInfo, Event: EventSkip}); err != nil {
		t.Errorf("nil logger should ignore events, got %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger close should be a no-op, got %v", err)
	}
}
