package sentiment

import (
	"strings"
	"testing"

	"github.com/fhagen/clientpulse/internal/store"
)

func TestLocalClassifierPositive(t *testing.T) {
	var c LocalClassifier

	result, err := c.Classify("Thanks so much, the new release is excellent and the team was very helpful!")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Label != store.LabelPositive {
		t.Errorf("expected positive, got %s (score %f)", result.Label, result.Score)
	}
	if result.Score <= 0 {
		t.Errorf("positive label must have positive score, got %f", result.Score)
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Errorf("confidence out of range: %f", result.Confidence)
	}
}

func TestLocalClassifierNegative(t *testing.T) {
	var c LocalClassifier

	result, err := c.Classify("This is unacceptable. We are frustrated with the constant delays and want a refund.")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Label != store.LabelNegative {
		t.Errorf("expected negative, got %s (score %f)", result.Label, result.Score)
	}
	if result.Score >= 0 {
		t.Errorf("negative label must have negative score, got %f", result.Score)
	}
}

func TestLocalClassifierNegation(t *testing.T) {
	var c LocalClassifier

	result, err := c.Classify("The rollout was not good and we are not happy.")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Label != store.LabelNegative {
		t.Errorf("expected negation to flip polarity, got %s (score %f)", result.Label, result.Score)
	}
}

func TestLocalClassifierNoEvidence(t *testing.T) {
	var c LocalClassifier

	_, err := c.Classify("Quarterly sync scheduled for Tuesday at 10am.")
	if err != ErrNoEvidence {
		t.Errorf("expected ErrNoEvidence, got %v", err)
	}
}

func TestLocalClassifierInputBound(t *testing.T) {
	var c LocalClassifier

	// Positive evidence only beyond the input limit must be invisible
	text := strings.Repeat("meeting agenda notes follow below shortly ", 20) + " excellent fantastic wonderful"
	if len(text) <= localInputLimit {
		t.Fatalf("test text too short: %d", len(text))
	}

	_, err := c.Classify(text)
	if err != ErrNoEvidence {
		t.Errorf("expected evidence past the input limit to be ignored, got %v", err)
	}
}
