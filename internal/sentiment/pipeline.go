// Package sentiment implements the two-stage classification pipeline:
// a local lexicon classifier first, the remote AI service as fallback.
package sentiment

import (
	"context"
	"fmt"

	"github.com/fhagen/clientpulse/internal/ai"
	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

// Batch bounds per cycle; unfinished items are picked up next tick
const (
	ConversationBatchSize = 50
	EmailBatchSize        = 20
)

// RemoteClassifier is the AI-service fallback path
type RemoteClassifier interface {
	ClassifyText(ctx context.Context, text string) (*ai.Classification, error)
}

// Pipeline classifies content units and persists one analysis record each
type Pipeline struct {
	store  *store.Store
	local  *LocalClassifier
	remote RemoteClassifier
	logger *report.EventLogger
}

// Config holds pipeline configuration
type Config struct {
	Store  *store.Store
	Local  *LocalClassifier // nil disables the local path
	Remote RemoteClassifier // nil disables the fallback path
	Logger *report.EventLogger
}

// New creates a new classification Pipeline
func New(cfg *Config) *Pipeline {
	return &Pipeline{
		store:  cfg.Store,
		local:  cfg.Local,
		remote: cfg.Remote,
		logger: cfg.Logger,
	}
}

// Classify classifies one content unit and persists the result. A no-op if
// an analysis record already exists for the unit. Key-phrase extraction runs
// unconditionally after classification and is stored alongside the result.
func (p *Pipeline) Classify(ctx context.Context, contentID int64, contentType, text string) (*store.SentimentAnalysis, error) {
	exists, err := p.store.SentimentExists(contentType, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed idempotency check: %w", err)
	}
	if exists {
		util.DebugLog("Sentiment: %s %d already analyzed, skipping", contentType, contentID)
		return p.store.GetSentiment(contentType, contentID)
	}

	result, method, err := p.classify(ctx, text)
	if err != nil {
		return nil, err
	}

	analysis := &store.SentimentAnalysis{
		ContentID:   contentID,
		ContentType: contentType,
		Score:       result.Score,
		Label:       result.Label,
		Confidence:  result.Confidence,
		Method:      method,
		KeyPhrases:  ExtractKeyPhrases(text),
	}

	// Insert-if-absent resolves races between overlapping cycles: at worst
	// one redundant classification happened, the write is silently ignored
	inserted, err := p.store.InsertSentiment(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}
	if !inserted {
		return p.store.GetSentiment(contentType, contentID)
	}

	p.logger.Log(&report.Event{
		Level:       report.LevelInfo,
		Event:       report.EventClassify,
		ContentID:   contentID,
		ContentType: contentType,
		Method:      method,
	})

	return analysis, nil
}

// classify runs the ordered chain of classifier attempts: local first,
// remote on any local failure or when no local classifier is loaded
func (p *Pipeline) classify(ctx context.Context, text string) (*ai.Classification, string, error) {
	if p.local != nil {
		result, err := p.local.Classify(text)
		if err == nil {
			return result, store.MethodLocal, nil
		}
		util.DebugLog("Sentiment: local classifier declined: %v", err)
	}

	if p.remote == nil {
		return nil, "", util.ErrNoClassifier
	}

	result, err := p.remote.ClassifyText(ctx, text)
	if err != nil {
		return nil, "", fmt.Errorf("remote classification failed: %w", err)
	}
	return result, store.MethodRemote, nil
}

// ProcessPendingConversations classifies a bounded batch of unanalyzed
// conversations. Per-item errors are logged and do not abort the batch.
func (p *Pipeline) ProcessPendingConversations(ctx context.Context) (int, error) {
	conversations, err := p.store.GetUnanalyzedConversations(ConversationBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending conversations: %w", err)
	}

	processed := 0
	for _, c := range conversations {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.Classify(ctx, c.ID, store.ContentTypeConversation, c.Body); err != nil {
			util.ErrorLog("Sentiment: conversation %d failed (attempt %d): %v", c.ID, c.AnalysisAttempts+1, err)
			// Failed items move to the back of the queue, and out of it
			// at the attempt cap, so they cannot starve the batch window
			if markErr := p.store.MarkConversationAttempt(c.ID); markErr != nil {
				util.ErrorLog("Sentiment: %v", markErr)
			}
			p.logger.Log(&report.Event{
				Level:       report.LevelError,
				Event:       report.EventError,
				ContentID:   c.ID,
				ContentType: store.ContentTypeConversation,
				Error:       err.Error(),
			})
			continue
		}
		if err := p.store.MarkConversationAnalyzed(c.ID); err != nil {
			util.ErrorLog("Sentiment: failed to flag conversation %d: %v", c.ID, err)
			continue
		}
		processed++
	}

	if processed > 0 {
		util.InfoLog("Sentiment: analyzed %d conversation(s)", processed)
	}
	return processed, nil
}

// ProcessPendingEmails classifies a bounded batch of unprocessed emails
func (p *Pipeline) ProcessPendingEmails(ctx context.Context) (int, error) {
	emails, err := p.store.GetUnprocessedEmails(EmailBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending emails: %w", err)
	}

	processed := 0
	for _, e := range emails {
		if ctx.Err() != nil {
			break
		}
		text := e.Subject + "\n" + e.Body
		if _, err := p.Classify(ctx, e.ID, store.ContentTypeEmail, text); err != nil {
			util.ErrorLog("Sentiment: email %d failed (attempt %d): %v", e.ID, e.AnalysisAttempts+1, err)
			if markErr := p.store.MarkEmailAttempt(e.ID); markErr != nil {
				util.ErrorLog("Sentiment: %v", markErr)
			}
			p.logger.Log(&report.Event{
				Level:       report.LevelError,
				Event:       report.EventError,
				ContentID:   e.ID,
				ContentType: store.ContentTypeEmail,
				Error:       err.Error(),
			})
			continue
		}
		if err := p.store.MarkEmailProcessed(e.ID); err != nil {
			util.ErrorLog("Sentiment: failed to flag email %d: %v", e.ID, err)
			continue
		}
		processed++
	}

	if processed > 0 {
		util.InfoLog("Sentiment: analyzed %d email(s)", processed)
	}
	return processed, nil
}
