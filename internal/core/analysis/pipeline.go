package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/core/realtime"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// Store is the persistence the pipeline needs: the transcript going in and
// the analysis result coming back out.
type Store interface {
	Transcript(ctx context.Context, conversationID uuid.UUID) ([]models.TranscriptEntry, error)
	SaveResult(ctx context.Context, conversationID uuid.UUID, result *Result) error
}

// AIUpdate is the broadcast payload after a successful run.
type AIUpdate struct {
	ConversationID string   `json:"conversation_id"`
	AISummary      string   `json:"ai_summary"`
	AIPriority     string   `json:"ai_priority"`
	AITags         []string `json:"ai_tags"`
}

// Pipeline is the fire-and-forget re-analysis job: fetch the transcript, call
// the analyzer with bounded retries, persist and broadcast the result. Every
// failure mode is terminal for the run and is logged, never propagated beyond
// the returned error that callers are expected to swallow.
type Pipeline struct {
	store       Store
	analyzer    Analyzer
	broadcaster realtime.Broadcaster

	maxAttempts int
	backoffBase time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewPipeline(store Store, analyzer Analyzer, broadcaster realtime.Broadcaster, maxAttempts int, backoffBase time.Duration) *Pipeline {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Pipeline{
		store:       store,
		analyzer:    analyzer,
		broadcaster: broadcaster,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		sleep:       sleepCtx,
	}
}

// Run analyses one conversation. Safe to call concurrently for different
// conversations; the debounce scheduler ensures at most one scheduled run per
// conversation is pending at a time.
func (p *Pipeline) Run(ctx context.Context, conversationID uuid.UUID) error {
	transcript, err := p.store.Transcript(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}
	if len(transcript) == 0 {
		return nil
	}

	result, err := p.analyze(ctx, conversationID, transcript)
	if err != nil {
		return err
	}

	if err := p.store.SaveResult(ctx, conversationID, result); err != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}

	if p.broadcaster != nil {
		p.broadcaster.Broadcast(conversationID.String(), realtime.EventAIUpdate, AIUpdate{
			ConversationID: conversationID.String(),
			AISummary:      result.Summary,
			AIPriority:     result.Priority,
			AITags:         result.Tags,
		})
	}

	return nil
}

// analyze runs the retry loop: a success short-circuits, a non-retryable
// status stops immediately, and the backoff doubles between attempts with no
// wait after the last one.
func (p *Pipeline) analyze(ctx context.Context, conversationID uuid.UUID, transcript []models.TranscriptEntry) (*Result, error) {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		result, err := p.analyzer.Analyze(ctx, conversationID.String(), transcript)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return nil, fmt.Errorf("analyzer rejected request: %w", err)
		}

		utils.LogWarn("analysis attempt failed", map[string]interface{}{
			"conversation_id": conversationID.String(),
			"attempt":         attempt + 1,
			"error":           err.Error(),
		})

		if attempt < p.maxAttempts-1 {
			p.sleep(ctx, p.backoffBase*(1<<attempt))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("analysis exhausted after %d attempts: %w", p.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
