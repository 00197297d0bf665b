package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/primaruang/realty-crm-be/internal/models"
)

// Result is the triple the analyzer produces for a conversation.
type Result struct {
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Priority string   `json:"priority"`
}

// Analyzer turns a transcript into a Result. Implementations: the external
// AI service over HTTP, or OpenAI called directly.
type Analyzer interface {
	Analyze(ctx context.Context, conversationID string, transcript []models.TranscriptEntry) (*Result, error)
}

// StatusError is a non-2xx analyzer response. The pipeline uses the code to
// decide between retrying and giving up.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyzer returned status %d", e.Code)
}

// Retryable reports whether another attempt could help: server errors,
// timeouts and rate limits qualify, as does any transport-level failure.
// Other HTTP statuses are client errors and retrying would not change them.
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 ||
			statusErr.Code == http.StatusRequestTimeout ||
			statusErr.Code == http.StatusTooManyRequests
	}
	return true
}

type analyzeRequest struct {
	ConversationID string                   `json:"conversation_id"`
	Messages       []models.TranscriptEntry `json:"messages"`
}

// HTTPAnalyzer calls the external AI service's POST /v1/analyze endpoint.
type HTTPAnalyzer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPAnalyzer(baseURL, apiKey string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		baseURL: baseURL,
		apiKey:  apiKey,
		// The client timeout bounds each attempt; tripping it counts as a
		// retryable failure like any other transport error.
		client: &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, conversationID string, transcript []models.TranscriptEntry) (*Result, error) {
	body, err := json.Marshal(analyzeRequest{
		ConversationID: conversationID,
		Messages:       transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}

	return &result, nil
}
