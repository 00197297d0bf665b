package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/primaruang/realty-crm-be/internal/models"
)

const analyzeSystemPrompt = `You are a real-estate CRM assistant. Given a conversation between a sales agent and a prospective buyer, respond with a JSON object:
{"summary": "<one or two sentence summary>", "tags": ["<short classification tags>"], "priority": "high" | "medium" | "low"}
Priority reflects how likely the lead is to buy soon. Respond with JSON only.`

// OpenAIAnalyzer runs the analysis prompt directly against the OpenAI API,
// for deployments without the dedicated AI service.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

func NewOpenAIAnalyzer(apiKey, model string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, conversationID string, transcript []models.TranscriptEntry) (*Result, error) {
	var sb strings.Builder
	for _, entry := range transcript {
		fmt.Fprintf(&sb, "%s (%s): %s\n", entry.SenderName, entry.SenderType, entry.Content)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		Temperature:    0.2,
		MaxTokens:      300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Code: apiErr.HTTPStatusCode}
		}
		return nil, fmt.Errorf("openai error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	var result Result
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	switch result.Priority {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
	default:
		result.Priority = models.PriorityMedium
	}

	return &result, nil
}
