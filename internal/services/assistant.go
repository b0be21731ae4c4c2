package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// AssistantPersona is the fixed system instruction prepended to every
// completion request.
const AssistantPersona = "You are Joy Assistant, a helpful and empathetic AI that analyzes journal entries and happiness data to provide personalized insights. Your goal is to help users understand their emotional patterns and offer supportive advice. Keep responses concise, supportive, and focused on the user's wellbeing."

const (
	assistantTemperature = 0.7
	assistantMaxTokens   = 500
)

// ErrUsageLimit signals quota or rate-limit exhaustion at the completion
// API. Handlers map it to 429.
var ErrUsageLimit = errors.New("completion API usage limit reached")

// AssistantMessage is one role-mapped turn of the conversation forwarded to
// the completion API. Role is "user" or "assistant".
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantService forwards chat payloads to the OpenAI completion API with
// the Joy Assistant persona, a fixed model and bounded output length.
type AssistantService struct {
	client *openai.Client
	model  string
}

// NewAssistantService builds the completion proxy. Returns an error when no
// API key is configured so main can degrade instead of crashing later.
func NewAssistantService(apiKey, model string) (*AssistantService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not configured")
	}
	return &AssistantService{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Complete sends the conversation to the completion API and returns the
// assistant's reply. Quota and rate-limit failures come back wrapped in
// ErrUsageLimit; everything else is returned as-is.
func (s *AssistantService) Complete(ctx context.Context, messages []AssistantMessage) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: AssistantPersona,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    chatMessages,
		Temperature: assistantTemperature,
		MaxTokens:   assistantMaxTokens,
	})
	if err != nil {
		if isUsageLimitError(err) {
			return "", fmt.Errorf("%w: %v", ErrUsageLimit, err)
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// isUsageLimitError reports whether the completion API rejected the request
// for quota or rate-limit reasons.
func isUsageLimitError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return true
		}
		if apiErr.Type == "insufficient_quota" {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && code == "rate_limit_exceeded" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}
