package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestNewAssistantServiceRequiresKey(t *testing.T) {
	_, err := NewAssistantService("", "gpt-4o-mini")
	assert.Error(t, err)

	svc, err := NewAssistantService("sk-test", "gpt-4o-mini")
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestIsUsageLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "http 429",
			err:  &openai.APIError{HTTPStatusCode: 429, Message: "Too Many Requests"},
			want: true,
		},
		{
			name: "insufficient quota type",
			err:  &openai.APIError{HTTPStatusCode: 400, Type: "insufficient_quota", Message: "billing hard limit"},
			want: true,
		},
		{
			name: "rate limit code",
			err:  &openai.APIError{HTTPStatusCode: 400, Code: "rate_limit_exceeded", Message: "slow down"},
			want: true,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("completion failed: %w", &openai.APIError{HTTPStatusCode: 429}),
			want: true,
		},
		{
			name: "quota mentioned in plain error",
			err:  errors.New("You exceeded your current quota"),
			want: true,
		},
		{
			name: "unrelated api error",
			err:  &openai.APIError{HTTPStatusCode: 500, Type: "server_error", Message: "internal error"},
			want: false,
		},
		{
			name: "unrelated plain error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUsageLimitError(tt.err))
		})
	}
}
