package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/joycompass/joycompass-backend/internal/config"
	"github.com/joycompass/joycompass-backend/internal/services"
)

var assistantService *services.AssistantService

// InitAssistantService wires the completion proxy from config. Called from
// main; when it fails the chat endpoints answer 500 instead of crashing.
func InitAssistantService(cfg *config.Config) error {
	service, err := services.NewAssistantService(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		return err
	}
	assistantService = service
	return nil
}

// ChatRequest carries the role-mapped conversation turns to forward.
type ChatRequest struct {
	Messages []services.AssistantMessage `json:"messages"`
}

// ChatSuccessResponse and ChatErrorResponse mirror the wire shape the
// frontend expects: {message} on success, {error} on failure.
type ChatSuccessResponse struct {
	Message string `json:"message"`
}

type ChatErrorResponse struct {
	Error string `json:"error"`
}

// Chat forwards a conversation to the completion API with the Joy Assistant
// persona prepended. Quota and rate-limit exhaustion maps to 429, anything
// else to 500. Preflight OPTIONS is answered by the CORS middleware before
// this handler runs.
func Chat(w http.ResponseWriter, r *http.Request) {
	if assistantService == nil {
		writeJSON(w, http.StatusInternalServerError, ChatErrorResponse{Error: "OpenAI API key is not configured"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatErrorResponse{Error: "Invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, ChatErrorResponse{Error: "messages is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reply, err := assistantService.Complete(ctx, req.Messages)
	if err != nil {
		log.Printf("completion API error: %v", err)
		if errors.Is(err, services.ErrUsageLimit) {
			writeJSON(w, http.StatusTooManyRequests, ChatErrorResponse{
				Error: "AI service is currently unavailable due to usage limits. Please try again later.",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ChatErrorResponse{
			Error: "There was an issue processing your request. The AI service may be temporarily unavailable.",
		})
		return
	}

	writeJSON(w, http.StatusOK, ChatSuccessResponse{Message: reply})
}
