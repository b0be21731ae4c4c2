package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joycompass/joycompass-backend/internal/services"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// assistantWelcome seeds every fresh conversation.
const assistantWelcome = "Welcome to Joy Assistant! I can analyze your journal entries and happiness ratings to provide personalized insights. Your data remains private and secure. What would you like to know today?"

const assistantReset = "I've started a new conversation. How can I help you today?"

const assistantApology = "I'm sorry, I couldn't process your request. The AI service may be temporarily unavailable."

// ChatClientMessage represents messages coming from the frontend over WebSocket.
type ChatClientMessage struct {
	Type string `json:"type"` // "message", "reset", "ping"
	Text string `json:"text,omitempty"`
}

// ChatServerEvent represents events pushed to the frontend.
type ChatServerEvent struct {
	Type    string `json:"type"` // "assistant", "busy", "error", "pong"
	Content string `json:"content,omitempty"`
	Code    string `json:"code,omitempty"` // "usage_limit" or "unavailable" on errors
}

// wsChatSession is the ephemeral per-connection conversation state. Turns
// are never persisted; closing the socket discards everything.
type wsChatSession struct {
	mu       sync.Mutex
	turns    []services.AssistantMessage
	inFlight bool
}

func newWSChatSession() *wsChatSession {
	return &wsChatSession{
		turns: []services.AssistantMessage{{Role: "assistant", Content: assistantWelcome}},
	}
}

// begin appends the user turn and claims the single-flight slot. Returns the
// payload to forward (last 5 prior turns plus the new text) or false when a
// request is already in flight.
func (s *wsChatSession) begin(text string) ([]services.AssistantMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return nil, false
	}
	s.inFlight = true

	history := s.turns
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	payload := make([]services.AssistantMessage, 0, len(history)+1)
	payload = append(payload, history...)
	payload = append(payload, services.AssistantMessage{Role: "user", Content: text})

	s.turns = append(s.turns, services.AssistantMessage{Role: "user", Content: text})
	return payload, true
}

// finish records the assistant's turn and releases the single-flight slot.
func (s *wsChatSession) finish(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, services.AssistantMessage{Role: "assistant", Content: reply})
	s.inFlight = false
}

// reset discards all turns except a fresh greeting. An in-flight completion
// is not cancelled; its reply will still be appended when it lands.
func (s *wsChatSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []services.AssistantMessage{{Role: "assistant", Content: assistantReset}}
}

// journalContext summarizes the user's most recent entries for the
// completion API: entry count, the 3 latest ratings and truncated topics.
func journalContext(ctx context.Context, userID string) string {
	entries, err := services.ListEntries(ctx, userID)
	if err != nil || len(entries) == 0 {
		return ""
	}

	recent := entries
	if len(recent) > 3 {
		recent = recent[:3]
	}

	ratings := make([]string, 0, len(recent))
	topics := make([]string, 0, len(recent))
	for _, e := range recent {
		ratings = append(ratings, strconv.Itoa(e.HappinessRating))
		content := e.Content
		if len(content) > 30 {
			content = content[:30]
		}
		topics = append(topics, content+"...")
	}

	return "\n\nUser has " + strconv.Itoa(len(entries)) + " journal entries. Recent happiness ratings: " +
		strings.Join(ratings, ", ") + ". Recent topics: " + strings.Join(topics, " | ")
}

// AssistantWebSocket runs an ephemeral Joy Assistant conversation over a
// WebSocket connection. Authentication uses the existing session token
// (Authorization: Bearer <token>, or ?token= for browser clients). One
// completion may be in flight per connection; further messages get a busy
// event until it resolves.
func AssistantWebSocket(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
	}

	userID, ok, err := services.ValidateSession(token)
	if err != nil || !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	session := newWSChatSession()

	// Writer goroutine: all conn writes go through this channel so the
	// completion goroutine and the reader never write concurrently.
	events := make(chan ChatServerEvent, 8)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case evt := <-events:
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var msg ChatClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			events <- ChatServerEvent{Type: "pong"}

		case "reset":
			session.reset()
			events <- ChatServerEvent{Type: "assistant", Content: assistantReset}

		case "message":
			text := strings.TrimSpace(msg.Text)
			if text == "" {
				continue
			}
			if assistantService == nil {
				events <- ChatServerEvent{Type: "error", Code: "unavailable", Content: assistantApology}
				continue
			}

			payload, started := session.begin(text)
			if !started {
				events <- ChatServerEvent{Type: "busy"}
				continue
			}

			go func(payload []services.AssistantMessage) {
				ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				defer cancel()

				// Enrich the final user turn with a journal summary,
				// as the HTTP client does.
				if summary := journalContext(ctx, userID.String()); summary != "" {
					payload[len(payload)-1].Content += summary
				}

				reply, err := assistantService.Complete(ctx, payload)
				if err != nil {
					code := "unavailable"
					if errors.Is(err, services.ErrUsageLimit) {
						code = "usage_limit"
					}
					session.finish(assistantApology)
					select {
					case events <- ChatServerEvent{Type: "error", Code: code, Content: assistantApology}:
					case <-done:
					}
					return
				}

				session.finish(reply)
				select {
				case events <- ChatServerEvent{Type: "assistant", Content: reply}:
				case <-done:
				}
			}(payload)
		}
	}
}
