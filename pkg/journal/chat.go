package journal

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sender identifies who produced a chat turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Turn is one entry of the conversation. Turns are never persisted; the
// conversation lives and dies with the Chat value.
type Turn struct {
	ID        string
	Content   string
	Sender    Sender
	Timestamp time.Time
}

// ChatAPI is the slice of the backend the chat session needs.
type ChatAPI interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

const (
	chatWelcome = "Welcome to Joy Assistant! I can analyze your journal entries and happiness ratings to provide personalized insights. Your data remains private and secure. What would you like to know today?"
	chatReset   = "I've started a new conversation. How can I help you today?"
	chatApology = "I'm sorry, I couldn't process your request. The AI service may be temporarily unavailable."

	noticeUsageLimit   = "The AI service has reached its usage limit. Please try again later."
	noticeConnectivity = "There was an issue connecting to the AI service. Please try again later."
)

// historyWindow is how many prior turns are forwarded with each request.
const historyWindow = 5

// Chat is an ephemeral assistant conversation: an ordered turn list plus a
// single-flight guard so at most one completion request is outstanding at a
// time. Failures degrade into an apologetic assistant turn and a notice; the
// session stays usable.
type Chat struct {
	api   ChatAPI
	store *Store

	mu         sync.Mutex
	turns      []Turn
	processing bool
	notice     string
	nextID     int
}

// NewChat builds a conversation seeded with the assistant's welcome turn.
// The store supplies journal context for the completion requests.
func NewChat(api ChatAPI, store *Store) *Chat {
	c := &Chat{
		api:   api,
		store: store,
	}
	c.turns = []Turn{c.newTurn(chatWelcome, SenderAssistant)}
	return c
}

func (c *Chat) newTurn(content string, sender Sender) Turn {
	c.nextID++
	return Turn{
		ID:        strconv.Itoa(c.nextID),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// Turns returns a snapshot of the conversation.
func (c *Chat) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// IsProcessing reports whether a completion request is in flight.
func (c *Chat) IsProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Notice returns the dismissible error banner text, empty when clear.
func (c *Chat) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// Send forwards text to the assistant. It is a no-op — no turn appended, no
// request issued — when the text is blank or a request is already in flight.
// The user turn is appended immediately (turns are not persisted, so no
// confirm-then-apply discipline applies), then the last turns plus a journal
// summary are forwarded to the completion proxy. On failure the error is
// classified into the notice, an apologetic assistant turn is appended, and
// the guard is released so the session stays usable.
func (c *Chat) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil
	}
	c.processing = true
	c.notice = ""

	// Last turns before the new one, role-mapped.
	history := c.turns
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, t := range history {
		messages = append(messages, ChatMessage{Role: string(t.Sender), Content: t.Content})
	}

	userContent := text
	if summary := journalSummary(c.store.Entries()); summary != "" {
		userContent += summary
	}
	messages = append(messages, ChatMessage{Role: string(SenderUser), Content: userContent})

	c.turns = append(c.turns, c.newTurn(text, SenderUser))
	c.mu.Unlock()

	reply, err := c.api.Complete(ctx, messages)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false

	if err != nil {
		if isUsageLimit(err) {
			c.notice = noticeUsageLimit
		} else {
			c.notice = noticeConnectivity
		}
		c.turns = append(c.turns, c.newTurn(chatApology, SenderAssistant))
		return err
	}

	c.turns = append(c.turns, c.newTurn(reply, SenderAssistant))
	return nil
}

// NewConversation discards all turns except a fresh greeting and clears the
// notice. An in-flight request is not cancelled; a stale reply arriving
// afterwards still appends to the reset turn list.
func (c *Chat) NewConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = []Turn{c.newTurn(chatReset, SenderAssistant)}
	c.notice = ""
}

// journalSummary condenses the most recent entries into a context string for
// the assistant: entry count, the 3 latest ratings and truncated topics.
func journalSummary(entries []Entry) string {
	if len(entries) == 0 {
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

// isUsageLimit reports whether the completion failure was quota or
// rate-limit exhaustion rather than a connectivity problem.
func isUsageLimit(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "usage limit") || strings.Contains(msg, "exceeded")
}
