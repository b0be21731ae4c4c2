package journal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatFixture(t *testing.T) (*fakeBackend, *Store, *Chat) {
	t.Helper()
	backend, _, store := func() (*fakeBackend, *Session, *Store) {
		backend := newFakeBackend()
		session := NewSession(backend)
		store := NewStore(backend, session)
		require.NoError(t, session.Login(context.Background(), "amy@example.com", "hunter2hunter2"))
		return backend, session, store
	}()
	t.Cleanup(store.Close)
	return backend, store, NewChat(backend, store)
}

func TestChatSeedsWelcomeTurn(t *testing.T) {
	_, _, chat := newChatFixture(t)

	turns := chat.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, SenderAssistant, turns[0].Sender)
	assert.Contains(t, turns[0].Content, "Welcome to Joy Assistant")
	assert.False(t, chat.IsProcessing())
}

func TestSendAppendsUserAndAssistantTurns(t *testing.T) {
	_, _, chat := newChatFixture(t)

	require.NoError(t, chat.Send(context.Background(), "How was my week?"))

	turns := chat.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, SenderUser, turns[1].Sender)
	assert.Equal(t, "How was my week?", turns[1].Content)
	assert.Equal(t, SenderAssistant, turns[2].Sender)
	assert.Equal(t, "Here is an insight.", turns[2].Content)
	assert.False(t, chat.IsProcessing())
	assert.Empty(t, chat.Notice())
}

func TestSendBlankIsNoOp(t *testing.T) {
	backend, _, chat := newChatFixture(t)

	require.NoError(t, chat.Send(context.Background(), "   "))

	assert.Len(t, chat.Turns(), 1, "no turn appended")
	assert.Empty(t, backend.lastChatPayload(), "no request issued")
}

func TestSendWhileInFlightIsNoOp(t *testing.T) {
	backend, _, chat := newChatFixture(t)

	gate := make(chan struct{})
	backend.completeFn = func(ctx context.Context, messages []ChatMessage) (string, error) {
		<-gate
		return "done", nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = chat.Send(context.Background(), "first")
	}()

	// Wait for the first request to claim the guard.
	require.Eventually(t, chat.IsProcessing, time.Second, time.Millisecond)

	require.NoError(t, chat.Send(context.Background(), "second"))
	assert.Len(t, chat.Turns(), 2, "only the welcome and the first user turn")

	close(gate)
	wg.Wait()

	turns := chat.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "done", turns[2].Content)
	assert.False(t, chat.IsProcessing())
}

func TestSendForwardsHistoryAndJournalContext(t *testing.T) {
	backend, store, chat := newChatFixture(t)

	_, err := store.AddEntry(context.Background(), NewEntry{
		Date:            "2024-01-01",
		Content:         "A long walk through the park with friends and coffee",
		HappinessRating: 8,
	})
	require.NoError(t, err)

	require.NoError(t, chat.Send(context.Background(), "Any patterns?"))

	payload := backend.lastChatPayload()
	require.NotEmpty(t, payload)

	// History precedes the new user turn.
	assert.Equal(t, "assistant", payload[0].Role)

	last := payload[len(payload)-1]
	assert.Equal(t, "user", last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Any patterns?"))
	assert.Contains(t, last.Content, "User has 1 journal entries")
	assert.Contains(t, last.Content, "Recent happiness ratings: 8")
	assert.Contains(t, last.Content, "A long walk through the park w...", "topics are truncated to 30 characters")

	// The visible turn carries only what the user typed.
	turns := chat.Turns()
	assert.Equal(t, "Any patterns?", turns[1].Content)
}

func TestSendWithoutEntriesOmitsJournalContext(t *testing.T) {
	backend := newFakeBackend()
	session := NewSession(backend)
	store := NewStore(backend, session)
	defer store.Close()
	chat := NewChat(backend, store)

	require.NoError(t, session.Login(context.Background(), "amy@example.com", "hunter2hunter2"))
	require.NoError(t, chat.Send(context.Background(), "Hello"))

	payload := backend.lastChatPayload()
	last := payload[len(payload)-1]
	assert.Equal(t, "Hello", last.Content)
}

func TestUsageLimitFailure(t *testing.T) {
	backend, _, chat := newChatFixture(t)
	backend.completeFn = func(ctx context.Context, messages []ChatMessage) (string, error) {
		return "", &APIError{Status: 429, Message: "AI service is currently unavailable due to usage limits. Please try again later."}
	}

	err := chat.Send(context.Background(), "Hi")
	require.Error(t, err)

	assert.Contains(t, chat.Notice(), "usage limit")
	turns := chat.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, SenderAssistant, turns[2].Sender)
	assert.Contains(t, turns[2].Content, "I'm sorry")
	assert.False(t, chat.IsProcessing(), "guard is released")

	// The session stays usable: a further send is accepted.
	backend.completeFn = nil
	require.NoError(t, chat.Send(context.Background(), "Still there?"))
	assert.Equal(t, "Here is an insight.", chat.Turns()[4].Content)
	assert.Empty(t, chat.Notice(), "notice cleared by the next send")
}

func TestGenericFailure(t *testing.T) {
	backend, _, chat := newChatFixture(t)
	backend.completeFn = func(ctx context.Context, messages []ChatMessage) (string, error) {
		return "", &APIError{Status: 500, Message: "There was an issue processing your request."}
	}

	err := chat.Send(context.Background(), "Hi")
	require.Error(t, err)
	assert.Contains(t, chat.Notice(), "issue connecting")
	assert.False(t, chat.IsProcessing())
}

func TestNewConversationResets(t *testing.T) {
	_, _, chat := newChatFixture(t)

	require.NoError(t, chat.Send(context.Background(), "Hello"))
	require.Len(t, chat.Turns(), 3)

	chat.NewConversation()

	turns := chat.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, SenderAssistant, turns[0].Sender)
	assert.Contains(t, turns[0].Content, "new conversation")
	assert.Empty(t, chat.Notice())
}

func TestStaleReplyAppendsAfterReset(t *testing.T) {
	backend, _, chat := newChatFixture(t)

	gate := make(chan struct{})
	backend.completeFn = func(ctx context.Context, messages []ChatMessage) (string, error) {
		<-gate
		return "stale reply", nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = chat.Send(context.Background(), "before reset")
	}()
	require.Eventually(t, chat.IsProcessing, time.Second, time.Millisecond)

	// Reset does not cancel the pending request.
	chat.NewConversation()
	require.Len(t, chat.Turns(), 1)

	close(gate)
	wg.Wait()

	turns := chat.Turns()
	require.Len(t, turns, 2, "the stale reply still lands on the reset list")
	assert.Equal(t, "stale reply", turns[1].Content)
	assert.False(t, chat.IsProcessing())
}
