package journal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal HTTP stand-in for the backend, speaking the same
// JSON envelopes.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "hunter2hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "Invalid email or password"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "Login successful",
			"user":    map[string]string{"id": "u1", "email": body["email"]},
			"token":   "tok",
		})
	})

	mux.HandleFunc("GET /api/entries", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "Authentication required", "entries": []any{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"entries": []map[string]interface{}{{
				"id":               "e1",
				"date":             "2024-01-01",
				"content":          "Good day",
				"happiness_rating": 8,
				"created_at":       time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC),
			}},
		})
	})

	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if len(body.Messages) > 0 && body.Messages[len(body.Messages)-1].Content == "trigger-429" {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "AI service is currently unavailable due to usage limits. Please try again later."})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "hello from the assistant"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientSignIn(t *testing.T) {
	client := NewClient(fakeServer(t).URL)

	user, token, err := client.SignIn(context.Background(), "amy@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "amy@example.com", user.Email)
	assert.Equal(t, "tok", token)
}

func TestClientSignInBadPassword(t *testing.T) {
	client := NewClient(fakeServer(t).URL)

	_, _, err := client.SignIn(context.Background(), "amy@example.com", "nope")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid email or password", authErr.Message)
}

func TestClientListEntries(t *testing.T) {
	client := NewClient(fakeServer(t).URL)

	entries, err := client.ListEntries(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "2024-01-01", entries[0].Date)
	assert.Equal(t, 8, entries[0].HappinessRating)
	assert.False(t, entries[0].CreatedAt.IsZero())

	_, err = client.ListEntries(context.Background(), "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClientComplete(t *testing.T) {
	client := NewClient(fakeServer(t).URL)

	reply, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello from the assistant", reply)
}

func TestClientCompleteUsageLimit(t *testing.T) {
	client := NewClient(fakeServer(t).URL)

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "trigger-429"}})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Message, "usage limits")

	// The chat layer classifies this as a usage-limit failure.
	assert.True(t, isUsageLimit(err))
}
