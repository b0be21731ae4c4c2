// Package journal is the client core of the Joy Compass app: an explicit
// session service, an in-memory journal store mirroring the backend, and an
// ephemeral assistant chat session. The three are wired by constructor
// injection; the store observes the session through a subscription callback
// rather than shared state.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is the authenticated identity for the current app run.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Entry is one journaled day's text plus a happiness rating. ID and
// CreatedAt are assigned by the backend on creation.
type Entry struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Content         string    `json:"content"`
	HappinessRating int       `json:"happiness_rating"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEntry is an entry before first persistence: no id, no created_at.
type NewEntry struct {
	Date            string `json:"date"`
	Content         string `json:"content"`
	HappinessRating int    `json:"happiness_rating"`
}

// EntryPatch carries the changed fields of a partial update. Nil means
// unchanged; only content and happiness rating can change.
type EntryPatch struct {
	Content         *string `json:"content,omitempty"`
	HappinessRating *int    `json:"happiness_rating,omitempty"`
}

// ChatMessage is one role-mapped turn forwarded to the completion proxy.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AuthError is a recoverable authentication failure (bad credentials,
// duplicate account, invalid input). Callers show Message and stay alive.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// APIError is any other request failure the backend reported.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Client talks to the Joy Compass backend. It implements the AuthAPI,
// EntryAPI and ChatAPI interfaces consumed by Session, Store and Chat.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a backend client for the given base URL
// (e.g. "https://api.joycompass.app").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type authPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
	Token   string `json:"token,omitempty"`
}

type entryPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Entry   *Entry `json:"entry,omitempty"`
}

type listPayload struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Entries []Entry `json:"entries"`
}

type chatPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out interface{}) (int, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) auth(ctx context.Context, path, email, password string) (*User, string, error) {
	var payload authPayload
	status, err := c.doJSON(ctx, http.MethodPost, path, "", map[string]string{
		"email":    email,
		"password": password,
	}, &payload)
	if err != nil {
		return nil, "", err
	}

	switch {
	case status >= 200 && status < 300:
		return payload.User, payload.Token, nil
	case status == http.StatusUnauthorized || status == http.StatusBadRequest || status == http.StatusConflict:
		return nil, "", &AuthError{Message: payload.Message}
	default:
		return nil, "", &APIError{Status: status, Message: payload.Message}
	}
}

// SignIn authenticates with email and password, returning the user and a
// session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	return c.auth(ctx, "/api/auth/signin", email, password)
}

// SignUp registers a new account and returns the user and a session token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, string, error) {
	return c.auth(ctx, "/api/auth/signup", email, password)
}

// SignOut invalidates the session token server-side.
func (c *Client) SignOut(ctx context.Context, token string) error {
	status, err := c.doJSON(ctx, http.MethodPost, "/api/auth/signout", token, nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return &APIError{Status: status, Message: "sign-out failed"}
	}
	return nil
}

// Me returns the profile behind a session token, for session restoration.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var payload authPayload
	status, err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", token, nil, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, &AuthError{Message: payload.Message}
	}
	if status >= 300 {
		return nil, &APIError{Status: status, Message: payload.Message}
	}
	return payload.User, nil
}

// RequestPasswordReset starts the password reset flow for an email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	var payload authPayload
	status, err := c.doJSON(ctx, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": email,
	}, &payload)
	if err != nil {
		return err
	}
	if status >= 300 {
		return &APIError{Status: status, Message: payload.Message}
	}
	return nil
}

// ListEntries returns the user's entries, newest date first.
func (c *Client) ListEntries(ctx context.Context, token string) ([]Entry, error) {
	var payload listPayload
	status, err := c.doJSON(ctx, http.MethodGet, "/api/entries", token, nil, &payload)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &APIError{Status: status, Message: payload.Message}
	}
	return payload.Entries, nil
}

// CreateEntry inserts a new entry and returns the stored row with its
// server-assigned id and created_at.
func (c *Client) CreateEntry(ctx context.Context, token string, entry NewEntry) (*Entry, error) {
	var payload entryPayload
	status, err := c.doJSON(ctx, http.MethodPost, "/api/entries", token, entry, &payload)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &APIError{Status: status, Message: payload.Message}
	}
	return payload.Entry, nil
}

// UpdateEntry sends only the changed fields of the entry with that id.
func (c *Client) UpdateEntry(ctx context.Context, token, id string, patch EntryPatch) error {
	var payload entryPayload
	status, err := c.doJSON(ctx, http.MethodPut, "/api/entries?id="+url.QueryEscape(id), token, patch, &payload)
	if err != nil {
		return err
	}
	if status >= 300 {
		return &APIError{Status: status, Message: payload.Message}
	}
	return nil
}

// DeleteEntry removes the entry with that id.
func (c *Client) DeleteEntry(ctx context.Context, token, id string) error {
	var payload entryPayload
	status, err := c.doJSON(ctx, http.MethodDelete, "/api/entries?id="+url.QueryEscape(id), token, nil, &payload)
	if err != nil {
		return err
	}
	if status >= 300 {
		return &APIError{Status: status, Message: payload.Message}
	}
	return nil
}

// Complete forwards the conversation to the completion proxy and returns
// the assistant's reply.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var payload chatPayload
	status, err := c.doJSON(ctx, http.MethodPost, "/api/chat", "", map[string]interface{}{
		"messages": messages,
	}, &payload)
	if err != nil {
		return "", err
	}
	if status >= 300 || payload.Error != "" {
		return "", &APIError{Status: status, Message: payload.Error}
	}
	return payload.Message, nil
}
