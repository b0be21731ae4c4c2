package journal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// fakeBackend implements AuthAPI, EntryAPI and ChatAPI in memory so the
// session, store and chat can be exercised without a server.
type fakeBackend struct {
	mu sync.Mutex

	users  map[string]string // email -> password
	rows   []Entry
	nextID int

	failList   error
	failCreate error
	failUpdate error
	failDelete error

	listCalls   int
	signOutSeen chan string

	completeFn func(ctx context.Context, messages []ChatMessage) (string, error)
	lastChat   []ChatMessage
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:       map[string]string{"amy@example.com": "hunter2hunter2"},
		signOutSeen: make(chan string, 4),
	}
}

func (f *fakeBackend) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[email]; !ok || pw != password {
		return nil, "", &AuthError{Message: "Invalid email or password"}
	}
	return &User{ID: "user-" + email, Email: email}, "token-" + email, nil
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return nil, "", &AuthError{Message: "An account with this email already exists"}
	}
	f.users[email] = password
	return &User{ID: "user-" + email, Email: email}, "token-" + email, nil
}

func (f *fakeBackend) SignOut(ctx context.Context, token string) error {
	f.signOutSeen <- token
	return nil
}

func (f *fakeBackend) Me(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, &AuthError{Message: "Authentication required"}
	}
	return &User{ID: "user-restored", Email: "amy@example.com"}, nil
}

func (f *fakeBackend) ListEntries(ctx context.Context, token string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]Entry, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeBackend) CreateEntry(ctx context.Context, token string, entry NewEntry) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.nextID++
	created := Entry{
		ID:              "entry-" + strconv.Itoa(f.nextID),
		Date:            entry.Date,
		Content:         entry.Content,
		HappinessRating: entry.HappinessRating,
		CreatedAt:       time.Now().UTC(),
	}
	f.rows = append([]Entry{created}, f.rows...)
	return &created, nil
}

func (f *fakeBackend) UpdateEntry(ctx context.Context, token, id string, patch EntryPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			if patch.Content != nil {
				f.rows[i].Content = *patch.Content
			}
			if patch.HappinessRating != nil {
				f.rows[i].HappinessRating = *patch.HappinessRating
			}
			return nil
		}
	}
	return fmt.Errorf("entry not found")
}

func (f *fakeBackend) DeleteEntry(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entry not found")
}

func (f *fakeBackend) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	f.mu.Lock()
	f.lastChat = append([]ChatMessage(nil), messages...)
	fn := f.completeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, messages)
	}
	return "Here is an insight.", nil
}

func (f *fakeBackend) lastChatPayload() []ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatMessage(nil), f.lastChat...)
}

func (f *fakeBackend) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}
