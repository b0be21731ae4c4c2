package journal

import (
	"context"
	"errors"
	"sync"
)

// AuthAPI is the slice of the backend the session needs.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*User, string, error)
	SignUp(ctx context.Context, email, password string) (*User, string, error)
	SignOut(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*User, error)
}

// Session holds the authenticated identity for the current app run and
// notifies subscribers on every transition between authenticated and
// anonymous. It is the explicit replacement for an app-wide auth context:
// dependents register a callback instead of reacting to shared state.
type Session struct {
	api AuthAPI

	mu      sync.Mutex
	user    *User
	token   string
	loading bool

	subs   map[int]func(authenticated bool)
	nextID int
}

// NewSession builds an anonymous session around the given auth API.
func NewSession(api AuthAPI) *Session {
	return &Session{
		api:  api,
		subs: make(map[int]func(bool)),
	}
}

// User returns the current user, or false when anonymous.
func (s *Session) User() (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// IsLoading reports whether a login, signup or restore is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Token returns the current session token, empty when anonymous.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// OnChange registers a callback fired on every transition into authenticated
// or anonymous. Returns an unsubscribe func. The callback runs outside the
// session's lock, so it may call back into the session.
func (s *Session) OnChange(fn func(authenticated bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) notify(authenticated bool) {
	s.mu.Lock()
	callbacks := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(authenticated)
	}
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Login authenticates with email and password. A recoverable auth failure
// (bad credentials and the like) comes back as *AuthError; transport and
// server failures propagate as-is. On success every subscriber observes the
// transition into authenticated.
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	user, token, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()

	s.notify(true)
	return nil
}

// Signup registers a new account and signs in. Error semantics match Login.
func (s *Session) Signup(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	user, token, err := s.api.SignUp(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()

	s.notify(true)
	return nil
}

// Restore resumes a previous session from a stored token. Invalid tokens
// leave the session anonymous and return *AuthError.
func (s *Session) Restore(ctx context.Context, token string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.api.Me(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()

	s.notify(true)
	return nil
}

// Logout clears the local user state synchronously; subscribers observe the
// transition into anonymous before the server-side sign-out resolves, and a
// failed sign-out is ignored.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	wasAuthenticated := s.user != nil
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	if wasAuthenticated {
		s.notify(false)
	}

	if token != "" {
		// Best effort only; the local state is already cleared.
		go func() {
			_ = s.api.SignOut(context.WithoutCancel(ctx), token)
		}()
	}
}

// IsAuthError reports whether err is a recoverable authentication error.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
