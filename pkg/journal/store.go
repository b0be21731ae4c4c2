package journal

import (
	"context"
	"sync"
)

// EntryAPI is the slice of the backend the store needs.
type EntryAPI interface {
	ListEntries(ctx context.Context, token string) ([]Entry, error)
	CreateEntry(ctx context.Context, token string, entry NewEntry) (*Entry, error)
	UpdateEntry(ctx context.Context, token, id string, patch EntryPatch) error
	DeleteEntry(ctx context.Context, token, id string) error
}

// Store maintains the authenticated user's entry collection as an in-memory
// mirror of the backend and mediates all reads and writes. Writes are
// confirm-then-apply: the mirror only changes after the backend confirms the
// operation, so no rollback or reconciliation is ever needed.
type Store struct {
	api     EntryAPI
	session *Session

	mu      sync.Mutex
	entries []Entry
	notice  string

	unsubscribe func()
}

// NewStore builds the journal mirror and subscribes it to the session:
// the transition into authenticated triggers a fetch, the transition into
// anonymous discards the mirror. If the session is already authenticated
// the initial fetch runs immediately.
func NewStore(api EntryAPI, session *Session) *Store {
	s := &Store{
		api:     api,
		session: session,
	}
	s.unsubscribe = session.OnChange(func(authenticated bool) {
		if authenticated {
			s.fetchAll(context.Background())
		} else {
			s.clear()
		}
	})
	if session.IsAuthenticated() {
		s.fetchAll(context.Background())
	}
	return s
}

// Close detaches the store from the session.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// fetchAll replaces the mirror wholesale with the backend's rows. On failure
// the previous collection stays intact and a notice records the problem; a
// failed fetch is never fatal. There is no reentrancy guard: two overlapping
// fetches race and the later resolution wins, which is accepted given how
// rarely the auth state flaps.
func (s *Store) fetchAll(ctx context.Context) {
	entries, err := s.api.ListEntries(ctx, s.session.Token())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.notice = "Could not load your journal. Please try again later."
		return
	}
	s.entries = entries
	s.notice = ""
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.notice = ""
}

// Refresh re-fetches the collection on demand.
func (s *Store) Refresh(ctx context.Context) {
	s.fetchAll(ctx)
}

// Entries returns a snapshot of the mirror, newest date first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// GetEntry returns the first entry whose date equals the argument. The store
// does not enforce one entry per day; the calendar shows every row while the
// home screen's today-lookup takes this first match.
func (s *Store) GetEntry(date string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Date == date {
			return e, true
		}
	}
	return Entry{}, false
}

// Notice returns the last non-fatal store problem, if any.
func (s *Store) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// AddEntry inserts a new entry. On confirmation the server-returned row,
// with its assigned id and created_at, is prepended to the mirror; on
// failure the mirror is untouched and the error goes back to the caller so
// the UI can keep the edit form open.
func (s *Store) AddEntry(ctx context.Context, entry NewEntry) (*Entry, error) {
	created, err := s.api.CreateEntry(ctx, s.session.Token(), entry)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries = append([]Entry{*created}, s.entries...)
	s.mu.Unlock()

	return created, nil
}

// UpdateEntry sends only the changed fields to the backend, then merges the
// same fields into the matching local entry. A failure leaves the mirror
// byte-for-byte unchanged and returns the error.
func (s *Store) UpdateEntry(ctx context.Context, id string, patch EntryPatch) error {
	if err := s.api.UpdateEntry(ctx, s.session.Token(), id, patch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			if patch.Content != nil {
				s.entries[i].Content = *patch.Content
			}
			if patch.HappinessRating != nil {
				s.entries[i].HappinessRating = *patch.HappinessRating
			}
			break
		}
	}
	return nil
}

// DeleteEntry removes the entry with that id after the backend confirms the
// delete. A failure leaves the mirror unchanged and returns the error.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if err := s.api.DeleteEntry(ctx, s.session.Token(), id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	return nil
}
