package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticatedStore(t *testing.T) (*fakeBackend, *Session, *Store) {
	t.Helper()
	backend := newFakeBackend()
	session := NewSession(backend)
	store := NewStore(backend, session)
	t.Cleanup(store.Close)

	require.NoError(t, session.Login(context.Background(), "amy@example.com", "hunter2hunter2"))
	return backend, session, store
}

func TestAddEntryThenGetEntry(t *testing.T) {
	_, _, store := newAuthenticatedStore(t)

	created, err := store.AddEntry(context.Background(), NewEntry{
		Date:            "2024-01-01",
		Content:         "Good day",
		HappinessRating: 8,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "backend assigns the id")
	assert.False(t, created.CreatedAt.IsZero(), "backend assigns created_at")

	assert.Len(t, store.Entries(), 1)

	got, ok := store.GetEntry("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, "Good day", got.Content)
	assert.Equal(t, 8, got.HappinessRating)
	assert.Equal(t, created.ID, got.ID)
}

func TestUpdateEntryChangesOnlyPatchedFields(t *testing.T) {
	_, _, store := newAuthenticatedStore(t)

	created, err := store.AddEntry(context.Background(), NewEntry{
		Date: "2024-02-10", Content: "Quiet sunday", HappinessRating: 6,
	})
	require.NoError(t, err)

	rating := 9
	require.NoError(t, store.UpdateEntry(context.Background(), created.ID, EntryPatch{HappinessRating: &rating}))

	got, ok := store.GetEntry("2024-02-10")
	require.True(t, ok)
	assert.Equal(t, 9, got.HappinessRating)
	assert.Equal(t, "Quiet sunday", got.Content, "content is untouched")
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Date, got.Date)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "created_at is immutable")
}

func TestDeleteEntryRemovesExactlyOne(t *testing.T) {
	_, _, store := newAuthenticatedStore(t)

	first, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-03-01", Content: "one", HappinessRating: 5})
	require.NoError(t, err)
	second, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-03-02", Content: "two", HappinessRating: 7})
	require.NoError(t, err)

	require.NoError(t, store.DeleteEntry(context.Background(), first.ID))

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, "two", entries[0].Content)
}

func TestFailedMutationsLeaveMirrorUntouched(t *testing.T) {
	backend, _, store := newAuthenticatedStore(t)

	created, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-04-01", Content: "keep me", HappinessRating: 4})
	require.NoError(t, err)
	before := store.Entries()

	boom := fmt.Errorf("storage rejected the write")
	backend.failCreate = boom
	backend.failUpdate = boom
	backend.failDelete = boom

	_, err = store.AddEntry(context.Background(), NewEntry{Date: "2024-04-02", Content: "nope", HappinessRating: 2})
	assert.ErrorIs(t, err, boom)

	content := "changed"
	assert.ErrorIs(t, store.UpdateEntry(context.Background(), created.ID, EntryPatch{Content: &content}), boom)
	assert.ErrorIs(t, store.DeleteEntry(context.Background(), created.ID), boom)

	assert.Equal(t, before, store.Entries(), "mirror is identical to its pre-call state")
}

func TestLogoutClearsAndLoginRepopulates(t *testing.T) {
	backend, session, store := newAuthenticatedStore(t)

	_, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-05-01", Content: "hello", HappinessRating: 8})
	require.NoError(t, err)
	require.NotEmpty(t, store.Entries())
	fetchesBefore := backend.listCallCount()

	session.Logout(context.Background())
	assert.Empty(t, store.Entries(), "logout discards the mirror synchronously")

	require.NoError(t, session.Login(context.Background(), "amy@example.com", "hunter2hunter2"))
	assert.Equal(t, fetchesBefore+1, backend.listCallCount(), "login triggers a fresh fetch")

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Content)
}

func TestFailedFetchKeepsPreviousCollection(t *testing.T) {
	backend, session, store := newAuthenticatedStore(t)

	_, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-06-01", Content: "survivor", HappinessRating: 7})
	require.NoError(t, err)
	before := store.Entries()

	backend.failList = fmt.Errorf("network down")
	store.Refresh(context.Background())

	assert.Equal(t, before, store.Entries(), "previous collection stays intact")
	assert.NotEmpty(t, store.Notice(), "failure surfaces as a non-fatal notice")

	backend.failList = nil
	store.Refresh(context.Background())
	assert.Empty(t, store.Notice())

	// The session stays usable after the failed login attempt too.
	assert.True(t, session.IsAuthenticated())
}

func TestGetEntryReturnsFirstMatchWhileListingShowsAll(t *testing.T) {
	_, _, store := newAuthenticatedStore(t)

	_, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-07-04", Content: "morning", HappinessRating: 6})
	require.NoError(t, err)
	later, err := store.AddEntry(context.Background(), NewEntry{Date: "2024-07-04", Content: "evening", HappinessRating: 9})
	require.NoError(t, err)

	// The today-lookup sees one entry (the first match in the mirror)...
	got, ok := store.GetEntry("2024-07-04")
	require.True(t, ok)
	assert.Equal(t, later.ID, got.ID, "newest entry is prepended, so it is the first match")

	// ...while the calendar view sees both rows.
	count := 0
	for _, e := range store.Entries() {
		if e.Date == "2024-07-04" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestStoreStartsEmptyBeforeAuthentication(t *testing.T) {
	backend := newFakeBackend()
	session := NewSession(backend)
	store := NewStore(backend, session)
	defer store.Close()

	assert.Empty(t, store.Entries())
	_, ok := store.GetEntry(time.Now().Format("2006-01-02"))
	assert.False(t, ok)
	assert.Zero(t, backend.listCallCount(), "no fetch before the session authenticates")
}
