package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehq/comms-gateway/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	inbox    []domain.Message
	sent     []domain.Message
	inboxErr error
	sentErr  error

	commitErr error
	commits   map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{commits: make(map[string]int)}
}

func (f *fakeStore) GetInbox(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inboxErr != nil {
		return nil, f.inboxErr
	}
	return append([]domain.Message(nil), f.inbox...), nil
}

func (f *fakeStore) GetSentMessages(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sentErr != nil {
		return nil, f.sentErr
	}
	return append([]domain.Message(nil), f.sent...), nil
}

func (f *fakeStore) MarkMessageAsRead(_ context.Context, _ string, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits[messageID]++
	return nil
}

func (f *fakeStore) commitCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits[id]
}

func unreadMsg(id string) domain.Message {
	return domain.Message{ID: id, SenderID: "u2", RecipientID: "me", Content: "x", SentAt: time.Now()}
}

func newTestSession(store *fakeStore) *Session {
	return newSession("me", "tok", store, store, nil, time.Minute, 100)
}

func TestRefreshInstallsSnapshot(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1")}

	s := newTestSession(store)
	_, _, _, ok := s.Snapshot()
	assert.False(t, ok)

	s.RefreshNow()

	inbox, sent, fetchedAt, ok := s.Snapshot()
	require.True(t, ok)
	assert.Len(t, inbox, 1)
	assert.Empty(t, sent)
	assert.False(t, fetchedAt.IsZero())
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1")}

	s := newTestSession(store)
	s.RefreshNow()

	store.mu.Lock()
	store.inboxErr = errors.New("inbox down")
	store.sentErr = errors.New("sent down")
	store.mu.Unlock()

	s.RefreshNow()

	inbox, _, _, ok := s.Snapshot()
	require.True(t, ok)
	assert.Len(t, inbox, 1)
}

func TestRefreshPartialFailureKeepsStaleCollection(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1")}
	store.sent = []domain.Message{{ID: "s1", SenderID: "me", RecipientID: "u2", Content: "y", SentAt: time.Now()}}

	s := newTestSession(store)
	s.RefreshNow()

	store.mu.Lock()
	store.sentErr = errors.New("sent down")
	store.inbox = []domain.Message{unreadMsg("m1"), unreadMsg("m2")}
	store.mu.Unlock()

	s.RefreshNow()

	inbox, sent, _, ok := s.Snapshot()
	require.True(t, ok)
	assert.Len(t, inbox, 2)  // fresh
	assert.Len(t, sent, 1)   // stale but served
}

func TestMarkReadCommitsOncePerMessage(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1"), unreadMsg("m2")}

	s := newTestSession(store)
	s.RefreshNow()

	issued := s.MarkRead([]string{"m1", "m2"})
	assert.Equal(t, 2, issued)

	assert.Eventually(t, func() bool {
		return store.commitCount("m1") == 1 && store.commitCount("m2") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCommittedReadNeverRevertsInSnapshot(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1")}

	s := newTestSession(store)
	s.RefreshNow()
	s.MarkRead([]string{"m1"})

	// the backend keeps returning the message unread for a while; the
	// committed read must win in every derived view
	assert.Eventually(t, func() bool {
		s.RefreshNow()
		inbox, _, _, _ := s.Snapshot()
		return len(inbox) == 1 && inbox[0].IsRead
	}, time.Second, 10*time.Millisecond)
}

func TestFailedCommitResurfacesUnread(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1")}
	store.commitErr = errors.New("commit down")

	s := newTestSession(store)
	s.RefreshNow()
	s.MarkRead([]string{"m1"})

	time.Sleep(50 * time.Millisecond) // let the commit goroutine fail
	s.RefreshNow()

	inbox, _, _, _ := s.Snapshot()
	require.Len(t, inbox, 1)
	assert.False(t, inbox[0].IsRead, "failed commit must not hide the unread message")
}

func TestOverlayPrunedOnceBackendCatchesUp(t *testing.T) {
	store := newFakeStore()
	store.inbox = []domain.Message{unreadMsg("m1")}

	s := newTestSession(store)
	s.RefreshNow()
	s.MarkRead([]string{"m1"})

	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, committed := s.overlay["m1"]
		return committed
	}, time.Second, 10*time.Millisecond)

	// backend reflects the read; overlay entry is reconciled away
	read := unreadMsg("m1")
	read.IsRead = true
	store.mu.Lock()
	store.inbox = []domain.Message{read}
	store.mu.Unlock()

	s.RefreshNow()

	s.mu.RLock()
	_, committed := s.overlay["m1"]
	s.mu.RUnlock()
	assert.False(t, committed)
}

func TestManagerAcquireReusesSession(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, store, nil, time.Minute, time.Minute, 100)
	defer m.Stop()

	s1 := m.Acquire("me", "tok1")
	s2 := m.Acquire("me", "tok2")

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, m.ActiveSessions())
	// latest token wins
	assert.Equal(t, "tok2", s1.currentToken())
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, store, nil, time.Minute, 20*time.Millisecond, 100)
	defer m.Stop()

	m.Acquire("me", "tok")
	require.Equal(t, 1, m.ActiveSessions())

	time.Sleep(40 * time.Millisecond)
	m.evictIdle()

	assert.Equal(t, 0, m.ActiveSessions())
}
