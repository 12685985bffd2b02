// Package session keeps one polling session per authenticated user. A
// session refreshes the user's inbox and sent collections on a fixed
// interval and swaps in an immutable snapshot; derived conversation and
// thread views are always computed from the latest snapshot. There is no
// push channel upstream — bounded staleness through polling is the
// consistency model, same as the dashboard clients had.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pulsehq/comms-gateway/internal/domain"
	"github.com/pulsehq/comms-gateway/pkg/cache"
	"github.com/pulsehq/comms-gateway/pkg/logger"
)

var (
	pollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_poll_cycles_total",
			Help: "Total snapshot refresh cycles by result",
		},
		[]string{"result"},
	)

	readCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_read_commits_total",
			Help: "Total read receipts committed upstream by result",
		},
		[]string{"result"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comms_active_sessions",
			Help: "Number of live per-user polling sessions",
		},
	)
)

// MessageSource supplies the two flat message collections (upstream.Client)
type MessageSource interface {
	GetInbox(ctx context.Context, token string, limit int) ([]domain.Message, error)
	GetSentMessages(ctx context.Context, token string, limit int) ([]domain.Message, error)
}

// ReadCommitter commits read receipts upstream (upstream.Client)
type ReadCommitter interface {
	MarkMessageAsRead(ctx context.Context, token string, messageID string) error
}

// Snapshot is one immutable fetch result. Inbox and Sent are fetched
// independently and may be mutually stale; the aggregator tolerates that.
type Snapshot struct {
	Inbox     []domain.Message `json:"inbox"`
	Sent      []domain.Message `json:"sent"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Session is one user's polling loop plus read-state overlay
type Session struct {
	userID    string
	source    MessageSource
	committer ReadCommitter
	cache     cache.Service
	interval  time.Duration
	limit     int

	mu       sync.RWMutex
	token    string
	snapshot *Snapshot
	// overlay holds ids whose read receipt was committed upstream but not
	// yet reflected in a fetched snapshot. Entries are pruned once the
	// backend reports the message read. Failed commits are never overlaid,
	// so the next poll re-surfaces them as unread.
	overlay  map[string]struct{}
	lastSeen time.Time

	refreshCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func newSession(userID, token string, source MessageSource, committer ReadCommitter,
	cacheService cache.Service, interval time.Duration, limit int) *Session {
	s := &Session{
		userID:    userID,
		source:    source,
		committer: committer,
		cache:     cacheService,
		interval:  interval,
		limit:     limit,
		token:     token,
		overlay:   make(map[string]struct{}),
		lastSeen:  time.Now(),
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	// Warm start from the shared cache so a restarted replica serves data
	// before its first upstream fetch completes.
	if cacheService != nil && cacheService.IsAvailable() {
		var snap Snapshot
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cacheService.GetSnapshot(ctx, userID, &snap); err == nil {
			s.snapshot = &snap
		}
		cancel()
	}

	return s
}

// run is the polling loop; started once per session by the Manager
func (s *Session) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-s.refreshCh:
			s.refresh()
		case <-s.stopCh:
			return
		}
	}
}

// refresh fetches both collections and installs a fresh snapshot. Inbox and
// sent are independent: one failing keeps that collection from the previous
// snapshot. A fully failed cycle leaves the previous snapshot serving
// (stale-but-consistent); it is never replaced with an empty view.
func (s *Session) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	token := s.currentToken()

	var (
		wg          sync.WaitGroup
		inbox, sent []domain.Message
		inboxErr    error
		sentErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		inbox, inboxErr = s.source.GetInbox(ctx, token, s.limit)
	}()
	go func() {
		defer wg.Done()
		sent, sentErr = s.source.GetSentMessages(ctx, token, s.limit)
	}()
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot
	if inboxErr != nil {
		slog := logger.WithComponent("session")
		slog.Warn().Err(inboxErr).
			Str("user_id", s.userID).Msg("inbox fetch failed, keeping previous")
		if prev != nil {
			inbox = prev.Inbox
		}
	}
	if sentErr != nil {
		slog := logger.WithComponent("session")
		slog.Warn().Err(sentErr).
			Str("user_id", s.userID).Msg("sent fetch failed, keeping previous")
		if prev != nil {
			sent = prev.Sent
		}
	}

	if inboxErr != nil && sentErr != nil {
		// fully failed cycle: previous snapshot keeps serving, next tick retries
		pollCyclesTotal.WithLabelValues("error").Inc()
		return
	}
	pollCyclesTotal.WithLabelValues("ok").Inc()

	snap := &Snapshot{Inbox: inbox, Sent: sent, FetchedAt: time.Now()}
	s.pruneOverlayLocked(snap)
	s.snapshot = snap

	if s.cache != nil && s.cache.IsAvailable() {
		if err := s.cache.SetSnapshot(ctx, s.userID, snap); err != nil {
			slog := logger.WithComponent("session")
			slog.Warn().Err(err).Msg("snapshot cache write failed")
		}
	}
}

// pruneOverlayLocked drops overlay entries the backend has caught up with
func (s *Session) pruneOverlayLocked(snap *Snapshot) {
	if len(s.overlay) == 0 {
		return
	}
	for _, m := range snap.Inbox {
		if m.IsRead {
			delete(s.overlay, m.ID)
		}
	}
}

// Snapshot returns the current collections with the read overlay applied.
// ok is false when no fetch has succeeded yet.
func (s *Session) Snapshot() (inbox, sent []domain.Message, fetchedAt time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, nil, time.Time{}, false
	}

	inbox = applyOverlay(s.snapshot.Inbox, s.overlay)
	sent = applyOverlay(s.snapshot.Sent, s.overlay)
	return inbox, sent, s.snapshot.FetchedAt, true
}

// applyOverlay marks committed-read messages as read without mutating the
// stored snapshot. Once a read was committed, no derived view may show the
// message unread again, even while the backend still returns it unread.
func applyOverlay(msgs []domain.Message, overlay map[string]struct{}) []domain.Message {
	if len(overlay) == 0 {
		return msgs
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if _, committed := overlay[out[i].ID]; committed && !out[i].IsRead {
			out[i].IsRead = true
		}
	}
	return out
}

// MarkRead commits read receipts for the given message ids, fire-and-forget.
// Each commit runs in its own goroutine; failures are logged and dropped —
// the next poll cycle re-surfaces the message as unread and the next
// view-open re-attempts (at-least-once read receipts).
func (s *Session) MarkRead(ids []string) int {
	token := s.currentToken()

	for _, id := range ids {
		go func(messageID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := s.committer.MarkMessageAsRead(ctx, token, messageID); err != nil {
				readCommitsTotal.WithLabelValues("error").Inc()
				slog := logger.WithComponent("session")
				slog.Warn().Err(err).
					Str("message_id", messageID).Msg("read commit failed")
				return
			}
			readCommitsTotal.WithLabelValues("ok").Inc()

			s.mu.Lock()
			s.overlay[messageID] = struct{}{}
			s.mu.Unlock()
		}(id)
	}
	return len(ids)
}

// ForceRefresh schedules an immediate poll (after a send, so the next list
// read reflects it without waiting a full tick). Non-blocking.
func (s *Session) ForceRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// RefreshNow polls synchronously; used on session creation so the first
// request is served from live data.
func (s *Session) RefreshNow() {
	s.refresh()
}

// Touch records activity and adopts the caller's latest token
func (s *Session) Touch(token string) {
	s.mu.Lock()
	s.lastSeen = time.Now()
	if token != "" {
		s.token = token
	}
	s.mu.Unlock()
}

// InvalidateCache drops the shared snapshot cache entry for this user
func (s *Session) InvalidateCache(ctx context.Context) {
	if s.cache != nil && s.cache.IsAvailable() {
		_ = s.cache.InvalidateSnapshot(ctx, s.userID)
	}
}

func (s *Session) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// stop terminates the polling loop
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
