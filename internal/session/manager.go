package session

import (
	"sync"
	"time"

	"github.com/pulsehq/comms-gateway/pkg/cache"
	"github.com/pulsehq/comms-gateway/pkg/logger"
)

// Manager owns the per-user sessions and evicts the idle ones. It runs a
// janitor loop in its own goroutine, started with 'go mgr.Run()'.
type Manager struct {
	source     MessageSource
	committer  ReadCommitter
	cache      cache.Service
	interval   time.Duration
	sessionTTL time.Duration
	limit      int

	mu       sync.Mutex
	sessions map[string]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager
func NewManager(source MessageSource, committer ReadCommitter, cacheService cache.Service,
	interval, sessionTTL time.Duration, limit int) *Manager {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if sessionTTL <= 0 {
		sessionTTL = 5 * time.Minute
	}
	if limit <= 0 {
		limit = 100
	}
	return &Manager{
		source:     source,
		committer:  committer,
		cache:      cacheService,
		interval:   interval,
		sessionTTL: sessionTTL,
		limit:      limit,
		sessions:   make(map[string]*Session),
		stopCh:     make(chan struct{}),
	}
}

// Acquire returns the user's session, creating and starting one on first
// use. A fresh session polls synchronously once so the caller sees data
// immediately instead of waiting for the first tick.
func (m *Manager) Acquire(userID, token string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = newSession(userID, token, m.source, m.committer, m.cache, m.interval, m.limit)
		m.sessions[userID] = s
		activeSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	s.Touch(token)
	if !ok {
		s.RefreshNow()
		go s.run()
		slog := logger.WithComponent("session")
		slog.Info().
			Str("user_id", userID).Msg("polling session started")
	}
	return s
}

// Run is the janitor loop evicting sessions idle past the TTL
func (m *Manager) Run() {
	ticker := time.NewTicker(m.sessionTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCh:
			return
		}
	}
}

// Stop terminates the janitor and every live session
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, s := range m.sessions {
		s.stop()
		delete(m.sessions, userID)
	}
	activeSessions.Set(0)
}

// ActiveSessions reports the number of live sessions
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) evictIdle() {
	threshold := time.Now().Add(-m.sessionTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, s := range m.sessions {
		if s.idleSince().Before(threshold) {
			s.stop()
			delete(m.sessions, userID)
			slog := logger.WithComponent("session")
			slog.Info().
				Str("user_id", userID).Msg("idle polling session evicted")
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
}
