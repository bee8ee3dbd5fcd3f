package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"agentgames/internal/game"
	"agentgames/internal/logging"
	"agentgames/internal/metrics"
	"agentgames/internal/replay"
	"agentgames/internal/result"
	"agentgames/internal/storage"
)

// ErrNotFound is returned for unknown session codes.
var ErrNotFound = errors.New("session not found")

// Manager manages all active viewing sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, rec *metrics.Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		metrics:  rec,
		logger:   logger,
	}
}

// Open starts a session over a stored result and persists its position.
func (m *Manager) Open(ctx context.Context, resultID string) (*Session, error) {
	res, err := m.store.GetResult(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	s := NewSession(generateCode(), res, m.registry)
	if err := m.persist(ctx, s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.opened(s)
	m.mu.Lock()
	m.sessions[s.Code] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions, ordered by code.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos
}

// Apply runs a navigation intent on a session and persists the new position.
// Rejected intents leave the position unchanged and return the current view
// along with the error.
func (m *Manager) Apply(ctx context.Context, code string, in replay.Intent) (View, error) {
	s, ok := m.Get(code)
	if !ok {
		return View{}, fmt.Errorf("%s: %w", code, ErrNotFound)
	}
	view, err := s.Apply(in)
	m.metrics.RecordIntent(string(in.Type), err)
	if err != nil {
		return view, err
	}
	if cur, ok := m.Get(code); !ok || cur != s {
		// Removed while the intent ran; its row is gone and stays gone.
		return view, nil
	}
	if err := m.persist(ctx, s); err != nil {
		logging.Error(m.logger, "persist session position failed", err, logging.FieldSession, code)
	}
	return view, nil
}

// Reload replaces the result viewed by a session, stores it and resets the
// navigator.
func (m *Manager) Reload(ctx context.Context, code string, res *result.MatchResult) (View, error) {
	s, ok := m.Get(code)
	if !ok {
		return View{}, fmt.Errorf("%s: %w", code, ErrNotFound)
	}
	if err := m.store.SaveResult(ctx, res); err != nil {
		return View{}, fmt.Errorf("store result: %w", err)
	}
	view := s.Reload(res, m.registry)
	m.opened(s)
	if err := m.persist(ctx, s); err != nil {
		return view, fmt.Errorf("persist session: %w", err)
	}
	return view, nil
}

// Restore loads sessions from the database on startup and replays each
// persisted position onto a fresh navigator.
func (m *Manager) Restore(ctx context.Context) error {
	rows, err := m.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		res, err := m.store.GetResult(ctx, row.ResultID)
		if errors.Is(err, storage.ErrNotFound) {
			logging.Warn(logging.ForResult(logging.ForSession(m.logger, row.Code), row.ResultID, ""),
				"dropping session of deleted result")
			if err := m.store.DeleteSession(ctx, row.Code); err != nil {
				logging.Error(m.logger, "delete session failed", err, logging.FieldSession, row.Code)
			}
			continue
		}
		if err != nil {
			logging.Warn(logging.ForSession(m.logger, row.Code), "skipping session", logging.FieldError, err)
			continue
		}
		s := NewSession(row.Code, res, m.registry)
		s.restore(row.Filter, row.Match, row.Event)
		m.opened(s)
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
	}
	return nil
}

func (s *Session) restore(filter string, match, event int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nav := s.nav.SetParticipantFilter(filter)
	if jumped, err := nav.JumpToMatch(match); err == nil {
		nav = jumped
	}
	for i := 0; i < event; i++ {
		nav = nav.Next()
	}
	s.nav = nav
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(ctx context.Context, code string) {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	if err := m.store.DeleteSession(ctx, code); err != nil {
		logging.Error(m.logger, "delete session failed", err, logging.FieldSession, code)
	}
}

// DeleteResult deletes a stored result along with every session viewing it.
// Connected viewers stay attached to the dropped sessions but further intents
// fail with ErrNotFound.
func (m *Manager) DeleteResult(ctx context.Context, resultID string) error {
	m.mu.Lock()
	var dropped []string
	for code, s := range m.sessions {
		if s.Result().ID == resultID {
			dropped = append(dropped, code)
			delete(m.sessions, code)
		}
	}
	m.mu.Unlock()
	for _, code := range dropped {
		logging.Info(logging.ForResult(logging.ForSession(m.logger, code), resultID, ""),
			"session closed with its result")
	}
	return m.store.DeleteResult(ctx, resultID)
}

// CleanupLoop removes idle sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.cleanup(ctx, now, maxIdle)
		}
	}
}

func (m *Manager) cleanup(ctx context.Context, now time.Time, maxIdle time.Duration) int {
	m.mu.Lock()
	var stale []string
	for code, s := range m.sessions {
		if s.idle(now, maxIdle) {
			stale = append(stale, code)
			delete(m.sessions, code)
		}
	}
	m.mu.Unlock()
	for _, code := range stale {
		logging.Info(m.logger, "cleaning up session", logging.FieldSession, code)
		if err := m.store.DeleteSession(ctx, code); err != nil {
			logging.Error(m.logger, "delete session failed", err, logging.FieldSession, code)
		}
	}
	return len(stale)
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	filter, match, event := s.Position()
	return m.store.SaveSession(ctx, storage.SessionRow{
		Code:     s.Code,
		ResultID: s.Result().ID,
		Filter:   filter,
		Match:    match,
		Event:    event,
	})
}

func (m *Manager) opened(s *Session) {
	info := s.Info()
	m.metrics.RecordFeedbackOpened(string(info.Kind), info.Fallback != "")
	if info.Fallback != "" {
		logging.Warn(logging.ForResult(logging.ForSession(m.logger, s.Code), info.ResultID, info.Game),
			"feedback fell back to structured view", logging.FieldError, info.Fallback)
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}
