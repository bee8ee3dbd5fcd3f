package session

import (
	"sync"
	"time"

	"agentgames/internal/game"
	"agentgames/internal/replay"
	"agentgames/internal/result"
)

// Viewer is a connected websocket client.
type Viewer struct {
	ID   string
	Send chan []byte // outbound messages
}

// View is what a viewer sees at the current navigator position.
type View struct {
	State replay.State `json:"state"`
	Frame game.Frame   `json:"frame"`
}

// Session is one viewer-facing replay of a stored match result. It owns the
// result, the replay opened from its feedback and the navigator over it.
type Session struct {
	mu        sync.RWMutex
	Code      string
	result    *result.MatchResult
	replay    game.Replay
	selection game.Selection
	nav       replay.Navigator
	viewers   map[string]*Viewer
	lastSeen  time.Time
}

// NewSession opens res with reg and positions the navigator at the start.
func NewSession(code string, res *result.MatchResult, reg *game.Registry) *Session {
	s := &Session{
		Code:    code,
		viewers: make(map[string]*Viewer),
	}
	s.load(res, reg)
	return s
}

func (s *Session) load(res *result.MatchResult, reg *game.Registry) {
	rp, sel := reg.Open(res.Game, res.Feedback)
	s.result = res
	s.replay = rp
	s.selection = sel
	s.nav = replay.New(rp.Matches())
	s.lastSeen = time.Now()
}

// Reload swaps in a new result and resets the navigator.
func (s *Session) Reload(res *result.MatchResult, reg *game.Registry) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(res, reg)
	return s.viewLocked()
}

// Apply runs intent against the navigator. On error the position is kept.
func (s *Session) Apply(in replay.Intent) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	nav, err := s.nav.Apply(in)
	if err != nil {
		return s.viewLocked(), err
	}
	s.nav = nav
	return s.viewLocked(), nil
}

// View returns the current state and frame.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	_, idx, ok := s.nav.Active()
	if !ok {
		idx = -1
	}
	return View{State: s.nav.State(), Frame: s.replay.Visualize(idx, s.nav.Cursor())}
}

// Log returns the text lines describing the events played so far in the
// active match.
func (s *Session) Log() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, idx, ok := s.nav.Active()
	if !ok {
		return nil
	}
	var lines []string
	for i := 0; i < s.nav.State().CurrentEvent; i++ {
		lines = append(lines, s.replay.Describe(idx, i)...)
	}
	return lines
}

// Result returns the match result being viewed.
func (s *Session) Result() *result.MatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Position is the persisted form of the navigator.
func (s *Session) Position() (filter string, match, event int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.nav.State()
	return st.ParticipantFilter, st.SelectedMatch, st.CurrentEvent
}

// AddViewer registers a viewer and returns it.
func (s *Session) AddViewer(id string) *Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &Viewer{ID: id, Send: make(chan []byte, 64)}
	if old, ok := s.viewers[id]; ok {
		close(old.Send)
	}
	s.viewers[id] = v
	s.lastSeen = time.Now()
	return v
}

// RemoveViewer disconnects a viewer.
func (s *Session) RemoveViewer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.viewers[id]; ok {
		close(v.Send)
		delete(s.viewers, id)
	}
	s.lastSeen = time.Now()
}

// Broadcast sends a message to all connected viewers.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.viewers {
		select {
		case v.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// Info returns session info for the API.
type Info struct {
	Code     string    `json:"code"`
	ResultID string    `json:"resultId"`
	Game     string    `json:"game"`
	Kind     game.Kind `json:"kind"`
	Fallback string    `json:"fallback,omitempty"`
	Viewers  int       `json:"viewers"`
	LastSeen time.Time `json:"lastSeen"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		Code:     s.Code,
		ResultID: s.result.ID,
		Game:     s.selection.Game,
		Kind:     s.selection.Kind,
		Viewers:  len(s.viewers),
		LastSeen: s.lastSeen,
	}
	if s.selection.Fallback != nil {
		info.Fallback = s.selection.Fallback.Error()
	}
	return info
}

func (s *Session) idle(now time.Time, maxIdle time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers) == 0 && now.Sub(s.lastSeen) > maxIdle
}
