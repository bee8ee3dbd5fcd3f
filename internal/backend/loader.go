package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agentgames/internal/logging"
	"agentgames/internal/metrics"
	"agentgames/internal/result"
)

// ErrStale is returned for a response that arrived after a newer load for
// the same slot was started.
var ErrStale = errors.New("stale response")

// Fetcher retrieves a result by id.
type Fetcher interface {
	FetchResult(ctx context.Context, id string) (*result.MatchResult, error)
}

type slot struct {
	token  uint64
	cancel context.CancelFunc
	// applying is held while a response is checked and applied, so applies
	// for one slot run in load order.
	applying sync.Mutex
}

// Loader fetches results on behalf of named slots, such as a viewing
// session. Only the latest load of a slot may deliver its response; starting
// a new load cancels the one in flight.
type Loader struct {
	fetcher Fetcher
	metrics *metrics.Recorder
	logger  *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// NewLoader wraps fetcher. rec and logger may be nil.
func NewLoader(fetcher Fetcher, rec *metrics.Recorder, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		metrics: rec,
		logger:  logger,
		slots:   make(map[string]*slot),
	}
}

// Load fetches id for key and hands the result to apply, which may be nil.
// apply runs only while this load is still the latest for key, and a newer
// load waits for it before applying its own result. A failed fetch is
// returned as is and never retried. If another Load for key started before
// the response could be applied, it is discarded and ErrStale returned.
func (l *Loader) Load(ctx context.Context, key, id string, apply func(*result.MatchResult) error) (*result.MatchResult, error) {
	s, token, ctx, cancel := l.begin(ctx, key)
	defer cancel()

	start := time.Now()
	res, err := l.fetcher.FetchResult(ctx, id)
	l.metrics.RecordBackendFetch(time.Since(start), err)

	s.applying.Lock()
	defer s.applying.Unlock()
	defer l.release(key, s, token)

	if !l.current(s, token) {
		l.metrics.RecordStaleDrop()
		logging.Info(l.logger, "dropped stale result",
			logging.FieldSession, key, logging.FieldResultID, id, logging.FieldToken, token)
		return nil, fmt.Errorf("load %s: %w", id, ErrStale)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	if apply != nil {
		if err := apply(res); err != nil {
			return nil, fmt.Errorf("apply %s: %w", id, err)
		}
	}
	return res, nil
}

func (l *Loader) begin(parent context.Context, key string) (*slot, uint64, context.Context, context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{}
		l.slots[key] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.token++
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return s, s.token, ctx, cancel
}

func (l *Loader) current(s *slot, token uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return s.token == token
}

// release drops the slot once its latest load is done.
func (l *Loader) release(key string, s *slot, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s.token == token && l.slots[key] == s {
		delete(l.slots, key)
	}
}

// Pending reports how many slots have a load in flight.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
