package metrics

import (
	"sync"
	"time"
)

// Recorder counts replay activity in memory and forwards it to OpenTelemetry
// instruments when Setup enabled them. A nil Recorder records nothing.
type Recorder struct {
	mu    sync.Mutex
	stats Snapshot
	otel  *otelInstruments
}

// Snapshot is a copy of the in-memory counters.
type Snapshot struct {
	Intents          int
	IntentErrors     int
	Opened           map[string]int
	Fallbacks        int
	BackendFetches   int
	BackendErrors    int
	StaleDrops       int
	LastFetchLatency time.Duration
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats: Snapshot{Opened: make(map[string]int)},
		otel:  otel,
	}
}

// RecordIntent counts one navigation intent and whether it was rejected.
func (r *Recorder) RecordIntent(intent string, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Intents++
	if err != nil {
		r.stats.IntentErrors++
	}
	r.mu.Unlock()
	r.otel.recordIntent(intent, err)
}

// RecordFeedbackOpened counts a feedback payload opened with the given
// strategy kind. fallback is set when a game adapter could not read it.
func (r *Recorder) RecordFeedbackOpened(kind string, fallback bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Opened[kind]++
	if fallback {
		r.stats.Fallbacks++
	}
	r.mu.Unlock()
	r.otel.recordOpened(kind, fallback)
}

// RecordBackendFetch tracks one upstream result fetch.
func (r *Recorder) RecordBackendFetch(duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.BackendFetches++
	r.stats.LastFetchLatency = duration
	if err != nil {
		r.stats.BackendErrors++
	}
	r.mu.Unlock()
	r.otel.recordFetch(duration, err)
}

// RecordStaleDrop counts a fetched result discarded because a newer request
// superseded it.
func (r *Recorder) RecordStaleDrop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.StaleDrops++
	r.mu.Unlock()
	r.otel.recordStale()
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.stats
	out.Opened = make(map[string]int, len(r.stats.Opened))
	for k, v := range r.stats.Opened {
		out.Opened[k] = v
	}
	return out
}
