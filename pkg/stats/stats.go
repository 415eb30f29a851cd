// Package stats tracks live per-(task, backend) performance counters used
// to rank generation backends. The store is shared across concurrent
// dispatches; all read-modify-write cycles are serialized.
package stats

import (
	"sync"
	"time"
)

// initialQualityPrior seeds the quality estimate before any observation.
const initialQualityPrior = 0.55

// Key identifies one (task, backend) counter set.
type Key struct {
	Task    string
	Backend string
}

// ModelStats holds running performance counters for one backend on one task.
// Invariant: Successes + Failures == Calls. EMAQuality stays in [0, 1].
type ModelStats struct {
	Calls      int64
	Successes  int64
	Failures   int64
	EMALatency time.Duration
	EMAQuality float64
}

// FailureRate returns failures over calls, capped at 1.
func (s ModelStats) FailureRate() float64 {
	if s.Calls <= 0 {
		return 0
	}
	rate := float64(s.Failures) / float64(s.Calls)
	if rate > 1 {
		return 1
	}
	return rate
}

// Store owns the mutable counter map. Entries are created lazily on first
// attempt and never deleted during the process lifetime.
type Store struct {
	mu      sync.Mutex
	alpha   float64
	entries map[Key]*ModelStats
	metrics *metrics
}

// Option configures a Store.
type Option func(*Store)

// NewStore creates a store with the given EMA smoothing factor. Alpha is
// clamped to [0.01, 0.99].
func NewStore(alpha float64, opts ...Option) *Store {
	if alpha < 0.01 {
		alpha = 0.01
	}
	if alpha > 0.99 {
		alpha = 0.99
	}
	s := &Store{
		alpha:   alpha,
		entries: make(map[Key]*ModelStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record updates the counters for one attempt. Latency is floored at 1ms
// so a zero measurement never poisons the moving average. Quality is
// clamped to [0, 1].
func (s *Store) Record(task, backend string, success bool, latency time.Duration, quality float64) {
	if latency < time.Millisecond {
		latency = time.Millisecond
	}
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}

	s.mu.Lock()
	key := Key{Task: task, Backend: backend}
	entry := s.entries[key]
	if entry == nil {
		entry = &ModelStats{EMAQuality: initialQualityPrior}
		s.entries[key] = entry
	}

	entry.Calls++
	if success {
		entry.Successes++
	} else {
		entry.Failures++
	}

	if entry.EMALatency <= 0 {
		entry.EMALatency = latency
	} else {
		entry.EMALatency = time.Duration(s.alpha*float64(latency) + (1-s.alpha)*float64(entry.EMALatency))
	}
	entry.EMAQuality = s.alpha*quality + (1-s.alpha)*entry.EMAQuality
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.observe(task, backend, success, latency)
	}
}

// Snapshot returns a copy of the counters for one (task, backend) pair.
// The second return value reports whether the backend has been attempted.
func (s *Store) Snapshot(task, backend string) (ModelStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[Key{Task: task, Backend: backend}]
	if !ok {
		return ModelStats{}, false
	}
	return *entry, true
}

// All returns a copy of every counter set, keyed by (task, backend).
func (s *Store) All() map[Key]ModelStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Key]ModelStats, len(s.entries))
	for key, entry := range s.entries {
		out[key] = *entry
	}
	return out
}
