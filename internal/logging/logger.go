package logging

import (
	"sync"

	"github.com/nova-quant/pipeline/internal/domain"
)

// runLogCapacity bounds how many structured entries are retained per run,
// oldest first, so a long-running pipeline with a chatty node can't grow a
// run's log buffer without bound.
const runLogCapacity = 2000

// RunLogStore is the per-run structured log buffer the design notes
// describe: runners tee every captured line into it, and it is the thing
// an external status-query API would read from. Modeled on the teacher's
// mutex-guarded Logger, generalized from a single request-log slice to a
// ring buffer per runId.
type RunLogStore struct {
	mu      sync.Mutex
	byRun   map[string][]domain.LogEntry
}

// NewRunLogStore returns an empty store.
func NewRunLogStore() *RunLogStore {
	return &RunLogStore{byRun: make(map[string][]domain.LogEntry)}
}

// Append adds entries to runID's buffer, trimming the oldest entries if the
// buffer would exceed runLogCapacity.
func (s *RunLogStore) Append(runID string, entries ...domain.LogEntry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.byRun[runID], entries...)
	if len(buf) > runLogCapacity {
		buf = buf[len(buf)-runLogCapacity:]
	}
	s.byRun[runID] = buf
}

// Get returns a copy of runID's buffered entries.
func (s *RunLogStore) Get(runID string) []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.byRun[runID]
	out := make([]domain.LogEntry, len(entries))
	copy(out, entries)
	return out
}

// Discard drops runID's buffer once a run's results have been consumed.
func (s *RunLogStore) Discard(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byRun, runID)
}
