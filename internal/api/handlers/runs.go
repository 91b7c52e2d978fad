package handlers

import (
	"sync"

	"github.com/datapulse/insight-engine/internal/engine"
)

// RunStore keeps the most recent synthesis runs in memory so stories can
// reference their insights. Oldest runs are evicted first.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]*engine.RunResult
	order    []string
	capacity int
}

func NewRunStore(capacity int) *RunStore {
	if capacity <= 0 {
		capacity = 32
	}
	return &RunStore{
		runs:     make(map[string]*engine.RunResult, capacity),
		capacity: capacity,
	}
}

func (rs *RunStore) Put(run *engine.RunResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, exists := rs.runs[run.RunID]; !exists {
		rs.order = append(rs.order, run.RunID)
	}
	rs.runs[run.RunID] = run

	for len(rs.order) > rs.capacity {
		oldest := rs.order[0]
		rs.order = rs.order[1:]
		delete(rs.runs, oldest)
	}
}

func (rs *RunStore) Get(runID string) (*engine.RunResult, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	run, ok := rs.runs[runID]
	return run, ok
}

func (rs *RunStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.runs)
}
