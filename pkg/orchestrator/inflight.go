package orchestrator

import (
	"sync"
	"time"
)

// inFlightEntry is a pure accelerator for the sweeper: it owns no data the
// Store does not already hold, and can be rebuilt by scanning partial-result
// hash keys on restart (§5, §9).
type inFlightEntry struct {
	recordID  string
	batchID   string
	startedAt time.Time
}

// inFlightTable tracks tasks currently being scored, keyed by task-id.
// It is mutated by the dispatch loop (insert), the collector loop (remove
// on finalise), and the sweeper (remove on timeout); all three run
// concurrently, so access is guarded by a mutex (§5).
type inFlightTable struct {
	mu      sync.Mutex
	entries map[string]inFlightEntry
}

func newInFlightTable() *inFlightTable {
	return &inFlightTable{entries: make(map[string]inFlightEntry)}
}

func (t *inFlightTable) insert(taskID, recordID, batchID string, startedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[taskID] = inFlightEntry{recordID: recordID, batchID: batchID, startedAt: startedAt}
}

func (t *inFlightTable) remove(taskID string) (inFlightEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[taskID]
	if ok {
		delete(t.entries, taskID)
	}
	return e, ok
}

func (t *inFlightTable) get(taskID string) (inFlightEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[taskID]
	return e, ok
}

func (t *inFlightTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// expired returns the task-ids whose age exceeds timeout as of now.
func (t *inFlightTable) expired(now time.Time, timeout time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for taskID, e := range t.entries {
		if now.Sub(e.startedAt) > timeout {
			ids = append(ids, taskID)
		}
	}
	return ids
}
