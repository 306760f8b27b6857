// Package journal keeps a bounded in-memory ring of recent events per game.
// It plugs into the logging router as a sink, so everything the simulation
// publishes is also queryable for debugging and for the websocket hub's
// late-subscriber catch-up.
package journal

import (
	"context"
	"sync"

	"stardrift/server/logging"
)

// Telemetry captures the metrics hook the journal reports drops through.
type Telemetry interface {
	Add(key string, delta uint64)
}

// Journal retains up to capacity events per game. Older entries are evicted
// first; eviction is counted, never fatal.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	perGame  map[string][]logging.Event
	metrics  Telemetry
}

const defaultCapacity = 256

// New constructs a Journal. Metrics may be nil.
func New(capacity int, metrics Telemetry) *Journal {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Journal{
		capacity: capacity,
		perGame:  make(map[string][]logging.Event),
		metrics:  metrics,
	}
}

// Write satisfies logging.Sink. Events without a game ID are not journaled;
// they belong to the process, not to a game.
func (j *Journal) Write(event logging.Event) error {
	if event.GameID == "" {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	entries := j.perGame[event.GameID]
	if len(entries) >= j.capacity {
		copy(entries, entries[1:])
		entries = entries[:len(entries)-1]
		if j.metrics != nil {
			j.metrics.Add("journal.evicted", 1)
		}
	}
	j.perGame[event.GameID] = append(entries, event)
	return nil
}

// Close satisfies logging.Sink.
func (j *Journal) Close(context.Context) error {
	return nil
}

// Recent returns up to limit of the newest events for a game, oldest first.
// A non-positive limit returns everything retained.
func (j *Journal) Recent(gameID string, limit int) []logging.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	entries := j.perGame[gameID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	copied := make([]logging.Event, limit)
	copy(copied, entries[len(entries)-limit:])
	return copied
}

// Forget drops a completed game's entries.
func (j *Journal) Forget(gameID string) {
	j.mu.Lock()
	delete(j.perGame, gameID)
	j.mu.Unlock()
}

var _ logging.Sink = (*Journal)(nil)
