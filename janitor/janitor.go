// Package janitor implements the periodic stale-room sweep (spec.md §4.G),
// grounded on the original Django management command
// cleanup_stale_games.py: rooms still `waiting` an hour after creation are
// deleted outright, with no broadcast — any session still attached fails
// its next command with room_not_found (spec.md §4.G).
package janitor

import (
	"context"
	"log"
	"time"

	"github.com/lab1702/dicewars/store"
)

// DefaultInterval is how often the sweep runs.
const DefaultInterval = time.Minute

// DefaultStaleAfter is how long a room may sit in `waiting` before the
// sweep considers it abandoned.
const DefaultStaleAfter = time.Hour

// Janitor periodically deletes rooms that were created but never started.
type Janitor struct {
	Store      store.Store
	Interval   time.Duration
	StaleAfter time.Duration
	Now        func() time.Time
}

// New returns a Janitor with spec.md's default interval and staleness
// window; callers may override either field before calling Run.
func New(s store.Store) *Janitor {
	return &Janitor{
		Store:      s,
		Interval:   DefaultInterval,
		StaleAfter: DefaultStaleAfter,
		Now:        time.Now,
	}
}

// Run ticks on j.Interval until ctx is cancelled, sweeping stale rooms on
// every tick. It runs one sweep immediately on entry rather than waiting
// for the first tick, so a freshly started server doesn't carry an hour
// of backlog before its first cleanup.
func (j *Janitor) Run(ctx context.Context) {
	j.sweep(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	cutoff := now().Add(-j.StaleAfter)
	n, err := j.Store.DeleteStaleWaiting(ctx, cutoff)
	if err != nil {
		log.Printf("janitor: stale room sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("janitor: removed %d stale waiting room(s) created before %s", n, cutoff.Format(time.RFC3339))
	}
}
