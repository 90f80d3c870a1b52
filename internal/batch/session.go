// Package batch drives many (player, season) work items through the
// fetch → parse → validate → aggregate pipeline as a resumable,
// partially-failable job with bounded worker parallelism.
package batch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemState is one work item's position in its lifecycle.
type ItemState string

const (
	ItemPending    ItemState = "pending"
	ItemInProgress ItemState = "in_progress"
	ItemDone       ItemState = "done"
	ItemFailed     ItemState = "failed"
	ItemSkipped    ItemState = "skipped"
)

// SessionState is the overall batch lifecycle.
type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionRunning   SessionState = "running"
	SessionPaused    SessionState = "paused"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
)

// Item is one unit of ingestion work: a player ref plus a season. Items
// are never deleted, only transitioned.
type Item struct {
	ID        uuid.UUID
	PlayerRef string
	Season    int
	State     ItemState
	Attempts  int
	LastError string
}

// Session is a persisted batch run. The runner is its sole mutator.
type Session struct {
	ID        uuid.UUID
	State     SessionState
	Season    int
	CreatedAt time.Time
	Items     []Item
}

// NewSession plans a session with one pending item per (playerRef, season).
func NewSession(season int, playerRefs []string) *Session {
	s := &Session{
		ID:        uuid.New(),
		State:     SessionCreated,
		Season:    season,
		CreatedAt: time.Now().UTC(),
	}
	for _, ref := range playerRefs {
		s.Items = append(s.Items, Item{
			ID:        uuid.New(),
			PlayerRef: ref,
			Season:    season,
			State:     ItemPending,
		})
	}
	return s
}

// Counts tallies items by state.
func (s *Session) Counts() map[ItemState]int {
	counts := make(map[ItemState]int)
	for _, it := range s.Items {
		counts[it.State]++
	}
	return counts
}

// Pending returns the indexes of items a run (or resume) still has to
// process: everything not already Done or Skipped.
func (s *Session) Pending() []int {
	var idx []int
	for i, it := range s.Items {
		if it.State != ItemDone && it.State != ItemSkipped {
			idx = append(idx, i)
		}
	}
	return idx
}

// Result is the progress summary exposed to the caller after a run.
type Result struct {
	SessionID   uuid.UUID
	State       SessionState
	Completed   int
	Failed      int
	Skipped     int
	FailedItems []Item
	Duration    time.Duration
}

// Summary renders the result for logging.
func (r *Result) Summary() string {
	return fmt.Sprintf("state=%s completed=%d failed=%d skipped=%d duration=%s",
		r.State, r.Completed, r.Failed, r.Skipped, r.Duration.Round(time.Second))
}
