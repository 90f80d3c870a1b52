package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/pfr-ingest/internal/batch"
	"github.com/albapepper/pfr-ingest/internal/db"
)

// SessionStore persists batch sessions and their items in Postgres, making
// runs resumable across process restarts.
type SessionStore struct {
	pool *db.Pool
}

// NewSessionStore wraps the pool.
func NewSessionStore(pool *db.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// CreateSession writes the session header and every item in one transaction.
// Item order is preserved so a resumed run walks the plan in the original
// order.
func (s *SessionStore) CreateSession(ctx context.Context, session *batch.Session) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "insert_session",
		session.ID, string(session.State), session.Season, session.CreatedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for i, it := range session.Items {
		if _, err := tx.Exec(ctx, "insert_session_item",
			it.ID, session.ID, i, it.PlayerRef, it.Season,
			string(it.State), it.Attempts, it.LastError); err != nil {
			return fmt.Errorf("insert item %s: %w", it.PlayerRef, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadSession reads the session header plus its items.
func (s *SessionStore) LoadSession(ctx context.Context, id uuid.UUID) (*batch.Session, error) {
	var session batch.Session
	var state string
	err := s.pool.QueryRow(ctx, "session_by_id", id).
		Scan(&session.ID, &state, &session.Season, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, batch.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	session.State = batch.SessionState(state)

	rows, err := s.pool.Query(ctx, "session_items", id)
	if err != nil {
		return nil, fmt.Errorf("load items for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it batch.Item
		var itemState string
		if err := rows.Scan(&it.ID, &it.PlayerRef, &it.Season,
			&itemState, &it.Attempts, &it.LastError); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.State = batch.ItemState(itemState)
		session.Items = append(session.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return &session, nil
}

// ListSessions returns all sessions newest-first with their item tallies.
func (s *SessionStore) ListSessions(ctx context.Context) ([]batch.SessionSummary, error) {
	rows, err := s.pool.Query(ctx, "list_sessions")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []batch.SessionSummary
	for rows.Next() {
		var sum batch.SessionSummary
		var state string
		if err := rows.Scan(&sum.ID, &state, &sum.Season, &sum.CreatedAt,
			&sum.Total, &sum.Done, &sum.Failed, &sum.Skipped); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		sum.State = batch.SessionState(state)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// UpdateSessionState persists a session state transition.
func (s *SessionStore) UpdateSessionState(ctx context.Context, id uuid.UUID, state batch.SessionState) error {
	tag, err := s.pool.Exec(ctx, "update_session_state", id, string(state))
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return batch.ErrSessionNotFound
	}
	return nil
}

// UpdateItem persists one item transition. Called before the worker takes
// its next item, so completed work survives a crash.
func (s *SessionStore) UpdateItem(ctx context.Context, sessionID uuid.UUID, item *batch.Item) error {
	tag, err := s.pool.Exec(ctx, "update_session_item",
		item.ID, string(item.State), item.Attempts, item.LastError)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.PlayerRef, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s not found in session %s", item.ID, sessionID)
	}
	return nil
}
