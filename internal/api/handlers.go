package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/albapepper/pfr-ingest/internal/batch"
	"github.com/albapepper/pfr-ingest/internal/db"
	"github.com/albapepper/pfr-ingest/internal/store"
)

// handler holds shared dependencies for all endpoint handlers.
type handler struct {
	pool     *db.Pool
	sessions *store.SessionStore
}

func newHandler(pool *db.Pool, sessions *store.SessionStore) *handler {
	return &handler{pool: pool, sessions: sessions}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Root serves API info at /.
func (h *handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "PFR Ingest Progress API",
		"version": "1.0.0",
		"status":  "running",
	})
}

// HealthCheck returns basic health status.
func (h *handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type sessionSummaryJSON struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Season    int       `json:"season"`
	CreatedAt time.Time `json:"created_at"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// ListSessions returns all persisted sessions newest-first.
func (h *handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessions.ListSessions(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list sessions"})
		return
	}
	out := make([]sessionSummaryJSON, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, sessionSummaryJSON{
			ID:        s.ID.String(),
			State:     string(s.State),
			Season:    s.Season,
			CreatedAt: s.CreatedAt,
			Total:     s.Total,
			Done:      s.Done,
			Failed:    s.Failed,
			Skipped:   s.Skipped,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

type sessionItemJSON struct {
	PlayerRef string `json:"player_ref"`
	Season    int    `json:"season"`
	State     string `json:"state"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// GetSession returns one session with its full item list.
func (h *handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid session id"})
		return
	}

	session, err := h.sessions.LoadSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, batch.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "session not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load session"})
		return
	}

	items := make([]sessionItemJSON, 0, len(session.Items))
	for _, it := range session.Items {
		items = append(items, sessionItemJSON{
			PlayerRef: it.PlayerRef,
			Season:    it.Season,
			State:     string(it.State),
			Attempts:  it.Attempts,
			LastError: it.LastError,
		})
	}
	counts := session.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         session.ID.String(),
		"state":      string(session.State),
		"season":     session.Season,
		"created_at": session.CreatedAt,
		"done":       counts[batch.ItemDone],
		"failed":     counts[batch.ItemFailed],
		"skipped":    counts[batch.ItemSkipped],
		"items":      items,
	})
}
