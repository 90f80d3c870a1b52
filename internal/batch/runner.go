package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/pfr-ingest/internal/aggregate"
	"github.com/albapepper/pfr-ingest/internal/fetch"
	"github.com/albapepper/pfr-ingest/internal/parse"
	"github.com/albapepper/pfr-ingest/internal/pfr"
	"github.com/albapepper/pfr-ingest/internal/validate"
)

// Fetcher is the page-fetching dependency. Implemented by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// StatStore is the persistence boundary for validated records. The engine
// never issues SQL; the store owns schema and conflicts.
type StatStore interface {
	Save(ctx context.Context, records []pfr.StatRecord) error
	Exists(ctx context.Context, playerRef string, season int) (bool, error)
}

// Config tunes a batch run.
type Config struct {
	Workers          int
	ItemRetries      int     // extra pipeline attempts per item after the first
	FailureThreshold float64 // fraction of failed items that fails the session
	SkipExisting     bool    // skip items the store already has
	Strict           bool    // Error-severity validation issues block persistence
	BaseURL          string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Workers < 1 {
		out.Workers = 1
	}
	if out.Workers > 4 {
		out.Workers = 4
	}
	if out.FailureThreshold <= 0 {
		out.FailureThreshold = 0.5
	}
	if out.BaseURL == "" {
		out.BaseURL = pfr.DefaultBaseURL
	}
	return out
}

// Runner executes batch sessions. One Runner per run; Stop may be called
// from any goroutine.
type Runner struct {
	fetcher  Fetcher
	parser   *parse.Parser
	stats    StatStore
	sessions SessionStore
	cfg      Config
	logger   *slog.Logger

	stopped atomic.Bool

	mu       sync.Mutex
	fatalErr error // first session-store persistence failure
}

// NewRunner wires a runner.
func NewRunner(fetcher Fetcher, parser *parse.Parser, stats StatStore, sessions SessionStore, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		fetcher:  fetcher,
		parser:   parser,
		stats:    stats,
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Stop requests cancellation. Workers observe the flag between items;
// in-flight fetches are allowed to finish.
func (r *Runner) Stop() {
	r.stopped.Store(true)
}

// Resume reloads a persisted session for another run. Everything not Done
// or Skipped goes back to Pending with a fresh retry budget; Done work is
// never reprocessed.
func (r *Runner) Resume(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := r.sessions.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	for i := range s.Items {
		it := &s.Items[i]
		if it.State == ItemDone || it.State == ItemSkipped {
			continue
		}
		it.State = ItemPending
		it.Attempts = 0
		if err := r.sessions.UpdateItem(ctx, s.ID, it); err != nil {
			return nil, fmt.Errorf("reset item %s: %w", it.PlayerRef, err)
		}
	}
	return s, nil
}

// Run processes every pending item of the session through the pipeline and
// returns the progress summary. Only a session-store persistence failure
// aborts the run; per-item errors mark that item Failed and the batch
// moves on.
func (r *Runner) Run(ctx context.Context, session *Session) (*Result, error) {
	start := time.Now()

	session.State = SessionRunning
	if err := r.sessions.UpdateSessionState(ctx, session.ID, SessionRunning); err != nil {
		return nil, fmt.Errorf("persist session state: %w", err)
	}

	pending := session.Pending()
	r.logger.Info("batch run starting",
		"session", session.ID, "items", len(pending), "workers", r.cfg.Workers)

	work := make(chan int, len(pending))
	for _, idx := range pending {
		work <- idx
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				// Stop and cancellation are observed between items only.
				if r.stopped.Load() || ctx.Err() != nil {
					return
				}
				item := &session.Items[idx]
				r.processItem(ctx, session.ID, item)
			}
		}()
	}
	wg.Wait()

	r.mu.Lock()
	fatal := r.fatalErr
	r.mu.Unlock()
	if fatal != nil {
		return nil, fmt.Errorf("session persistence failed: %w", fatal)
	}

	result := r.finish(ctx, session, start)
	r.logger.Info("batch run finished", "session", session.ID, "summary", result.Summary())
	return result, nil
}

// finish decides the terminal session state and builds the result.
func (r *Runner) finish(ctx context.Context, session *Session, start time.Time) *Result {
	counts := session.Counts()
	result := &Result{
		SessionID: session.ID,
		Completed: counts[ItemDone],
		Failed:    counts[ItemFailed],
		Skipped:   counts[ItemSkipped],
		Duration:  time.Since(start),
	}
	for _, it := range session.Items {
		if it.State == ItemFailed {
			result.FailedItems = append(result.FailedItems, it)
		}
	}

	interrupted := counts[ItemPending]+counts[ItemInProgress] > 0
	switch {
	case interrupted:
		session.State = SessionPaused
	case len(session.Items) > 0 &&
		float64(result.Failed)/float64(len(session.Items)) > r.cfg.FailureThreshold:
		session.State = SessionFailed
	default:
		session.State = SessionCompleted
	}
	result.State = session.State

	if err := r.sessions.UpdateSessionState(ctx, session.ID, session.State); err != nil {
		r.logger.Error("persist final session state", "session", session.ID, "error", err)
	}
	return result
}

// processItem runs one item through the pipeline with its retry budget and
// persists every state transition before the worker moves on.
func (r *Runner) processItem(ctx context.Context, sessionID uuid.UUID, item *Item) {
	persist := func() {
		if err := r.sessions.UpdateItem(ctx, sessionID, item); err != nil {
			r.mu.Lock()
			if r.fatalErr == nil {
				r.fatalErr = err
			}
			r.mu.Unlock()
			r.stopped.Store(true)
		}
	}

	if r.cfg.SkipExisting {
		exists, err := r.stats.Exists(ctx, item.PlayerRef, item.Season)
		if err == nil && exists {
			item.State = ItemSkipped
			persist()
			r.logger.Info("item skipped, already ingested",
				"player", item.PlayerRef, "season", item.Season)
			return
		}
	}

	item.State = ItemInProgress
	persist()

	maxAttempts := r.cfg.ItemRetries + 1
	for item.Attempts < maxAttempts {
		item.Attempts++
		err := r.runPipeline(ctx, item)
		if err == nil {
			item.State = ItemDone
			item.LastError = ""
			persist()
			return
		}
		item.LastError = err.Error()
		r.logger.Warn("item attempt failed",
			"player", item.PlayerRef, "season", item.Season,
			"attempt", item.Attempts, "error", err)

		if ctx.Err() != nil || r.stopped.Load() {
			break
		}
		// An exhausted transient fetch may clear up on a later pass, and it
		// wraps the last FetchError it saw, so it has to be ruled out before
		// the terminal check below can be trusted.
		var re *fetch.RetryExhaustedError
		if errors.As(err, &re) {
			continue
		}
		// Terminal fetch errors will not improve on retry.
		var fe *fetch.FetchError
		if errors.As(err, &fe) {
			break
		}
	}

	item.State = ItemFailed
	persist()
}

// runPipeline is one full fetch → parse → aggregate → validate → save pass
// for one (player, season).
func (r *Runner) runPipeline(ctx context.Context, item *Item) error {
	playerPage, err := r.fetcher.Fetch(ctx, pfr.PlayerURL(r.cfg.BaseURL, item.PlayerRef))
	if err != nil {
		return fmt.Errorf("player page: %w", err)
	}

	totals, err := r.parser.SeasonTotals(playerPage, parse.TotalsOptions{
		PlayerRef: item.PlayerRef,
	})
	if err != nil {
		return fmt.Errorf("season totals: %w", err)
	}

	var seasonRows []pfr.StatRecord
	for _, rec := range totals {
		if rec.Season == item.Season {
			seasonRows = append(seasonRows, rec)
		}
	}
	if len(seasonRows) == 0 {
		return fmt.Errorf("no %d season row for %s", item.Season, item.PlayerRef)
	}

	canonical, warnings, err := aggregate.Resolve(seasonRows)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	for _, w := range warnings {
		r.logger.Warn("ambiguous multi-team resolution", "detail", w.String())
	}

	splitsPage, err := r.fetcher.Fetch(ctx, pfr.SplitsURL(r.cfg.BaseURL, item.PlayerRef, item.Season))
	if err != nil {
		return fmt.Errorf("splits page: %w", err)
	}
	splits, err := r.parser.Splits(splitsPage, item.PlayerRef, canonical.PlayerName, item.Season)
	if err != nil {
		return fmt.Errorf("splits: %w", err)
	}

	records := append([]pfr.StatRecord{canonical}, splits...)
	for i := range records {
		issues := validate.Check(&records[i])
		for _, issue := range issues {
			switch issue.Severity {
			case validate.SeverityError:
				r.logger.Error("validation issue",
					"player", item.PlayerRef, "season", item.Season,
					"record", records[i].String(), "issue", issue.String())
			default:
				r.logger.Debug("validation issue",
					"player", item.PlayerRef, "season", item.Season,
					"issue", issue.String())
			}
		}
		if r.cfg.Strict && validate.HasErrors(issues) {
			return fmt.Errorf("strict mode: validation errors on %s", records[i].String())
		}
	}

	if err := r.stats.Save(ctx, records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}
